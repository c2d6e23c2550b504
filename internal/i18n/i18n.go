// Package i18n provides localized message resolution for CareFlow flows.
//
// Message tables are embedded YAML files, one per language, loaded once at
// construction and immutable afterwards. Resolution falls back to the
// default language for unknown languages or missing keys, and to the key
// itself as a last resort so a missing translation never produces an empty
// outbound message.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the fallback language for unknown languages and keys.
const DefaultLanguage = "en"

//go:embed locales/*.yaml
var localeFS embed.FS

// Translator resolves (key, language) pairs to message strings.
type Translator struct {
	tables map[string]map[string]string
}

// NewTranslator loads all embedded locale tables. It fails if the default
// language table is missing or any table cannot be parsed.
func NewTranslator() (*Translator, error) {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	tables := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		lang := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data, err := localeFS.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", lang, err)
		}
		table := make(map[string]string)
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", lang, err)
		}
		tables[lang] = table
		slog.Debug("Translator loaded locale", "language", lang, "keys", len(table))
	}

	if _, ok := tables[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default language table %q not embedded", DefaultLanguage)
	}
	return &Translator{tables: tables}, nil
}

// Resolve returns the message for key in the given language, falling back
// to the default language and finally to the key itself.
func (t *Translator) Resolve(key, lang string) string {
	if table, ok := t.tables[lang]; ok {
		if msg, ok := table[key]; ok {
			return msg
		}
	}
	if msg, ok := t.tables[DefaultLanguage][key]; ok {
		if lang != DefaultLanguage {
			slog.Debug("Translator falling back to default language", "key", key, "language", lang)
		}
		return msg
	}
	slog.Warn("Translator missing key in all tables", "key", key, "language", lang)
	return key
}

// Languages returns the language codes with a loaded table.
func (t *Translator) Languages() []string {
	langs := make([]string, 0, len(t.tables))
	for lang := range t.tables {
		langs = append(langs, lang)
	}
	return langs
}

// Supported reports whether a table is loaded for the language.
func (t *Translator) Supported(lang string) bool {
	_, ok := t.tables[lang]
	return ok
}
