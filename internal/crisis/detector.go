// Package crisis provides keyword-based crisis signal detection for inbound
// messages.
//
// Detection runs over per-language phrase tables kept as data so new phrases
// and languages are additive. Matching is word-boundary based on normalized
// text, which keeps benign idioms ("killed it at work") from triggering.
// When a message is ambiguous the detector resolves toward the higher
// priority: a false positive is always preferred over a false negative.
package crisis

import (
	"log/slog"
	"strings"
	"unicode"
)

// Level is the detected crisis priority of a message.
type Level int

// Detection levels, lowest to highest.
const (
	LevelNone Level = iota
	LevelHigh
	LevelCritical
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "critical"
	case LevelHigh:
		return "high"
	default:
		return "none"
	}
}

// ruleSet holds the crisis phrase tables for one language.
type ruleSet struct {
	// intent phrases express self-harm or suicidal ideation. Alone they
	// yield LevelHigh; combined with a plan or time marker, LevelCritical.
	intent []string
	// markers are lethality/timeframe qualifiers that escalate an intent
	// phrase to LevelCritical.
	markers []string
	// thirdParty phrases describe someone else in danger. LevelHigh.
	thirdParty []string
}

var rulesByLanguage = map[string]ruleSet{
	"en": {
		intent: []string{
			"kill myself", "killing myself", "end my life", "ending my life",
			"take my own life", "suicide", "suicidal", "want to die",
			"wish i was dead", "wish i were dead", "better off dead",
			"hurt myself", "hurting myself", "harm myself", "harming myself",
			"self harm", "cut myself", "cutting myself", "end it all",
			"no reason to live", "dont want to live", "cant go on",
		},
		markers: []string{
			"tonight", "today", "right now", "this morning", "this evening",
			"this afternoon", "tomorrow", "i am going to", "im going to",
			"going to", "about to", "i have a plan", "have a plan",
			"decided to", "when i get home",
		},
		thirdParty: []string{
			"wants to kill himself", "wants to kill herself",
			"wants to kill themselves", "wants to die", "wants to hurt himself",
			"wants to hurt herself", "wants to hurt themselves",
			"threatening to kill", "someone is in danger", "my friend is suicidal",
		},
	},
	"es": {
		intent: []string{
			"matarme", "quitarme la vida", "suicidio", "suicidarme",
			"quiero morir", "quiero morirme", "hacerme dano", "hacerme daño",
			"lastimarme", "cortarme", "acabar con todo", "no quiero vivir",
			"no puedo mas", "no puedo más", "mejor estar muerto",
		},
		markers: []string{
			"esta noche", "hoy", "ahora mismo", "manana", "mañana",
			"voy a", "estoy a punto de", "tengo un plan", "he decidido",
		},
		thirdParty: []string{
			"quiere matarse", "quiere morir", "quiere suicidarse",
			"quiere hacerse dano", "quiere hacerse daño",
			"alguien esta en peligro", "alguien está en peligro",
			"amenaza con matarse",
		},
	},
	"fr": {
		intent: []string{
			"me tuer", "me suicider", "suicide", "suicidaire",
			"mettre fin a ma vie", "mettre fin à ma vie", "je veux mourir",
			"en finir", "me faire du mal", "me blesser", "me couper",
			"plus envie de vivre", "aucune raison de vivre", "jen peux plus",
		},
		markers: []string{
			"ce soir", "cette nuit", "aujourdhui", "maintenant", "demain",
			"je vais", "sur le point de", "jai un plan", "jai decide",
			"jai décidé",
		},
		thirdParty: []string{
			"veut se tuer", "veut mourir", "veut se suicider",
			"veut se faire du mal", "quelquun est en danger",
			"menace de se tuer",
		},
	},
}

// Detector scans message text for crisis signals.
type Detector struct{}

// NewDetector creates a crisis detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns the crisis level of the text. The language's own table is
// consulted first, then the English table, so mixed-language messages still
// trigger. Unknown languages fall back to English.
func (d *Detector) Detect(text, lang string) Level {
	normalized := Normalize(text)
	if normalized == "" {
		return LevelNone
	}

	level := detectWithRules(normalized, lang)
	if lang != "en" {
		if enLevel := detectWithRules(normalized, "en"); enLevel > level {
			level = enLevel
		}
	}

	if level > LevelNone {
		slog.Info("Crisis detector matched", "level", level.String(), "language", lang)
	}
	return level
}

func detectWithRules(normalized, lang string) Level {
	rules, ok := rulesByLanguage[lang]
	if !ok {
		rules = rulesByLanguage["en"]
	}

	intentHit := false
	for _, phrase := range rules.intent {
		if containsPhrase(normalized, phrase) {
			intentHit = true
			break
		}
	}
	if intentHit {
		for _, marker := range rules.markers {
			if containsPhrase(normalized, marker) {
				return LevelCritical
			}
		}
		return LevelHigh
	}

	for _, phrase := range rules.thirdParty {
		if containsPhrase(normalized, phrase) {
			return LevelHigh
		}
	}
	return LevelNone
}

// Normalize lowercases the text, drops apostrophes, maps remaining
// punctuation to spaces and collapses whitespace, producing a
// space-separated word sequence suitable for phrase matching.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '\'' || r == '’':
			// dropped so "don't" matches "dont"
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// containsPhrase reports whether phrase occurs in normalized text on word
// boundaries.
func containsPhrase(normalized, phrase string) bool {
	phrase = Normalize(phrase)
	if phrase == "" {
		return false
	}
	padded := " " + normalized + " "
	return strings.Contains(padded, " "+phrase+" ")
}
