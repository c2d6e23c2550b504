// Package store provides storage backends for CareFlow.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/novamind-health/careflow/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path; the containing directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.seedResources(); err != nil {
		slog.Error("Failed to seed resources", "error", err)
		return nil, fmt.Errorf("failed to seed resources: %w", err)
	}
	slog.Debug("SQLite store ready", "path", dsn)
	return s, nil
}

// seedResources inserts the default resource directory, skipping rows that
// already exist.
func (s *SQLiteStore) seedResources() error {
	for _, r := range DefaultResources() {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO resources (id, category, language, title, description, contact_info) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.Category, r.Language, r.Title, r.Description, r.ContactInfo)
		if err != nil {
			return fmt.Errorf("failed to seed resource %s: %w", r.ID, err)
		}
	}
	return nil
}

// GetSession retrieves the session for a user, or nil if none exists.
func (s *SQLiteStore) GetSession(userID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT user_id, anonymous_id, language, current_flow, flow_step, context, last_activity, is_new_user, created_at, updated_at
		 FROM sessions WHERE user_id = ?`, userID)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get session for %s: %w", userID, err)
	}
	return session, nil
}

// SaveSession stores or replaces the session for its user.
func (s *SQLiteStore) SaveSession(session models.Session) error {
	contextJSON, err := marshalContext(session.Context)
	if err != nil {
		slog.Error("SQLiteStore SaveSession context marshal failed", "error", err, "userID", session.UserID)
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO sessions (user_id, anonymous_id, language, current_flow, flow_step, context, last_activity, is_new_user, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID, session.AnonymousID, session.Language, string(session.CurrentFlow),
		session.FlowStep, contextJSON, session.LastActivity, session.IsNewUser,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "userID", session.UserID, "flow", session.CurrentFlow, "step", session.FlowStep)
	return nil
}

// DeleteSession removes the session for a user.
func (s *SQLiteStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

// SaveAssessment stores a completed assessment record.
func (s *SQLiteStore) SaveAssessment(record models.AssessmentRecord) error {
	answersJSON, err := marshalAnswers(record.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO assessments (id, user_id, answers, depression_score, anxiety_score, total_score, severity_level, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, answersJSON, record.DepressionScore, record.AnxietyScore,
		record.TotalScore, string(record.SeverityLevel), record.CompletedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveAssessment failed", "error", err, "userID", record.UserID)
		return fmt.Errorf("failed to save assessment for %s: %w", record.UserID, err)
	}
	slog.Debug("SQLiteStore SaveAssessment succeeded", "userID", record.UserID, "total", record.TotalScore)
	return nil
}

// GetAssessments returns all assessment records for a user.
func (s *SQLiteStore) GetAssessments(userID string) ([]models.AssessmentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, answers, depression_score, anxiety_score, total_score, severity_level, completed_at
		 FROM assessments WHERE user_id = ? ORDER BY completed_at`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetAssessments query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query assessments for %s: %w", userID, err)
	}
	defer rows.Close()
	return collectAssessments(rows)
}

// SaveMood stores a mood entry.
func (s *SQLiteStore) SaveMood(entry models.MoodEntry) error {
	emotionsJSON, err := marshalEmotions(entry.Emotions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO moods (id, user_id, score, emotions, notes, logged_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Score, emotionsJSON, entry.Notes, entry.LoggedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveMood failed", "error", err, "userID", entry.UserID)
		return fmt.Errorf("failed to save mood for %s: %w", entry.UserID, err)
	}
	return nil
}

// GetMoods returns all mood entries for a user.
func (s *SQLiteStore) GetMoods(userID string) ([]models.MoodEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, score, emotions, notes, logged_at FROM moods WHERE user_id = ? ORDER BY logged_at`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetMoods query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query moods for %s: %w", userID, err)
	}
	defer rows.Close()
	return collectMoods(rows)
}

// LogInteraction stores one interaction record.
func (s *SQLiteStore) LogInteraction(interaction models.Interaction) error {
	metadataJSON, err := marshalMetadata(interaction.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO interactions (user_id, type, metadata, time) VALUES (?, ?, ?, ?)`,
		interaction.UserID, interaction.Type, metadataJSON, interaction.Time)
	if err != nil {
		slog.Error("SQLiteStore LogInteraction failed", "error", err, "userID", interaction.UserID)
		return fmt.Errorf("failed to log interaction for %s: %w", interaction.UserID, err)
	}
	return nil
}

// CreateReferral stores a referral record.
func (s *SQLiteStore) CreateReferral(referral models.Referral) error {
	_, err := s.db.Exec(
		`INSERT INTO referrals (id, user_id, urgency, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		referral.ID, referral.UserID, string(referral.Urgency), referral.Reason, referral.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateReferral failed", "error", err, "userID", referral.UserID)
		return fmt.Errorf("failed to create referral for %s: %w", referral.UserID, err)
	}
	return nil
}

// CreateAccount stores the durable account record for a user.
func (s *SQLiteStore) CreateAccount(account models.Account) error {
	_, err := s.db.Exec(
		`INSERT INTO accounts (user_id, anonymous_id, language, age_group, location, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.UserID, account.AnonymousID, account.Language,
		nilIfEmpty(account.AgeGroup), nilIfEmpty(account.Location), nilIfEmpty(account.Category),
		account.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateAccount failed", "error", err, "userID", account.UserID)
		return fmt.Errorf("failed to create account for %s: %w", account.UserID, err)
	}
	slog.Info("SQLiteStore CreateAccount succeeded", "userID", account.UserID)
	return nil
}

// GetAccount returns the account for a user, or nil if none exists.
func (s *SQLiteStore) GetAccount(userID string) (*models.Account, error) {
	row := s.db.QueryRow(
		`SELECT user_id, anonymous_id, language, age_group, location, category, created_at
		 FROM accounts WHERE user_id = ?`, userID)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAccount failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get account for %s: %w", userID, err)
	}
	return account, nil
}

// FindResources returns up to limit resources matching category and
// language, falling back to English when the language has none.
func (s *SQLiteStore) FindResources(category, language string, limit int) ([]models.Resource, error) {
	resources, err := s.queryResources(category, language, limit)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 && language != "en" {
		return s.queryResources(category, "en", limit)
	}
	return resources, nil
}

func (s *SQLiteStore) queryResources(category, language string, limit int) ([]models.Resource, error) {
	rows, err := s.db.Query(
		`SELECT id, category, language, title, description, contact_info
		 FROM resources WHERE category = ? AND language = ? ORDER BY id LIMIT ?`,
		category, language, limit)
	if err != nil {
		slog.Error("SQLiteStore FindResources query failed", "error", err, "category", category, "language", language)
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

// AddResource stores a resource directory entry.
func (s *SQLiteStore) AddResource(resource models.Resource) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO resources (id, category, language, title, description, contact_info) VALUES (?, ?, ?, ?, ?, ?)`,
		resource.ID, resource.Category, resource.Language, resource.Title, resource.Description, resource.ContactInfo)
	if err != nil {
		slog.Error("SQLiteStore AddResource failed", "error", err, "id", resource.ID)
		return fmt.Errorf("failed to add resource %s: %w", resource.ID, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
