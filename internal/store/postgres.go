// Package store provides storage backends for CareFlow.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/novamind-health/careflow/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.seedResources(); err != nil {
		slog.Error("Failed to seed resources", "error", err)
		return nil, fmt.Errorf("failed to seed resources: %w", err)
	}
	slog.Debug("Postgres store ready")
	return s, nil
}

// seedResources inserts the default resource directory, skipping rows that
// already exist.
func (s *PostgresStore) seedResources() error {
	for _, r := range DefaultResources() {
		_, err := s.db.Exec(
			`INSERT INTO resources (id, category, language, title, description, contact_info)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			r.ID, r.Category, r.Language, r.Title, r.Description, r.ContactInfo)
		if err != nil {
			return fmt.Errorf("failed to seed resource %s: %w", r.ID, err)
		}
	}
	return nil
}

// GetSession retrieves the session for a user, or nil if none exists.
func (s *PostgresStore) GetSession(userID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT user_id, anonymous_id, language, current_flow, flow_step, context, last_activity, is_new_user, created_at, updated_at
		 FROM sessions WHERE user_id = $1`, userID)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get session for %s: %w", userID, err)
	}
	return session, nil
}

// SaveSession stores or replaces the session for its user.
func (s *PostgresStore) SaveSession(session models.Session) error {
	contextJSON, err := marshalContext(session.Context)
	if err != nil {
		slog.Error("PostgresStore SaveSession context marshal failed", "error", err, "userID", session.UserID)
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (user_id, anonymous_id, language, current_flow, flow_step, context, last_activity, is_new_user, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
			anonymous_id = EXCLUDED.anonymous_id,
			language = EXCLUDED.language,
			current_flow = EXCLUDED.current_flow,
			flow_step = EXCLUDED.flow_step,
			context = EXCLUDED.context,
			last_activity = EXCLUDED.last_activity,
			is_new_user = EXCLUDED.is_new_user,
			updated_at = EXCLUDED.updated_at`,
		session.UserID, session.AnonymousID, session.Language, string(session.CurrentFlow),
		session.FlowStep, contextJSON, session.LastActivity, session.IsNewUser,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "userID", session.UserID, "flow", session.CurrentFlow, "step", session.FlowStep)
	return nil
}

// DeleteSession removes the session for a user.
func (s *PostgresStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

// SaveAssessment stores a completed assessment record.
func (s *PostgresStore) SaveAssessment(record models.AssessmentRecord) error {
	answersJSON, err := marshalAnswers(record.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO assessments (id, user_id, answers, depression_score, anxiety_score, total_score, severity_level, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.UserID, answersJSON, record.DepressionScore, record.AnxietyScore,
		record.TotalScore, string(record.SeverityLevel), record.CompletedAt)
	if err != nil {
		slog.Error("PostgresStore SaveAssessment failed", "error", err, "userID", record.UserID)
		return fmt.Errorf("failed to save assessment for %s: %w", record.UserID, err)
	}
	slog.Debug("PostgresStore SaveAssessment succeeded", "userID", record.UserID, "total", record.TotalScore)
	return nil
}

// GetAssessments returns all assessment records for a user.
func (s *PostgresStore) GetAssessments(userID string) ([]models.AssessmentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, answers, depression_score, anxiety_score, total_score, severity_level, completed_at
		 FROM assessments WHERE user_id = $1 ORDER BY completed_at`, userID)
	if err != nil {
		slog.Error("PostgresStore GetAssessments query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query assessments for %s: %w", userID, err)
	}
	defer rows.Close()
	return collectAssessments(rows)
}

// SaveMood stores a mood entry.
func (s *PostgresStore) SaveMood(entry models.MoodEntry) error {
	emotionsJSON, err := marshalEmotions(entry.Emotions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO moods (id, user_id, score, emotions, notes, logged_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.Score, emotionsJSON, entry.Notes, entry.LoggedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMood failed", "error", err, "userID", entry.UserID)
		return fmt.Errorf("failed to save mood for %s: %w", entry.UserID, err)
	}
	return nil
}

// GetMoods returns all mood entries for a user.
func (s *PostgresStore) GetMoods(userID string) ([]models.MoodEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, score, emotions, notes, logged_at FROM moods WHERE user_id = $1 ORDER BY logged_at`, userID)
	if err != nil {
		slog.Error("PostgresStore GetMoods query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query moods for %s: %w", userID, err)
	}
	defer rows.Close()
	return collectMoods(rows)
}

// LogInteraction stores one interaction record.
func (s *PostgresStore) LogInteraction(interaction models.Interaction) error {
	metadataJSON, err := marshalMetadata(interaction.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO interactions (user_id, type, metadata, time) VALUES ($1, $2, $3, $4)`,
		interaction.UserID, interaction.Type, metadataJSON, interaction.Time)
	if err != nil {
		slog.Error("PostgresStore LogInteraction failed", "error", err, "userID", interaction.UserID)
		return fmt.Errorf("failed to log interaction for %s: %w", interaction.UserID, err)
	}
	return nil
}

// CreateReferral stores a referral record.
func (s *PostgresStore) CreateReferral(referral models.Referral) error {
	_, err := s.db.Exec(
		`INSERT INTO referrals (id, user_id, urgency, reason, created_at) VALUES ($1, $2, $3, $4, $5)`,
		referral.ID, referral.UserID, string(referral.Urgency), referral.Reason, referral.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateReferral failed", "error", err, "userID", referral.UserID)
		return fmt.Errorf("failed to create referral for %s: %w", referral.UserID, err)
	}
	return nil
}

// CreateAccount stores the durable account record for a user.
func (s *PostgresStore) CreateAccount(account models.Account) error {
	_, err := s.db.Exec(
		`INSERT INTO accounts (user_id, anonymous_id, language, age_group, location, category, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.UserID, account.AnonymousID, account.Language,
		nilIfEmpty(account.AgeGroup), nilIfEmpty(account.Location), nilIfEmpty(account.Category),
		account.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateAccount failed", "error", err, "userID", account.UserID)
		return fmt.Errorf("failed to create account for %s: %w", account.UserID, err)
	}
	slog.Info("PostgresStore CreateAccount succeeded", "userID", account.UserID)
	return nil
}

// GetAccount returns the account for a user, or nil if none exists.
func (s *PostgresStore) GetAccount(userID string) (*models.Account, error) {
	row := s.db.QueryRow(
		`SELECT user_id, anonymous_id, language, age_group, location, category, created_at
		 FROM accounts WHERE user_id = $1`, userID)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAccount failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get account for %s: %w", userID, err)
	}
	return account, nil
}

// FindResources returns up to limit resources matching category and
// language, falling back to English when the language has none.
func (s *PostgresStore) FindResources(category, language string, limit int) ([]models.Resource, error) {
	resources, err := s.queryResources(category, language, limit)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 && language != "en" {
		return s.queryResources(category, "en", limit)
	}
	return resources, nil
}

func (s *PostgresStore) queryResources(category, language string, limit int) ([]models.Resource, error) {
	rows, err := s.db.Query(
		`SELECT id, category, language, title, description, contact_info
		 FROM resources WHERE category = $1 AND language = $2 ORDER BY id LIMIT $3`,
		category, language, limit)
	if err != nil {
		slog.Error("PostgresStore FindResources query failed", "error", err, "category", category, "language", language)
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

// AddResource stores a resource directory entry.
func (s *PostgresStore) AddResource(resource models.Resource) error {
	_, err := s.db.Exec(
		`INSERT INTO resources (id, category, language, title, description, contact_info)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			language = EXCLUDED.language,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			contact_info = EXCLUDED.contact_info`,
		resource.ID, resource.Category, resource.Language, resource.Title, resource.Description, resource.ContactInfo)
	if err != nil {
		slog.Error("PostgresStore AddResource failed", "error", err, "id", resource.ID)
		return fmt.Errorf("failed to add resource %s: %w", resource.ID, err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
