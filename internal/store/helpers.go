package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/novamind-health/careflow/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalContext serializes a session context for the TEXT column. An empty
// context is stored as an empty string.
func marshalContext(ctx models.SessionContext) (string, error) {
	if ctx.IsEmpty() {
		return "", nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session context: %w", err)
	}
	return string(data), nil
}

func unmarshalContext(raw string) models.SessionContext {
	var ctx models.SessionContext
	if raw == "" {
		return ctx
	}
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		// A corrupt context bag degrades to an empty one rather than
		// failing the session load.
		return models.SessionContext{}
	}
	return ctx
}

func marshalAnswers(answers [4]int) (string, error) {
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal answers: %w", err)
	}
	return string(data), nil
}

func marshalEmotions(emotions []string) (string, error) {
	if len(emotions) == 0 {
		return "", nil
	}
	data, err := json.Marshal(emotions)
	if err != nil {
		return "", fmt.Errorf("failed to marshal emotions: %w", err)
	}
	return string(data), nil
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

// scanSession scans a Session from a single sql.Row.
func scanSession(row *sql.Row) (*models.Session, error) {
	var session models.Session
	var flowType string
	var contextJSON sql.NullString
	err := row.Scan(
		&session.UserID, &session.AnonymousID, &session.Language, &flowType,
		&session.FlowStep, &contextJSON, &session.LastActivity, &session.IsNewUser,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.CurrentFlow = models.FlowType(flowType)
	session.Context = unmarshalContext(contextJSON.String)
	return &session, nil
}

// scanAccount scans an Account from a single sql.Row.
func scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	var ageGroup, location, category sql.NullString
	err := row.Scan(
		&account.UserID, &account.AnonymousID, &account.Language,
		&ageGroup, &location, &category, &account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.AgeGroup = ageGroup.String
	account.Location = location.String
	account.Category = category.String
	return &account, nil
}

// collectAssessments scans all assessment rows.
func collectAssessments(rows *sql.Rows) ([]models.AssessmentRecord, error) {
	var records []models.AssessmentRecord
	for rows.Next() {
		var record models.AssessmentRecord
		var answersJSON, severity string
		if err := rows.Scan(
			&record.ID, &record.UserID, &answersJSON, &record.DepressionScore,
			&record.AnxietyScore, &record.TotalScore, &severity, &record.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assessment row: %w", err)
		}
		if err := json.Unmarshal([]byte(answersJSON), &record.Answers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
		}
		record.SeverityLevel = models.Severity(severity)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessment rows: %w", err)
	}
	return records, nil
}

// collectMoods scans all mood rows.
func collectMoods(rows *sql.Rows) ([]models.MoodEntry, error) {
	var entries []models.MoodEntry
	for rows.Next() {
		var entry models.MoodEntry
		var emotionsJSON, notes sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Score, &emotionsJSON, &notes, &entry.LoggedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mood row: %w", err)
		}
		if emotionsJSON.String != "" {
			if err := json.Unmarshal([]byte(emotionsJSON.String), &entry.Emotions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal emotions: %w", err)
			}
		}
		entry.Notes = notes.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mood rows: %w", err)
	}
	return entries, nil
}

// collectResources scans all resource rows.
func collectResources(rows *sql.Rows) ([]models.Resource, error) {
	var resources []models.Resource
	for rows.Next() {
		var resource models.Resource
		var description sql.NullString
		if err := rows.Scan(
			&resource.ID, &resource.Category, &resource.Language,
			&resource.Title, &description, &resource.ContactInfo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		resource.Description = description.String
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resource rows: %w", err)
	}
	return resources, nil
}
