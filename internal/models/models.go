// Package models defines the core data structures for CareFlow.
//
// It includes the engine's per-turn response type, side-effect actions for
// the caller to execute, and the records produced by completed flows. These
// types are shared across modules.
package models

import "time"

// FlowResponse is the engine's sole output type per turn. The session
// mutation it describes (NextFlow/NextStep/Context/ShouldEndFlow) is applied
// by the conversation engine, never by the flow that produced it.
type FlowResponse struct {
	Message       string         `json:"message"`
	QuickReplies  []string       `json:"quick_replies,omitempty"`
	Buttons       []string       `json:"buttons,omitempty"`
	NextFlow      FlowType       `json:"next_flow"`
	NextStep      int            `json:"next_step"`
	Context       SessionContext `json:"context"`
	ShouldEndFlow bool           `json:"should_end_flow"`
	Priority      Priority       `json:"priority"`
	// CrisisRedirect asks the engine to re-route the turn to crisis step 0
	// after executing this response's actions. Set when a late crisis signal
	// surfaces mid-flow (e.g. in mood log notes).
	CrisisRedirect bool `json:"crisis_redirect,omitempty"`
	// Actions emitted by the flow itself (e.g. save_assessment). The engine
	// appends its own derived actions before returning the turn.
	Actions []Action `json:"actions,omitempty"`
}

// Action is a side effect for the caller to execute against an external
// collaborator. The engine never performs these itself.
type Action struct {
	Type     ActionType        `json:"type"`
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// Assessment is set only on save_assessment actions.
	Assessment *AssessmentRecord `json:"assessment,omitempty"`
	// Mood is set only on save_mood actions.
	Mood *MoodEntry `json:"mood,omitempty"`
}

// AssessmentRecord is a completed PHQ-4 screening. Created atomically when
// the fourth answer is captured; immutable thereafter.
type AssessmentRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Answers         [4]int    `json:"answers"`
	DepressionScore int       `json:"depression_score"`
	AnxietyScore    int       `json:"anxiety_score"`
	TotalScore      int       `json:"total_score"`
	SeverityLevel   Severity  `json:"severity_level"`
	CompletedAt     time.Time `json:"completed_at"`
}

// MoodEntry is a completed mood log.
type MoodEntry struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Score    int       `json:"score"`
	Emotions []string  `json:"emotions,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

// Resource is a support resource surfaced during the crisis flow.
type Resource struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContactInfo string `json:"contact_info"`
}

// Account is the durable user record created on onboarding consent.
type Account struct {
	UserID      string    `json:"user_id"`
	AnonymousID string    `json:"anonymous_id"`
	Language    string    `json:"language"`
	AgeGroup    string    `json:"age_group,omitempty"`
	Location    string    `json:"location,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Interaction is one logged inbound/outbound exchange.
type Interaction struct {
	UserID   string            `json:"user_id"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Time     time.Time         `json:"time"`
}

// Referral is an escalation record pointing a participant at follow-up care.
type Referral struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Urgency   Priority  `json:"urgency"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// APIStatus represents the status field of an API response.
type APIStatus string

// API status constants.
const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for API endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
