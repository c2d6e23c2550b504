// Package models defines session state structures for CareFlow conversations.
package models

import "time"

// Session holds the durable per-identity conversational state spanning turns.
type Session struct {
	UserID       string         `json:"user_id"`
	AnonymousID  string         `json:"anonymous_id"`
	Language     string         `json:"language"`
	CurrentFlow  FlowType       `json:"current_flow"`
	FlowStep     int            `json:"flow_step"`
	Context      SessionContext `json:"context"`
	LastActivity time.Time      `json:"last_activity"`
	IsNewUser    bool           `json:"is_new_user"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SessionContext carries in-progress flow data. At most one member is set;
// the whole struct is zeroed whenever a flow ends. The router treats it as
// opaque.
type SessionContext struct {
	Onboarding *OnboardingContext `json:"onboarding,omitempty"`
	Assessment *AssessmentContext `json:"assessment,omitempty"`
	Mood       *MoodContext       `json:"mood,omitempty"`
}

// IsEmpty reports whether no flow data is in progress.
func (c SessionContext) IsEmpty() bool {
	return c.Onboarding == nil && c.Assessment == nil && c.Mood == nil
}

// OnboardingContext accumulates answers across the onboarding steps.
type OnboardingContext struct {
	Language string `json:"language,omitempty"`
	AgeGroup string `json:"age_group,omitempty"`
	Location string `json:"location,omitempty"`
	Category string `json:"category,omitempty"`
}

// AssessmentContext accumulates PHQ-4 answers as the participant replies.
type AssessmentContext struct {
	Answers []int `json:"answers"`
}

// MoodContext accumulates a mood log entry across its steps.
type MoodContext struct {
	Score    int      `json:"score"`
	Emotions []string `json:"emotions,omitempty"`
}

// ResetToIdle returns the session to its between-flows state. Context never
// survives a transition to idle.
func (s *Session) ResetToIdle() {
	s.CurrentFlow = FlowTypeIdle
	s.FlowStep = 0
	s.Context = SessionContext{}
}
