// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType identifies one of the engine's structured conversation flows.
type FlowType string

// Priority drives escalation behavior for a turn's response.
type Priority string

// Severity is the clinical severity band derived from a PHQ-4 total score.
type Severity string

// ActionType identifies a side-effecting action the caller must execute.
type ActionType string

// Flow type constants.
const (
	FlowTypeIdle       FlowType = "idle"
	FlowTypeOnboarding FlowType = "onboarding"
	FlowTypeAssessment FlowType = "assessment"
	FlowTypeMoodLog    FlowType = "mood_log"
	FlowTypeCrisis     FlowType = "crisis"
)

// Priority constants.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Severity band constants for PHQ-4 scoring.
const (
	SeverityMinimal  Severity = "minimal"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Action type constants. The engine emits these; the caller executes them.
const (
	ActionLogInteraction     ActionType = "log_interaction"
	ActionEscalateCrisis     ActionType = "escalate_crisis"
	ActionCreateReferral     ActionType = "create_referral"
	ActionSaveAssessment     ActionType = "save_assessment"
	ActionSaveMood           ActionType = "save_mood"
	ActionCreateAccount      ActionType = "create_account"
	ActionCrisisIntervention ActionType = "crisis_intervention"
	ActionResourceAccess     ActionType = "resource_access"
)

// Crisis flow step constants.
const (
	CrisisStepImmediateResponse = 0
	CrisisStepSafetyCheck       = 1
	CrisisStepProvideResources  = 2
	CrisisStepFollowUpSupport   = 3
)

// Assessment flow step constants. Steps 1-4 are the four PHQ-4 questions.
const (
	AssessmentStepIntro    = 0
	AssessmentStepComplete = 5
)

// Onboarding flow step constants.
const (
	OnboardingStepWelcome  = 0
	OnboardingStepLanguage = 1
	OnboardingStepAge      = 2
	OnboardingStepLocation = 3
	OnboardingStepCategory = 4
	OnboardingStepConsent  = 5
	OnboardingStepComplete = 6
)

// MoodLog flow step constants.
const (
	MoodStepScore    = 0
	MoodStepEmotions = 1
	MoodStepNotes    = 2
)
