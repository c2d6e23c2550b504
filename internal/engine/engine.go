// Package engine implements the top-level conversation engine for CareFlow.
//
// The engine orchestrates one atomic turn: load the session, apply timeout
// and reset rules, route the message through the flow router, apply the
// resulting session mutation, persist, and derive the side-effect actions
// for the caller to execute. Concurrent turns for the same identity must be
// serialized by the caller; turns for different identities are independent.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/novamind-health/careflow/internal/flow"
	"github.com/novamind-health/careflow/internal/i18n"
	"github.com/novamind-health/careflow/internal/models"
	"github.com/novamind-health/careflow/internal/util"
)

// DefaultSessionTimeout is how long a mid-flow session survives without
// activity before the next message is treated as fresh.
const DefaultSessionTimeout = 2 * time.Hour

// ResetKeyword resets the session when it is the entire (trimmed) message.
const ResetKeyword = "reset"

// ReferralScoreThreshold is the PHQ-4 total at or above which a completed
// assessment also creates a referral.
const ReferralScoreThreshold = 6

// SessionStore is the engine's view of session persistence.
type SessionStore interface {
	GetSession(userID string) (*models.Session, error)
	SaveSession(session models.Session) error
}

// Opts holds configuration options for the engine.
type Opts struct {
	SessionTimeout time.Duration
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithSessionTimeout overrides the default session timeout.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Opts) { o.SessionTimeout = d }
}

// Engine is the conversation engine.
type Engine struct {
	sessions   SessionStore
	router     *flow.Router
	translator *i18n.Translator
	timeout    time.Duration
}

// New creates a conversation engine.
func New(sessions SessionStore, router *flow.Router, translator *i18n.Translator, opts ...Option) *Engine {
	cfg := Opts{SessionTimeout: DefaultSessionTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Engine created", "sessionTimeout", cfg.SessionTimeout)
	return &Engine{
		sessions:   sessions,
		router:     router,
		translator: translator,
		timeout:    cfg.SessionTimeout,
	}
}

// HandleInboundMessage processes one turn and returns the response plus the
// ordered action list for the caller to execute. Errors are returned
// alongside a usable response: the participant is never left without a
// reply, and a crisis-priority response is never dropped.
func (e *Engine) HandleInboundMessage(ctx context.Context, identity, text string, receivedAt time.Time) (*models.FlowResponse, []models.Action, error) {
	slog.Debug("Engine handling inbound message", "identity", identity, "receivedAt", receivedAt)

	session, err := e.sessions.GetSession(identity)
	if err != nil {
		slog.Error("Engine session load failed", "error", err, "identity", identity)
		resp := e.fallbackResponse(i18n.DefaultLanguage)
		return resp, e.baseActions(identity, models.FlowTypeIdle, resp), fmt.Errorf("failed to load session for %s: %w", identity, err)
	}
	if session == nil {
		session = e.newSession(identity, receivedAt)
		slog.Info("Engine created session", "identity", identity, "anonymousID", session.AnonymousID)
	}

	// Timeout while mid-flow: reset first, then treat the message as fresh.
	expiredNotice := ""
	if session.CurrentFlow != models.FlowTypeIdle && session.CurrentFlow != "" &&
		receivedAt.Sub(session.LastActivity) > e.timeout {
		slog.Info("Engine session expired",
			"identity", identity,
			"expiredFlow", session.CurrentFlow,
			"idle", receivedAt.Sub(session.LastActivity))
		session.ResetToIdle()
		expiredNotice = e.translator.Resolve("session_expired", session.Language)
	}

	// Explicit reset short-circuits: the message is not routed further.
	if strings.EqualFold(strings.TrimSpace(text), ResetKeyword) {
		return e.handleReset(session, receivedAt)
	}

	handlerFlow, resp, err := e.router.Route(ctx, session, text)
	if err != nil || resp == nil {
		slog.Error("Engine routing failed", "error", err, "identity", identity, "flow", session.CurrentFlow)
		resp = e.fallbackResponse(session.Language)
		session.LastActivity = receivedAt
		if saveErr := e.sessions.SaveSession(*session); saveErr != nil {
			slog.Error("Engine session save failed after routing error", "error", saveErr, "identity", identity)
		}
		if err == nil {
			err = fmt.Errorf("router returned no response for %s", identity)
		}
		return resp, e.baseActions(identity, handlerFlow, resp), fmt.Errorf("routing failed: %w", err)
	}

	// A late crisis signal (e.g. in mood log notes) re-routes the turn to
	// crisis step 0 before finalizing; the original actions are kept.
	if resp.CrisisRedirect {
		if crisisFlow, crisisResp, crisisErr := e.router.StartCrisis(ctx, session); crisisErr == nil {
			crisisResp.Actions = append(resp.Actions, crisisResp.Actions...)
			resp = crisisResp
			handlerFlow = crisisFlow
		} else {
			slog.Error("Engine crisis redirect failed", "error", crisisErr, "identity", identity)
		}
	}

	e.applyResponse(session, resp)
	session.LastActivity = receivedAt
	session.UpdatedAt = time.Now().UTC()

	if expiredNotice != "" {
		resp.Message = expiredNotice + "\n\n" + resp.Message
	}

	actions := e.deriveActions(identity, handlerFlow, resp)

	if err := e.sessions.SaveSession(*session); err != nil {
		slog.Error("Engine session save failed", "error", err, "identity", identity)
		wrapped := fmt.Errorf("failed to persist session for %s: %w", identity, err)
		if resp.Priority == models.PriorityHigh || resp.Priority == models.PriorityCritical {
			return resp, actions, wrapped
		}
		return e.fallbackResponse(session.Language), actions, wrapped
	}

	slog.Info("Engine turn complete",
		"identity", identity,
		"flow", handlerFlow,
		"nextFlow", session.CurrentFlow,
		"nextStep", session.FlowStep,
		"priority", resp.Priority,
		"actions", len(actions))
	return resp, actions, nil
}

// handleReset acknowledges an explicit reset and persists the idle session.
func (e *Engine) handleReset(session *models.Session, receivedAt time.Time) (*models.FlowResponse, []models.Action, error) {
	slog.Info("Engine explicit reset", "identity", session.UserID, "priorFlow", session.CurrentFlow)
	session.ResetToIdle()
	session.LastActivity = receivedAt
	session.UpdatedAt = time.Now().UTC()

	resp := &models.FlowResponse{
		Message:  e.translator.Resolve("reset_ack", session.Language),
		NextFlow: models.FlowTypeIdle,
		Priority: models.PriorityLow,
	}
	actions := e.baseActions(session.UserID, models.FlowTypeIdle, resp)

	if err := e.sessions.SaveSession(*session); err != nil {
		slog.Error("Engine session save failed on reset", "error", err, "identity", session.UserID)
		return resp, actions, fmt.Errorf("failed to persist session for %s: %w", session.UserID, err)
	}
	return resp, actions, nil
}

// applyResponse writes the response's session mutation. Flows describe the
// mutation; only the engine performs it.
func (e *Engine) applyResponse(session *models.Session, resp *models.FlowResponse) {
	if resp.ShouldEndFlow {
		session.ResetToIdle()
	} else {
		if resp.NextFlow != "" {
			session.CurrentFlow = resp.NextFlow
		}
		session.FlowStep = resp.NextStep
		session.Context = resp.Context
	}

	if ob := resp.Context.Onboarding; ob != nil && ob.Language != "" {
		session.Language = ob.Language
	}
	for _, action := range resp.Actions {
		if action.Type == models.ActionCreateAccount {
			session.IsNewUser = false
			if lang := action.Metadata["language"]; lang != "" {
				session.Language = lang
			}
		}
	}
}

// deriveActions builds the ordered action list for the turn: the
// interaction log first, then the flow's own actions, then the engine's
// escalation and referral rules.
func (e *Engine) deriveActions(identity string, handlerFlow models.FlowType, resp *models.FlowResponse) []models.Action {
	actions := e.baseActions(identity, handlerFlow, resp)
	actions = append(actions, resp.Actions...)

	if resp.Priority == models.PriorityHigh || resp.Priority == models.PriorityCritical {
		actions = append(actions, models.Action{
			Type:     models.ActionEscalateCrisis,
			UserID:   identity,
			Metadata: map[string]string{"priority": string(resp.Priority), "flow": string(handlerFlow)},
		})
	}

	for _, action := range resp.Actions {
		if action.Type == models.ActionSaveAssessment && action.Assessment != nil &&
			action.Assessment.TotalScore >= ReferralScoreThreshold {
			urgency := models.PriorityMedium
			if action.Assessment.SeverityLevel == models.SeveritySevere {
				urgency = models.PriorityHigh
			}
			actions = append(actions, e.referralAction(identity, urgency, "assessment_score"))
		}
	}

	// One referral per crisis episode, created when the flow reaches its
	// resource/safety-plan steps (arrival at follow-up support).
	if handlerFlow == models.FlowTypeCrisis &&
		resp.NextStep >= models.CrisisStepFollowUpSupport && !resp.ShouldEndFlow {
		actions = append(actions, e.referralAction(identity, models.PriorityHigh, "crisis_flow"))
	}

	return actions
}

func (e *Engine) baseActions(identity string, handlerFlow models.FlowType, resp *models.FlowResponse) []models.Action {
	return []models.Action{{
		Type:   models.ActionLogInteraction,
		UserID: identity,
		Metadata: map[string]string{
			"flow":     string(handlerFlow),
			"priority": string(resp.Priority),
		},
	}}
}

func (e *Engine) referralAction(identity string, urgency models.Priority, reason string) models.Action {
	return models.Action{
		Type:   models.ActionCreateReferral,
		UserID: identity,
		Metadata: map[string]string{
			"referral_id": util.GenerateReferralID(),
			"urgency":     string(urgency),
			"reason":      reason,
		},
	}
}

func (e *Engine) fallbackResponse(lang string) *models.FlowResponse {
	return &models.FlowResponse{
		Message:  e.translator.Resolve("fallback", lang),
		NextFlow: models.FlowTypeIdle,
		Priority: models.PriorityLow,
	}
}

func (e *Engine) newSession(identity string, receivedAt time.Time) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		UserID:       identity,
		AnonymousID:  util.GenerateAnonymousID(),
		Language:     i18n.DefaultLanguage,
		CurrentFlow:  models.FlowTypeIdle,
		LastActivity: receivedAt,
		IsNewUser:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
