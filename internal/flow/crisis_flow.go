package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/novamind-health/careflow/internal/crisis"
	"github.com/novamind-health/careflow/internal/i18n"
	"github.com/novamind-health/careflow/internal/models"
)

// ResourceCategoryCrisis is the resource directory category queried during
// the crisis flow.
const ResourceCategoryCrisis = "crisis"

// MaxCrisisResources caps how many resources are rendered in one message.
const MaxCrisisResources = 5

// Safety check reply classes.
var (
	crisisSafePhrases = []string{
		"safe", "im safe", "i am safe", "yes", "1", "ok", "okay", "fine",
		"a salvo", "estoy bien", "seguro", "segura",
		"en securite", "en sécurité", "ca va", "ça va",
	}
	crisisHelpPhrases = []string{
		"help", "need help", "emergency", "2", "sos",
		"ayuda", "emergencia", "socorro",
		"aide", "urgence", "secours",
	}
)

// Follow-up support branch keywords.
var (
	crisisHotlinePhrases      = []string{"hotline", "call", "number", "phone", "numero", "número", "telefono", "teléfono", "linea", "línea", "ligne", "appeler"}
	crisisSafetyPlanPhrases   = []string{"plan", "safety plan", "plan de seguridad", "plan de securite", "plan de sécurité"}
	crisisProfessionalPhrases = []string{"professional", "therapist", "counselor", "doctor", "profesional", "terapeuta", "psicologo", "psicólogo", "professionnel", "medecin", "médecin", "psychologue"}
	crisisFollowUpPhrases     = []string{"follow", "follow up", "check in", "later", "luego", "despues", "después", "plus tard", "suivi"}
)

// CrisisHandler drives the crisis support flow. Resource lookup failures
// never fail the turn: the handler falls back to a static message because a
// crisis-priority response must always reach the participant.
type CrisisHandler struct {
	translator *i18n.Translator
	resources  ResourceFinder
}

// NewCrisisHandler creates the crisis flow handler.
func NewCrisisHandler(translator *i18n.Translator, resources ResourceFinder) *CrisisHandler {
	return &CrisisHandler{translator: translator, resources: resources}
}

// Type returns the crisis flow type.
func (h *CrisisHandler) Type() models.FlowType {
	return models.FlowTypeCrisis
}

// Start is the immediate response: an urgent safety message with the
// safety-check quick replies. Always logged as a crisis intervention.
func (h *CrisisHandler) Start(ctx context.Context, session *models.Session) (*models.FlowResponse, error) {
	slog.Warn("CrisisHandler immediate response", "userID", session.UserID)
	return &models.FlowResponse{
		Message: h.translator.Resolve("crisis_immediate", session.Language),
		QuickReplies: []string{
			h.translator.Resolve("qr_safe_now", session.Language),
			h.translator.Resolve("qr_need_help", session.Language),
			h.translator.Resolve("qr_someone_else", session.Language),
		},
		NextFlow: models.FlowTypeCrisis,
		NextStep: models.CrisisStepSafetyCheck,
		Priority: models.PriorityCritical,
		Actions: []models.Action{{
			Type:     models.ActionCrisisIntervention,
			UserID:   session.UserID,
			Metadata: map[string]string{"step": "immediate_response"},
		}},
	}, nil
}

// Advance processes the reply to the session's current crisis step.
func (h *CrisisHandler) Advance(ctx context.Context, session *models.Session, text string) (*models.FlowResponse, error) {
	slog.Debug("CrisisHandler advancing", "userID", session.UserID, "step", session.FlowStep)

	switch session.FlowStep {
	case models.CrisisStepSafetyCheck:
		return h.advanceSafetyCheck(session, text), nil
	case models.CrisisStepProvideResources:
		return h.provideResources(session, ""), nil
	case models.CrisisStepFollowUpSupport:
		return h.advanceFollowUp(session, text), nil
	default:
		return nil, fmt.Errorf("crisis flow has no step %d", session.FlowStep)
	}
}

// advanceSafetyCheck branches on the safety reply. Anything that is not an
// explicit call for help falls through to resources: the flow fails open
// toward showing support, never toward silence.
func (h *CrisisHandler) advanceSafetyCheck(session *models.Session, text string) *models.FlowResponse {
	normalized := crisis.Normalize(text)

	if matchesAny(normalized, crisisHelpPhrases) {
		slog.Warn("CrisisHandler immediate help requested", "userID", session.UserID)
		return &models.FlowResponse{
			Message: h.translator.Resolve("crisis_immediate_help", session.Language),
			Buttons: []string{
				h.translator.Resolve("btn_call_emergency", session.Language),
				h.translator.Resolve("btn_crisis_chat", session.Language),
				h.translator.Resolve("btn_safety_plan", session.Language),
			},
			NextFlow: models.FlowTypeCrisis,
			NextStep: models.CrisisStepFollowUpSupport,
			Priority: models.PriorityCritical,
		}
	}

	ack := ""
	if matchesAny(normalized, crisisSafePhrases) {
		ack = h.translator.Resolve("crisis_safety_ack", session.Language)
	}
	return h.provideResources(session, ack)
}

// provideResources renders up to MaxCrisisResources crisis resources for the
// session language and moves to follow-up support.
func (h *CrisisHandler) provideResources(session *models.Session, ack string) *models.FlowResponse {
	resp := &models.FlowResponse{
		NextFlow: models.FlowTypeCrisis,
		NextStep: models.CrisisStepFollowUpSupport,
		Priority: models.PriorityHigh,
	}

	resources, err := h.resources.FindResources(ResourceCategoryCrisis, session.Language, MaxCrisisResources)
	if err != nil || len(resources) == 0 {
		if err != nil {
			slog.Error("CrisisHandler resource lookup failed", "error", err, "userID", session.UserID)
		}
		resp.Message = joinParagraphs(ack, h.translator.Resolve("crisis_resources_fallback", session.Language))
		return resp
	}

	var b strings.Builder
	b.WriteString(h.translator.Resolve("crisis_resources_intro", session.Language))
	for _, resource := range resources {
		b.WriteString("\n\n")
		b.WriteString(resource.Title)
		if resource.Description != "" {
			b.WriteString("\n")
			b.WriteString(resource.Description)
		}
		b.WriteString("\n")
		b.WriteString(resource.ContactInfo)
		resp.Actions = append(resp.Actions, models.Action{
			Type:     models.ActionResourceAccess,
			UserID:   session.UserID,
			Metadata: map[string]string{"resource_id": resource.ID, "title": resource.Title},
		})
	}
	resp.Message = joinParagraphs(ack, b.String())
	return resp
}

// advanceFollowUp branches on keyword to the final support message. Every
// branch ends the flow: re-triggered crisis keywords re-enter at step 0 via
// the router, never by looping here.
func (h *CrisisHandler) advanceFollowUp(session *models.Session, text string) *models.FlowResponse {
	normalized := crisis.Normalize(text)

	key := "crisis_continue_support"
	switch {
	case matchesAny(normalized, crisisHotlinePhrases):
		key = "crisis_hotline"
	case matchesAny(normalized, crisisSafetyPlanPhrases):
		key = "crisis_safety_plan"
	case matchesAny(normalized, crisisProfessionalPhrases):
		key = "crisis_professional_help"
	case matchesAny(normalized, crisisFollowUpPhrases):
		key = "crisis_schedule_follow_up"
	}

	slog.Info("CrisisHandler follow-up support", "userID", session.UserID, "branch", key)
	return &models.FlowResponse{
		Message:       h.translator.Resolve(key, session.Language),
		ShouldEndFlow: true,
		Priority:      models.PriorityHigh,
	}
}

func joinParagraphs(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
