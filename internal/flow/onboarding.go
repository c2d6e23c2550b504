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

// Consent replies. The consent step is the only onboarding step with a side
// effect, so yes/no classification is deliberately strict.
var (
	consentYesPhrases = []string{"1", "yes", "y", "si", "sí", "oui", "i consent", "consent"}
	consentNoPhrases  = []string{"2", "no", "n", "non"}
)

// Numeric menu option tables, one per step. Unrecognized replies re-prompt
// the same step verbatim.
var (
	onboardingLanguages  = map[string]string{"1": "en", "2": "es", "3": "fr"}
	onboardingAgeGroups  = map[string]string{"1": "under_18", "2": "18_25", "3": "26_40", "4": "over_40"}
	onboardingLocations  = map[string]string{"1": "urban", "2": "suburban", "3": "rural"}
	onboardingCategories = map[string]string{"1": "stress", "2": "low_mood", "3": "anxiety", "4": "exploring"}
)

// OnboardingHandler drives the linear account setup flow.
type OnboardingHandler struct {
	translator *i18n.Translator
}

// NewOnboardingHandler creates the onboarding flow handler.
func NewOnboardingHandler(translator *i18n.Translator) *OnboardingHandler {
	return &OnboardingHandler{translator: translator}
}

// Type returns the onboarding flow type.
func (h *OnboardingHandler) Type() models.FlowType {
	return models.FlowTypeOnboarding
}

// Start greets the participant and waits on the welcome step.
func (h *OnboardingHandler) Start(ctx context.Context, session *models.Session) (*models.FlowResponse, error) {
	slog.Debug("OnboardingHandler starting flow", "userID", session.UserID)
	return &models.FlowResponse{
		Message:  h.translator.Resolve("onboarding_welcome", session.Language),
		NextFlow: models.FlowTypeOnboarding,
		NextStep: models.OnboardingStepWelcome,
		Context: models.SessionContext{
			Onboarding: &models.OnboardingContext{},
		},
		Priority: models.PriorityLow,
	}, nil
}

// Advance processes the reply to the session's current onboarding step.
func (h *OnboardingHandler) Advance(ctx context.Context, session *models.Session, text string) (*models.FlowResponse, error) {
	slog.Debug("OnboardingHandler advancing", "userID", session.UserID, "step", session.FlowStep)

	onboarding := session.Context.Onboarding
	if onboarding == nil {
		onboarding = &models.OnboardingContext{}
	}
	reply := strings.TrimSpace(text)

	switch session.FlowStep {
	case models.OnboardingStepWelcome:
		if !matchesAny(crisis.Normalize(reply), []string{"1", "yes", "si", "sí", "oui", "ready", "ok", "lets go", "vamos", "allons y"}) {
			return h.reprompt(session, "onboarding_welcome"), nil
		}
		return h.next(session, onboarding, models.OnboardingStepLanguage, "onboarding_language"), nil

	case models.OnboardingStepLanguage:
		lang, ok := onboardingLanguages[reply]
		if !ok {
			return h.reprompt(session, "onboarding_language"), nil
		}
		onboarding.Language = lang
		// Prompts from here on are rendered in the chosen language; the
		// engine syncs session.Language from the context.
		resp := h.next(session, onboarding, models.OnboardingStepAge, "onboarding_age")
		resp.Message = h.translator.Resolve("onboarding_age", lang)
		return resp, nil

	case models.OnboardingStepAge:
		age, ok := onboardingAgeGroups[reply]
		if !ok {
			return h.reprompt(session, "onboarding_age"), nil
		}
		onboarding.AgeGroup = age
		return h.next(session, onboarding, models.OnboardingStepLocation, "onboarding_location"), nil

	case models.OnboardingStepLocation:
		location, ok := onboardingLocations[reply]
		if !ok {
			return h.reprompt(session, "onboarding_location"), nil
		}
		onboarding.Location = location
		return h.next(session, onboarding, models.OnboardingStepCategory, "onboarding_category"), nil

	case models.OnboardingStepCategory:
		category, ok := onboardingCategories[reply]
		if !ok {
			return h.reprompt(session, "onboarding_category"), nil
		}
		onboarding.Category = category
		return h.next(session, onboarding, models.OnboardingStepConsent, "onboarding_consent"), nil

	case models.OnboardingStepConsent:
		return h.advanceConsent(session, onboarding, reply)

	default:
		return nil, fmt.Errorf("onboarding flow has no step %d", session.FlowStep)
	}
}

// advanceConsent finishes the flow. A "yes" creates the durable account; a
// "no" ends without one but leaves onboarding re-enterable via any greeting.
func (h *OnboardingHandler) advanceConsent(session *models.Session, onboarding *models.OnboardingContext, reply string) (*models.FlowResponse, error) {
	normalized := crisis.Normalize(reply)

	if matchesAny(normalized, consentNoPhrases) {
		slog.Info("OnboardingHandler consent declined", "userID", session.UserID)
		return &models.FlowResponse{
			Message:       h.translator.Resolve("onboarding_withdrawn", session.Language),
			ShouldEndFlow: true,
			Priority:      models.PriorityLow,
		}, nil
	}

	if !matchesAny(normalized, consentYesPhrases) {
		return h.reprompt(session, "onboarding_consent"), nil
	}

	slog.Info("OnboardingHandler consent given", "userID", session.UserID)
	return &models.FlowResponse{
		Message:       h.translator.Resolve("onboarding_complete", session.Language),
		NextStep:      models.OnboardingStepComplete,
		ShouldEndFlow: true,
		Priority:      models.PriorityLow,
		Actions: []models.Action{{
			Type:   models.ActionCreateAccount,
			UserID: session.UserID,
			Metadata: map[string]string{
				"language":  onboarding.Language,
				"age_group": onboarding.AgeGroup,
				"location":  onboarding.Location,
				"category":  onboarding.Category,
			},
		}},
	}, nil
}

// reprompt re-emits the current step's prompt verbatim without advancing.
func (h *OnboardingHandler) reprompt(session *models.Session, key string) *models.FlowResponse {
	return &models.FlowResponse{
		Message:  h.translator.Resolve(key, session.Language),
		NextFlow: models.FlowTypeOnboarding,
		NextStep: session.FlowStep,
		Context:  session.Context,
		Priority: models.PriorityLow,
	}
}

func (h *OnboardingHandler) next(session *models.Session, onboarding *models.OnboardingContext, step int, key string) *models.FlowResponse {
	return &models.FlowResponse{
		Message:  h.translator.Resolve(key, session.Language),
		NextFlow: models.FlowTypeOnboarding,
		NextStep: step,
		Context:  models.SessionContext{Onboarding: onboarding},
		Priority: models.PriorityLow,
	}
}
