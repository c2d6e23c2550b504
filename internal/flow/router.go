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

// ResourceCategoryGeneral is queried for the stateless resources response.
const ResourceCategoryGeneral = "general"

// intentKind names the outcome of an idle intent rule.
type intentKind int

const (
	intentAssessment intentKind = iota
	intentMoodLog
	intentResources
	intentGreeting
)

// intentRule maps trigger phrases to an intent. Rules are evaluated in
// order and the first match wins; this fixed ordering is a deliberate
// contract, not an optimization target.
type intentRule struct {
	kind    intentKind
	phrases []string
}

var intentRules = []intentRule{
	{intentAssessment, []string{
		"check in", "checkin", "assessment", "screening", "phq",
		"wellbeing check", "how am i doing",
		"chequeo", "evaluacion", "evaluación",
		"bilan", "questionnaire",
	}},
	{intentMoodLog, []string{
		"mood", "log my mood", "track my mood", "feeling log",
		"animo", "ánimo", "estado de animo", "estado de ánimo",
		"humeur", "moral",
	}},
	{intentResources, []string{
		"resources", "resource", "support options", "get support",
		"recursos", "apoyo",
		"ressources", "soutien",
	}},
	{intentGreeting, []string{
		"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
		"hola", "buenos dias", "buenos días", "buenas tardes", "buenas noches",
		"bonjour", "bonsoir", "salut", "coucou",
	}},
}

// Router decides which flow handles an inbound message.
type Router struct {
	detector   *crisis.Detector
	registry   *Registry
	translator *i18n.Translator
	resources  ResourceFinder
}

// NewRouter creates a flow router.
func NewRouter(detector *crisis.Detector, registry *Registry, translator *i18n.Translator, resources ResourceFinder) *Router {
	return &Router{
		detector:   detector,
		registry:   registry,
		translator: translator,
		resources:  resources,
	}
}

// Route classifies the message and dispatches it. Crisis pre-emption runs
// first and unconditionally: no in-progress flow can suppress crisis
// handling.
func (r *Router) Route(ctx context.Context, session *models.Session, text string) (models.FlowType, *models.FlowResponse, error) {
	if r.preemptable(session) {
		if level := r.detector.Detect(text, session.Language); level >= crisis.LevelHigh {
			slog.Warn("Router crisis pre-emption",
				"userID", session.UserID,
				"level", level.String(),
				"interruptedFlow", session.CurrentFlow)
			return r.StartCrisis(ctx, session)
		}
	}

	if session.CurrentFlow != models.FlowTypeIdle && session.CurrentFlow != "" {
		handler, ok := r.registry.Get(session.CurrentFlow)
		if !ok {
			return models.FlowTypeIdle, nil, fmt.Errorf("no handler registered for flow %s", session.CurrentFlow)
		}
		resp, err := handler.Advance(ctx, session, text)
		return session.CurrentFlow, resp, err
	}

	return r.classifyIdle(ctx, session, text)
}

// preemptable reports whether the pre-emption scan runs for this turn. The
// mood log notes step is the one exception: the handler scans the notes
// itself and redirects after the entry is saved, so pre-empting here would
// drop the entry.
func (r *Router) preemptable(session *models.Session) bool {
	return !(session.CurrentFlow == models.FlowTypeMoodLog && session.FlowStep == models.MoodStepNotes)
}

// StartCrisis forces the crisis flow to step 0 regardless of prior state.
func (r *Router) StartCrisis(ctx context.Context, session *models.Session) (models.FlowType, *models.FlowResponse, error) {
	handler, ok := r.registry.Get(models.FlowTypeCrisis)
	if !ok {
		return models.FlowTypeIdle, nil, fmt.Errorf("crisis handler not registered")
	}
	session.CurrentFlow = models.FlowTypeCrisis
	session.FlowStep = models.CrisisStepImmediateResponse
	resp, err := handler.Start(ctx, session)
	return models.FlowTypeCrisis, resp, err
}

// classifyIdle matches the message against the ordered intent rule table.
func (r *Router) classifyIdle(ctx context.Context, session *models.Session, text string) (models.FlowType, *models.FlowResponse, error) {
	normalized := crisis.Normalize(text)

	for _, rule := range intentRules {
		if !matchesAny(normalized, rule.phrases) {
			continue
		}
		switch rule.kind {
		case intentAssessment:
			return r.startFlow(ctx, session, models.FlowTypeAssessment)
		case intentMoodLog:
			return r.startFlow(ctx, session, models.FlowTypeMoodLog)
		case intentResources:
			return models.FlowTypeIdle, r.resourcesResponse(session), nil
		case intentGreeting:
			// A greeting from a participant without a finished onboarding
			// (re-)starts onboarding; otherwise it is a stateless welcome.
			if session.IsNewUser {
				return r.startFlow(ctx, session, models.FlowTypeOnboarding)
			}
			return models.FlowTypeIdle, r.statelessResponse(session, "welcome"), nil
		}
	}

	// Classification miss: fall back to the visible command list.
	slog.Debug("Router no intent matched", "userID", session.UserID)
	return models.FlowTypeIdle, r.statelessResponse(session, "help"), nil
}

func (r *Router) startFlow(ctx context.Context, session *models.Session, ft models.FlowType) (models.FlowType, *models.FlowResponse, error) {
	handler, ok := r.registry.Get(ft)
	if !ok {
		return models.FlowTypeIdle, nil, fmt.Errorf("no handler registered for flow %s", ft)
	}
	session.CurrentFlow = ft
	session.FlowStep = 0
	resp, err := handler.Start(ctx, session)
	return ft, resp, err
}

// resourcesResponse renders the resource directory listing without changing
// the session's flow.
func (r *Router) resourcesResponse(session *models.Session) *models.FlowResponse {
	resp := &models.FlowResponse{
		NextFlow: models.FlowTypeIdle,
		Priority: models.PriorityLow,
	}

	resources, err := r.resources.FindResources(ResourceCategoryGeneral, session.Language, MaxCrisisResources)
	if err != nil || len(resources) == 0 {
		if err != nil {
			slog.Error("Router resource lookup failed", "error", err, "userID", session.UserID)
		}
		resp.Message = r.translator.Resolve("resources_empty", session.Language)
		return resp
	}

	var b strings.Builder
	b.WriteString(r.translator.Resolve("resources_list_intro", session.Language))
	for _, resource := range resources {
		b.WriteString("\n\n")
		b.WriteString(resource.Title)
		if resource.Description != "" {
			b.WriteString("\n")
			b.WriteString(resource.Description)
		}
		b.WriteString("\n")
		b.WriteString(resource.ContactInfo)
	}
	resp.Message = b.String()
	return resp
}

func (r *Router) statelessResponse(session *models.Session, key string) *models.FlowResponse {
	return &models.FlowResponse{
		Message:  r.translator.Resolve(key, session.Language),
		NextFlow: models.FlowTypeIdle,
		Priority: models.PriorityLow,
	}
}
