package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/novamind-health/careflow/internal/crisis"
	"github.com/novamind-health/careflow/internal/i18n"
	"github.com/novamind-health/careflow/internal/models"
	"github.com/novamind-health/careflow/internal/util"
)

// Phrases that decline or defer the assessment at the intro step.
var assessmentLaterPhrases = []string{
	"later", "maybe later", "skip", "not now", "no",
	"luego", "despues", "después", "ahora no",
	"plus tard", "pas maintenant",
}

// Phrases that ask for more explanation at the intro step.
var assessmentLearnMorePhrases = []string{
	"learn more", "more", "what is this", "tell me more",
	"saber mas", "saber más", "que es esto", "qué es esto",
	"en savoir plus", "cest quoi", "c est quoi",
}

// AssessmentHandler drives the PHQ-4 screening flow.
type AssessmentHandler struct {
	translator *i18n.Translator
}

// NewAssessmentHandler creates the assessment flow handler.
func NewAssessmentHandler(translator *i18n.Translator) *AssessmentHandler {
	return &AssessmentHandler{translator: translator}
}

// Type returns the assessment flow type.
func (h *AssessmentHandler) Type() models.FlowType {
	return models.FlowTypeAssessment
}

// Start emits the intro message with its quick replies. The session stays on
// the intro step until the participant opts in.
func (h *AssessmentHandler) Start(ctx context.Context, session *models.Session) (*models.FlowResponse, error) {
	slog.Debug("AssessmentHandler starting flow", "userID", session.UserID)
	return &models.FlowResponse{
		Message:      h.translator.Resolve("assessment_intro", session.Language),
		QuickReplies: h.introQuickReplies(session.Language),
		NextFlow:     models.FlowTypeAssessment,
		NextStep:     models.AssessmentStepIntro,
		Priority:     models.PriorityLow,
	}, nil
}

// Advance processes a reply at the session's current step.
func (h *AssessmentHandler) Advance(ctx context.Context, session *models.Session, text string) (*models.FlowResponse, error) {
	slog.Debug("AssessmentHandler advancing", "userID", session.UserID, "step", session.FlowStep)

	switch {
	case session.FlowStep == models.AssessmentStepIntro:
		return h.advanceIntro(session, text)
	case session.FlowStep >= 1 && session.FlowStep <= 4:
		return h.advanceQuestion(session, text)
	default:
		return nil, fmt.Errorf("assessment flow has no step %d", session.FlowStep)
	}
}

func (h *AssessmentHandler) advanceIntro(session *models.Session, text string) (*models.FlowResponse, error) {
	normalized := crisis.Normalize(text)

	if matchesAny(normalized, assessmentLaterPhrases) {
		slog.Debug("AssessmentHandler participant deferred", "userID", session.UserID)
		return &models.FlowResponse{
			Message:       h.translator.Resolve("assessment_later", session.Language),
			ShouldEndFlow: true,
			Priority:      models.PriorityLow,
		}, nil
	}

	if matchesAny(normalized, assessmentLearnMorePhrases) {
		return &models.FlowResponse{
			Message:      h.translator.Resolve("assessment_learn_more", session.Language),
			QuickReplies: h.introQuickReplies(session.Language),
			NextFlow:     models.FlowTypeAssessment,
			NextStep:     models.AssessmentStepIntro,
			Priority:     models.PriorityLow,
		}, nil
	}

	// Anything else, including an explicit "start", begins question 1.
	return &models.FlowResponse{
		Message:  h.questionPrompt(1, session.Language),
		NextFlow: models.FlowTypeAssessment,
		NextStep: 1,
		Context: models.SessionContext{
			Assessment: &models.AssessmentContext{Answers: []int{}},
		},
		QuickReplies: scaleQuickReplies(),
		Priority:     models.PriorityLow,
	}, nil
}

func (h *AssessmentHandler) advanceQuestion(session *models.Session, text string) (*models.FlowResponse, error) {
	answer, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || answer < PHQ4AnswerMin || answer > PHQ4AnswerMax {
		// Invalid input is idempotent: same question, no state change.
		slog.Debug("AssessmentHandler invalid answer", "userID", session.UserID, "step", session.FlowStep)
		return &models.FlowResponse{
			Message:      h.questionPrompt(session.FlowStep, session.Language),
			QuickReplies: scaleQuickReplies(),
			NextFlow:     models.FlowTypeAssessment,
			NextStep:     session.FlowStep,
			Context:      session.Context,
			Priority:     models.PriorityLow,
		}, nil
	}

	answers := append(cloneAnswers(session.Context), answer)
	if len(answers) < 4 {
		next := session.FlowStep + 1
		return &models.FlowResponse{
			Message:      h.questionPrompt(next, session.Language),
			QuickReplies: scaleQuickReplies(),
			NextFlow:     models.FlowTypeAssessment,
			NextStep:     next,
			Context: models.SessionContext{
				Assessment: &models.AssessmentContext{Answers: answers},
			},
			Priority: models.PriorityLow,
		}, nil
	}

	return h.complete(session, answers)
}

// complete computes the scores once the fourth answer is captured and ends
// the flow with the severity-specific result message.
func (h *AssessmentHandler) complete(session *models.Session, answers []int) (*models.FlowResponse, error) {
	var fixed [4]int
	copy(fixed[:], answers)
	result, err := CalculatePHQ4(fixed)
	if err != nil {
		return nil, fmt.Errorf("assessment scoring failed: %w", err)
	}

	record := models.AssessmentRecord{
		ID:              util.GenerateAssessmentID(),
		UserID:          session.UserID,
		Answers:         fixed,
		DepressionScore: result.DepressionScore,
		AnxietyScore:    result.AnxietyScore,
		TotalScore:      result.TotalScore,
		SeverityLevel:   result.Severity,
		CompletedAt:     time.Now().UTC(),
	}

	priority := models.PriorityMedium
	if result.Severity == models.SeveritySevere {
		priority = models.PriorityHigh
	}

	slog.Info("AssessmentHandler screening complete",
		"userID", session.UserID,
		"total", result.TotalScore,
		"severity", result.Severity)

	return &models.FlowResponse{
		Message:       h.translator.Resolve("assessment_result_"+string(result.Severity), session.Language),
		NextStep:      models.AssessmentStepComplete,
		ShouldEndFlow: true,
		Priority:      priority,
		Actions: []models.Action{{
			Type:       models.ActionSaveAssessment,
			UserID:     session.UserID,
			Assessment: &record,
		}},
	}, nil
}

// questionPrompt renders question n (1-4) together with the answer scale.
func (h *AssessmentHandler) questionPrompt(n int, lang string) string {
	question := h.translator.Resolve(fmt.Sprintf("assessment_q%d", n), lang)
	scale := h.translator.Resolve("assessment_scale", lang)
	return question + "\n\n" + scale
}

func (h *AssessmentHandler) introQuickReplies(lang string) []string {
	return []string{
		h.translator.Resolve("qr_start_now", lang),
		h.translator.Resolve("qr_learn_more", lang),
		h.translator.Resolve("qr_maybe_later", lang),
	}
}

func scaleQuickReplies() []string {
	return []string{"0", "1", "2", "3"}
}

func cloneAnswers(ctx models.SessionContext) []int {
	if ctx.Assessment == nil {
		return []int{}
	}
	answers := make([]int, len(ctx.Assessment.Answers))
	copy(answers, ctx.Assessment.Answers)
	return answers
}
