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

// Mood score bounds.
const (
	MoodScoreMin = 1
	MoodScoreMax = 10
)

// Replies at the notes step that mean "nothing to add".
var moodNoNotesPhrases = []string{"no", "nope", "nothing", "nada", "non", "rien"}

// MoodLogHandler drives the mood logging flow.
type MoodLogHandler struct {
	translator *i18n.Translator
	detector   *crisis.Detector
}

// NewMoodLogHandler creates the mood log flow handler. The detector re-scans
// free-text notes for crisis signals before the entry is finalized.
func NewMoodLogHandler(translator *i18n.Translator, detector *crisis.Detector) *MoodLogHandler {
	return &MoodLogHandler{translator: translator, detector: detector}
}

// Type returns the mood log flow type.
func (h *MoodLogHandler) Type() models.FlowType {
	return models.FlowTypeMoodLog
}

// Start asks for the mood score.
func (h *MoodLogHandler) Start(ctx context.Context, session *models.Session) (*models.FlowResponse, error) {
	slog.Debug("MoodLogHandler starting flow", "userID", session.UserID)
	return &models.FlowResponse{
		Message:  h.translator.Resolve("mood_prompt_score", session.Language),
		NextFlow: models.FlowTypeMoodLog,
		NextStep: models.MoodStepScore,
		Context: models.SessionContext{
			Mood: &models.MoodContext{},
		},
		Priority: models.PriorityLow,
	}, nil
}

// Advance processes the reply to the session's current mood log step.
func (h *MoodLogHandler) Advance(ctx context.Context, session *models.Session, text string) (*models.FlowResponse, error) {
	slog.Debug("MoodLogHandler advancing", "userID", session.UserID, "step", session.FlowStep)

	mood := session.Context.Mood
	if mood == nil {
		mood = &models.MoodContext{}
	}

	switch session.FlowStep {
	case models.MoodStepScore:
		score, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || score < MoodScoreMin || score > MoodScoreMax {
			// Out-of-range input re-prompts the same step.
			return &models.FlowResponse{
				Message:  h.translator.Resolve("mood_prompt_score", session.Language),
				NextFlow: models.FlowTypeMoodLog,
				NextStep: models.MoodStepScore,
				Context:  session.Context,
				Priority: models.PriorityLow,
			}, nil
		}
		mood.Score = score
		return &models.FlowResponse{
			Message:  h.translator.Resolve("mood_prompt_emotions", session.Language),
			NextFlow: models.FlowTypeMoodLog,
			NextStep: models.MoodStepEmotions,
			Context:  models.SessionContext{Mood: mood},
			Priority: models.PriorityLow,
		}, nil

	case models.MoodStepEmotions:
		mood.Emotions = parseEmotionTags(text)
		return &models.FlowResponse{
			Message:  h.translator.Resolve("mood_prompt_notes", session.Language),
			NextFlow: models.FlowTypeMoodLog,
			NextStep: models.MoodStepNotes,
			Context:  models.SessionContext{Mood: mood},
			Priority: models.PriorityLow,
		}, nil

	case models.MoodStepNotes:
		return h.finalize(session, mood, text)

	default:
		return nil, fmt.Errorf("mood log flow has no step %d", session.FlowStep)
	}
}

// finalize captures the notes, emits the save action and ends the flow. The
// notes are re-scanned for crisis signals; a hit redirects the turn to the
// crisis flow while still saving the mood entry.
func (h *MoodLogHandler) finalize(session *models.Session, mood *models.MoodContext, notes string) (*models.FlowResponse, error) {
	notes = strings.TrimSpace(notes)
	if matchesAny(crisis.Normalize(notes), moodNoNotesPhrases) {
		notes = ""
	}

	entry := models.MoodEntry{
		ID:       util.GenerateMoodID(),
		UserID:   session.UserID,
		Score:    mood.Score,
		Emotions: mood.Emotions,
		Notes:    notes,
		LoggedAt: time.Now().UTC(),
	}

	resp := &models.FlowResponse{
		Message:       h.translator.Resolve("mood_logged", session.Language),
		ShouldEndFlow: true,
		Priority:      models.PriorityLow,
		Actions: []models.Action{{
			Type:   models.ActionSaveMood,
			UserID: session.UserID,
			Mood:   &entry,
		}},
	}

	if level := h.detector.Detect(notes, session.Language); level >= crisis.LevelHigh {
		slog.Warn("MoodLogHandler crisis signal in notes", "userID", session.UserID, "level", level.String())
		resp.CrisisRedirect = true
	}

	slog.Info("MoodLogHandler mood captured", "userID", session.UserID, "score", mood.Score, "emotions", len(mood.Emotions))
	return resp, nil
}

// parseEmotionTags splits a comma-separated reply into trimmed, non-empty
// tags. No closed vocabulary is enforced at this layer.
func parseEmotionTags(text string) []string {
	parts := strings.Split(text, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
