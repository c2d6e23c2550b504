package flow

import (
	"context"
	"testing"

	"github.com/novamind-health/careflow/internal/models"
)

func TestAssessmentFullRun(t *testing.T) {
	h := NewAssessmentHandler(newTestTranslator(t))
	ctx := context.Background()
	session := newTestSession(models.FlowTypeAssessment, 0)

	resp, err := h.Start(ctx, session)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if resp.NextStep != models.AssessmentStepIntro {
		t.Fatalf("expected intro step, got %d", resp.NextStep)
	}
	if len(resp.QuickReplies) != 3 {
		t.Errorf("expected 3 intro quick replies, got %d", len(resp.QuickReplies))
	}

	// Opt in, then answer 2, 1, 2, 2.
	answers := []string{"start", "2", "1", "2", "2"}
	for _, answer := range answers[:len(answers)-1] {
		resp, err = h.Advance(ctx, session, answer)
		if err != nil {
			t.Fatalf("Advance(%q) failed: %v", answer, err)
		}
		if resp.ShouldEndFlow {
			t.Fatalf("flow ended early at answer %q", answer)
		}
		session.FlowStep = resp.NextStep
		session.Context = resp.Context
	}

	resp, err = h.Advance(ctx, session, answers[len(answers)-1])
	if err != nil {
		t.Fatalf("final Advance failed: %v", err)
	}
	if !resp.ShouldEndFlow {
		t.Fatal("expected flow to end after fourth answer")
	}
	if len(resp.Actions) != 1 || resp.Actions[0].Type != models.ActionSaveAssessment {
		t.Fatalf("expected one save_assessment action, got %+v", resp.Actions)
	}

	record := resp.Actions[0].Assessment
	if record == nil {
		t.Fatal("save_assessment action missing record")
	}
	if record.DepressionScore != 3 || record.AnxietyScore != 4 || record.TotalScore != 7 {
		t.Errorf("unexpected scores: depression=%d anxiety=%d total=%d",
			record.DepressionScore, record.AnxietyScore, record.TotalScore)
	}
	if record.SeverityLevel != models.SeverityModerate {
		t.Errorf("expected moderate severity, got %s", record.SeverityLevel)
	}
	if resp.Priority != models.PriorityMedium {
		t.Errorf("expected medium priority for moderate result, got %s", resp.Priority)
	}
}

func TestAssessmentSevereRaisesPriority(t *testing.T) {
	h := NewAssessmentHandler(newTestTranslator(t))
	ctx := context.Background()
	session := newTestSession(models.FlowTypeAssessment, 4)
	session.Context = models.SessionContext{
		Assessment: &models.AssessmentContext{Answers: []int{3, 3, 3}},
	}

	resp, err := h.Advance(ctx, session, "3")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if resp.Priority != models.PriorityHigh {
		t.Errorf("expected high priority for severe result, got %s", resp.Priority)
	}
	if resp.Actions[0].Assessment.SeverityLevel != models.SeveritySevere {
		t.Errorf("expected severe severity, got %s", resp.Actions[0].Assessment.SeverityLevel)
	}
}

func TestAssessmentInvalidAnswerIsIdempotent(t *testing.T) {
	h := NewAssessmentHandler(newTestTranslator(t))
	ctx := context.Background()
	session := newTestSession(models.FlowTypeAssessment, 2)
	session.Context = models.SessionContext{
		Assessment: &models.AssessmentContext{Answers: []int{1}},
	}

	for _, input := range []string{"5", "-1", "two", ""} {
		resp, err := h.Advance(ctx, session, input)
		if err != nil {
			t.Fatalf("Advance(%q) failed: %v", input, err)
		}
		if resp.NextStep != 2 {
			t.Errorf("Advance(%q): expected to stay on step 2, got %d", input, resp.NextStep)
		}
		if len(resp.Context.Assessment.Answers) != 1 {
			t.Errorf("Advance(%q): captured answers must not change, got %v", input, resp.Context.Assessment.Answers)
		}
	}
}

func TestAssessmentIntroDecline(t *testing.T) {
	h := NewAssessmentHandler(newTestTranslator(t))
	ctx := context.Background()
	session := newTestSession(models.FlowTypeAssessment, models.AssessmentStepIntro)

	resp, err := h.Advance(ctx, session, "maybe later")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if !resp.ShouldEndFlow {
		t.Error("expected declining the intro to end the flow")
	}
	if len(resp.Actions) != 0 {
		t.Errorf("declined assessment must not emit actions, got %+v", resp.Actions)
	}
}

func TestAssessmentIntroLearnMoreStays(t *testing.T) {
	h := NewAssessmentHandler(newTestTranslator(t))
	ctx := context.Background()
	session := newTestSession(models.FlowTypeAssessment, models.AssessmentStepIntro)

	resp, err := h.Advance(ctx, session, "learn more")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if resp.ShouldEndFlow || resp.NextStep != models.AssessmentStepIntro {
		t.Errorf("expected to stay on intro step, got end=%v step=%d", resp.ShouldEndFlow, resp.NextStep)
	}
}
