package flow

import (
	"context"
	"testing"

	"github.com/novamind-health/careflow/internal/models"
)

func advanceOnboarding(t *testing.T, h *OnboardingHandler, session *models.Session, input string) *models.FlowResponse {
	t.Helper()
	resp, err := h.Advance(context.Background(), session, input)
	if err != nil {
		t.Fatalf("Advance(%q) failed: %v", input, err)
	}
	if !resp.ShouldEndFlow {
		session.FlowStep = resp.NextStep
		session.Context = resp.Context
	}
	return resp
}

func TestOnboardingConsentGiven(t *testing.T) {
	h := NewOnboardingHandler(newTestTranslator(t))
	session := newTestSession(models.FlowTypeOnboarding, 0)
	session.IsNewUser = true

	if _, err := h.Start(context.Background(), session); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	advanceOnboarding(t, h, session, "yes") // welcome
	advanceOnboarding(t, h, session, "2")   // language: es
	advanceOnboarding(t, h, session, "2")   // age: 18_25
	advanceOnboarding(t, h, session, "1")   // location: urban
	advanceOnboarding(t, h, session, "3")   // category: anxiety
	resp := advanceOnboarding(t, h, session, "yes")

	if !resp.ShouldEndFlow {
		t.Fatal("expected consent to end the flow")
	}
	if len(resp.Actions) != 1 || resp.Actions[0].Type != models.ActionCreateAccount {
		t.Fatalf("expected one create_account action, got %+v", resp.Actions)
	}
	meta := resp.Actions[0].Metadata
	want := map[string]string{"language": "es", "age_group": "18_25", "location": "urban", "category": "anxiety"}
	for key, val := range want {
		if meta[key] != val {
			t.Errorf("metadata[%s] = %q, want %q", key, meta[key], val)
		}
	}
}

func TestOnboardingConsentDeclined(t *testing.T) {
	h := NewOnboardingHandler(newTestTranslator(t))
	session := newTestSession(models.FlowTypeOnboarding, models.OnboardingStepConsent)
	session.Context = models.SessionContext{
		Onboarding: &models.OnboardingContext{Language: "en", AgeGroup: "18_25", Location: "urban", Category: "stress"},
	}

	resp, err := h.Advance(context.Background(), session, "no")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if !resp.ShouldEndFlow {
		t.Error("expected declined consent to end the flow")
	}
	if len(resp.Actions) != 0 {
		t.Errorf("declined consent must not create an account, got %+v", resp.Actions)
	}
}

func TestOnboardingInvalidMenuRepromptsSameStep(t *testing.T) {
	h := NewOnboardingHandler(newTestTranslator(t))
	session := newTestSession(models.FlowTypeOnboarding, models.OnboardingStepLanguage)
	session.Context = models.SessionContext{Onboarding: &models.OnboardingContext{}}

	resp, err := h.Advance(context.Background(), session, "9")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if resp.NextStep != models.OnboardingStepLanguage {
		t.Errorf("expected to stay on language step, got %d", resp.NextStep)
	}
	if resp.ShouldEndFlow {
		t.Error("invalid input must not end the flow")
	}
}

func TestOnboardingLanguageChoiceSwitchesPrompts(t *testing.T) {
	h := NewOnboardingHandler(newTestTranslator(t))
	translator := newTestTranslator(t)
	session := newTestSession(models.FlowTypeOnboarding, models.OnboardingStepLanguage)
	session.Context = models.SessionContext{Onboarding: &models.OnboardingContext{}}

	resp, err := h.Advance(context.Background(), session, "3")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if resp.Context.Onboarding.Language != "fr" {
		t.Errorf("expected language fr, got %q", resp.Context.Onboarding.Language)
	}
	if want := translator.Resolve("onboarding_age", "fr"); resp.Message != want {
		t.Errorf("expected next prompt in French, got %q", resp.Message)
	}
}
