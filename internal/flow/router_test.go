package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/novamind-health/careflow/internal/crisis"
	"github.com/novamind-health/careflow/internal/models"
)

func newTestRouter(t *testing.T, finder ResourceFinder) *Router {
	t.Helper()
	translator := newTestTranslator(t)
	detector := crisis.NewDetector()

	registry := NewRegistry()
	registry.Register(NewOnboardingHandler(translator))
	registry.Register(NewAssessmentHandler(translator))
	registry.Register(NewMoodLogHandler(translator, detector))
	registry.Register(NewCrisisHandler(translator, finder))

	return NewRouter(detector, registry, translator, finder)
}

func TestRouteCrisisPreemptsActiveFlow(t *testing.T) {
	router := newTestRouter(t, &fakeResourceFinder{resources: crisisResources()})

	// Mid-assessment, question 3.
	session := newTestSession(models.FlowTypeAssessment, 3)
	session.Context = models.SessionContext{
		Assessment: &models.AssessmentContext{Answers: []int{1, 2}},
	}

	handlerFlow, resp, err := router.Route(context.Background(), session, "I want to kill myself")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeCrisis {
		t.Errorf("expected crisis flow to handle the turn, got %s", handlerFlow)
	}
	if resp.Priority != models.PriorityCritical {
		t.Errorf("expected critical priority, got %s", resp.Priority)
	}
	if resp.NextStep != models.CrisisStepSafetyCheck {
		t.Errorf("expected crisis safety check next, got %d", resp.NextStep)
	}
}

func TestRouteActiveFlowGetsTheMessage(t *testing.T) {
	router := newTestRouter(t, &fakeResourceFinder{})

	session := newTestSession(models.FlowTypeMoodLog, models.MoodStepScore)
	session.Context = models.SessionContext{Mood: &models.MoodContext{}}

	handlerFlow, resp, err := router.Route(context.Background(), session, "8")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeMoodLog {
		t.Errorf("expected mood log flow, got %s", handlerFlow)
	}
	if resp.NextStep != models.MoodStepEmotions {
		t.Errorf("expected emotions step next, got %d", resp.NextStep)
	}
}

func TestRouteIdleIntents(t *testing.T) {
	router := newTestRouter(t, &fakeResourceFinder{})

	cases := []struct {
		text string
		want models.FlowType
	}{
		{"I'd like a check in", models.FlowTypeAssessment},
		{"log my mood", models.FlowTypeMoodLog},
		{"bilan", models.FlowTypeAssessment},
		{"estado de ánimo", models.FlowTypeMoodLog},
	}
	for _, tc := range cases {
		session := newTestSession(models.FlowTypeIdle, 0)
		handlerFlow, resp, err := router.Route(context.Background(), session, tc.text)
		if err != nil {
			t.Fatalf("Route(%q) failed: %v", tc.text, err)
		}
		if handlerFlow != tc.want {
			t.Errorf("Route(%q) = %s, want %s", tc.text, handlerFlow, tc.want)
		}
		if resp.NextFlow != tc.want {
			t.Errorf("Route(%q): response targets %s, want %s", tc.text, resp.NextFlow, tc.want)
		}
	}
}

func TestRouteGreetingStartsOnboardingForNewUsers(t *testing.T) {
	router := newTestRouter(t, &fakeResourceFinder{})

	session := newTestSession(models.FlowTypeIdle, 0)
	session.IsNewUser = true
	handlerFlow, _, err := router.Route(context.Background(), session, "hello")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeOnboarding {
		t.Errorf("expected onboarding for new user greeting, got %s", handlerFlow)
	}

	returning := newTestSession(models.FlowTypeIdle, 0)
	returning.IsNewUser = false
	handlerFlow, resp, err := router.Route(context.Background(), returning, "hello")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeIdle {
		t.Errorf("expected stateless welcome for returning user, got %s", handlerFlow)
	}
	if resp.Message == "" {
		t.Error("expected a welcome message")
	}
}

func TestRouteUnknownMessageYieldsHelp(t *testing.T) {
	router := newTestRouter(t, &fakeResourceFinder{})
	translator := newTestTranslator(t)

	session := newTestSession(models.FlowTypeIdle, 0)
	session.IsNewUser = false
	handlerFlow, resp, err := router.Route(context.Background(), session, "what is the meaning of this")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeIdle {
		t.Errorf("expected idle, got %s", handlerFlow)
	}
	if want := translator.Resolve("help", "en"); resp.Message != want {
		t.Errorf("expected help message, got %q", resp.Message)
	}
}

func TestRouteResourcesListing(t *testing.T) {
	finder := &fakeResourceFinder{resources: []models.Resource{
		{ID: "res_g1", Category: "general", Language: "en", Title: "Peer Support", ContactInfo: "https://example.org"},
	}}
	router := newTestRouter(t, finder)

	session := newTestSession(models.FlowTypeIdle, 0)
	handlerFlow, resp, err := router.Route(context.Background(), session, "resources please")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeIdle {
		t.Errorf("resources listing must not enter a flow, got %s", handlerFlow)
	}
	if !strings.Contains(resp.Message, "Peer Support") {
		t.Errorf("expected resource listing, got %q", resp.Message)
	}
	if finder.lastQuery != "general/en" {
		t.Errorf("expected general/en query, got %q", finder.lastQuery)
	}
}

func TestRouteMoodNotesStepDefersToHandler(t *testing.T) {
	router := newTestRouter(t, &fakeResourceFinder{})

	session := newTestSession(models.FlowTypeMoodLog, models.MoodStepNotes)
	session.Context = models.SessionContext{Mood: &models.MoodContext{Score: 2}}

	handlerFlow, resp, err := router.Route(context.Background(), session, "I want to end my life")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeMoodLog {
		t.Fatalf("notes step must finalize before redirecting, got %s", handlerFlow)
	}
	if !resp.CrisisRedirect {
		t.Error("expected crisis redirect from the mood handler")
	}
	if len(resp.Actions) != 1 || resp.Actions[0].Type != models.ActionSaveMood {
		t.Errorf("mood entry must be saved, got %+v", resp.Actions)
	}
}

func TestRouteBenignKillIdiomDoesNotPreempt(t *testing.T) {
	router := newTestRouter(t, &fakeResourceFinder{})

	session := newTestSession(models.FlowTypeMoodLog, models.MoodStepScore)
	session.Context = models.SessionContext{Mood: &models.MoodContext{}}

	handlerFlow, _, err := router.Route(context.Background(), session, "I killed it at work today")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if handlerFlow != models.FlowTypeMoodLog {
		t.Errorf("benign idiom must stay in the active flow, got %s", handlerFlow)
	}
}
