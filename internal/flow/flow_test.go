package flow

import (
	"fmt"
	"testing"

	"github.com/novamind-health/careflow/internal/i18n"
	"github.com/novamind-health/careflow/internal/models"
)

func newTestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	translator, err := i18n.NewTranslator()
	if err != nil {
		t.Fatalf("failed to load translator: %v", err)
	}
	return translator
}

func newTestSession(flowType models.FlowType, step int) *models.Session {
	return &models.Session{
		UserID:      "user-1",
		AnonymousID: "anon_test",
		Language:    "en",
		CurrentFlow: flowType,
		FlowStep:    step,
	}
}

// fakeResourceFinder returns canned resources or an injected error.
type fakeResourceFinder struct {
	resources []models.Resource
	err       error
	lastQuery string
}

func (f *fakeResourceFinder) FindResources(category, language string, limit int) ([]models.Resource, error) {
	f.lastQuery = category + "/" + language
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.resources) > limit {
		return f.resources[:limit], nil
	}
	return f.resources, nil
}

func errResourceFinder() *fakeResourceFinder {
	return &fakeResourceFinder{err: fmt.Errorf("directory unavailable")}
}

func TestRegistry(t *testing.T) {
	translator := newTestTranslator(t)
	registry := NewRegistry()
	registry.Register(NewAssessmentHandler(translator))

	if _, ok := registry.Get(models.FlowTypeAssessment); !ok {
		t.Error("expected assessment handler to be registered")
	}
	if _, ok := registry.Get(models.FlowTypeCrisis); ok {
		t.Error("expected crisis handler to be absent")
	}
}

func TestMatchesAnyWordBoundaries(t *testing.T) {
	if !matchesAny("hello there", []string{"hello"}) {
		t.Error("expected match on whole word")
	}
	if matchesAny("shello there", []string{"hello"}) {
		t.Error("expected no match inside a word")
	}
	if matchesAny("anything", []string{""}) {
		t.Error("empty phrase must never match")
	}
}
