package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/novamind-health/careflow/internal/crisis"
	"github.com/novamind-health/careflow/internal/engine"
	"github.com/novamind-health/careflow/internal/flow"
	"github.com/novamind-health/careflow/internal/i18n"
	"github.com/novamind-health/careflow/internal/messaging"
	"github.com/novamind-health/careflow/internal/models"
	"github.com/novamind-health/careflow/internal/store"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.InMemoryStore, *messaging.NoopService) {
	t.Helper()
	translator, err := i18n.NewTranslator()
	if err != nil {
		t.Fatalf("failed to load translator: %v", err)
	}
	detector := crisis.NewDetector()
	st := store.NewInMemoryStore()
	msgService := messaging.NewNoopService()

	registry := flow.NewRegistry()
	registry.Register(flow.NewOnboardingHandler(translator))
	registry.Register(flow.NewAssessmentHandler(translator))
	registry.Register(flow.NewMoodLogHandler(translator, detector))
	registry.Register(flow.NewCrisisHandler(translator, st))

	router := flow.NewRouter(detector, registry, translator, st)
	eng := engine.New(st, router, translator)

	return NewServer(st, msgService, eng, opts...), st, msgService
}

func postMessage(t *testing.T, server *Server, from, text string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"from":"` + from + `","text":"` + text + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var envelope models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return envelope
}

func TestMessagesEndpointProcessesTurn(t *testing.T) {
	server, st, _ := newTestServer(t)

	rec := postMessage(t, server, "user-1", "hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Status != string(models.APIStatusOK) {
		t.Fatalf("expected ok status, got %+v", envelope)
	}

	session, _ := st.GetSession("user-1")
	if session == nil {
		t.Fatal("expected session to be created")
	}
	if session.CurrentFlow != models.FlowTypeOnboarding {
		t.Errorf("expected onboarding flow, got %s", session.CurrentFlow)
	}

	// The turn's interaction log was executed against the store.
	interactions := st.GetInteractions()
	if len(interactions) != 1 || interactions[0].Type != string(models.ActionLogInteraction) {
		t.Errorf("expected one logged interaction, got %+v", interactions)
	}
}

func TestMessagesEndpointExecutesFlowActions(t *testing.T) {
	server, st, _ := newTestServer(t)

	// Run the full assessment through the HTTP surface.
	for _, text := range []string{"check in", "start", "3", "3", "3", "3"} {
		rec := postMessage(t, server, "user-1", text)
		if rec.Code != http.StatusOK {
			t.Fatalf("message %q: expected 200, got %d", text, rec.Code)
		}
	}

	records, err := st.GetAssessments("user-1")
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 saved assessment, got %d (err %v)", len(records), err)
	}
	if records[0].TotalScore != 12 || records[0].SeverityLevel != models.SeveritySevere {
		t.Errorf("unexpected record: %+v", records[0])
	}

	referrals := st.GetReferrals()
	if len(referrals) != 1 {
		t.Fatalf("expected 1 referral for severe score, got %d", len(referrals))
	}
	if referrals[0].Urgency != models.PriorityHigh {
		t.Errorf("expected high urgency referral, got %s", referrals[0].Urgency)
	}
}

func TestMessagesEndpointRejectsBadRequests(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", rec.Code)
	}

	rec = postMessage(t, server, " ", "hello")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank sender, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestMessagesEndpointDeliversWhenEnabled(t *testing.T) {
	server, _, msgService := newTestServer(t, WithDelivery())

	rec := postMessage(t, server, "user-1", "hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	sent := msgService.Sent()
	if len(sent) != 1 || sent[0].To != "user-1" {
		t.Fatalf("expected one delivered reply, got %+v", sent)
	}
	if sent[0].Body == "" {
		t.Error("expected non-empty reply body")
	}
}

func TestSessionsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	postMessage(t, server, "user-1", "hello")

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/user-1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/unknown-user", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/user-1", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/user-1", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestAssessmentsEndpointRequiresUser(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/assessments", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user parameter, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/assessments?user=user-1", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with user parameter, got %d", rec.Code)
	}
}

func TestTwilioInboundWebhook(t *testing.T) {
	server, st, msgService := newTestServer(t)

	form := url.Values{}
	form.Set("From", "whatsapp:+15550102030")
	form.Set("Body", "hello")
	req := httptest.NewRequest(http.MethodPost, "/v1/twilio/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	// The identity is the recipient string the messaging service produced.
	session, _ := st.GetSession("whatsapp:+15550102030")
	if session == nil {
		t.Fatal("expected session keyed by canonical sender")
	}

	// The reply is delivered asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(msgService.Sent()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if sent := msgService.Sent(); len(sent) != 1 {
		t.Fatalf("expected one delivered reply, got %d", len(sent))
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("expected health payload, got %s", rec.Body.String())
	}
}
