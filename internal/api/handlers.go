// Package api provides HTTP handlers for CareFlow endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/novamind-health/careflow/internal/models"
)

// inboundMessage is the request body for POST /v1/messages.
type inboundMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// messagesHandler handles inbound message turns (POST /v1/messages).
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.messagesHandler: processing message request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.messagesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var msg inboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		slog.Warn("Server.messagesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	// Validate and canonicalize recipient using the messaging service
	canonicalFrom, err := s.msgService.ValidateAndCanonicalizeRecipient(msg.From)
	if err != nil {
		slog.Warn("Server.messagesHandler: sender validation failed", "error", err, "original_from", msg.From)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	resp, err := s.handleTurn(r.Context(), canonicalFrom, msg.Text)
	if err != nil {
		slog.Error("Server.messagesHandler: turn failed", "error", err, "from", canonicalFrom)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	if s.deliver {
		if sendErr := s.msgService.SendMessage(r.Context(), canonicalFrom, resp.Message); sendErr != nil {
			slog.Error("Server.messagesHandler: failed to deliver reply", "error", sendErr, "to", canonicalFrom)
		}
	}

	slog.Info("Server.messagesHandler: turn processed", "from", canonicalFrom, "priority", resp.Priority)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// twilioInboundHandler handles Twilio webhook callbacks (POST
// /v1/twilio/inbound). Twilio posts form-encoded From/Body pairs; the reply
// is delivered back through the messaging service.
func (s *Server) twilioInboundHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.twilioInboundHandler: processing webhook", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioInboundHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" {
		slog.Warn("Server.twilioInboundHandler: missing From field")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	canonicalFrom, err := s.msgService.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Server.twilioInboundHandler: sender validation failed", "error", err, "from", from)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp, err := s.handleTurn(r.Context(), canonicalFrom, body)
	if err != nil {
		slog.Error("Server.twilioInboundHandler: turn failed", "error", err, "from", canonicalFrom)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// Webhook replies are delivered out-of-band rather than in the webhook
	// response, so quick replies and buttons can be sent as separate lines.
	go func(to, message string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if sendErr := s.msgService.SendMessage(ctx, to, message); sendErr != nil {
			slog.Error("Server.twilioInboundHandler: failed to deliver reply", "error", sendErr, "to", to)
		}
	}(canonicalFrom, renderDeliveredMessage(resp))

	w.WriteHeader(http.StatusNoContent)
}

// renderDeliveredMessage flattens a turn response into one outbound message,
// appending quick replies and buttons as numbered options.
func renderDeliveredMessage(resp *models.FlowResponse) string {
	parts := []string{resp.Message}
	for i, qr := range resp.QuickReplies {
		parts = append(parts, "  "+strconv.Itoa(i+1)+". "+qr)
	}
	for i, btn := range resp.Buttons {
		parts = append(parts, "  "+strconv.Itoa(len(resp.QuickReplies)+i+1)+". "+btn)
	}
	return strings.Join(parts, "\n")
}

// sessionsHandler handles session inspection and reset (GET and DELETE
// /v1/sessions/{id}).
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionsHandler invoked", "method", r.Method, "path", r.URL.Path)

	identity := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	identity = strings.TrimSuffix(identity, "/")
	if identity == "" || strings.Contains(identity, "/") {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		session, err := s.st.GetSession(identity)
		if err != nil {
			slog.Error("Server.sessionsHandler: failed to fetch session", "error", err, "identity", identity)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch session"))
			return
		}
		if session == nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(session))

	case http.MethodDelete:
		if err := s.st.DeleteSession(identity); err != nil {
			slog.Error("Server.sessionsHandler: failed to delete session", "error", err, "identity", identity)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete session"))
			return
		}
		slog.Info("Server.sessionsHandler: session deleted", "identity", identity)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))

	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// assessmentsHandler returns a user's assessment history (GET
// /v1/assessments?user={id}).
func (s *Server) assessmentsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.assessmentsHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required query parameter: user"))
		return
	}
	records, err := s.st.GetAssessments(userID)
	if err != nil {
		slog.Error("Server.assessmentsHandler: failed to fetch assessments", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch assessments"))
		return
	}
	slog.Debug("Server.assessmentsHandler: assessments fetched", "userID", userID, "count", len(records))
	writeJSONResponse(w, http.StatusOK, models.Success(records))
}

// moodsHandler returns a user's mood history (GET /v1/moods?user={id}).
func (s *Server) moodsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.moodsHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required query parameter: user"))
		return
	}
	entries, err := s.st.GetMoods(userID)
	if err != nil {
		slog.Error("Server.moodsHandler: failed to fetch moods", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch moods"))
		return
	}
	slog.Debug("Server.moodsHandler: moods fetched", "userID", userID, "count", len(entries))
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}
