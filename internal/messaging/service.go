// Package messaging provides outbound message delivery for CareFlow.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MinPhoneDigits is the minimum number of digits a phone-based recipient
// identifier must contain.
const MinPhoneDigits = 6

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails. This allows each service to implement its own
	// recipient validation rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// CanonicalizePhone strips a phone-based identifier down to its digits and
// validates the result. Identifiers like "whatsapp:+1 (555) 010-2030" and
// "+15550102030" canonicalize to the same value.
func CanonicalizePhone(recipient string) (string, error) {
	var b strings.Builder
	for _, r := range recipient {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < MinPhoneDigits {
		return "", fmt.Errorf("invalid recipient %q: need at least %d digits", recipient, MinPhoneDigits)
	}
	return digits, nil
}

// NoopService is a Service that records messages instead of delivering them.
// It backs deployments where CareFlow serves API clients that handle their
// own delivery, and doubles as the test double for the API layer.
type NoopService struct {
	mu   sync.Mutex
	sent []SentMessage
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// NewNoopService creates a no-op delivery service.
func NewNoopService() *NoopService {
	return &NoopService{}
}

// ValidateAndCanonicalizeRecipient accepts any non-empty recipient unchanged.
func (s *NoopService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return "", fmt.Errorf("recipient must not be empty")
	}
	return trimmed, nil
}

// SendMessage records the message.
func (s *NoopService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentMessage{To: to, Body: body})
	slog.Debug("NoopService recorded message", "to", to)
	return nil
}

// Start is a no-op.
func (s *NoopService) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (s *NoopService) Stop() error { return nil }

// Sent returns a copy of the recorded messages.
func (s *NoopService) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}
