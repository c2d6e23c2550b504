// Package flow implements the structured conversation flows of the CareFlow
// engine: onboarding, PHQ-4 assessment, mood logging and crisis support.
//
// Each flow is a state machine over (session, inbound text). Flows never
// write session state themselves; they describe the mutation to apply in the
// FlowResponse and the conversation engine performs the write.
package flow

import (
	"context"
	"strings"

	"github.com/novamind-health/careflow/internal/crisis"
	"github.com/novamind-health/careflow/internal/models"
)

// Handler drives one flow's state machine.
type Handler interface {
	// Type returns the flow this handler implements.
	Type() models.FlowType

	// Start produces the flow's opening response. The triggering message is
	// not treated as an answer to any step.
	Start(ctx context.Context, session *models.Session) (*models.FlowResponse, error)

	// Advance processes a reply to the step the session is currently on.
	Advance(ctx context.Context, session *models.Session, text string) (*models.FlowResponse, error)
}

// ResourceFinder looks up support resources from the external resource
// directory.
type ResourceFinder interface {
	FindResources(category, language string, limit int) ([]models.Resource, error)
}

// Registry associates flow types with their handlers.
type Registry struct {
	handlers map[models.FlowType]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.FlowType]Handler)}
}

// Register associates a handler with its flow type.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Type()] = h
}

// Get retrieves the handler for a flow type.
func (r *Registry) Get(ft models.FlowType) (Handler, bool) {
	h, ok := r.handlers[ft]
	return h, ok
}

// matchesAny reports whether any phrase occurs in the normalized text on
// word boundaries.
func matchesAny(normalized string, phrases []string) bool {
	padded := " " + normalized + " "
	for _, phrase := range phrases {
		p := crisis.Normalize(phrase)
		if p != "" && strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
