package api

import (
	"log/slog"
	"time"

	"github.com/novamind-health/careflow/internal/models"
)

// executeActions runs the engine's derived actions against the store. Action
// failures are logged and do not abort the turn; the participant already has
// their reply.
func (s *Server) executeActions(identity string, actions []models.Action) {
	for _, action := range actions {
		if err := s.executeAction(identity, action); err != nil {
			slog.Error("Server.executeActions: action failed",
				"error", err, "identity", identity, "type", action.Type)
		}
	}
}

func (s *Server) executeAction(identity string, action models.Action) error {
	switch action.Type {
	case models.ActionLogInteraction:
		return s.st.LogInteraction(models.Interaction{
			UserID:   action.UserID,
			Type:     string(action.Type),
			Metadata: action.Metadata,
			Time:     time.Now().UTC(),
		})

	case models.ActionSaveAssessment:
		if action.Assessment == nil {
			return nil
		}
		return s.st.SaveAssessment(*action.Assessment)

	case models.ActionSaveMood:
		if action.Mood == nil {
			return nil
		}
		return s.st.SaveMood(*action.Mood)

	case models.ActionCreateAccount:
		return s.createAccount(identity, action)

	case models.ActionCreateReferral:
		return s.st.CreateReferral(models.Referral{
			ID:        action.Metadata["referral_id"],
			UserID:    action.UserID,
			Urgency:   models.Priority(action.Metadata["urgency"]),
			Reason:    action.Metadata["reason"],
			CreatedAt: time.Now().UTC(),
		})

	case models.ActionEscalateCrisis, models.ActionCrisisIntervention, models.ActionResourceAccess:
		// Audit-trail actions: recorded as interactions for reporting.
		return s.st.LogInteraction(models.Interaction{
			UserID:   action.UserID,
			Type:     string(action.Type),
			Metadata: action.Metadata,
			Time:     time.Now().UTC(),
		})
	}
	slog.Warn("Server.executeAction: unknown action type", "type", action.Type, "identity", identity)
	return nil
}

// createAccount builds the durable account from the onboarding action and
// the session's anonymous identifier.
func (s *Server) createAccount(identity string, action models.Action) error {
	account := models.Account{
		UserID:    action.UserID,
		Language:  action.Metadata["language"],
		AgeGroup:  action.Metadata["age_group"],
		Location:  action.Metadata["location"],
		Category:  action.Metadata["category"],
		CreatedAt: time.Now().UTC(),
	}
	if session, err := s.st.GetSession(identity); err == nil && session != nil {
		account.AnonymousID = session.AnonymousID
	}
	return s.st.CreateAccount(account)
}
