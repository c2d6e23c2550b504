// Package store provides storage backends for CareFlow.
//
// It includes an in-memory store used by tests and as the no-DSN default,
// plus SQLite and PostgreSQL backends selected by DSN type. All backends
// persist sessions, assessment records, mood entries, interactions,
// referrals, accounts and the support resource directory.
package store

import (
	"fmt"
	"sync"

	"github.com/novamind-health/careflow/internal/models"
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// Sessions.
	GetSession(userID string) (*models.Session, error)
	SaveSession(session models.Session) error
	DeleteSession(userID string) error

	// Flow output records.
	SaveAssessment(record models.AssessmentRecord) error
	GetAssessments(userID string) ([]models.AssessmentRecord, error)
	SaveMood(entry models.MoodEntry) error
	GetMoods(userID string) ([]models.MoodEntry, error)

	// Collaborator records.
	LogInteraction(interaction models.Interaction) error
	CreateReferral(referral models.Referral) error
	CreateAccount(account models.Account) error
	GetAccount(userID string) (*models.Account, error)

	// Resource directory.
	FindResources(category, language string, limit int) ([]models.Resource, error)
	AddResource(resource models.Resource) error

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory Store.
type InMemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]models.Session
	assessments  map[string][]models.AssessmentRecord
	moods        map[string][]models.MoodEntry
	interactions []models.Interaction
	referrals    []models.Referral
	accounts     map[string]models.Account
	resources    []models.Resource
}

// NewInMemoryStore creates an in-memory store pre-seeded with the default
// resource directory.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string]models.Session),
		assessments: make(map[string][]models.AssessmentRecord),
		moods:       make(map[string][]models.MoodEntry),
		accounts:    make(map[string]models.Account),
		resources:   DefaultResources(),
	}
}

// GetSession returns the session for a user, or nil if none exists.
func (s *InMemoryStore) GetSession(userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// SaveSession stores or replaces the session for its user.
func (s *InMemoryStore) SaveSession(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

// DeleteSession removes the session for a user.
func (s *InMemoryStore) DeleteSession(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// SaveAssessment appends a completed assessment record.
func (s *InMemoryStore) SaveAssessment(record models.AssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments[record.UserID] = append(s.assessments[record.UserID], record)
	return nil
}

// GetAssessments returns all assessment records for a user.
func (s *InMemoryStore) GetAssessments(userID string) ([]models.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]models.AssessmentRecord, len(s.assessments[userID]))
	copy(records, s.assessments[userID])
	return records, nil
}

// SaveMood appends a mood entry.
func (s *InMemoryStore) SaveMood(entry models.MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moods[entry.UserID] = append(s.moods[entry.UserID], entry)
	return nil
}

// GetMoods returns all mood entries for a user.
func (s *InMemoryStore) GetMoods(userID string) ([]models.MoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.MoodEntry, len(s.moods[userID]))
	copy(entries, s.moods[userID])
	return entries, nil
}

// LogInteraction appends an interaction record.
func (s *InMemoryStore) LogInteraction(interaction models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, interaction)
	return nil
}

// GetInteractions returns all logged interactions (for tests).
func (s *InMemoryStore) GetInteractions() []models.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	interactions := make([]models.Interaction, len(s.interactions))
	copy(interactions, s.interactions)
	return interactions
}

// CreateReferral appends a referral record.
func (s *InMemoryStore) CreateReferral(referral models.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrals = append(s.referrals, referral)
	return nil
}

// GetReferrals returns all referral records (for tests).
func (s *InMemoryStore) GetReferrals() []models.Referral {
	s.mu.RLock()
	defer s.mu.RUnlock()
	referrals := make([]models.Referral, len(s.referrals))
	copy(referrals, s.referrals)
	return referrals
}

// CreateAccount stores the durable account record for a user.
func (s *InMemoryStore) CreateAccount(account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.UserID]; exists {
		return fmt.Errorf("account already exists for user %s", account.UserID)
	}
	s.accounts[account.UserID] = account
	return nil
}

// GetAccount returns the account for a user, or nil if none exists.
func (s *InMemoryStore) GetAccount(userID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[userID]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

// FindResources returns up to limit resources matching category and
// language, falling back to English entries in the category when the
// language has none.
func (s *InMemoryStore) FindResources(category, language string, limit int) ([]models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := filterResources(s.resources, category, language, limit)
	if len(matches) == 0 && language != "en" {
		matches = filterResources(s.resources, category, "en", limit)
	}
	return matches, nil
}

// AddResource appends a resource to the directory.
func (s *InMemoryStore) AddResource(resource models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, resource)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func filterResources(resources []models.Resource, category, language string, limit int) []models.Resource {
	var matches []models.Resource
	for _, r := range resources {
		if r.Category != category || r.Language != language {
			continue
		}
		matches = append(matches, r)
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches
}

// DefaultResources is the seed resource directory shared by the in-memory
// store and the database migrations.
func DefaultResources() []models.Resource {
	return []models.Resource{
		{ID: "res_crisis_hotline_en", Category: "crisis", Language: "en", Title: "24/7 Crisis Hotline", Description: "Free, confidential support any time, day or night.", ContactInfo: "Call or text 988"},
		{ID: "res_crisis_text_en", Category: "crisis", Language: "en", Title: "Crisis Text Line", Description: "Text with a trained crisis counselor.", ContactInfo: "Text HOME to 741741"},
		{ID: "res_crisis_chat_en", Category: "crisis", Language: "en", Title: "Online Crisis Chat", Description: "Chat with a counselor from your browser.", ContactInfo: "https://988lifeline.org/chat"},
		{ID: "res_crisis_hotline_es", Category: "crisis", Language: "es", Title: "Línea de Crisis 24/7", Description: "Apoyo gratuito y confidencial a cualquier hora.", ContactInfo: "Llama o envía un mensaje al 988"},
		{ID: "res_crisis_chat_es", Category: "crisis", Language: "es", Title: "Chat de Crisis en Línea", Description: "Chatea con un consejero desde tu navegador.", ContactInfo: "https://988lifeline.org/es/chat"},
		{ID: "res_crisis_hotline_fr", Category: "crisis", Language: "fr", Title: "Ligne d'écoute 24/7", Description: "Soutien gratuit et confidentiel à toute heure.", ContactInfo: "Appelez le 3114"},
		{ID: "res_general_peer_en", Category: "general", Language: "en", Title: "Peer Support Community", Description: "Moderated peer support groups for everyday stress.", ContactInfo: "https://careflow.example/community"},
		{ID: "res_general_therapy_en", Category: "general", Language: "en", Title: "Find a Therapist", Description: "Directory of licensed, sliding-scale therapists.", ContactInfo: "https://careflow.example/therapists"},
		{ID: "res_general_peer_es", Category: "general", Language: "es", Title: "Comunidad de Apoyo", Description: "Grupos de apoyo moderados para el estrés diario.", ContactInfo: "https://careflow.example/comunidad"},
		{ID: "res_general_peer_fr", Category: "general", Language: "fr", Title: "Communauté d'entraide", Description: "Groupes de soutien modérés pour le stress quotidien.", ContactInfo: "https://careflow.example/communaute"},
	}
}
