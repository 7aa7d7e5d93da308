package survey

import (
	"fmt"
	"sync"
	"time"
)

// Store is the boundary to the survey editing collaborator: it supplies the
// question/section metadata the flow validator and engine read.
type Store interface {
	// Add a new survey
	Add(s *Survey) error

	// Get a survey by ID
	Get(id string) (*Survey, error)

	// List all surveys
	List() ([]*Survey, error)

	// Update an existing survey
	Update(s *Survey) error

	// Delete a survey
	Delete(id string) error
}

// InMemoryStore implements Store using an in-memory map behind an RWMutex.
type InMemoryStore struct {
	surveys map[string]*Survey
	mu      sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory survey store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		surveys: make(map[string]*Survey),
	}
}

// Add adds a new survey, enforcing unique ids.
func (s *InMemoryStore) Add(sv *Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.surveys[sv.ID]; exists {
		return fmt.Errorf("survey with ID %s already exists", sv.ID)
	}

	now := time.Now()
	sv.CreatedAt = now
	sv.UpdatedAt = now
	s.surveys[sv.ID] = sv
	return nil
}

// Get retrieves a survey by ID.
func (s *InMemoryStore) Get(id string) (*Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, exists := s.surveys[id]
	if !exists {
		return nil, fmt.Errorf("survey with ID %s not found", id)
	}
	return sv, nil
}

// List returns all surveys.
func (s *InMemoryStore) List() ([]*Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Survey, 0, len(s.surveys))
	for _, sv := range s.surveys {
		out = append(out, sv)
	}
	return out, nil
}

// Update replaces an existing survey, preserving its CreatedAt timestamp.
func (s *InMemoryStore) Update(sv *Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.surveys[sv.ID]
	if !exists {
		return fmt.Errorf("survey with ID %s not found", sv.ID)
	}

	sv.CreatedAt = existing.CreatedAt
	sv.UpdatedAt = time.Now()
	s.surveys[sv.ID] = sv
	return nil
}

// Delete removes a survey.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.surveys[id]; !exists {
		return fmt.Errorf("survey with ID %s not found", id)
	}

	delete(s.surveys, id)
	return nil
}
