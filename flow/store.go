package flow

import (
	"fmt"
	"sync"
	"time"
)

// RuleStore is the boundary to the rule authoring collaborator: it supplies
// the rules and condition groups for a survey and persists authoring edits.
// The engine itself only ever reads a validated snapshot taken from a store;
// edits made after a session loads its snapshot do not reach that session.
type RuleStore interface {
	// Add a new rule
	Add(rule *Rule) error

	// Get a rule by ID within a survey
	Get(surveyID, id string) (*Rule, error)

	// List all rules for a survey, active and inactive
	List(surveyID string) ([]*Rule, error)

	// ListActive returns only the active rules for a survey
	ListActive(surveyID string) ([]*Rule, error)

	// Update an existing rule
	Update(rule *Rule) error

	// Delete a rule
	Delete(surveyID, id string) error

	// AddGroup persists a condition group
	AddGroup(group *Group) error

	// ListGroups returns all condition groups for a survey
	ListGroups(surveyID string) ([]*Group, error)
}

// InMemoryRuleStore implements RuleStore with maps behind an RWMutex.
type InMemoryRuleStore struct {
	rules  map[string]map[string]*Rule  // surveyID -> ruleID -> rule
	groups map[string]map[string]*Group // surveyID -> groupID -> group
	mu     sync.RWMutex
}

// NewInMemoryRuleStore creates an empty in-memory rule store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules:  make(map[string]map[string]*Rule),
		groups: make(map[string]map[string]*Group),
	}
}

// Add adds a new rule, enforcing unique ids within a survey.
func (s *InMemoryRuleStore) Add(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySurvey := s.rules[rule.SurveyID]
	if bySurvey == nil {
		bySurvey = make(map[string]*Rule)
		s.rules[rule.SurveyID] = bySurvey
	}
	if _, exists := bySurvey[rule.ID]; exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	bySurvey[rule.ID] = rule
	return nil
}

// Get retrieves a rule by ID.
func (s *InMemoryRuleStore) Get(surveyID, id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[surveyID][id]
	if !exists {
		return nil, fmt.Errorf("rule with ID %s not found", id)
	}
	return rule, nil
}

// List returns every rule for the survey.
func (s *InMemoryRuleStore) List(surveyID string) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Rule
	for _, rule := range s.rules[surveyID] {
		out = append(out, rule)
	}
	return out, nil
}

// ListActive returns only the rules marked active for the survey.
func (s *InMemoryRuleStore) ListActive(surveyID string) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Rule
	for _, rule := range s.rules[surveyID] {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

// Update replaces an existing rule, preserving its CreatedAt timestamp.
func (s *InMemoryRuleStore) Update(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.SurveyID][rule.ID]
	if !exists {
		return fmt.Errorf("rule with ID %s not found", rule.ID)
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	s.rules[rule.SurveyID][rule.ID] = rule
	return nil
}

// Delete removes a rule.
func (s *InMemoryRuleStore) Delete(surveyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[surveyID][id]; !exists {
		return fmt.Errorf("rule with ID %s not found", id)
	}

	delete(s.rules[surveyID], id)
	return nil
}

// AddGroup persists a condition group.
func (s *InMemoryRuleStore) AddGroup(group *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySurvey := s.groups[group.SurveyID]
	if bySurvey == nil {
		bySurvey = make(map[string]*Group)
		s.groups[group.SurveyID] = bySurvey
	}
	if _, exists := bySurvey[group.ID]; exists {
		return fmt.Errorf("group with ID %s already exists", group.ID)
	}

	bySurvey[group.ID] = group
	return nil
}

// ListGroups returns every condition group for the survey.
func (s *InMemoryRuleStore) ListGroups(surveyID string) ([]*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Group
	for _, g := range s.groups[surveyID] {
		out = append(out, g)
	}
	return out, nil
}
