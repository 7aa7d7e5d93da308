package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/formloop/surveyflow/flow"
	"github.com/formloop/surveyflow/survey"
)

// Manager owns the live participation sessions and the per-survey engine
// snapshots they evaluate against.
//
// Snapshots are cached: the first session for a survey loads the survey and
// its rules, runs validation, and stores the resulting snapshot; later
// sessions reuse it. Editing rules must be followed by InvalidateSurvey so
// new sessions revalidate; sessions already running keep the snapshot they
// started with.
type Manager struct {
	surveys survey.Store
	rules   flow.RuleStore
	cache   flow.SnapshotCache

	sessions map[string]*Session
	engines  map[string]*flow.Engine // surveyID -> engine over cached snapshot
	mu       sync.RWMutex

	logger *slog.Logger
}

// NewManager creates a session manager over the given stores.
func NewManager(surveys survey.Store, rules flow.RuleStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		surveys:  surveys,
		rules:    rules,
		cache:    flow.NewInMemorySnapshotCache(flow.DefaultCacheConfig()),
		sessions: make(map[string]*Session),
		engines:  make(map[string]*flow.Engine),
		logger:   logger,
	}
}

// Engine returns the evaluation engine for a survey, building and caching the
// validated snapshot on first use.
func (m *Manager) Engine(surveyID string) (*flow.Engine, error) {
	m.mu.RLock()
	if eng, ok := m.engines[surveyID]; ok {
		m.mu.RUnlock()
		return eng, nil
	}
	m.mu.RUnlock()

	sv, snap, err := m.buildSnapshot(surveyID, true)
	if err != nil {
		return nil, err
	}

	eng := flow.NewEngine(sv, snap, m.logger)

	m.mu.Lock()
	// Another goroutine may have built the engine meanwhile; keep the first.
	if existing, ok := m.engines[surveyID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.engines[surveyID] = eng
	m.mu.Unlock()

	return eng, nil
}

// ValidateFlow loads a survey's rule set and validates it from scratch,
// bypassing the snapshot cache. This is the authoring-time check: it reports
// every problem without affecting running sessions.
func (m *Manager) ValidateFlow(surveyID string) ([]flow.ValidationError, error) {
	_, snap, err := m.buildSnapshot(surveyID, false)
	if err != nil {
		return nil, err
	}
	return snap.Errors, nil
}

// buildSnapshot loads and validates a survey's rule set. With useCache the
// snapshot cache serves repeat engine builds; authoring-time validation skips
// it so edits are checked as saved. Validation problems are logged once per
// build.
func (m *Manager) buildSnapshot(surveyID string, useCache bool) (*survey.Survey, *flow.Snapshot, error) {
	sv, err := m.surveys.Get(surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load survey: %w", err)
	}
	if err := survey.Validate(sv); err != nil {
		return nil, nil, fmt.Errorf("survey %s is structurally invalid: %w", surveyID, err)
	}

	if useCache {
		if snap := m.cache.Get(surveyID); snap != nil {
			return sv, snap, nil
		}
	}

	rules, err := m.rules.List(surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	groups, err := m.rules.ListGroups(surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load groups: %w", err)
	}

	snap, errs := flow.Validate(sv, rules, groups)
	for _, e := range errs {
		m.logger.Warn("rule excluded from evaluation",
			"surveyId", surveyID,
			"kind", string(e.Kind),
			"ruleId", e.RuleID,
			"detail", e.Message)
	}

	m.cache.Set(surveyID, snap)
	return sv, snap, nil
}

// Start creates a new participation session positioned at the survey's first
// question, with every question visible and no termination.
func (m *Manager) Start(surveyID string) (*Session, error) {
	eng, err := m.Engine(surveyID)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        uuid.NewString(),
		SurveyID:  surveyID,
		engine:    eng,
		responses: make(flow.ResponseSet),
		state:     eng.InitialState(),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.logger.Info("session started", "sessionId", sess.ID, "surveyId", surveyID)
	return sess, nil
}

// Get retrieves a live session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, exists := m.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return sess, nil
}

// End discards a session. FlowState is ephemeral; there is nothing to tear
// down beyond forgetting it.
func (m *Manager) End(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return fmt.Errorf("session %s not found", sessionID)
	}

	delete(m.sessions, sessionID)
	return nil
}

// InvalidateSurvey drops the survey's cached snapshot and engine so the next
// session revalidates against the current rule set. Live sessions are
// untouched.
func (m *Manager) InvalidateSurvey(surveyID string) {
	m.cache.Invalidate(surveyID)

	m.mu.Lock()
	delete(m.engines, surveyID)
	m.mu.Unlock()
}

// CountSessions returns the number of live sessions.
func (m *Manager) CountSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
