package session

import (
	"sync"

	"github.com/formloop/surveyflow/flow"
)

// Session is one participant's pass through a survey. It owns its ResponseSet
// and the latest FlowState; the rule snapshot it evaluates against is fixed
// at Start and never changes, even if an administrator edits rules while the
// session is live.
//
// A session is single-threaded by contract: one response change triggers one
// full evaluation pass before the caller proceeds. The mutex enforces that
// passes never overlap for the same session; different sessions share nothing
// mutable and run concurrently.
type Session struct {
	ID       string
	SurveyID string

	engine    *flow.Engine
	responses flow.ResponseSet
	state     *flow.FlowState
	mu        sync.Mutex
}

// Answer records a response and runs one evaluation cycle, returning the new
// state. Answers are never deleted when a question is hidden; re-showing a
// question restores the participant's prior input.
func (s *Session) Answer(questionID string, value any) *flow.FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responses[questionID] = value
	s.state = s.engine.Evaluate(s.state, s.responses, s.state.Position)
	return s.state.Clone()
}

// Advance moves the participant to a new position and re-evaluates, so
// position-dependent rules see the move.
func (s *Session) Advance(pos flow.Position) *flow.FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.engine.Evaluate(s.state, s.responses, pos)
	return s.state.Clone()
}

// State returns a copy of the latest FlowState.
func (s *Session) State() *flow.FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

// Responses returns a copy of the participant's answers so far.
func (s *Session) Responses() flow.ResponseSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(flow.ResponseSet, len(s.responses))
	for k, v := range s.responses {
		out[k] = v
	}
	return out
}
