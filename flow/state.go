package flow

import "sort"

// TerminalKind distinguishes how (and whether) a session ended.
type TerminalKind string

const (
	TerminalNone         TerminalKind = "none"
	TerminalCompleted    TerminalKind = "completed"
	TerminalDisqualified TerminalKind = "disqualified"
)

// TerminalStatus records early termination. Reason carries the disqualify
// message and is empty otherwise.
type TerminalStatus struct {
	Kind   TerminalKind `json:"kind"`
	Reason string       `json:"reason,omitempty"`
}

// FlowState is one participation session's visibility/position/termination
// snapshot. It is recomputed on every evaluation cycle and never mutated in
// place: ActionExecutor and the engine always derive a fresh copy, so a state
// handed to a caller stays valid no matter what happens afterwards.
type FlowState struct {
	VisibleQuestions map[string]bool `json:"visibleQuestions"`
	VisibleSections  map[string]bool `json:"visibleSections"`
	Position         Position        `json:"currentPosition"`
	Terminal         TerminalStatus  `json:"terminalStatus"`
}

// NewFlowState returns a state with the given ids visible and no termination.
func NewFlowState(questionIDs, sectionIDs []string, pos Position) *FlowState {
	s := &FlowState{
		VisibleQuestions: make(map[string]bool, len(questionIDs)),
		VisibleSections:  make(map[string]bool, len(sectionIDs)),
		Position:         pos,
		Terminal:         TerminalStatus{Kind: TerminalNone},
	}
	for _, id := range questionIDs {
		s.VisibleQuestions[id] = true
	}
	for _, id := range sectionIDs {
		s.VisibleSections[id] = true
	}
	return s
}

// Clone returns a deep copy. Callers receive clones only, never the engine's
// working state.
func (s *FlowState) Clone() *FlowState {
	c := &FlowState{
		VisibleQuestions: make(map[string]bool, len(s.VisibleQuestions)),
		VisibleSections:  make(map[string]bool, len(s.VisibleSections)),
		Position:         s.Position,
		Terminal:         s.Terminal,
	}
	for id := range s.VisibleQuestions {
		c.VisibleQuestions[id] = true
	}
	for id := range s.VisibleSections {
		c.VisibleSections[id] = true
	}
	return c
}

// IsTerminal reports whether the session has ended (completed or
// disqualified). Terminal states are absorbing: once set, later evaluation
// cycles return the state unchanged.
func (s *FlowState) IsTerminal() bool {
	return s.Terminal.Kind != TerminalNone
}

// Equal reports whether two states are identical in visibility, position,
// and termination.
func (s *FlowState) Equal(o *FlowState) bool {
	if o == nil {
		return false
	}
	if s.Position != o.Position || s.Terminal != o.Terminal {
		return false
	}
	if len(s.VisibleQuestions) != len(o.VisibleQuestions) ||
		len(s.VisibleSections) != len(o.VisibleSections) {
		return false
	}
	for id := range s.VisibleQuestions {
		if !o.VisibleQuestions[id] {
			return false
		}
	}
	for id := range s.VisibleSections {
		if !o.VisibleSections[id] {
			return false
		}
	}
	return true
}

// QuestionIDs returns the visible question ids in sorted order.
func (s *FlowState) QuestionIDs() []string {
	return sortedKeys(s.VisibleQuestions)
}

// SectionIDs returns the visible section ids in sorted order.
func (s *FlowState) SectionIDs() []string {
	return sortedKeys(s.VisibleSections)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
