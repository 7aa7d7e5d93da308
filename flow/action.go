package flow

// applyAction executes one action against a state and returns the resulting
// state. The input is never mutated; every application derives a fresh copy,
// which is what makes last-applied-wins conflict resolution work: when two
// rules target the same question with opposing show/hide actions in one pass,
// the later rule's application fully overwrites the earlier one.
//
// Visibility and position are orthogonal: jumps move the position pointer and
// leave visibility alone, show/hide toggles visibility and leaves the pointer
// alone. Hiding a question never touches its answer in the ResponseSet, so
// re-showing it restores the participant's prior input.
func applyAction(action Action, state *FlowState) *FlowState {
	next := state.Clone()

	switch action.Kind {
	case ActionShowQuestion:
		next.VisibleQuestions[action.TargetQuestionID] = true

	case ActionHideQuestion:
		delete(next.VisibleQuestions, action.TargetQuestionID)

	case ActionShowQuestions:
		for _, id := range action.TargetQuestionIDs {
			next.VisibleQuestions[id] = true
		}

	case ActionHideQuestions:
		for _, id := range action.TargetQuestionIDs {
			delete(next.VisibleQuestions, id)
		}

	case ActionJumpToSection:
		next.Position = Position{SectionID: action.TargetSectionID}

	case ActionJumpToQuestion:
		next.Position.QuestionID = action.TargetQuestionID

	case ActionEndSurvey:
		next.Terminal = TerminalStatus{Kind: TerminalCompleted}

	case ActionDisqualify:
		reason := action.Message
		if reason == "" {
			reason = DefaultDisqualifyReason
		}
		next.Terminal = TerminalStatus{Kind: TerminalDisqualified, Reason: reason}
	}

	return next
}

// DefaultDisqualifyReason is used when a disqualify rule carries no message.
const DefaultDisqualifyReason = "You are not eligible to complete this survey."
