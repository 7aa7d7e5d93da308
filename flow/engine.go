package flow

import (
	"log/slog"

	"github.com/formloop/surveyflow/survey"
)

// Engine runs one survey's validated rule set against a response set and
// produces the next FlowState. The same engine serves every execution
// context: the interactive renderer, the authoring preview, and the
// server-side authoritative re-check all call Evaluate with their own copy of
// the responses, so the logic cannot drift between them.
//
// An Engine is safe for concurrent use: it holds only immutable data (the
// survey metadata and the rule snapshot) plus the condition evaluator's
// internal regex cache, which locks itself.
type Engine struct {
	survey   *survey.Survey
	snapshot *Snapshot

	conditions *conditionEvaluator
	groups     *groupEvaluator

	questionIDs []string
	sectionIDs  []string
	sectionOf   map[string]string

	logger *slog.Logger
}

// NewEngine builds an engine over a validated snapshot. The snapshot comes
// from Validate; rules it excluded never reach evaluation.
func NewEngine(s *survey.Survey, snap *Snapshot, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	conditions := newConditionEvaluator(logger)
	return &Engine{
		survey:      s,
		snapshot:    snap,
		conditions:  conditions,
		groups:      &groupEvaluator{conditions: conditions, groups: snap.Groups},
		questionIDs: s.QuestionIDs(),
		sectionIDs:  s.SectionIDs(),
		sectionOf:   s.SectionOf(),
		logger:      logger,
	}
}

// Snapshot returns the validated rule set the engine evaluates.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot
}

// InitialState returns the state a fresh session starts from: everything
// visible, positioned at the survey's first question.
func (e *Engine) InitialState() *FlowState {
	secID, qID := e.survey.Start()
	return NewFlowState(e.questionIDs, e.sectionIDs, Position{SectionID: secID, QuestionID: qID})
}

// Evaluate runs one full evaluation cycle and returns a brand-new FlowState.
//
// Each cycle starts from the survey's default visibility and the supplied
// position, then applies every ordered rule whose condition holds. Starting
// from the default state rather than the previous one is what makes the
// engine deterministic in (rules, responses, position): toggling an answer
// back to its previous value yields the identical state, and a rule that
// stops firing takes its effects with it.
//
// The only thing carried over from prev is termination: a terminal state is
// absorbing, so once a session has completed or been disqualified, Evaluate
// returns the previous state unchanged.
func (e *Engine) Evaluate(prev *FlowState, responses ResponseSet, pos Position) *FlowState {
	if prev != nil && prev.IsTerminal() {
		return prev.Clone()
	}

	state := NewFlowState(e.questionIDs, e.sectionIDs, pos)

	for _, rule := range e.snapshot.Rules {
		if !e.groups.evalRuleCondition(rule, responses, make(map[string]bool)) {
			continue
		}

		e.logger.Debug("flow rule fired",
			"surveyId", e.snapshot.SurveyID,
			"ruleId", rule.ID,
			"action", string(rule.Action.Kind))

		state = applyAction(rule.Action, state)

		// Jumps set the position directly; resolve the other half of the
		// (section, question) pointer from the survey metadata.
		switch rule.Action.Kind {
		case ActionJumpToQuestion:
			state.Position.SectionID = e.sectionOf[rule.Action.TargetQuestionID]
		case ActionJumpToSection:
			state.Position.QuestionID = e.survey.FirstQuestion(rule.Action.TargetSectionID)
		}

		// Terminal short-circuits the rest of the pass; actions already
		// applied earlier in the same pass stand.
		if state.IsTerminal() {
			break
		}
	}

	return state
}
