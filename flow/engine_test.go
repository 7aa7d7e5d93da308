package flow

import (
	"testing"

	"github.com/formloop/surveyflow/survey"
)

func buildEngine(t *testing.T, rules []*Rule, groups []*Group) *Engine {
	t.Helper()
	sv := testSurvey()
	snap, errs := Validate(sv, rules, groups)
	if len(errs) != 0 {
		t.Fatalf("test rule set should validate cleanly, got %v", errs)
	}
	return NewEngine(sv, snap, nil)
}

func TestEngineInitialState(t *testing.T) {
	eng := buildEngine(t, nil, nil)
	state := eng.InitialState()

	if len(state.VisibleQuestions) != 5 || len(state.VisibleSections) != 2 {
		t.Errorf("everything should start visible: %d questions, %d sections",
			len(state.VisibleQuestions), len(state.VisibleSections))
	}
	if state.Position != (Position{SectionID: "s1", QuestionID: "q1"}) {
		t.Errorf("initial position = %+v, want the first question of the first section", state.Position)
	}
	if state.IsTerminal() {
		t.Error("a fresh session is not terminal")
	}
}

func TestEngineHideOnAnswer(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q2", Condition{Kind: CondEquals, Value: "no"},
			Action{Kind: ActionHideQuestion, TargetQuestionID: "q3"}),
	}, nil)

	pos := Position{SectionID: "s1", QuestionID: "q2"}

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q2": "no"}, pos)
	if state.VisibleQuestions["q3"] {
		t.Error("q3 should be hidden when q2 = no")
	}

	state = eng.Evaluate(eng.InitialState(), ResponseSet{"q2": "yes"}, pos)
	if !state.VisibleQuestions["q3"] {
		t.Error("q3 should be visible when q2 = yes")
	}
}

func TestEngineDeterministic(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q1", Condition{Kind: CondBetween, Value: "18", Value2: "65"},
			Action{Kind: ActionShowQuestion, TargetQuestionID: "q4"}),
		activeRule("r2", 2, "q2", Condition{Kind: CondEquals, Value: "no"},
			Action{Kind: ActionHideQuestions, TargetQuestionIDs: []string{"q3", "q4"}}),
	}, nil)

	responses := ResponseSet{"q1": "30", "q2": "no"}
	pos := Position{SectionID: "s1", QuestionID: "q2"}

	first := eng.Evaluate(eng.InitialState(), responses, pos)
	for i := 0; i < 5; i++ {
		again := eng.Evaluate(eng.InitialState(), responses, pos)
		if !first.Equal(again) {
			t.Fatalf("identical inputs must produce identical states: %+v vs %+v", first, again)
		}
	}
}

func TestEngineIdempotentUnderAnswerReversion(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q2", Condition{Kind: CondEquals, Value: "no"},
			Action{Kind: ActionHideQuestion, TargetQuestionID: "q3"}),
	}, nil)

	pos := Position{SectionID: "s1", QuestionID: "q2"}

	withNo := eng.Evaluate(eng.InitialState(), ResponseSet{"q2": "no"}, pos)
	withYes := eng.Evaluate(withNo, ResponseSet{"q2": "yes"}, pos)
	backToNo := eng.Evaluate(withYes, ResponseSet{"q2": "no"}, pos)

	if !withNo.Equal(backToNo) {
		t.Errorf("reverting an answer must restore the earlier state: %+v vs %+v", withNo, backToNo)
	}
	if !withYes.VisibleQuestions["q3"] {
		t.Error("changing the answer away should undo the hide")
	}
}

func TestEngineTerminalIsAbsorbing(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q1", Condition{Kind: CondLessThan, Value: "18"},
			Action{Kind: ActionDisqualify, Message: "must be 18+"}),
	}, nil)

	pos := Position{SectionID: "s1", QuestionID: "q1"}

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q1": "15"}, pos)
	if state.Terminal.Kind != TerminalDisqualified {
		t.Fatalf("terminal kind = %q, want disqualified", state.Terminal.Kind)
	}

	// Changing the answer after disqualification must not resurrect the
	// session.
	after := eng.Evaluate(state, ResponseSet{"q1": "25"}, pos)
	if after.Terminal.Kind != TerminalDisqualified {
		t.Error("a terminal state is absorbing")
	}
	if !after.Equal(state) {
		t.Errorf("evaluation after termination must return the state unchanged: %+v vs %+v", state, after)
	}
}

func TestEngineDisqualifyScenario(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q1", Condition{Kind: CondLessThan, Value: "18"},
			Action{Kind: ActionDisqualify, Message: "must be 18+"}),
	}, nil)

	pos := Position{SectionID: "s1", QuestionID: "q1"}

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q1": float64(15)}, pos)
	if state.Terminal.Kind != TerminalDisqualified {
		t.Fatalf("a 15-year-old should be disqualified, got %q", state.Terminal.Kind)
	}
	if state.Terminal.Reason != "must be 18+" {
		t.Errorf("reason = %q, want the rule's message", state.Terminal.Reason)
	}

	state = eng.Evaluate(eng.InitialState(), ResponseSet{"q1": float64(25)}, pos)
	if state.IsTerminal() {
		t.Error("a 25-year-old should continue")
	}
}

func TestEngineConflictResolution(t *testing.T) {
	// Two rules fire on the same answer and target the same question with
	// opposite actions. The later rule in (order, id) sequence wins.
	eng := buildEngine(t, []*Rule{
		activeRule("r2", 2, "q2", Condition{Kind: CondEquals, Value: "yes"},
			Action{Kind: ActionHideQuestion, TargetQuestionID: "q5"}),
		activeRule("r1", 1, "q2", Condition{Kind: CondEquals, Value: "yes"},
			Action{Kind: ActionShowQuestion, TargetQuestionID: "q5"}),
	}, nil)

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q2": "yes"},
		Position{SectionID: "s1", QuestionID: "q2"})
	if state.VisibleQuestions["q5"] {
		t.Error("the later hide should override the earlier show")
	}
}

func TestEngineTerminalShortCircuitsThePass(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q1", Condition{Kind: CondLessThan, Value: "18"},
			Action{Kind: ActionHideQuestion, TargetQuestionID: "q4"}),
		activeRule("r2", 2, "q1", Condition{Kind: CondLessThan, Value: "18"},
			Action{Kind: ActionDisqualify}),
		activeRule("r3", 3, "q1", Condition{Kind: CondLessThan, Value: "18"},
			Action{Kind: ActionHideQuestion, TargetQuestionID: "q5"}),
	}, nil)

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q1": "15"},
		Position{SectionID: "s1", QuestionID: "q1"})

	if state.Terminal.Kind != TerminalDisqualified {
		t.Fatal("the session should be disqualified")
	}
	if state.VisibleQuestions["q4"] {
		t.Error("actions applied before termination stand")
	}
	if !state.VisibleQuestions["q5"] {
		t.Error("rules after the terminal action must not run")
	}
}

func TestEngineJumpToQuestionResolvesSection(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q2", Condition{Kind: CondEquals, Value: "no"},
			Action{Kind: ActionJumpToQuestion, TargetQuestionID: "q4"}),
	}, nil)

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q2": "no"},
		Position{SectionID: "s1", QuestionID: "q2"})

	want := Position{SectionID: "s2", QuestionID: "q4"}
	if state.Position != want {
		t.Errorf("position = %+v, want %+v", state.Position, want)
	}
}

func TestEngineJumpToSectionResolvesFirstQuestion(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q2", Condition{Kind: CondEquals, Value: "no"},
			Action{Kind: ActionJumpToSection, TargetSectionID: "s2"}),
	}, nil)

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q2": "no"},
		Position{SectionID: "s1", QuestionID: "q2"})

	want := Position{SectionID: "s2", QuestionID: "q4"}
	if state.Position != want {
		t.Errorf("position = %+v, want %+v", state.Position, want)
	}
}

func TestEngineGroupConditionedRule(t *testing.T) {
	g := &Group{
		ID:       "g1",
		SurveyID: "sv-1",
		Operator: GroupAnd,
		Children: []GroupChild{
			leaf("q1", Condition{Kind: CondGreaterThan, Value: "18"}),
			leaf("q2", Condition{Kind: CondEquals, Value: "yes"}),
		},
	}
	r := activeRule("r1", 1, "q1", Condition{}, Action{Kind: ActionShowQuestion, TargetQuestionID: "q4"})
	r.Condition = nil
	r.GroupID = "g1"
	hide := activeRule("r0", 0, "q1", Condition{Kind: CondGreaterThan, Value: "0"},
		Action{Kind: ActionHideQuestion, TargetQuestionID: "q4"})

	eng := buildEngine(t, []*Rule{hide, r}, []*Group{g})
	pos := Position{SectionID: "s1", QuestionID: "q2"}

	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q1": "30", "q2": "yes"}, pos)
	if !state.VisibleQuestions["q4"] {
		t.Error("q4 should be shown when both group branches hold")
	}

	state = eng.Evaluate(eng.InitialState(), ResponseSet{"q1": "30", "q2": "no"}, pos)
	if state.VisibleQuestions["q4"] {
		t.Error("q4 should stay hidden when one group branch fails")
	}
}

func TestEngineKeepsCallerPosition(t *testing.T) {
	eng := buildEngine(t, []*Rule{
		activeRule("r1", 1, "q2", Condition{Kind: CondEquals, Value: "no"},
			Action{Kind: ActionHideQuestion, TargetQuestionID: "q3"}),
	}, nil)

	pos := Position{SectionID: "s2", QuestionID: "q5"}
	state := eng.Evaluate(eng.InitialState(), ResponseSet{"q2": "no"}, pos)

	if state.Position != pos {
		t.Errorf("a pass with no jump rules keeps the caller's position, got %+v", state.Position)
	}
}

func TestNewEngineWithEmptySurvey(t *testing.T) {
	sv := &survey.Survey{ID: "sv-empty", Sections: []survey.Section{{ID: "s1", Title: "Empty"}}}
	snap, _ := Validate(sv, nil, nil)
	eng := NewEngine(sv, snap, nil)

	state := eng.InitialState()
	if state.Position.SectionID != "s1" || state.Position.QuestionID != "" {
		t.Errorf("empty section start position = %+v", state.Position)
	}
}
