package flow

import "testing"

func newGroupEvaluator(groups map[string]*Group) *groupEvaluator {
	return &groupEvaluator{
		conditions: newConditionEvaluator(nil),
		groups:     groups,
	}
}

func leaf(questionID string, cond Condition) GroupChild {
	return GroupChild{Rule: &Rule{
		ID:               "leaf-" + questionID,
		SourceQuestionID: questionID,
		Condition:        &cond,
	}}
}

func TestGroupEmptyIsFalse(t *testing.T) {
	ge := newGroupEvaluator(nil)

	if ge.Evaluate(&Group{Operator: GroupAnd}, ResponseSet{}) {
		t.Error("empty AND group should not be satisfied")
	}
	if ge.Evaluate(&Group{Operator: GroupOr}, ResponseSet{}) {
		t.Error("empty OR group should not be satisfied")
	}
	if ge.Evaluate(nil, ResponseSet{}) {
		t.Error("nil group should not be satisfied")
	}
}

func TestGroupAnd(t *testing.T) {
	g := &Group{
		Operator: GroupAnd,
		Children: []GroupChild{
			leaf("q1", Condition{Kind: CondEquals, Value: "yes"}),
			leaf("q2", Condition{Kind: CondGreaterThan, Value: "10"}),
		},
	}
	ge := newGroupEvaluator(nil)

	if !ge.Evaluate(g, ResponseSet{"q1": "yes", "q2": "15"}) {
		t.Error("AND with all children satisfied should hold")
	}
	if ge.Evaluate(g, ResponseSet{"q1": "yes", "q2": "5"}) {
		t.Error("AND with one child unsatisfied should not hold")
	}
	if ge.Evaluate(g, ResponseSet{"q1": "yes"}) {
		t.Error("AND with an unanswered child should not hold")
	}
}

func TestGroupOr(t *testing.T) {
	g := &Group{
		Operator: GroupOr,
		Children: []GroupChild{
			leaf("q1", Condition{Kind: CondEquals, Value: "yes"}),
			leaf("q2", Condition{Kind: CondGreaterThan, Value: "10"}),
		},
	}
	ge := newGroupEvaluator(nil)

	if !ge.Evaluate(g, ResponseSet{"q1": "no", "q2": "15"}) {
		t.Error("OR with one child satisfied should hold")
	}
	if ge.Evaluate(g, ResponseSet{"q1": "no", "q2": "5"}) {
		t.Error("OR with no children satisfied should not hold")
	}
}

func TestGroupNested(t *testing.T) {
	inner := &Group{
		ID:       "inner",
		Operator: GroupOr,
		Children: []GroupChild{
			leaf("q2", Condition{Kind: CondEquals, Value: "a"}),
			leaf("q3", Condition{Kind: CondEquals, Value: "b"}),
		},
	}
	outer := &Group{
		ID:       "outer",
		Operator: GroupAnd,
		Children: []GroupChild{
			leaf("q1", Condition{Kind: CondEquals, Value: "yes"}),
			{GroupID: "inner"},
		},
	}
	ge := newGroupEvaluator(map[string]*Group{"inner": inner, "outer": outer})

	if !ge.Evaluate(outer, ResponseSet{"q1": "yes", "q3": "b"}) {
		t.Error("nested group: AND(q1=yes, OR(q2=a, q3=b)) should hold")
	}
	if ge.Evaluate(outer, ResponseSet{"q1": "yes", "q3": "c"}) {
		t.Error("nested group should not hold when the inner OR fails")
	}
	if ge.Evaluate(outer, ResponseSet{"q1": "no", "q2": "a"}) {
		t.Error("nested group should not hold when the outer leaf fails")
	}
}

func TestGroupUnknownOperator(t *testing.T) {
	g := &Group{
		Operator: "XOR",
		Children: []GroupChild{
			leaf("q1", Condition{Kind: CondEquals, Value: "yes"}),
		},
	}
	ge := newGroupEvaluator(nil)

	if ge.Evaluate(g, ResponseSet{"q1": "yes"}) {
		t.Error("an unknown operator should not be satisfied")
	}
}

func TestGroupDanglingReference(t *testing.T) {
	g := &Group{
		Operator: GroupOr,
		Children: []GroupChild{{GroupID: "missing"}},
	}
	ge := newGroupEvaluator(map[string]*Group{})

	if ge.Evaluate(g, ResponseSet{"q1": "yes"}) {
		t.Error("a dangling group reference should resolve to false")
	}
}

func TestGroupReferenceCycleDoesNotLoop(t *testing.T) {
	// a -> b -> a. The validator rejects this configuration; evaluation
	// must still terminate if it is ever reached.
	a := &Group{ID: "a", Operator: GroupOr, Children: []GroupChild{{GroupID: "b"}}}
	b := &Group{ID: "b", Operator: GroupOr, Children: []GroupChild{{GroupID: "a"}}}
	ge := newGroupEvaluator(map[string]*Group{"a": a, "b": b})

	if ge.Evaluate(a, ResponseSet{}) {
		t.Error("a cyclic group reference should resolve to false")
	}
}

func TestRuleConditionViaGroup(t *testing.T) {
	g := &Group{
		ID:       "g1",
		Operator: GroupAnd,
		Children: []GroupChild{
			leaf("q1", Condition{Kind: CondEquals, Value: "yes"}),
			leaf("q2", Condition{Kind: CondEquals, Value: "no"}),
		},
	}
	ge := newGroupEvaluator(map[string]*Group{"g1": g})

	r := &Rule{ID: "r1", SourceQuestionID: "q1", GroupID: "g1"}
	if !ge.evalRuleCondition(r, ResponseSet{"q1": "yes", "q2": "no"}, map[string]bool{}) {
		t.Error("a rule referencing a satisfied group should fire")
	}
	if ge.evalRuleCondition(r, ResponseSet{"q1": "yes", "q2": "yes"}, map[string]bool{}) {
		t.Error("a rule referencing an unsatisfied group should not fire")
	}
}

func TestRuleConditionWithoutConditionOrGroup(t *testing.T) {
	ge := newGroupEvaluator(nil)

	if ge.evalRuleCondition(&Rule{ID: "r1", SourceQuestionID: "q1"}, ResponseSet{"q1": "x"}, map[string]bool{}) {
		t.Error("a rule with neither condition nor group should never fire")
	}
}
