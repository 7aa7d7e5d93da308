package flow

// groupEvaluator combines condition results under AND/OR, recursing through
// nested group references. Like the condition evaluator it is total: an empty
// group, an unknown operator, a dangling group reference, or a reference
// cycle all resolve to false. The validator rejects reference cycles up
// front; the seen set here just keeps a bad rule set from looping.
type groupEvaluator struct {
	conditions *conditionEvaluator
	groups     map[string]*Group
}

// Evaluate returns whether the group holds for the given responses.
// An empty children list is defined as non-satisfied so an unconfigured
// group can never fire.
func (ge *groupEvaluator) Evaluate(g *Group, responses ResponseSet) bool {
	return ge.eval(g, responses, make(map[string]bool))
}

func (ge *groupEvaluator) eval(g *Group, responses ResponseSet, seen map[string]bool) bool {
	if g == nil || len(g.Children) == 0 {
		return false
	}
	if g.ID != "" {
		if seen[g.ID] {
			return false
		}
		seen[g.ID] = true
		defer delete(seen, g.ID)
	}

	for _, child := range g.Children {
		v := ge.evalChild(child, responses, seen)
		switch g.Operator {
		case GroupAnd:
			if !v {
				return false
			}
		case GroupOr:
			if v {
				return true
			}
		default:
			return false
		}
	}

	// AND with every child true; OR with every child false.
	return g.Operator == GroupAnd
}

func (ge *groupEvaluator) evalChild(child GroupChild, responses ResponseSet, seen map[string]bool) bool {
	switch {
	case child.Rule != nil:
		return ge.evalRuleCondition(child.Rule, responses, seen)
	case child.GroupID != "":
		return ge.eval(ge.groups[child.GroupID], responses, seen)
	default:
		return false
	}
}

// evalRuleCondition evaluates a rule's condition node: its referenced group
// when it has one, otherwise its leaf condition against the response of its
// source question.
func (ge *groupEvaluator) evalRuleCondition(r *Rule, responses ResponseSet, seen map[string]bool) bool {
	if r.GroupID != "" {
		return ge.eval(ge.groups[r.GroupID], responses, seen)
	}
	if r.Condition == nil {
		return false
	}
	return ge.conditions.Evaluate(*r.Condition, responses[r.SourceQuestionID])
}
