package flow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/formloop/surveyflow/survey"
)

// ValidationErrorKind classifies what is wrong with a rule set.
type ValidationErrorKind string

const (
	// ErrMalformedRule marks a rule whose condition/action pair is
	// structurally invalid (unknown kind, missing operand, wrong target).
	ErrMalformedRule ValidationErrorKind = "malformedRule"

	// ErrOrphanedTarget marks a rule referencing a question or section id
	// that is not present in the survey.
	ErrOrphanedTarget ValidationErrorKind = "orphanedTarget"

	// ErrCircularFlow marks rules whose jump targets form a cycle, or a
	// group that contains itself directly or transitively.
	ErrCircularFlow ValidationErrorKind = "circularFlow"
)

// ValidationError describes one problem found by Validate. Findings are
// values rather than Go errors: they are reported as a list to the authoring
// caller and the affected rules are excluded from evaluation; the survey as a
// whole is never blocked.
type ValidationError struct {
	Kind        ValidationErrorKind `json:"kind"`
	RuleID      string              `json:"ruleId,omitempty"`
	Message     string              `json:"message"`
	InvolvedIDs []string            `json:"involvedIds,omitempty"`
}

func (e ValidationError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("%s: rule %s: %s", e.Kind, e.RuleID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Snapshot is a validated, ordered rule set for one survey. It is built once
// (at authoring-save time and again before an evaluation session starts) and
// is immutable afterwards: live sessions keep the snapshot they loaded even
// if an administrator edits rules mid-session.
type Snapshot struct {
	SurveyID string
	// Rules holds the active, structurally valid rules in ascending
	// (Order, ID) sequence. Invalid rules are excluded, not fatal.
	Rules  []*Rule
	Groups map[string]*Group
	Errors []ValidationError
}

// IsValid reports whether validation found no problems.
func (s *Snapshot) IsValid() bool {
	return len(s.Errors) == 0
}

// Validate orders the rule set, statically verifies it against the survey's
// metadata, and returns the evaluation snapshot along with every problem
// found. Rules flagged malformed, orphaned, or circular are excluded from the
// snapshot's rule list; well-formed rules are unaffected.
func Validate(s *survey.Survey, rules []*Rule, groups []*Group) (*Snapshot, []ValidationError) {
	snap := &Snapshot{
		SurveyID: s.ID,
		Groups:   make(map[string]*Group, len(groups)),
	}
	for _, g := range groups {
		snap.Groups[g.ID] = g
	}

	questions := make(map[string]bool)
	for _, id := range s.QuestionIDs() {
		questions[id] = true
	}
	sections := make(map[string]bool)
	for _, id := range s.SectionIDs() {
		sections[id] = true
	}

	ordered := orderRules(rules)

	// Groups that contain themselves poison every rule referencing them.
	cyclicGroups := findGroupCycles(snap.Groups, &snap.Errors)

	excluded := make(map[string]bool)
	for _, r := range ordered {
		if err := checkShape(r, snap.Groups, cyclicGroups); err != nil {
			snap.Errors = append(snap.Errors, *err)
			excluded[r.ID] = true
			continue
		}
		if err := checkTargets(r, questions, sections); err != nil {
			snap.Errors = append(snap.Errors, *err)
			excluded[r.ID] = true
		}
	}

	// Jump cycle detection runs over the rules that survived the structural
	// checks; rules on a cycle are excluded as well.
	for _, id := range findJumpCycles(s, ordered, excluded, &snap.Errors) {
		excluded[id] = true
	}

	for _, r := range ordered {
		if !excluded[r.ID] && r.IsActive {
			snap.Rules = append(snap.Rules, r)
		}
	}

	return snap, snap.Errors
}

// orderRules sorts ascending by (Order, ID); ID breaks ties so evaluation
// sequence is deterministic for equal orders.
func orderRules(rules []*Rule) []*Rule {
	out := make([]*Rule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// checkShape verifies the rule's condition/action pair is structurally sound.
func checkShape(r *Rule, groups map[string]*Group, cyclicGroups map[string]bool) *ValidationError {
	malformed := func(format string, args ...any) *ValidationError {
		return &ValidationError{
			Kind:    ErrMalformedRule,
			RuleID:  r.ID,
			Message: fmt.Sprintf(format, args...),
		}
	}

	// Condition node: exactly one of leaf condition or group reference.
	switch {
	case r.Condition == nil && r.GroupID == "":
		return malformed("rule has neither a condition nor a condition group")
	case r.Condition != nil && r.GroupID != "":
		return malformed("rule has both a condition and a condition group")
	case r.GroupID != "":
		if _, ok := groups[r.GroupID]; !ok {
			return malformed("condition group %s does not exist", r.GroupID)
		}
		if cyclicGroups[r.GroupID] {
			return &ValidationError{
				Kind:        ErrCircularFlow,
				RuleID:      r.ID,
				Message:     fmt.Sprintf("condition group %s contains itself", r.GroupID),
				InvolvedIDs: []string{r.GroupID},
			}
		}
	default:
		switch r.Condition.Kind {
		case CondEquals, CondNotEquals, CondGreaterThan, CondLessThan,
			CondContains, CondInList:
		case CondRegexMatch:
			if _, err := regexp.Compile(r.Condition.Value); err != nil {
				return malformed("regexMatch pattern does not compile: %v", err)
			}
		case CondBetween:
			if r.Condition.Value == "" || r.Condition.Value2 == "" {
				return malformed("between condition requires both operands")
			}
		default:
			return malformed("unknown condition kind %q", r.Condition.Kind)
		}
	}

	// Action: the target its kind requires, and no foreign targets.
	a := r.Action
	switch a.Kind {
	case ActionShowQuestion, ActionHideQuestion, ActionJumpToQuestion:
		if a.TargetQuestionID == "" {
			return malformed("%s action requires a target question id", a.Kind)
		}
		if len(a.TargetQuestionIDs) > 0 || a.TargetSectionID != "" {
			return malformed("%s action carries a target of the wrong type", a.Kind)
		}
	case ActionShowQuestions, ActionHideQuestions:
		if len(a.TargetQuestionIDs) == 0 {
			return malformed("%s action requires at least one target question id", a.Kind)
		}
		if a.TargetQuestionID != "" || a.TargetSectionID != "" {
			return malformed("%s action carries a target of the wrong type", a.Kind)
		}
	case ActionJumpToSection:
		if a.TargetSectionID == "" {
			return malformed("jumpToSection action requires a target section id")
		}
		if a.TargetQuestionID != "" || len(a.TargetQuestionIDs) > 0 {
			return malformed("jumpToSection action carries a target of the wrong type")
		}
	case ActionEndSurvey, ActionDisqualify:
		if a.TargetQuestionID != "" || len(a.TargetQuestionIDs) > 0 || a.TargetSectionID != "" {
			return malformed("%s action carries a target it does not use", a.Kind)
		}
	default:
		return malformed("unknown action kind %q", a.Kind)
	}

	return nil
}

// checkTargets verifies every question/section id the rule references exists
// in the survey's metadata.
func checkTargets(r *Rule, questions, sections map[string]bool) *ValidationError {
	orphaned := func(ids []string, format string, args ...any) *ValidationError {
		return &ValidationError{
			Kind:        ErrOrphanedTarget,
			RuleID:      r.ID,
			Message:     fmt.Sprintf(format, args...),
			InvolvedIDs: ids,
		}
	}

	if r.SourceQuestionID != "" && !questions[r.SourceQuestionID] {
		return orphaned([]string{r.SourceQuestionID},
			"source question %s does not exist", r.SourceQuestionID)
	}

	a := r.Action
	switch a.Kind {
	case ActionShowQuestion, ActionHideQuestion, ActionJumpToQuestion:
		if !questions[a.TargetQuestionID] {
			return orphaned([]string{a.TargetQuestionID},
				"target question %s does not exist", a.TargetQuestionID)
		}
	case ActionShowQuestions, ActionHideQuestions:
		var missing []string
		for _, id := range a.TargetQuestionIDs {
			if !questions[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return orphaned(missing, "target questions do not exist: %s", strings.Join(missing, ", "))
		}
	case ActionJumpToSection:
		if !sections[a.TargetSectionID] {
			return orphaned([]string{a.TargetSectionID},
				"target section %s does not exist", a.TargetSectionID)
		}
	}

	return nil
}

// findGroupCycles walks group references depth-first and reports every group
// that contains itself, directly or transitively.
func findGroupCycles(groups map[string]*Group, errs *[]ValidationError) map[string]bool {
	cyclic := make(map[string]bool)

	var ids []string
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	state := make(map[string]int) // 0 unvisited, 1 on stack, 2 done
	var visit func(id string) bool
	visit = func(id string) bool {
		g, ok := groups[id]
		if !ok {
			return false
		}
		if state[id] == 1 {
			return true
		}
		if state[id] == 2 {
			return cyclic[id]
		}
		state[id] = 1
		found := false
		for _, child := range g.Children {
			ref := child.GroupID
			if ref == "" && child.Rule != nil {
				ref = child.Rule.GroupID
			}
			if ref != "" && visit(ref) {
				found = true
			}
		}
		state[id] = 2
		if found {
			cyclic[id] = true
		}
		return found
	}

	for _, id := range ids {
		if visit(id) && cyclic[id] {
			*errs = append(*errs, ValidationError{
				Kind:        ErrCircularFlow,
				Message:     fmt.Sprintf("group %s contains itself directly or transitively", id),
				InvolvedIDs: []string{id},
			})
		}
	}

	return cyclic
}

// findJumpCycles builds the jump graph (source question → jump target) and
// detects cycles via depth-first traversal with a recursion-stack set.
// Returns the ids of every rule on a cycle.
func findJumpCycles(s *survey.Survey, rules []*Rule, excluded map[string]bool, errs *[]ValidationError) []string {
	type edge struct {
		target string
		ruleID string
	}

	adj := make(map[string][]edge)
	for _, r := range rules {
		if excluded[r.ID] || r.SourceQuestionID == "" {
			continue
		}
		var target string
		switch r.Action.Kind {
		case ActionJumpToQuestion:
			target = r.Action.TargetQuestionID
		case ActionJumpToSection:
			target = s.FirstQuestion(r.Action.TargetSectionID)
		default:
			continue
		}
		if target == "" {
			continue
		}
		adj[r.SourceQuestionID] = append(adj[r.SourceQuestionID], edge{target: target, ruleID: r.ID})
	}

	var nodes []string
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var badRules []string
	reported := make(map[string]bool)

	state := make(map[string]int) // 0 unvisited, 1 on stack, 2 done
	var stack []string
	var stackRules []string

	var visit func(node string)
	visit = func(node string) {
		state[node] = 1
		stack = append(stack, node)
		for _, e := range adj[node] {
			switch state[e.target] {
			case 0:
				stackRules = append(stackRules, e.ruleID)
				visit(e.target)
				stackRules = stackRules[:len(stackRules)-1]
			case 1:
				// Back edge: the cycle is the stack segment from the
				// target onward, plus this closing edge.
				start := 0
				for i, n := range stack {
					if n == e.target {
						start = i
						break
					}
				}
				involved := append([]string{}, stack[start:]...)
				ruleIDs := append([]string{}, stackRules[start:]...)
				ruleIDs = append(ruleIDs, e.ruleID)
				sort.Strings(ruleIDs)

				key := strings.Join(ruleIDs, ",")
				if !reported[key] {
					reported[key] = true
					*errs = append(*errs, ValidationError{
						Kind: ErrCircularFlow,
						Message: fmt.Sprintf("jump rules %s form a cycle through questions %s",
							strings.Join(ruleIDs, ", "), strings.Join(involved, " -> ")),
						InvolvedIDs: append(involved, ruleIDs...),
					})
					badRules = append(badRules, ruleIDs...)
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = 2
	}

	for _, n := range nodes {
		if state[n] == 0 {
			visit(n)
		}
	}

	return badRules
}
