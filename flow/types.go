package flow

import "time"

// ConditionKind identifies how a condition compares the operand against
// the participant's response.
type ConditionKind string

const (
	CondEquals      ConditionKind = "equals"
	CondNotEquals   ConditionKind = "notEquals"
	CondGreaterThan ConditionKind = "greaterThan"
	CondLessThan    ConditionKind = "lessThan"
	CondBetween     ConditionKind = "between"
	CondContains    ConditionKind = "contains"
	CondInList      ConditionKind = "inList"
	CondRegexMatch  ConditionKind = "regexMatch"
)

// Condition is a single comparison against the response of a rule's source
// question. Value2 is only meaningful for between, which carries both bounds.
type Condition struct {
	Kind   ConditionKind `json:"kind"`
	Value  string        `json:"value"`
	Value2 string        `json:"value2,omitempty"`
}

// ActionKind identifies what a rule does to the flow when its condition holds.
type ActionKind string

const (
	ActionShowQuestion   ActionKind = "showQuestion"
	ActionHideQuestion   ActionKind = "hideQuestion"
	ActionShowQuestions  ActionKind = "showQuestions"
	ActionHideQuestions  ActionKind = "hideQuestions"
	ActionJumpToSection  ActionKind = "jumpToSection"
	ActionJumpToQuestion ActionKind = "jumpToQuestion"
	ActionEndSurvey      ActionKind = "endSurvey"
	ActionDisqualify     ActionKind = "disqualify"
)

// Action carries exactly one target, matching its kind: a question id for the
// single show/hide and jump variants, a question id set for the plural
// variants, a section id for section jumps, or a message for disqualify.
type Action struct {
	Kind              ActionKind `json:"kind"`
	TargetQuestionID  string     `json:"targetQuestionId,omitempty"`
	TargetQuestionIDs []string   `json:"targetQuestionIds,omitempty"`
	TargetSectionID   string     `json:"targetSectionId,omitempty"`
	Message           string     `json:"message,omitempty"`
}

// Rule maps one condition to one action. Rules are evaluated in ascending
// (Order, ID) sequence; inactive rules are skipped entirely.
//
// A rule's condition is either a leaf Condition or a reference to a Group
// (GroupID), never both. SourceQuestionID names the question whose response
// feeds a leaf condition; it is empty for group-conditioned and section-level
// rules.
type Rule struct {
	ID               string     `json:"id"`
	SurveyID         string     `json:"-"`
	SourceQuestionID string     `json:"sourceQuestionId,omitempty"`
	Order            int        `json:"order"`
	IsActive         bool       `json:"isActive"`
	Condition        *Condition `json:"condition,omitempty"`
	GroupID          string     `json:"conditionGroupId,omitempty"`
	CreatedAt        time.Time  `json:"-"`
	UpdatedAt        time.Time  `json:"-"`

	Action Action `json:"action"`
}

// GroupOperator combines the results of a group's children.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// GroupChild is one member of a group: either an inline rule (whose condition
// contributes a boolean) or a nested group reference. Exactly one field is set.
type GroupChild struct {
	Rule    *Rule  `json:"rule,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

// Group composes rule conditions under AND/OR and is used as a single
// condition node wherever a rule's leaf condition would be. Nesting is
// unbounded; the validator rejects a group that contains itself, directly
// or transitively.
type Group struct {
	ID       string        `json:"id"`
	SurveyID string        `json:"-"`
	Operator GroupOperator `json:"operator"`
	Children []GroupChild  `json:"children"`
}

// Position is the participant's current (section, question) pointer.
type Position struct {
	SectionID  string `json:"sectionId"`
	QuestionID string `json:"questionId"`
}

// ResponseSet maps question ids to the participant's current answers.
// Values are scalars (string, float64, bool), lists ([]string or []any for
// multi-choice), or nested maps for matrix questions. The engine treats the
// set as read-only input.
type ResponseSet map[string]any
