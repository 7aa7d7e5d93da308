package flow

import (
	"encoding/json"
	"fmt"
)

// The wire shape for a rule is:
//
//	{ id, sourceQuestionId, order, isActive,
//	  condition: { kind, value, value2? },
//	  action: { kind, targetQuestionId?, targetQuestionIds?, targetSectionId?, message? } }
//
// value2 is present only for between; exactly one of the action target fields
// is present, matching action.kind. Rules conditioned on a group carry
// conditionGroupId in place of condition. The struct tags on Rule, Condition,
// and Action produce this shape directly; the custom unmarshalling below only
// exists so authoring payloads may carry numeric or boolean operands, which
// are coerced to their canonical string form.

// UnmarshalJSON accepts string, number, or boolean operands and stores their
// string form, so a re-marshalled condition is canonical.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind   ConditionKind   `json:"kind"`
		Value  json.RawMessage `json:"value"`
		Value2 json.RawMessage `json:"value2"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Kind = raw.Kind

	var err error
	if c.Value, err = scalarString(raw.Value); err != nil {
		return fmt.Errorf("condition value: %w", err)
	}
	if c.Value2, err = scalarString(raw.Value2); err != nil {
		return fmt.Errorf("condition value2: %w", err)
	}
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	// Numbers keep their literal form so 10.50 round-trips as written.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true", nil
		}
		return "false", nil
	}

	return "", fmt.Errorf("operand must be a string, number, or boolean, got %s", raw)
}

// ParseRule decodes one rule from its wire shape.
func ParseRule(data []byte) (*Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rule: %w", err)
	}
	return &r, nil
}

// ParseGroup decodes one group from its wire shape.
func ParseGroup(data []byte) (*Group, error) {
	var g Group
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse group: %w", err)
	}
	return &g, nil
}
