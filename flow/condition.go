package flow

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// conditionEvaluator resolves a single condition against a response value.
// Evaluation is total: inputs that cannot be compared resolve to false, they
// never panic or return an error. A missing response always yields false so a
// rule cannot fire on an unanswered question.
//
// Compiled regular expressions are cached per operand. An operand that fails
// to compile is a configuration problem, not a runtime fault: it is logged as
// a warning on first encounter, remembered, and resolves to false on every
// evaluation. Other degradations (non-numeric inputs in ordered comparisons)
// are ordinary participant input and log at debug only.
type conditionEvaluator struct {
	logger *slog.Logger

	mu       sync.Mutex
	regexes  map[string]*regexp.Regexp
	badRegex map[string]bool
}

func newConditionEvaluator(logger *slog.Logger) *conditionEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &conditionEvaluator{
		logger:   logger,
		regexes:  make(map[string]*regexp.Regexp),
		badRegex: make(map[string]bool),
	}
}

// Evaluate returns whether the condition holds for the given response value.
// A nil response (unanswered question) is always false.
func (ce *conditionEvaluator) Evaluate(cond Condition, response any) bool {
	if response == nil {
		return false
	}

	switch cond.Kind {
	case CondEquals:
		return strings.EqualFold(responseString(response), cond.Value)

	case CondNotEquals:
		return !strings.EqualFold(responseString(response), cond.Value)

	case CondGreaterThan:
		rv, ok1 := responseNumber(response)
		ov, ok2 := parseNumber(cond.Value)
		if !ok1 || !ok2 {
			ce.debugNonNumeric(cond, response)
			return false
		}
		return rv > ov

	case CondLessThan:
		rv, ok1 := responseNumber(response)
		ov, ok2 := parseNumber(cond.Value)
		if !ok1 || !ok2 {
			ce.debugNonNumeric(cond, response)
			return false
		}
		return rv < ov

	case CondBetween:
		rv, ok := responseNumber(response)
		low, ok1 := parseNumber(cond.Value)
		high, ok2 := parseNumber(cond.Value2)
		if !ok || !ok1 || !ok2 {
			ce.debugNonNumeric(cond, response)
			return false
		}
		// Inclusive on both bounds.
		return low <= rv && rv <= high

	case CondContains:
		return strings.Contains(
			strings.ToLower(responseString(response)),
			strings.ToLower(cond.Value),
		)

	case CondInList:
		return inList(cond.Value, response)

	case CondRegexMatch:
		re := ce.compile(cond.Value)
		if re == nil {
			return false
		}
		return re.MatchString(responseString(response))

	default:
		return false
	}
}

// compile returns the cached pattern for the operand, or nil if the operand
// does not compile. A compile failure is warned once per pattern.
func (ce *conditionEvaluator) compile(pattern string) *regexp.Regexp {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	if re, ok := ce.regexes[pattern]; ok {
		return re
	}
	if ce.badRegex[pattern] {
		return nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		ce.badRegex[pattern] = true
		ce.logger.Warn("regexMatch operand does not compile, condition will never fire",
			"pattern", pattern,
			"error", err.Error())
		return nil
	}
	ce.regexes[pattern] = re
	return re
}

// debugNonNumeric records an ordered comparison degrading to false on input
// that does not parse as a number.
func (ce *conditionEvaluator) debugNonNumeric(cond Condition, response any) {
	ce.logger.Debug("non-numeric input in ordered comparison",
		"kind", string(cond.Kind),
		"operand", cond.Value,
		"response", responseString(response))
}

// inList splits the operand on commas, trims and lowercases each entry, and
// tests membership. A list-valued response matches when any of its elements
// is in the operand list.
func inList(operand string, response any) bool {
	entries := strings.Split(operand, ",")
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = true
		}
	}

	for _, v := range responseValues(response) {
		if set[strings.ToLower(strings.TrimSpace(v))] {
			return true
		}
	}
	return false
}

// responseValues flattens a response into its element strings: one entry for
// scalars, one per element for list answers.
func responseValues(response any) []string {
	switch v := response.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, responseString(e))
		}
		return out
	default:
		return []string{responseString(response)}
	}
}

// responseString coerces a response value to its string form. Numeric answers
// use their shortest decimal representation so "18" and 18 compare equal.
func responseString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, ",")
	case []any:
		return strings.Join(responseValues(t), ",")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// responseNumber coerces a response value to a float64 for ordered
// comparisons. Free-text answers parse leniently (surrounding whitespace is
// ignored); anything non-numeric reports false.
func responseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		return parseNumber(t)
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
