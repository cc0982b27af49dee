// Package validate interprets a form template against a submitted
// payload: conditional field visibility, type coercion, and validation
// rule evaluation. Everything here is a pure function of its inputs,
// with no I/O and no shared state, so unrelated submissions validate
// concurrently with no coordination.
package validate

import (
	"strconv"
	"strings"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// IsActive reports whether a field participates in validation for this
// payload. Without a conditional rule the static visible flag decides.
// With one, the rule is evaluated against the raw payload values; a
// referenced field absent from the payload makes its comparison false,
// never an error.
func IsActive(f *models.FieldDefinition, values map[string]interface{}) bool {
	if f.Conditional == nil {
		return f.Visible
	}
	return evalConditional(f.Conditional, values)
}

// evalConditional short-circuits left to right. Evaluation has no side
// effects, so short-circuiting is only a performance choice.
func evalConditional(c *models.ConditionalRule, values map[string]interface{}) bool {
	if c.Combinator == "or" {
		for _, cond := range c.Conditions {
			if evalCondition(cond, values) {
				return true
			}
		}
		return false
	}
	// "and" (the only other combinator authoring allows)
	for _, cond := range c.Conditions {
		if !evalCondition(cond, values) {
			return false
		}
	}
	return true
}

func evalCondition(cond models.Condition, values map[string]interface{}) bool {
	actual, ok := values[cond.Field]
	if !ok || actual == nil {
		return false
	}
	return compare(cond.Operator, actual, cond.Value)
}

func compare(op string, actual, literal interface{}) bool {
	switch op {
	case "eq":
		return equals(actual, literal)
	case "neq":
		return !equals(actual, literal)
	case "gt", "gte", "lt", "lte":
		a, aok := toFloat(actual)
		b, bok := toFloat(literal)
		if !aok || !bok {
			return false
		}
		switch op {
		case "gt":
			return a > b
		case "gte":
			return a >= b
		case "lt":
			return a < b
		default:
			return a <= b
		}
	case "contains":
		want := asString(literal)
		if list, ok := toStringList(actual); ok {
			for _, item := range list {
				if item == want {
					return true
				}
			}
			return false
		}
		return strings.Contains(asString(actual), want)
	}
	return false
}

// equals compares numerically when both sides are numeric, so that
// {"value": 5} matches a submitted 5.0, and falls back to string
// comparison otherwise.
func equals(actual, literal interface{}) bool {
	if a, ok := toFloat(actual); ok {
		if b, ok := toFloat(literal); ok {
			return a == b
		}
	}
	return asString(actual) == asString(literal)
}

// toFloat converts JSON and BSON numeric shapes to float64. Strings are
// not coerced here: "5" as a conditional operand compares as a string.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return ""
}

// toStringList accepts []string and []interface{} of strings.
func toStringList(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
