package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// CustomRule is a named business-rule hook. A nil return accepts the
// value; a non-nil error rejects it with the error text (unless the
// rule carries its own message).
type CustomRule func(v models.Value) error

// Engine applies a form template to submitted payloads. It holds only
// the custom-rule registry; Validate itself is a pure function of the
// template and payload.
type Engine struct {
	custom map[string]CustomRule
}

// NewEngine builds an engine with the given custom-rule registry. A nil
// map is fine; any rule referencing a custom hook then fails closed.
func NewEngine(custom map[string]CustomRule) *Engine {
	return &Engine{custom: custom}
}

// Validate checks a payload against a template and returns either an
// acceptance with the normalized payload or the complete ordered error
// list. Errors follow schema field order, then rule order within a
// field; one failing rule never suppresses later rules on the same
// field.
func (e *Engine) Validate(t *models.FormTemplate, p models.Payload) *models.ValidationResult {
	fields := orderedFields(t)
	normalized := make(map[string]models.Value, len(fields))
	var errs []models.FieldError

	for _, f := range fields {
		raw, present := lookup(f, p)

		if !IsActive(f, p.Values) {
			// Inactive fields are ignored entirely: a present value is
			// dropped from the normalized output (stale client-side
			// state), and required does not apply.
			continue
		}

		if !present {
			if f.Required {
				errs = append(errs, models.FieldError{
					Field:   f.Name,
					Kind:    models.RuleRequired,
					Message: fmt.Sprintf("%s is required", label(f)),
				})
			}
			continue
		}

		v, typeErr := coerce(f, raw, p.Files)
		if typeErr != "" {
			// Rules assume a coerced value, so a type failure skips
			// them for this field.
			errs = append(errs, models.FieldError{
				Field:   f.Name,
				Kind:    models.RuleType,
				Message: fmt.Sprintf("%s %s", label(f), typeErr),
			})
			continue
		}

		if f.Required && empty(v) {
			errs = append(errs, models.FieldError{
				Field:   f.Name,
				Kind:    models.RuleRequired,
				Message: fmt.Sprintf("%s is required", label(f)),
			})
			continue
		}

		errs = append(errs, e.applyRules(f, v)...)
		normalized[f.Name] = v
	}

	if len(errs) > 0 {
		return &models.ValidationResult{Errors: errs}
	}
	return &models.ValidationResult{Normalized: normalized}
}

// applyRules evaluates every active rule independently and accumulates
// each failure.
func (e *Engine) applyRules(f *models.FieldDefinition, v models.Value) []models.FieldError {
	var errs []models.FieldError
	for _, r := range f.Rules {
		if !r.Active {
			continue
		}
		if msg := e.applyRule(f, r, v); msg != "" {
			errs = append(errs, models.FieldError{Field: f.Name, Kind: r.Kind, Message: msg})
		}
	}
	return errs
}

// applyRule returns the failure message for a failing rule, or "".
// Operands were checked at authoring time, so parse failures here are
// treated as configuration defects and fail closed.
func (e *Engine) applyRule(f *models.FieldDefinition, r models.ValidationRule, v models.Value) string {
	switch r.Kind {
	case models.RuleMinLength:
		n, err := parseInt(r.Operand)
		if err != nil {
			return configDefect(f, r)
		}
		if length(v) < n {
			return message(r, fmt.Sprintf("%s must be at least %d characters", label(f), n))
		}

	case models.RuleMaxLength:
		n, err := parseInt(r.Operand)
		if err != nil {
			return configDefect(f, r)
		}
		if length(v) > n {
			return message(r, fmt.Sprintf("%s must be at most %d characters", label(f), n))
		}

	case models.RuleMinValue:
		bound, ok := toNumber(r.Operand)
		if !ok {
			return configDefect(f, r)
		}
		if v.Kind == models.FieldNumber && v.Num < bound {
			return message(r, fmt.Sprintf("%s must be at least %s", label(f), r.Operand))
		}

	case models.RuleMaxValue:
		bound, ok := toNumber(r.Operand)
		if !ok {
			return configDefect(f, r)
		}
		if v.Kind == models.FieldNumber && v.Num > bound {
			return message(r, fmt.Sprintf("%s must be at most %s", label(f), r.Operand))
		}

	case models.RulePattern:
		// Full-string match: the authored pattern is anchored.
		re, err := regexp.Compile("^(?:" + r.Operand + ")$")
		if err != nil {
			return configDefect(f, r)
		}
		if !re.MatchString(v.Str) {
			return message(r, fmt.Sprintf("%s has an invalid format", label(f)))
		}

	case models.RuleCustom:
		hook, ok := e.custom[r.Operand]
		if !ok {
			// Unresolved custom rule: reject rather than silently pass.
			return configDefect(f, r)
		}
		if err := hook(v); err != nil {
			return message(r, err.Error())
		}
	}
	return ""
}

// length is what min_length/max_length measure: string length, or
// element count for multi-selects and file references.
func length(v models.Value) int {
	switch v.Kind {
	case models.FieldCheckbox:
		return len(v.List)
	case models.FieldFile:
		return len(v.Files)
	default:
		return len(v.Str)
	}
}

func empty(v models.Value) bool {
	switch v.Kind {
	case models.FieldCheckbox:
		return len(v.List) == 0
	case models.FieldFile:
		return len(v.Files) == 0
	case models.FieldNumber:
		return false
	default:
		return v.Str == ""
	}
}

// lookup finds a field's raw value and whether it counts as present.
// File fields are also present when attachments target them.
func lookup(f *models.FieldDefinition, p models.Payload) (interface{}, bool) {
	raw, ok := p.Values[f.Name]
	if f.Type == models.FieldFile {
		for _, fr := range p.Files {
			if fr.FieldName == f.Name {
				return raw, true
			}
		}
	}
	if !ok || raw == nil {
		return nil, false
	}
	if s, isStr := raw.(string); isStr && s == "" {
		return nil, false
	}
	if list, isList := raw.([]interface{}); isList && len(list) == 0 {
		return nil, false
	}
	return raw, true
}

func orderedFields(t *models.FormTemplate) []*models.FieldDefinition {
	fields := make([]*models.FieldDefinition, len(t.Fields))
	for i := range t.Fields {
		fields[i] = &t.Fields[i]
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})
	return fields
}

func label(f *models.FieldDefinition) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func message(r models.ValidationRule, fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}

func configDefect(f *models.FieldDefinition, r models.ValidationRule) string {
	return fmt.Sprintf("%s has a misconfigured %s rule", label(f), r.Kind)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
