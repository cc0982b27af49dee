// Package schema validates form templates at authoring time. Everything
// rejected here is guaranteed never to reach the validation engine:
// duplicate field names, malformed rule operands, unknown types or
// operators, and conditional references that point forward or at
// missing fields.
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// Error is one authoring defect, tied to the field it was found on.
type Error struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

var combinators = map[string]bool{"and": true, "or": true}

var operators = map[string]bool{
	"eq": true, "neq": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
	"contains": true,
}

// Check validates a template definition. It accumulates all defects
// rather than stopping at the first, so authors get the full picture in
// one round trip.
func Check(t *models.FormTemplate) []Error {
	var errs []Error

	if t.Name == "" {
		errs = append(errs, Error{Message: "template name is required"})
	}
	if len(t.Fields) == 0 {
		errs = append(errs, Error{Message: "template has no fields"})
	}

	seen := make(map[string]bool, len(t.Fields))
	// Names of fields earlier in schema order; conditionals may only
	// reference these.
	earlier := make(map[string]bool, len(t.Fields))

	// Schema order is the Order value, not slice position: the engine
	// validates in Order, so "earlier" must mean the same thing here.
	fields := make([]*models.FieldDefinition, len(t.Fields))
	for i := range t.Fields {
		fields[i] = &t.Fields[i]
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})

	for i, f := range fields {
		if f.Name == "" {
			errs = append(errs, Error{Message: fmt.Sprintf("field at position %d has no name", i)})
			continue
		}
		if seen[f.Name] {
			errs = append(errs, Error{Field: f.Name, Message: "duplicate field name"})
		}
		seen[f.Name] = true

		if !models.KnownFieldType(f.Type) {
			errs = append(errs, Error{Field: f.Name, Message: fmt.Sprintf("unknown field type %q", f.Type)})
		}

		switch f.Type {
		case models.FieldDropdown, models.FieldCheckbox, models.FieldRadio:
			if len(f.Config.Options) == 0 {
				errs = append(errs, Error{Field: f.Name, Message: "select field has no options"})
			}
		case models.FieldFile:
			if f.Config.MaxFiles < 0 {
				errs = append(errs, Error{Field: f.Name, Message: "max_files must not be negative"})
			}
		}

		for _, r := range f.Rules {
			if msg := checkRule(f.Type, r); msg != "" {
				errs = append(errs, Error{Field: f.Name, Message: msg})
			}
		}

		if f.Conditional != nil {
			errs = append(errs, checkConditional(f.Name, f.Conditional, earlier)...)
		}

		earlier[f.Name] = true
	}

	return errs
}

// checkRule validates a rule's operand syntax and that the rule kind is
// applicable to the field type it is attached to: a min_value rule on a
// text field would be a silent no-op at validation time.
func checkRule(t models.FieldType, r models.ValidationRule) string {
	switch r.Kind {
	case models.RuleMinLength, models.RuleMaxLength:
		n, err := strconv.Atoi(r.Operand)
		if err != nil || n < 0 {
			return fmt.Sprintf("rule %s: operand %q is not a non-negative integer", r.Kind, r.Operand)
		}
		if t == models.FieldNumber {
			return fmt.Sprintf("rule %s does not apply to a number field", r.Kind)
		}
	case models.RuleMinValue, models.RuleMaxValue:
		if _, err := strconv.ParseFloat(r.Operand, 64); err != nil {
			return fmt.Sprintf("rule %s: operand %q is not a number", r.Kind, r.Operand)
		}
		if t != models.FieldNumber {
			return fmt.Sprintf("rule %s applies only to number fields", r.Kind)
		}
	case models.RulePattern:
		if _, err := regexp.Compile(r.Operand); err != nil {
			return fmt.Sprintf("rule pattern: operand does not compile: %v", err)
		}
		switch t {
		case models.FieldNumber, models.FieldCheckbox, models.FieldFile:
			return fmt.Sprintf("rule pattern does not apply to a %s field", t)
		}
	case models.RuleCustom:
		if r.Operand == "" {
			return "rule custom: operand (rule name) is empty"
		}
	default:
		return fmt.Sprintf("unknown rule kind %q", r.Kind)
	}
	return ""
}

// checkConditional enforces the forward-only dependency invariant: a
// conditional may reference only fields that occur earlier in schema
// order. This makes cyclic visibility dependencies unrepresentable.
func checkConditional(owner string, c *models.ConditionalRule, earlier map[string]bool) []Error {
	var errs []Error

	if !combinators[c.Combinator] {
		errs = append(errs, Error{Field: owner, Message: fmt.Sprintf("unknown combinator %q", c.Combinator)})
	}
	if len(c.Conditions) == 0 {
		errs = append(errs, Error{Field: owner, Message: "conditional rule has no conditions"})
	}
	for _, cond := range c.Conditions {
		if !operators[cond.Operator] {
			errs = append(errs, Error{Field: owner, Message: fmt.Sprintf("unknown operator %q", cond.Operator)})
		}
		if cond.Field == owner {
			errs = append(errs, Error{Field: owner, Message: "conditional rule references its own field"})
		} else if !earlier[cond.Field] {
			errs = append(errs, Error{Field: owner,
				Message: fmt.Sprintf("conditional rule references %q, which is not an earlier field", cond.Field)})
		}
	}
	return errs
}
