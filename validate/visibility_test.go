package validate

import (
	"testing"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

func condField(combinator string, conds ...models.Condition) *models.FieldDefinition {
	return &models.FieldDefinition{
		Name: "target", Type: models.FieldText, Visible: true,
		Conditional: &models.ConditionalRule{Combinator: combinator, Conditions: conds},
	}
}

func TestStaticVisibility(t *testing.T) {
	visible := &models.FieldDefinition{Name: "a", Visible: true}
	hidden := &models.FieldDefinition{Name: "b", Visible: false}
	values := map[string]interface{}{"a": "x"}

	if !IsActive(visible, values) {
		t.Error("field without conditional should follow visible=true")
	}
	if IsActive(hidden, values) {
		t.Error("field without conditional should follow visible=false")
	}
}

func TestConditionOperators(t *testing.T) {
	cases := []struct {
		name   string
		cond   models.Condition
		values map[string]interface{}
		want   bool
	}{
		{"eq string match", models.Condition{Field: "country", Operator: "eq", Value: "US"},
			map[string]interface{}{"country": "US"}, true},
		{"eq string mismatch", models.Condition{Field: "country", Operator: "eq", Value: "US"},
			map[string]interface{}{"country": "CA"}, false},
		{"eq numeric across shapes", models.Condition{Field: "n", Operator: "eq", Value: 5},
			map[string]interface{}{"n": 5.0}, true},
		{"neq", models.Condition{Field: "country", Operator: "neq", Value: "US"},
			map[string]interface{}{"country": "CA"}, true},
		{"gt", models.Condition{Field: "amount", Operator: "gt", Value: 100},
			map[string]interface{}{"amount": 150.0}, true},
		{"gte boundary", models.Condition{Field: "amount", Operator: "gte", Value: 100},
			map[string]interface{}{"amount": 100.0}, true},
		{"lt false", models.Condition{Field: "amount", Operator: "lt", Value: 100},
			map[string]interface{}{"amount": 150.0}, false},
		{"lte", models.Condition{Field: "amount", Operator: "lte", Value: 100},
			map[string]interface{}{"amount": 99.0}, true},
		{"gt non-numeric is false", models.Condition{Field: "amount", Operator: "gt", Value: 100},
			map[string]interface{}{"amount": "many"}, false},
		{"contains substring", models.Condition{Field: "note", Operator: "contains", Value: "urgent"},
			map[string]interface{}{"note": "very urgent request"}, true},
		{"contains list element", models.Condition{Field: "topics", Operator: "contains", Value: "tax"},
			map[string]interface{}{"topics": []interface{}{"tax", "audit"}}, true},
		{"contains missing element", models.Condition{Field: "topics", Operator: "contains", Value: "vat"},
			map[string]interface{}{"topics": []interface{}{"tax"}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := condField("and", tc.cond)
			if got := IsActive(f, tc.values); got != tc.want {
				t.Errorf("IsActive = %v, want %v", got, tc.want)
			}
		})
	}
}

// A referenced field absent from the payload makes its comparison
// false, never an error. That holds for neq too.
func TestMissingReferencedField(t *testing.T) {
	eq := condField("and", models.Condition{Field: "country", Operator: "eq", Value: "US"})
	neq := condField("and", models.Condition{Field: "country", Operator: "neq", Value: "US"})
	empty := map[string]interface{}{}

	if IsActive(eq, empty) {
		t.Error("eq against a missing field must be false")
	}
	if IsActive(neq, empty) {
		t.Error("neq against a missing field must be false")
	}
}

func TestCombinators(t *testing.T) {
	values := map[string]interface{}{"a": "1", "b": "2"}
	matchA := models.Condition{Field: "a", Operator: "eq", Value: "1"}
	missB := models.Condition{Field: "b", Operator: "eq", Value: "other"}

	if IsActive(condField("and", matchA, missB), values) {
		t.Error("and with one false condition must be false")
	}
	if !IsActive(condField("and", matchA, matchA), values) {
		t.Error("and with all true conditions must be true")
	}
	if !IsActive(condField("or", missB, matchA), values) {
		t.Error("or with one true condition must be true")
	}
	if IsActive(condField("or", missB, missB), values) {
		t.Error("or with no true condition must be false")
	}
}
