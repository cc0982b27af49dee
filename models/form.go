package models

import (
	"time"
)

// FieldType enumerates the supported field types. The set is closed:
// coercion in the validation engine switches exhaustively over it.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "datetime"
	FieldDropdown FieldType = "dropdown"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
	FieldTextArea FieldType = "textarea"
	FieldFile     FieldType = "file"
	FieldPhone    FieldType = "phone"
)

// KnownFieldType reports whether t is one of the supported field types.
func KnownFieldType(t FieldType) bool {
	switch t {
	case FieldText, FieldEmail, FieldNumber, FieldDate, FieldDateTime,
		FieldDropdown, FieldCheckbox, FieldRadio, FieldTextArea,
		FieldFile, FieldPhone:
		return true
	}
	return false
}

// RuleKind enumerates the validation rule kinds.
type RuleKind string

const (
	RuleMinLength RuleKind = "min_length"
	RuleMaxLength RuleKind = "max_length"
	RuleMinValue  RuleKind = "min_value"
	RuleMaxValue  RuleKind = "max_value"
	RulePattern   RuleKind = "pattern"
	RuleCustom    RuleKind = "custom"

	// Pseudo-kinds used in field errors for failures that precede rule
	// evaluation.
	RuleRequired RuleKind = "required"
	RuleType     RuleKind = "type"
)

// ValidationRule is one per-field constraint. Operand is a string whose
// syntax depends on Kind (numeric literal, regex source, or a custom
// rule name); it is checked at schema-authoring time, so the validation
// engine may assume it is well formed.
type ValidationRule struct {
	Kind    RuleKind `json:"rule_type" bson:"rule_type"`
	Operand string   `json:"rule_value" bson:"rule_value"`
	Message string   `json:"error_message,omitempty" bson:"error_message,omitempty"`
	Active  bool     `json:"is_active" bson:"is_active"`
}

// ConditionalRule decides whether its owning field is active for a
// given payload. Conditions combine with a single combinator and may
// reference only fields earlier in schema order.
type ConditionalRule struct {
	Combinator string      `json:"combinator" bson:"combinator"` // "and" | "or"
	Conditions []Condition `json:"conditions" bson:"conditions"`
}

// Condition is one comparison against another field's submitted value.
type Condition struct {
	Field    string      `json:"field" bson:"field"`
	Operator string      `json:"operator" bson:"operator"` // eq neq gt gte lt lte contains
	Value    interface{} `json:"value" bson:"value"`
}

// FieldConfig holds type-specific parameters.
type FieldConfig struct {
	Options  []string `json:"options,omitempty" bson:"options,omitempty"`
	MaxFiles int      `json:"max_files,omitempty" bson:"max_files,omitempty"`
}

// FieldDefinition describes one field of a form template.
type FieldDefinition struct {
	Name        string           `json:"field_name" bson:"field_name"`
	Type        FieldType        `json:"field_type" bson:"field_type"`
	Label       string           `json:"label,omitempty" bson:"label,omitempty"`
	Placeholder string           `json:"placeholder,omitempty" bson:"placeholder,omitempty"`
	HelpText    string           `json:"help_text,omitempty" bson:"help_text,omitempty"`
	Required    bool             `json:"is_required" bson:"is_required"`
	Visible     bool             `json:"is_visible" bson:"is_visible"`
	Order       int              `json:"order" bson:"order"`
	Config      FieldConfig      `json:"configuration,omitempty" bson:"configuration,omitempty"`
	Conditional *ConditionalRule `json:"conditional_logic,omitempty" bson:"conditional_logic,omitempty"`
	Rules       []ValidationRule `json:"validation_rules,omitempty" bson:"validation_rules,omitempty"`
}

// FormTemplate is the admin-authored form schema. Once any submission
// references a template it is treated as immutable by the validation
// path: submissions always validate against the snapshot loaded at
// submit time.
type FormTemplate struct {
	ID          string            `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string            `json:"name" bson:"name"`
	Description string            `json:"description,omitempty" bson:"description,omitempty"`
	Active      bool              `json:"is_active" bson:"is_active"`
	Creator     string            `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	Fields      []FieldDefinition `json:"fields" bson:"fields"`
}

// Field returns the definition with the given name, or nil.
func (t *FormTemplate) Field(name string) *FieldDefinition {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}
