package models

import (
	"time"
)

// Value is the normalized, typed form of one submitted field value.
// Exactly one payload member is meaningful, selected by Kind.
type Value struct {
	Kind  FieldType `json:"kind" bson:"kind"`
	Str   string    `json:"str,omitempty" bson:"str,omitempty"`
	Num   float64   `json:"num,omitempty" bson:"num,omitempty"`
	List  []string  `json:"list,omitempty" bson:"list,omitempty"`
	Time  time.Time `json:"time,omitempty" bson:"time,omitempty"`
	Files []FileRef `json:"files,omitempty" bson:"files,omitempty"`
}

// FileRef is an opaque reference to an uploaded file. Byte storage is an
// external concern; the validation engine only counts references.
type FileRef struct {
	FieldName string `json:"field_name" bson:"field_name"`
	Filename  string `json:"filename" bson:"filename"`
	Size      int64  `json:"size" bson:"size"`
	Token     string `json:"token" bson:"token"`
}

// Payload is a raw client submission: untyped values keyed by field
// name, the (possibly anonymous) submitter, and attached files.
type Payload struct {
	Values      map[string]interface{} `json:"form_data"`
	SubmittedBy string                 `json:"submitted_by,omitempty"`
	Files       []FileRef              `json:"files,omitempty"`
}

// FieldError is one validation failure, tied to a field and the rule
// kind that produced it.
type FieldError struct {
	Field   string   `json:"field"`
	Kind    RuleKind `json:"rule"`
	Message string   `json:"message"`
}

// ValidationResult is either an acceptance carrying the normalized
// payload, or a rejection carrying the complete ordered error list.
// Never both: Normalized is nil whenever Errors is non-empty.
type ValidationResult struct {
	Errors     []FieldError     `json:"errors,omitempty"`
	Normalized map[string]Value `json:"normalized,omitempty"`
}

// Accepted reports whether the submission passed validation.
func (r *ValidationResult) Accepted() bool { return len(r.Errors) == 0 }

// Submission is one accepted client submission of a form.
type Submission struct {
	ID          string           `json:"id" bson:"_id"`
	FormID      string           `json:"form_template" bson:"form_id"`
	FormName    string           `json:"form_template_name" bson:"form_name"`
	SubmittedBy string           `json:"submitted_by" bson:"submitted_by"`
	SubmittedAt time.Time        `json:"submitted_at" bson:"submitted_at"`
	Processed   bool             `json:"is_processed" bson:"is_processed"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	Data        map[string]Value `json:"form_data" bson:"form_data"`
	Files       []FileRef        `json:"files,omitempty" bson:"files,omitempty"`
}
