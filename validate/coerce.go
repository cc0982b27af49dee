package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

const dateLayout = "2006-01-02"

// Accepted datetime layouts, tried in order.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ().\-]{2,}$`)

// coerce converts a raw submitted value into the field's declared typed
// value. The switch over field types is exhaustive: adding a type
// without a coercion arm fails here with a config error rather than
// passing garbage downstream.
func coerce(f *models.FieldDefinition, raw interface{}, files []models.FileRef) (models.Value, string) {
	switch f.Type {
	case models.FieldText, models.FieldTextArea:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, "must be text"
		}
		return models.Value{Kind: f.Type, Str: s}, ""

	case models.FieldEmail:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, "must be text"
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return models.Value{}, "is not a valid email address"
		}
		return models.Value{Kind: f.Type, Str: s}, ""

	case models.FieldPhone:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, "must be text"
		}
		if !phoneRe.MatchString(s) {
			return models.Value{}, "is not a valid phone number"
		}
		return models.Value{Kind: f.Type, Str: s}, ""

	case models.FieldNumber:
		n, ok := toNumber(raw)
		if !ok {
			return models.Value{}, "must be a number"
		}
		return models.Value{Kind: f.Type, Num: n}, ""

	case models.FieldDate:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, "must be a date"
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return models.Value{}, "is not a valid date (expected YYYY-MM-DD)"
		}
		return models.Value{Kind: f.Type, Str: s, Time: t}, ""

	case models.FieldDateTime:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, "must be a datetime"
		}
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return models.Value{Kind: f.Type, Str: s, Time: t}, ""
			}
		}
		return models.Value{}, "is not a valid datetime"

	case models.FieldDropdown, models.FieldRadio:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, "must be text"
		}
		if !validOption(s, f.Config.Options) {
			return models.Value{}, fmt.Sprintf("value %q is not a valid option", s)
		}
		return models.Value{Kind: f.Type, Str: s}, ""

	case models.FieldCheckbox:
		// A bare string is tolerated as a one-element selection; HTML
		// form encoders produce that shape for a single checked box.
		var list []string
		if s, ok := raw.(string); ok {
			list = []string{s}
		} else if l, ok := toStringList(raw); ok {
			list = l
		} else {
			return models.Value{}, "must be a list of options"
		}
		for _, item := range list {
			if !validOption(item, f.Config.Options) {
				return models.Value{}, fmt.Sprintf("value %q is not a valid option", item)
			}
		}
		return models.Value{Kind: f.Type, List: list}, ""

	case models.FieldFile:
		refs := fileRefs(f.Name, raw, files)
		if f.Config.MaxFiles > 0 && len(refs) > f.Config.MaxFiles {
			return models.Value{}, fmt.Sprintf("accepts at most %d files", f.Config.MaxFiles)
		}
		return models.Value{Kind: f.Type, Files: refs}, ""
	}

	return models.Value{}, fmt.Sprintf("has unsupported type %q", f.Type)
}

// toNumber accepts numeric JSON/BSON shapes plus numeric strings, since
// HTML form encoders submit every value as a string.
func toNumber(v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return toFloat(v)
}

func validOption(s string, options []string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

// fileRefs resolves a file field's references: attachments uploaded for
// this field win; otherwise raw token values are wrapped as opaque refs.
func fileRefs(field string, raw interface{}, files []models.FileRef) []models.FileRef {
	var refs []models.FileRef
	for _, fr := range files {
		if fr.FieldName == field {
			refs = append(refs, fr)
		}
	}
	if len(refs) > 0 {
		return refs
	}
	if s, ok := raw.(string); ok && s != "" {
		return []models.FileRef{{FieldName: field, Token: s}}
	}
	if tokens, ok := toStringList(raw); ok {
		for _, tok := range tokens {
			refs = append(refs, models.FileRef{FieldName: field, Token: tok})
		}
	}
	return refs
}
