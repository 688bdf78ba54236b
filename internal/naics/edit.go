package naics

import (
	"github.com/lowmason/naics-editor/internal/errors"
)

// Editable field names.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldExamples    = "examples"
	FieldExclusions  = "exclusions"
)

// EditableFields lists the fields ApplyEdit accepts, in display order.
var EditableFields = []string{FieldTitle, FieldDescription, FieldExamples, FieldExclusions}

// IsEditableField reports whether name is an editable field.
func IsEditableField(name string) bool {
	switch name {
	case FieldTitle, FieldDescription, FieldExamples, FieldExclusions:
		return true
	}
	return false
}

// ApplyEdit returns a copy of r with one field replaced. Scalar fields
// take a string; examples and exclusions take an ordered list of strings
// ([]string, or []any of strings as produced by JSON decoding). The input
// record is never modified. Applying the same edit twice yields the same
// result.
func ApplyEdit(r Record, field string, value any) (Record, error) {
	switch field {
	case FieldTitle, FieldDescription:
		s, ok := value.(string)
		if !ok {
			return r, errors.NewInvalidValue(field, "expected a string")
		}
		if field == FieldTitle {
			r.Title = s
		} else {
			r.Description = s
		}
		return r, nil

	case FieldExamples, FieldExclusions:
		list, err := toStringList(field, value)
		if err != nil {
			return r, err
		}
		if field == FieldExamples {
			r.Examples = list
		} else {
			r.Exclusions = list
		}
		return r, nil

	default:
		return r, errors.NewFieldNotFound(field)
	}
}

// toStringList coerces value into a []string, accepting []any elements
// from JSON-decoded input.
func toStringList(field string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		// Copy so the caller's slice can't alias the record's.
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.NewInvalidValue(field, "expected a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, errors.NewInvalidValue(field, "expected a list of strings, got null")
	default:
		return nil, errors.NewInvalidValue(field, "expected a list of strings")
	}
}
