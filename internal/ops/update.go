package ops

import (
	"database/sql"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	Code string // required
	// Edits maps editable field names to their new values: strings for
	// title and description, string lists for examples and exclusions.
	Edits map[string]any // required, at least one entry
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	Record naics.Record `json:"record"`
	// Changed lists the fields that were edited, in display order.
	Changed []string `json:"changed"`
}

// Update applies field edits to one record. All edits are validated
// before anything is written; a single bad field or value rejects the
// whole request and the stored record is untouched.
func Update(database *sql.DB, input UpdateInput) (*UpdateOutput, error) {
	code, err := naics.ParseCode(input.Code)
	if err != nil {
		return nil, err
	}
	if len(input.Edits) == 0 {
		return nil, errors.NewInvalidRequest("at least one field edit is required")
	}

	// Reject unknown fields before touching storage.
	for field := range input.Edits {
		if !naics.IsEditableField(field) {
			return nil, errors.NewFieldNotFound(field)
		}
	}

	record, err := db.GetByCode(database, code)
	if err != nil {
		return nil, err
	}

	// Apply in display order so the result is deterministic regardless
	// of map iteration.
	updated := *record
	var changed []string
	for _, field := range naics.EditableFields {
		value, ok := input.Edits[field]
		if !ok {
			continue
		}
		updated, err = naics.ApplyEdit(updated, field, value)
		if err != nil {
			return nil, err
		}
		changed = append(changed, field)
	}

	if err := db.Update(database, &updated); err != nil {
		return nil, err
	}

	return &UpdateOutput{
		Record:  updated,
		Changed: changed,
	}, nil
}
