package ops

import (
	"database/sql"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Level      int    // 0 means all levels
	CodePrefix string // empty means all codes
	Limit      int    // default: 20, max: 100
	Offset     int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []naics.Summary `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Sort       string          `json:"sort"` // "code"
}

// List retrieves record summaries in code order with pagination.
// Unlike Search, an unfiltered List is valid and browses everything.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	if input.Level != 0 && !naics.ValidLevel(input.Level) {
		return nil, errors.NewInvalidQuery("level must be between 2 and 6")
	}

	prefix := naics.NormalizeCode(input.CodePrefix)
	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)
	offset := clampOffset(input.Offset)

	records, total, err := db.List(database, input.Level, prefix, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]naics.Summary, 0, len(records))
	for i := range records {
		items = append(items, records[i].ToSummary())
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "code",
	}, nil
}
