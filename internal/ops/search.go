package ops

import (
	"database/sql"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// SearchInput contains parameters for the Search operation.
// At least one of Level, CodePrefix, or Pattern must be set.
type SearchInput struct {
	Level      int      // 0 means any
	CodePrefix string   // empty means any
	Pattern    string   // regular expression, case-insensitive by default
	Fields     []string // restrict pattern to these fields; empty means all
	Limit      int      // default: 20, max: 100
	Offset     int      // default: 0
}

// SearchResultItem pairs a record summary with where the pattern matched.
type SearchResultItem struct {
	naics.Summary
	// MatchField names the first field the pattern matched in; empty
	// when the query had no pattern.
	MatchField string `json:"match_field,omitempty"`
	// Snippet is the plain text surrounding the match.
	Snippet string `json:"snippet,omitempty"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"` // "code"
}

// Search filters records by level, code prefix, and regex pattern.
// Level and prefix narrow the candidate set in SQL; the pattern is
// matched in memory against the selected text fields. The query is
// validated in full before any record is examined.
func Search(database *sql.DB, input SearchInput) (*SearchOutput, error) {
	query := naics.Query{
		Level:      input.Level,
		CodePrefix: input.CodePrefix,
		Pattern:    input.Pattern,
		Fields:     input.Fields,
	}
	if query.IsZero() {
		return nil, errors.NewInvalidQuery("at least one of level, code, or pattern is required")
	}

	cq, err := query.Compile()
	if err != nil {
		return nil, err
	}

	limit := clampLimit(input.Limit, DefaultSearchLimit, MaxSearchLimit)
	offset := clampOffset(input.Offset)

	// Prefix was validated and normalized by Compile; normalize again
	// here for the SQL filter.
	candidates, err := db.ListAll(database, input.Level, naics.NormalizeCode(input.CodePrefix))
	if err != nil {
		return nil, err
	}

	// Candidates arrive in code order, so matches stay sorted.
	items := make([]SearchResultItem, 0)
	matched := 0
	for i := range candidates {
		r := &candidates[i]
		if !cq.Matches(r) {
			continue
		}
		matched++
		if matched <= offset || len(items) >= limit {
			continue
		}
		field, snippet := cq.MatchField(r)
		items = append(items, SearchResultItem{
			Summary:    r.ToSummary(),
			MatchField: field,
			Snippet:    snippet,
		})
	}

	return &SearchOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < matched,
			Total:   matched,
		},
		Sort: "code",
	}, nil
}
