package ops

import (
	"database/sql"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/naics"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	Code string // required
}

// FetchOutput contains a record with its hierarchical context.
type FetchOutput struct {
	Record naics.Record `json:"record"`

	// Parents is the ancestor chain from sector down to the direct
	// parent. Ancestors missing from storage are skipped.
	Parents []naics.Summary `json:"parents"`

	// Children summarizes the record's direct children.
	Children []naics.Summary `json:"children"`
}

// Fetch retrieves a single record plus its parent chain and children.
func Fetch(database *sql.DB, input FetchInput) (*FetchOutput, error) {
	code, err := naics.ParseCode(input.Code)
	if err != nil {
		return nil, err
	}

	record, err := db.GetByCode(database, code)
	if err != nil {
		return nil, err
	}

	ancestors, err := db.GetMany(database, naics.Ancestry(code))
	if err != nil {
		return nil, err
	}
	parents := make([]naics.Summary, 0, len(ancestors))
	for i := range ancestors {
		parents = append(parents, ancestors[i].ToSummary())
	}

	kids, err := db.Children(database, code)
	if err != nil {
		return nil, err
	}
	children := make([]naics.Summary, 0, len(kids))
	for i := range kids {
		children = append(children, kids[i].ToSummary())
	}

	return &FetchOutput{
		Record:   *record,
		Parents:  parents,
		Children: children,
	}, nil
}
