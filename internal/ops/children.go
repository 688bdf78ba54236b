package ops

import (
	"database/sql"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/naics"
)

// ChildrenInput contains parameters for the Children operation.
type ChildrenInput struct {
	Code string // required
}

// ChildrenOutput contains a record's direct children.
type ChildrenOutput struct {
	Code     string          `json:"code"`
	Title    string          `json:"title"`
	Children []naics.Summary `json:"children"`
}

// Children retrieves the direct children of a code.
// The code itself must exist.
func Children(database *sql.DB, input ChildrenInput) (*ChildrenOutput, error) {
	code, err := naics.ParseCode(input.Code)
	if err != nil {
		return nil, err
	}

	parent, err := db.GetByCode(database, code)
	if err != nil {
		return nil, err
	}

	kids, err := db.Children(database, code)
	if err != nil {
		return nil, err
	}

	children := make([]naics.Summary, 0, len(kids))
	for i := range kids {
		children = append(children, kids[i].ToSummary())
	}

	return &ChildrenOutput{
		Code:     parent.Code,
		Title:    parent.Title,
		Children: children,
	}, nil
}
