package ops

import (
	"database/sql"
	"fmt"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// FetchManyInput contains parameters for the FetchMany operation.
type FetchManyInput struct {
	Codes []string // required, max: 50
}

// FetchManyOutput contains the result of the FetchMany operation.
// Partial success: resolved records in Items, per-code failures in Errors.
type FetchManyOutput struct {
	Items  []naics.Record   `json:"items"`
	Errors []FetchManyError `json:"errors"`
}

// FetchManyError reports a failure for a single requested code.
type FetchManyError struct {
	Code    string `json:"code"`
	ErrCode string `json:"error_code"`
	Message string `json:"message"`
}

// FetchMany retrieves multiple records by code in one call.
func FetchMany(database *sql.DB, input FetchManyInput) (*FetchManyOutput, error) {
	if len(input.Codes) == 0 {
		return nil, errors.NewInvalidRequest("codes is required")
	}
	if len(input.Codes) > MaxFetchManyItems {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("at most %d codes per request", MaxFetchManyItems))
	}

	// Validate every code first; invalid ones become per-code errors.
	errs := []FetchManyError{}
	valid := make([]string, 0, len(input.Codes))
	for _, raw := range input.Codes {
		code, err := naics.ParseCode(raw)
		if err != nil {
			errs = append(errs, codeToError(raw, err))
			continue
		}
		valid = append(valid, code)
	}

	records, err := db.GetMany(database, valid)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool, len(records))
	for i := range records {
		found[records[i].Code] = true
	}
	for _, code := range valid {
		if !found[code] {
			errs = append(errs, codeToError(code, errors.NewNotFound(code)))
		}
	}

	if records == nil {
		records = []naics.Record{}
	}

	return &FetchManyOutput{
		Items:  records,
		Errors: errs,
	}, nil
}

// codeToError converts a per-code failure to a FetchManyError.
func codeToError(code string, err error) FetchManyError {
	if e, ok := err.(*errors.Error); ok {
		return FetchManyError{Code: code, ErrCode: string(e.Code), Message: e.Message}
	}
	return FetchManyError{Code: code, ErrCode: string(errors.ErrStorage), Message: err.Error()}
}
