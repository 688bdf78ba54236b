package ops

import (
	"bufio"
	"crypto/rand"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lowmason/naics-editor/internal/config"
	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision (atomic)
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	BatchID  string        `json:"batch_id,omitempty"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line"`
	Code    string `json:"code,omitempty"`
	ErrCode string `json:"error_code"`
	Message string `json:"message"`
}

// Import loads records from a JSONL or CSV file.
//
// Mode error is fully atomic: any parse failure or code collision with
// the existing dataset rejects the whole file. Mode replace upserts the
// file's valid lines, overwriting existing records on collision and
// reporting invalid ones as skipped.
func Import(database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}

	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.NewStorage(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	format := formatForPath(input.Path)
	var records []naics.Record
	var parseErrors []ImportError
	switch format {
	case "jsonl":
		records, parseErrors = parseJSONL(file)
	case "csv":
		records, parseErrors = parseCSV(file)
	}

	// For mode:error, any parse error rejects the whole file.
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	tx, err := database.Begin()
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()
	imported := 0
	for i := range records {
		r := &records[i]
		if r.CreatedAt == 0 {
			r.CreatedAt = now
		}
		if r.UpdatedAt == 0 {
			r.UpdatedAt = now
		}
		if input.Mode == ImportModeReplace {
			if err := db.UpsertTx(tx, r); err != nil {
				return nil, err
			}
			imported++
			continue
		}
		if err := db.InsertTx(tx, r); err != nil {
			if errors.Is(err, errors.ErrCodeExists) {
				// Collisions within the file (or, in mode:error, with
				// the existing dataset) abort the import untouched.
				return &ImportOutput{
					Errors: []ImportError{{
						Code:    r.Code,
						ErrCode: string(errors.ErrCodeExists),
						Message: fmt.Sprintf("record with code %q already exists", r.Code),
					}},
				}, nil
			}
			return nil, err
		}
		imported++
	}

	batch := &db.ImportBatch{
		ID:        newBatchID(),
		Path:      input.Path,
		Format:    format,
		Imported:  imported,
		Skipped:   len(parseErrors),
		CreatedAt: now,
	}
	if err := db.InsertBatchTx(tx, batch); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStorage(err)
	}

	if parseErrors == nil {
		parseErrors = []ImportError{}
	}
	return &ImportOutput{
		BatchID:  batch.ID,
		Imported: imported,
		Skipped:  len(parseErrors),
		Errors:   parseErrors,
	}, nil
}

// parseJSONL reads a JSONL export file into records, skipping the
// header line.
func parseJSONL(r io.Reader) ([]naics.Record, []ImportError) {
	var records []naics.Record
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var export naics.ExportRecord
		if err := json.Unmarshal(line, &export); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ErrCode: "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		// Skip header line
		if export.NaicsExport {
			continue
		}

		record, importErr := validateImported(lineNum, export.ToRecord())
		if importErr != nil {
			parseErrors = append(parseErrors, *importErr)
			continue
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			ErrCode: "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// parseCSV reads a CSV export file into records, skipping the header row.
func parseCSV(r io.Reader) ([]naics.Record, []ImportError) {
	var records []naics.Record
	var parseErrors []ImportError

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	lineNum := 0

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ErrCode: "PARSE_ERROR",
				Message: fmt.Sprintf("invalid CSV: %v", err),
			})
			continue
		}

		// Skip header row
		if lineNum == 1 && len(row) > 0 && row[0] == "code" {
			continue
		}
		if len(row) < 4 {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ErrCode: "PARSE_ERROR",
				Message: fmt.Sprintf("expected at least 4 columns, got %d", len(row)),
			})
			continue
		}

		record, rowErr := rowToRecord(lineNum, row)
		if rowErr != nil {
			parseErrors = append(parseErrors, *rowErr)
			continue
		}

		validated, importErr := validateImported(lineNum, record)
		if importErr != nil {
			parseErrors = append(parseErrors, *importErr)
			continue
		}
		records = append(records, validated)
	}

	return records, parseErrors
}

// rowToRecord converts a CSV row in csvHeader column order.
func rowToRecord(lineNum int, row []string) (naics.Record, *ImportError) {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	record := naics.Record{
		Code:        get(0),
		Title:       get(2),
		Description: get(3),
	}

	if levelStr := get(1); levelStr != "" {
		level, err := strconv.Atoi(levelStr)
		if err != nil {
			return record, &ImportError{
				Line:    lineNum,
				Code:    record.Code,
				ErrCode: "PARSE_ERROR",
				Message: fmt.Sprintf("invalid level: %q", levelStr),
			}
		}
		record.Level = level
	}

	for _, cell := range []struct {
		index int
		dest  *[]string
	}{
		{4, &record.Examples},
		{5, &record.Exclusions},
	} {
		raw := get(cell.index)
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), cell.dest); err != nil {
			return record, &ImportError{
				Line:    lineNum,
				Code:    record.Code,
				ErrCode: "PARSE_ERROR",
				Message: fmt.Sprintf("invalid list cell: %v", err),
			}
		}
	}

	for _, ts := range []struct {
		index int
		dest  *int64
	}{
		{6, &record.CreatedAt},
		{7, &record.UpdatedAt},
	} {
		raw := get(ts.index)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return record, &ImportError{
				Line:    lineNum,
				Code:    record.Code,
				ErrCode: "PARSE_ERROR",
				Message: fmt.Sprintf("invalid timestamp: %q", raw),
			}
		}
		*ts.dest = v
	}

	return record, nil
}

// validateImported checks a parsed record's code, level, and title.
func validateImported(lineNum int, record naics.Record) (naics.Record, *ImportError) {
	code, err := naics.ParseCode(record.Code)
	if err != nil {
		return record, &ImportError{
			Line:    lineNum,
			Code:    record.Code,
			ErrCode: "INVALID_RECORD",
			Message: "code must be 2-6 digits",
		}
	}
	record.Code = code

	if record.Level == 0 {
		record.Level = naics.LevelOf(code)
	}
	if record.Level != naics.LevelOf(code) {
		return record, &ImportError{
			Line:    lineNum,
			Code:    code,
			ErrCode: "INVALID_RECORD",
			Message: fmt.Sprintf("level %d does not match code length %d", record.Level, naics.LevelOf(code)),
		}
	}

	if record.Title == "" {
		return record, &ImportError{
			Line:    lineNum,
			Code:    code,
			ErrCode: "INVALID_RECORD",
			Message: "missing title",
		}
	}

	return record, nil
}

// newBatchID generates a ULID for an import batch.
func newBatchID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
