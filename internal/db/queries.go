package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// execer covers both *sql.DB and *sql.Tx so inserts can run inside
// import transactions.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

const recordColumns = `code, level, title, description, examples_json, exclusions_json, created_at, updated_at`

// Insert stores a new record.
func Insert(db *sql.DB, r *naics.Record) error {
	return insert(db, r)
}

// InsertTx stores a new record within a transaction.
func InsertTx(tx *sql.Tx, r *naics.Record) error {
	return insert(tx, r)
}

func insert(e execer, r *naics.Record) error {
	examplesJSON, err := toJSONList(r.Examples)
	if err != nil {
		return errors.NewStorage(err)
	}
	exclusionsJSON, err := toJSONList(r.Exclusions)
	if err != nil {
		return errors.NewStorage(err)
	}

	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = e.Exec(query,
		r.Code, r.Level, r.Title, r.Description,
		examplesJSON, exclusionsJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewCodeExists(r.Code)
		}
		return errors.NewStorage(err)
	}

	return nil
}

// UpsertTx stores a record within a transaction, overwriting any
// existing record with the same code. The original created_at is kept.
func UpsertTx(tx *sql.Tx, r *naics.Record) error {
	examplesJSON, err := toJSONList(r.Examples)
	if err != nil {
		return errors.NewStorage(err)
	}
	exclusionsJSON, err := toJSONList(r.Exclusions)
	if err != nil {
		return errors.NewStorage(err)
	}

	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			level = excluded.level,
			title = excluded.title,
			description = excluded.description,
			examples_json = excluded.examples_json,
			exclusions_json = excluded.exclusions_json,
			updated_at = excluded.updated_at
	`

	_, err = tx.Exec(query,
		r.Code, r.Level, r.Title, r.Description,
		examplesJSON, exclusionsJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return errors.NewStorage(err)
	}

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByCode retrieves a record by its NAICS code.
func GetByCode(db *sql.DB, code string) (*naics.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE code = ?
	`

	row := db.QueryRow(query, code)
	r, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(code)
	}
	if err != nil {
		return nil, errors.NewStorage(err)
	}

	return r, nil
}

// Update rewrites a record's text fields and sets updated_at to the
// current timestamp. Does NOT change: code, level, created_at.
func Update(db *sql.DB, r *naics.Record) error {
	examplesJSON, err := toJSONList(r.Examples)
	if err != nil {
		return errors.NewStorage(err)
	}
	exclusionsJSON, err := toJSONList(r.Exclusions)
	if err != nil {
		return errors.NewStorage(err)
	}

	now := time.Now().Unix()

	query := `
		UPDATE records
		SET title = ?, description = ?, examples_json = ?, exclusions_json = ?, updated_at = ?
		WHERE code = ?
	`

	result, err := db.Exec(query,
		r.Title, r.Description, examplesJSON, exclusionsJSON, now, r.Code,
	)
	if err != nil {
		return errors.NewStorage(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewStorage(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(r.Code)
	}

	r.UpdatedAt = now

	return nil
}

// List retrieves records filtered by level and/or code prefix, ordered
// by code, with limit/offset pagination. Level 0 and an empty prefix
// mean no filter. Returns the page and the total match count.
func List(db *sql.DB, level int, prefix string, limit, offset int) ([]naics.Record, int, error) {
	where, args := buildWhere(level, prefix)

	var total int
	countQuery := "SELECT COUNT(*) FROM records" + where
	if err := db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewStorage(err)
	}

	query := "SELECT " + recordColumns + " FROM records" + where +
		" ORDER BY code LIMIT ? OFFSET ?"
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewStorage(err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListAll retrieves every record matching the level/prefix filters,
// ordered by code. Used by search to narrow the set scanned by the
// pattern matcher, and by export.
func ListAll(db *sql.DB, level int, prefix string) ([]naics.Record, error) {
	where, args := buildWhere(level, prefix)

	query := "SELECT " + recordColumns + " FROM records" + where + " ORDER BY code"
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// GetMany retrieves the records for the given codes, ordered by code.
// Codes with no record are simply absent from the result.
func GetMany(db *sql.DB, codes []string) ([]naics.Record, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(codes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}

	query := "SELECT " + recordColumns + " FROM records WHERE code IN (" + placeholders + ") ORDER BY code"
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Children retrieves the direct children of a code: records one level
// deeper whose code starts with it. Ordered by code.
func Children(db *sql.DB, code string) ([]naics.Record, error) {
	query := "SELECT " + recordColumns + ` FROM records
		WHERE level = ? AND code LIKE ? ESCAPE '\'
		ORDER BY code`
	rows, err := db.Query(query, len(code)+1, escapeLike(code)+"%")
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Count returns the total number of records.
func Count(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, errors.NewStorage(err)
	}
	return n, nil
}

// CountsByLevel returns record counts keyed by hierarchy level.
func CountsByLevel(db *sql.DB) (map[int]int, error) {
	rows, err := db.Query("SELECT level, COUNT(*) FROM records GROUP BY level")
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var level, n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, errors.NewStorage(err)
		}
		counts[level] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return counts, nil
}

// SectorCount pairs a sector record with the number of records under it
// (itself included).
type SectorCount struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Total int    `json:"total"`
}

// CountsBySector returns per-sector record counts, ordered by sector code.
func CountsBySector(db *sql.DB) ([]SectorCount, error) {
	query := `
		SELECT s.code, s.title,
			(SELECT COUNT(*) FROM records r WHERE substr(r.code, 1, 2) = s.code)
		FROM records s
		WHERE s.level = 2
		ORDER BY s.code
	`
	rows, err := db.Query(query)
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	var counts []SectorCount
	for rows.Next() {
		var sc SectorCount
		if err := rows.Scan(&sc.Code, &sc.Title, &sc.Total); err != nil {
			return nil, errors.NewStorage(err)
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return counts, nil
}

// DeleteAllTx removes every record within a transaction. Used when
// loading a fresh Census dataset.
func DeleteAllTx(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// ImportBatch records one completed import run.
type ImportBatch struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Format    string `json:"format"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	CreatedAt int64  `json:"created_at"`
}

// InsertBatchTx records an import batch within the import transaction.
func InsertBatchTx(tx *sql.Tx, b *ImportBatch) error {
	query := `
		INSERT INTO import_batches (id, path, format, imported, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query, b.ID, b.Path, b.Format, b.Imported, b.Skipped, b.CreatedAt)
	if err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// ListBatches returns import batches, most recent first.
func ListBatches(db *sql.DB, limit int) ([]ImportBatch, error) {
	rows, err := db.Query(`
		SELECT id, path, format, imported, skipped, created_at
		FROM import_batches
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	var batches []ImportBatch
	for rows.Next() {
		var b ImportBatch
		if err := rows.Scan(&b.ID, &b.Path, &b.Format, &b.Imported, &b.Skipped, &b.CreatedAt); err != nil {
			return nil, errors.NewStorage(err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return batches, nil
}

// buildWhere assembles the shared level/prefix WHERE clause.
func buildWhere(level int, prefix string) (string, []any) {
	var clauses []string
	var args []any
	if level != 0 {
		clauses = append(clauses, "level = ?")
		args = append(args, level)
	}
	if prefix != "" {
		clauses = append(clauses, `code LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(prefix)+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// escapeLike escapes LIKE metacharacters. Codes are digit-only in
// practice, but the input may come from a request.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// collectRecords drains rows into a slice.
func collectRecords(rows *sql.Rows) ([]naics.Record, error) {
	var records []naics.Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, errors.NewStorage(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return records, nil
}

// scanRecord scans a single row into a Record struct.
func scanRecord(scan func(dest ...any) error) (*naics.Record, error) {
	var (
		r              naics.Record
		examplesJSON   sql.NullString
		exclusionsJSON sql.NullString
	)

	err := scan(
		&r.Code, &r.Level, &r.Title, &r.Description,
		&examplesJSON, &exclusionsJSON, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.Examples, err = fromJSONList(examplesJSON); err != nil {
		return nil, err
	}
	if r.Exclusions, err = fromJSONList(exclusionsJSON); err != nil {
		return nil, err
	}

	return &r, nil
}

// toJSONList converts a string list to its stored JSON form.
// Empty lists are stored as NULL.
func toJSONList(list []string) (sql.NullString, error) {
	if len(list) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// fromJSONList parses a stored JSON list column.
func fromJSONList(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(ns.String), &list); err != nil {
		return nil, err
	}
	return list, nil
}
