package ops

import (
	"crypto/rand"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/lowmason/naics-editor/internal/config"
	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// ExportSchemaVersion is written to the JSONL header line.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path       string // optional, default: ~/.naics/exports/naics-<timestamp>.jsonl
	Level      int    // optional filter, 0 means all
	CodePrefix string // optional filter, empty means all
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// csvHeader is the column order in CSV exports. Examples and exclusions
// are JSON-encoded in their cells.
var csvHeader = []string{"code", "level", "title", "description", "examples", "exclusions", "created_at", "updated_at"}

// Export writes records to a JSONL or CSV file, chosen by extension.
// The file is written to a temp path and atomically renamed into place,
// so a failed export never clobbers an existing file.
func Export(database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(input.CodePrefix, now)
		if err != nil {
			return nil, err
		}
	}

	// Validate ALL paths (both user-provided and default) for security
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	format := formatForPath(exportPath)

	prefix := naics.NormalizeCode(input.CodePrefix)
	if input.Level != 0 && !naics.ValidLevel(input.Level) {
		return nil, errors.NewInvalidQuery("level must be between 2 and 6")
	}

	// Ensure parent directory exists
	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewStorage(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve existing file on failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewStorage(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewStorage(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	records, err := db.ListAll(database, input.Level, prefix)
	if err != nil {
		return nil, err
	}

	var count int
	switch format {
	case "jsonl":
		count, err = writeJSONL(file, records, exportedAt)
	case "csv":
		count, err = writeCSV(file, records)
	}
	if err != nil {
		return nil, err
	}

	// Ensure file is written
	if err := file.Sync(); err != nil {
		return nil, errors.NewStorage(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewStorage(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// Check if destination is a symlink (os.Rename would follow it)
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewStorage(fmt.Errorf("export path is a symlink"))
	}

	// Finalize export by renaming temp file into place.
	//
	// Note: On Windows, os.Rename fails if the destination exists. We intentionally
	// fail safely (preserving the existing file) instead of doing a non-atomic
	// delete+rename that could lose the original if rename fails.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewStorage(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      count,
		ExportedAt: exportedAt,
	}, nil
}

// writeJSONL writes a header line then one record per line.
func writeJSONL(file *os.File, records []naics.Record, exportedAt int64) (int, error) {
	header := naics.ExportRecord{
		NaicsExport:   true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    exportedAt,
	}
	if err := writeJSONLine(file, header); err != nil {
		return 0, err
	}

	for i := range records {
		if err := writeJSONLine(file, naics.ToExportRecord(&records[i])); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func writeJSONLine(file *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewStorage(err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// writeCSV writes a header row then one record per row.
func writeCSV(file *os.File, records []naics.Record) (int, error) {
	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return 0, errors.NewStorage(err)
	}

	for i := range records {
		r := &records[i]
		examples, err := json.Marshal(r.Examples)
		if err != nil {
			return 0, errors.NewStorage(err)
		}
		exclusions, err := json.Marshal(r.Exclusions)
		if err != nil {
			return 0, errors.NewStorage(err)
		}
		row := []string{
			r.Code,
			strconv.Itoa(r.Level),
			r.Title,
			r.Description,
			string(examples),
			string(exclusions),
			strconv.FormatInt(r.CreatedAt, 10),
			strconv.FormatInt(r.UpdatedAt, 10),
		}
		if err := w.Write(row); err != nil {
			return 0, errors.NewStorage(err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, errors.NewStorage(err)
	}
	return len(records), nil
}

// formatForPath maps the validated extension to an export format.
func formatForPath(path string) string {
	if filepath.Ext(path) == ".csv" {
		return "csv"
	}
	return "jsonl"
}

// defaultExportPath generates the default export path.
// Format: ~/.naics/exports/naics-<timestamp>.jsonl or <prefix>-<timestamp>.jsonl
func defaultExportPath(prefix string, now time.Time) (string, error) {
	exportsDir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	timestamp := now.Format("2006-01-02T150405")
	name := "naics"
	if prefix != "" {
		name = SanitizeForFilename(naics.NormalizeCode(prefix))
	}

	filename := fmt.Sprintf("%s-%s.jsonl", name, timestamp)
	return filepath.Join(exportsDir, filename), nil
}
