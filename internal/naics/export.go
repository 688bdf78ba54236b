package naics

// ExportRecord is the JSONL representation of a record in dataset
// export/import files. The header line sets NaicsExport instead of a code.
type ExportRecord struct {
	NaicsExport bool     `json:"_naics_export,omitempty"`
	Code        string   `json:"code,omitempty"`
	Level       int      `json:"level,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	Exclusions  []string `json:"exclusions,omitempty"`
	CreatedAt   int64    `json:"created_at,omitempty"`
	UpdatedAt   int64    `json:"updated_at,omitempty"`

	// Header-only fields
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`
}

// ToRecord converts an export line into a Record, deriving the level
// from the code when the line omits it.
func (e *ExportRecord) ToRecord() Record {
	level := e.Level
	if level == 0 {
		level = LevelOf(e.Code)
	}
	return Record{
		Code:        e.Code,
		Level:       level,
		Title:       e.Title,
		Description: e.Description,
		Examples:    e.Examples,
		Exclusions:  e.Exclusions,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// ToExportRecord converts a Record for JSONL serialization.
func ToExportRecord(r *Record) ExportRecord {
	return ExportRecord{
		Code:        r.Code,
		Level:       r.Level,
		Title:       r.Title,
		Description: r.Description,
		Examples:    r.Examples,
		Exclusions:  r.Exclusions,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
