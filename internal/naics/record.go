package naics

import (
	"regexp"
	"strings"

	"github.com/lowmason/naics-editor/internal/errors"
)

// Record is one NAICS classification entry: a code and its editable
// reference text. Codes come from the externally maintained NAICS
// standard; the editor never creates or deletes them, only revises
// the text fields.
type Record struct {
	// Code is the 2-6 digit NAICS code, unique across the set
	Code string `json:"code"`

	// Level is the hierarchy depth, always len(Code):
	// 2=sector, 3=subsector, 4=industry group, 5=industry, 6=national industry
	Level int `json:"level"`

	// Title is the short classification label
	Title string `json:"title"`

	// Description is the free-form industry description
	Description string `json:"description"`

	// Examples is the ordered list of illustrative examples
	Examples []string `json:"examples"`

	// Exclusions is the ordered list of cross-references to activities
	// this code does not cover
	Exclusions []string `json:"exclusions"`

	// CreatedAt is the Unix timestamp when the record was first loaded
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last edit
	UpdatedAt int64 `json:"updated_at"`
}

// Hierarchy levels.
const (
	LevelSector           = 2
	LevelSubsector        = 3
	LevelIndustryGroup    = 4
	LevelIndustry         = 5
	LevelNationalIndustry = 6
)

var codeRegex = regexp.MustCompile(`^[0-9]{2,6}$`)

// combinedSectors maps the Census Bureau's combined sector codes to the
// single code used throughout the editor.
var combinedSectors = map[string]string{
	"31-33": "31",
	"44-45": "44",
	"48-49": "48",
}

// NormalizeCode trims a code and collapses combined sector codes
// (31-33, 44-45, 48-49) to their first sector.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if single, ok := combinedSectors[code]; ok {
		return single
	}
	return code
}

// ValidCode reports whether code is a well-formed NAICS code (2-6 digits).
func ValidCode(code string) bool {
	return codeRegex.MatchString(code)
}

// ParseCode normalizes and validates a code.
func ParseCode(code string) (string, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return "", errors.NewInvalidRequest("code must be 2-6 digits")
	}
	return code, nil
}

// LevelOf returns the hierarchy level of a valid code.
func LevelOf(code string) int {
	return len(code)
}

// ValidLevel reports whether level is a valid hierarchy depth.
func ValidLevel(level int) bool {
	return level >= LevelSector && level <= LevelNationalIndustry
}

// LevelName returns the conventional name for a hierarchy level.
func LevelName(level int) string {
	switch level {
	case LevelSector:
		return "sector"
	case LevelSubsector:
		return "subsector"
	case LevelIndustryGroup:
		return "industry group"
	case LevelIndustry:
		return "industry"
	case LevelNationalIndustry:
		return "national industry"
	default:
		return "unknown"
	}
}

// ParentCode returns the code of the record's parent: the one-character
// shorter prefix. Sectors have no parent and return "".
func ParentCode(code string) string {
	if len(code) <= LevelSector {
		return ""
	}
	return code[:len(code)-1]
}

// Ancestry returns all ancestor codes from sector down to the direct
// parent, e.g. "51121" -> ["51", "511", "5112"].
func Ancestry(code string) []string {
	if len(code) <= LevelSector {
		return nil
	}
	chain := make([]string, 0, len(code)-LevelSector)
	for i := LevelSector; i < len(code); i++ {
		chain = append(chain, code[:i])
	}
	return chain
}

// Summary is a record's metadata without the full text, used by browse
// and search operations to keep responses small.
type Summary struct {
	Code       string `json:"code"`
	Level      int    `json:"level"`
	LevelName  string `json:"level_name"`
	Title      string `json:"title"`
	Examples   int    `json:"examples"`
	Exclusions int    `json:"exclusions"`
	UpdatedAt  int64  `json:"updated_at"`
}

// ToSummary converts a Record to a Summary by dropping the text content.
func (r *Record) ToSummary() Summary {
	return Summary{
		Code:       r.Code,
		Level:      r.Level,
		LevelName:  LevelName(r.Level),
		Title:      r.Title,
		Examples:   len(r.Examples),
		Exclusions: len(r.Exclusions),
		UpdatedAt:  r.UpdatedAt,
	}
}
