package naics

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lowmason/naics-editor/internal/errors"
)

// Query selects records by level, code prefix, and/or a regular-expression
// pattern over the text fields. Zero values mean "any": a zero Query
// matches every record.
type Query struct {
	// Level filters to one hierarchy depth; 0 means any
	Level int

	// CodePrefix filters to codes with this prefix (an exact code is its
	// own prefix); empty means any
	CodePrefix string

	// Pattern is a regular expression tested against the text fields,
	// case-insensitive by default; empty means any
	Pattern string

	// Fields restricts which text fields the pattern is tested against;
	// empty means all of title, description, examples, exclusions
	Fields []string
}

// IsZero reports whether the query has no filters at all.
func (q Query) IsZero() bool {
	return q.Level == 0 && q.CodePrefix == "" && q.Pattern == ""
}

// CompiledQuery is a validated Query ready for matching.
type CompiledQuery struct {
	level  int
	prefix string
	re     *regexp.Regexp
	fields map[string]bool
}

// Compile validates the query and compiles its pattern. All validation
// happens here, before any record is examined: an invalid query never
// partially matches.
func (q Query) Compile() (*CompiledQuery, error) {
	if q.Level != 0 && !ValidLevel(q.Level) {
		return nil, errors.NewInvalidQuery(fmt.Sprintf("level must be between %d and %d", LevelSector, LevelNationalIndustry))
	}

	prefix := strings.TrimSpace(q.CodePrefix)
	if prefix != "" {
		prefix = NormalizeCode(prefix)
		for _, r := range prefix {
			if r < '0' || r > '9' {
				return nil, errors.NewInvalidQuery("code prefix must contain only digits")
			}
		}
		if len(prefix) > LevelNationalIndustry {
			return nil, errors.NewInvalidQuery("code prefix must be at most 6 digits")
		}
	}

	var fields map[string]bool
	if len(q.Fields) > 0 {
		fields = make(map[string]bool, len(q.Fields))
		for _, f := range q.Fields {
			if !IsEditableField(f) {
				return nil, errors.NewInvalidQuery(fmt.Sprintf("unknown search field: %q", f))
			}
			fields[f] = true
		}
	}

	var re *regexp.Regexp
	if q.Pattern != "" {
		compiled, err := regexp.Compile("(?i)" + q.Pattern)
		if err != nil {
			return nil, errors.NewInvalidQuery(fmt.Sprintf("invalid pattern: %v", err))
		}
		re = compiled
	}

	return &CompiledQuery{
		level:  q.Level,
		prefix: prefix,
		re:     re,
		fields: fields,
	}, nil
}

// Matches reports whether the record passes every supplied filter.
func (cq *CompiledQuery) Matches(r *Record) bool {
	if cq.level != 0 && r.Level != cq.level {
		return false
	}
	if cq.prefix != "" && !strings.HasPrefix(r.Code, cq.prefix) {
		return false
	}
	if cq.re == nil {
		return true
	}
	return cq.matchesPattern(r)
}

// MatchField returns the first selected field the pattern matches in,
// and a short snippet around the match. Returns ("", "") when the
// pattern does not match or no pattern was supplied.
func (cq *CompiledQuery) MatchField(r *Record) (field, snippet string) {
	if cq.re == nil {
		return "", ""
	}
	if cq.searchField(FieldTitle) {
		if loc := cq.re.FindStringIndex(r.Title); loc != nil {
			return FieldTitle, snippetAround(r.Title, loc)
		}
	}
	if cq.searchField(FieldDescription) {
		if loc := cq.re.FindStringIndex(r.Description); loc != nil {
			return FieldDescription, snippetAround(r.Description, loc)
		}
	}
	if cq.searchField(FieldExamples) {
		for _, ex := range r.Examples {
			if loc := cq.re.FindStringIndex(ex); loc != nil {
				return FieldExamples, snippetAround(ex, loc)
			}
		}
	}
	if cq.searchField(FieldExclusions) {
		for _, ex := range r.Exclusions {
			if loc := cq.re.FindStringIndex(ex); loc != nil {
				return FieldExclusions, snippetAround(ex, loc)
			}
		}
	}
	return "", ""
}

func (cq *CompiledQuery) matchesPattern(r *Record) bool {
	field, _ := cq.MatchField(r)
	return field != ""
}

func (cq *CompiledQuery) searchField(name string) bool {
	return cq.fields == nil || cq.fields[name]
}

// snippetContext is the number of bytes kept on each side of a match.
const snippetContext = 60

// snippetAround extracts text surrounding a match location, trimmed to
// rune boundaries with ellipses where text was cut.
func snippetAround(s string, loc []int) string {
	start := loc[0] - snippetContext
	if start < 0 {
		start = 0
	}
	end := loc[1] + snippetContext
	if end > len(s) {
		end = len(s)
	}
	// Back off to rune boundaries.
	for start > 0 && start < len(s) && (s[start]&0xC0) == 0x80 {
		start--
	}
	for end < len(s) && (s[end]&0xC0) == 0x80 {
		end++
	}

	snippet := s[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(s) {
		snippet += "..."
	}
	return snippet
}

// Filter returns the records matching every supplied filter, sorted
// ascending by code. Lexicographic code order coincides with hierarchical
// order: a parent's code is a prefix of its children's. Pure function:
// the input slice is not modified.
func Filter(records []Record, q Query) ([]Record, error) {
	cq, err := q.Compile()
	if err != nil {
		return nil, err
	}

	matched := make([]Record, 0)
	for i := range records {
		if cq.Matches(&records[i]) {
			matched = append(matched, records[i])
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Code < matched[j].Code
	})

	return matched, nil
}
