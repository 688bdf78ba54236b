package census

import (
	"regexp"
	"strings"
)

// Artifacts scrubbed from description text.
var (
	seeIndustryStub = regexp.MustCompile(`See industry description for \d{6}\.`)
	htmlTag         = regexp.MustCompile(`<.*?>`)
	multiSpace      = regexp.MustCompile(`\s{2,}`)
)

// CleanText normalizes one line of Census description text. The
// published files carry NULL markers, HTML fragments, non-breaking
// spaces, and no spacing after sentence punctuation.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "NULL", "")
	s = seeIndustryStub.ReplaceAllString(s, "")
	s = htmlTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, ".", ". ")
	s = strings.ReplaceAll(s, "U. S. ", "U.S.")
	s = strings.ReplaceAll(s, "e. g. ,", "e.g.,")
	s = strings.ReplaceAll(s, "i. e. ,", "i.e.,")
	s = strings.ReplaceAll(s, ";", "; ")
	s = strings.ReplaceAll(s, "31-33", "31")
	s = strings.ReplaceAll(s, "44-45", "44")
	s = strings.ReplaceAll(s, "48-49", "48")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// splitDescription breaks a raw multi-line description into cleaned
// lines, dropping section headers and empty fragments.
func splitDescription(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if line == "The Sector as a Whole" {
			continue
		}
		if strings.Contains(line, "Cross-References.") {
			continue
		}
		cleaned := CleanText(line)
		if cleaned == "" {
			continue
		}
		out = append(out, cleaned)
	}
	return out
}
