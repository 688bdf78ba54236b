package census

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lowmason/naics-editor/internal/naics"
)

const examplesMarker = "Illustrative Examples:"

// codeRef matches NAICS code references embedded in description text.
var codeRef = regexp.MustCompile(` \d{2,6}`)

// Codes whose description text references other codes without those
// references being exclusions. Identified by inspection of the 2022
// files.
var exclusionHeuristicSkip = map[string]bool{
	"525":  true,
	"3152": true,
	"7132": true,
}

// Build assembles classification records from the raw workbook data.
// The codes workbook defines the universe; descriptions, examples, and
// exclusions attach to it by code.
func Build(raw *RawData) []naics.Record {
	known := make(map[string]bool)
	titles := make(map[string]string)
	order := make([]string, 0, len(raw.Titles))
	for _, r := range raw.Titles {
		code := naics.NormalizeCode(r.Code)
		if !naics.ValidCode(code) || known[code] {
			continue
		}
		known[code] = true
		titles[code] = strings.TrimSpace(r.Text)
		order = append(order, code)
	}

	indexExamples := make(map[string][]string)
	for _, r := range raw.Index {
		code := naics.NormalizeCode(r.Code)
		if !known[code] || r.Text == "" {
			continue
		}
		indexExamples[code] = append(indexExamples[code], r.Text)
	}

	crossRefs := make(map[string][]string)
	for _, r := range raw.CrossReferences {
		code := naics.NormalizeCode(r.Code)
		text := CleanText(r.Text)
		if !known[code] || text == "" {
			continue
		}
		crossRefs[code] = append(crossRefs[code], text)
	}

	descriptions := make(map[string]string)
	examples := make(map[string][]string)
	exclusions := make(map[string][]string)

	for _, r := range raw.Descriptions {
		code := naics.NormalizeCode(r.Code)
		if !known[code] {
			continue
		}
		lines := splitDescription(r.Text)
		if len(lines) == 0 {
			// Codes whose text is all stubs still take part in the
			// description backfill below.
			if _, ok := descriptions[code]; !ok {
				descriptions[code] = ""
			}
			continue
		}

		desc, ex, excl := splitSections(code, lines, known)
		descriptions[code] = strings.Join(desc, " ")
		if len(ex) > 0 {
			examples[code] = ex
		}
		if len(excl) > 0 {
			exclusions[code] = append(exclusions[code], excl...)
		}
	}

	backfillDescriptions(descriptions)

	records := make([]naics.Record, 0, len(order))
	for _, code := range order {
		rec := naics.Record{
			Code:        code,
			Level:       naics.LevelOf(code),
			Title:       titles[code],
			Description: descriptions[code],
		}
		// Examples extracted from the description win over index items.
		if ex, ok := examples[code]; ok {
			rec.Examples = ex
		} else {
			rec.Examples = indexExamples[code]
		}
		if len(crossRefs[code]) > 0 || len(exclusions[code]) > 0 {
			rec.Exclusions = append(append([]string{}, crossRefs[code]...), exclusions[code]...)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Code < records[j].Code })
	return records
}

// splitSections partitions cleaned description lines into main text,
// illustrative examples, and excluded-activity lines.
//
// An exclusion is either the trailing "Excluded from this ..." block,
// or, for codes below sector level without one, any line referencing
// other known codes.
func splitSections(code string, lines []string, known map[string]bool) (desc, examples, exclusions []string) {
	marker := -1
	for i, line := range lines {
		if strings.Contains(line, examplesMarker) {
			marker = i
			break
		}
	}

	excluded := make(map[int]bool)
	last := len(lines) - 1
	if strings.Contains(lines[last], "Excluded") || strings.Contains(lines[last], "excluded") {
		excluded[last] = true
	} else if len(code) > 2 && !exclusionHeuristicSkip[code] {
		for i, line := range lines {
			refs := referencedCodes(line, known)
			if len(refs) == 0 {
				continue
			}
			// A lone reference that extends the code itself is a
			// child pointer, not an exclusion.
			if len(refs) == 1 && strings.Contains(refs[0], code) {
				continue
			}
			excluded[i] = true
		}
	}

	for i, line := range lines {
		switch {
		case excluded[i]:
			exclusions = append(exclusions, line)
		case marker >= 0 && i == marker:
			// section header
		case marker >= 0 && i > marker:
			examples = append(examples, line)
		default:
			desc = append(desc, line)
		}
	}
	return desc, examples, exclusions
}

// referencedCodes extracts known NAICS codes referenced in a line.
func referencedCodes(line string, known map[string]bool) []string {
	var refs []string
	for _, m := range codeRef.FindAllString(line, -1) {
		c := strings.TrimSpace(m)
		if known[c] {
			refs = append(refs, c)
		}
	}
	return refs
}

// backfillDescriptions fills empty 5-digit descriptions from their
// 6-digit child (code + "0") and empty 4-digit descriptions from a
// 5-digit child, rewording the level reference to match.
func backfillDescriptions(desc map[string]string) {
	codes := make([]string, 0, len(desc))
	for code := range desc {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if len(code) != 5 || desc[code] != "" {
			continue
		}
		if child := desc[code+"0"]; child != "" {
			desc[code] = strings.Replace(child, "This industry", "This NAICS industry", 1)
		}
	}

	for _, code := range codes {
		if len(code) != 4 || desc[code] != "" {
			continue
		}
		for _, suffix := range []string{"1", "2", "3", "4", "9"} {
			child := desc[code+suffix]
			if child == "" {
				continue
			}
			if strings.Contains(child, "This NAICS industry") {
				child = strings.Replace(child, "This NAICS industry", "This industry group", 1)
			} else {
				child = strings.Replace(child, "This industry", "This industry group", 1)
			}
			desc[code] = child
			break
		}
	}
}
