// Package census downloads and normalizes the 2022 NAICS reference
// data published by the U.S. Census Bureau. The published workbooks
// need real cleanup before they are usable: combined sector codes,
// descriptions fragmented across rows, section headers mixed into the
// text, and examples scattered over two different files.
package census

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sources holds the URLs of the four Census workbooks.
type Sources struct {
	CodesURL           string
	IndexURL           string
	DescriptionsURL    string
	CrossReferencesURL string
}

// DefaultSources returns the official 2022 NAICS file locations.
func DefaultSources() Sources {
	return Sources{
		CodesURL:           "https://www.census.gov/naics/2022NAICS/2-6%20digit_2022_Codes.xlsx",
		IndexURL:           "https://www.census.gov/naics/2022NAICS/2022_NAICS_Index_File.xlsx",
		DescriptionsURL:    "https://www.census.gov/naics/2022NAICS/2022_NAICS_Descriptions.xlsx",
		CrossReferencesURL: "https://www.census.gov/naics/2022NAICS/2022_NAICS_Cross_References.xlsx",
	}
}

// Sheet and header names inside the published workbooks.
const (
	sheetCodes           = "tbl_2022_title_description_coun"
	sheetIndex           = "2022NAICS"
	sheetDescriptions    = "2022_NAICS_Descriptions"
	sheetCrossReferences = "2022_NAICS_Cross_References"

	headerCode        = "2022 NAICS US Code"
	headerTitle       = "2022 NAICS US Title"
	headerIndexCode   = "NAICS22"
	headerIndexItem   = "INDEX ITEM DESCRIPTION"
	headerDescCode    = "Code"
	headerDescription = "Description"
	headerCrossRef    = "Cross-Reference"
)

// Row is one (code, text) pair pulled from a workbook.
type Row struct {
	Code string
	Text string
}

// RawData holds the parsed contents of all four workbooks.
type RawData struct {
	Titles          []Row // text is the official title
	Index           []Row // text is one index item (an example activity)
	Descriptions    []Row // text is the raw multi-line description
	CrossReferences []Row // text is one cross-reference sentence
}

// Download fetches and parses all four workbooks concurrently.
func Download(ctx context.Context, client *http.Client, src Sources, logger *zap.Logger) (*RawData, error) {
	if client == nil {
		client = http.DefaultClient
	}

	raw := &RawData{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := fetchSheet(ctx, client, src.CodesURL, sheetCodes, headerCode, headerTitle)
		if err != nil {
			return fmt.Errorf("codes workbook: %w", err)
		}
		logger.Info("downloaded codes workbook", zap.Int("rows", len(rows)))
		raw.Titles = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchSheet(ctx, client, src.IndexURL, sheetIndex, headerIndexCode, headerIndexItem)
		if err != nil {
			return fmt.Errorf("index workbook: %w", err)
		}
		logger.Info("downloaded index workbook", zap.Int("rows", len(rows)))
		raw.Index = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchSheet(ctx, client, src.DescriptionsURL, sheetDescriptions, headerDescCode, headerDescription)
		if err != nil {
			return fmt.Errorf("descriptions workbook: %w", err)
		}
		logger.Info("downloaded descriptions workbook", zap.Int("rows", len(rows)))
		raw.Descriptions = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchSheet(ctx, client, src.CrossReferencesURL, sheetCrossReferences, headerDescCode, headerCrossRef)
		if err != nil {
			return fmt.Errorf("cross-references workbook: %w", err)
		}
		logger.Info("downloaded cross-references workbook", zap.Int("rows", len(rows)))
		raw.CrossReferences = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return raw, nil
}

// fetchSheet downloads one workbook and extracts two columns from the
// named sheet, keyed by header name.
func fetchSheet(ctx context.Context, client *http.Client, url, sheet, codeHeader, textHeader string) ([]Row, error) {
	body, err := fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	return parseSheet(body, sheet, codeHeader, textHeader)
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseSheet reads two columns from a sheet. Header cells in the
// Census files carry inconsistent internal whitespace, so headers are
// matched after collapsing runs of spaces.
func parseSheet(data []byte, sheet, codeHeader, textHeader string) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	codeCol := headerIndex(rows[0], codeHeader)
	textCol := headerIndex(rows[0], textHeader)
	if codeCol < 0 || textCol < 0 {
		return nil, fmt.Errorf("sheet %q: missing column %q or %q", sheet, codeHeader, textHeader)
	}

	out := make([]Row, 0, len(rows)-1)
	for _, row := range rows[1:] {
		code := cell(row, codeCol)
		text := cell(row, textCol)
		if code == "" {
			continue
		}
		out = append(out, Row{Code: code, Text: text})
	}
	return out, nil
}

var spaceRuns = regexp.MustCompile(`\s+`)

func headerIndex(header []string, name string) int {
	want := spaceRuns.ReplaceAllString(strings.TrimSpace(name), " ")
	for i, h := range header {
		got := spaceRuns.ReplaceAllString(strings.TrimSpace(h), " ")
		if strings.EqualFold(got, want) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
