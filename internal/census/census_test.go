package census

import (
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/naics"
)

// writeWorkbook builds an xlsx in memory with a header row and data rows.
func writeWorkbook(t *testing.T, sheet string, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheet); err != nil {
		t.Fatalf("failed to create sheet: %v", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("failed to build cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("failed to set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseSheet(t *testing.T) {
	data := writeWorkbook(t, sheetCodes, [][]string{
		{"Seq. No.", "2022 NAICS US   Code", "2022 NAICS US Title"},
		{"1", "31-33", "Manufacturing"},
		{"2", "511210", "Software Publishers"},
		{"3", "", "row without a code"},
	})

	rows, err := parseSheet(data, sheetCodes, headerCode, headerTitle)
	if err != nil {
		t.Fatalf("parseSheet failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want 2 (codeless row dropped)", len(rows))
	}
	if rows[0].Code != "31-33" || rows[0].Text != "Manufacturing" {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[1].Code != "511210" {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestParseSheet_MissingColumn(t *testing.T) {
	data := writeWorkbook(t, sheetCodes, [][]string{
		{"Wrong", "Headers"},
		{"1", "51"},
	})

	if _, err := parseSheet(data, sheetCodes, headerCode, headerTitle); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestParseSheet_MissingSheet(t *testing.T) {
	data := writeWorkbook(t, "SomeOtherSheet", [][]string{{"Code", "Description"}})

	if _, err := parseSheet(data, sheetDescriptions, headerDescCode, headerDescription); err == nil {
		t.Fatal("expected error for missing sheet")
	}
}

func TestLoad(t *testing.T) {
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	defer database.Close()

	// Pre-existing data is replaced by the load.
	stale := naics.Record{Code: "99", Level: 2, Title: "Stale", CreatedAt: 1, UpdatedAt: 1}
	if err := db.Insert(database, &stale); err != nil {
		t.Fatalf("failed to seed stale record: %v", err)
	}

	records := Build(buildFixture())
	batchID, err := Load(database, records, "census:2022", zap.NewNop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if batchID == "" {
		t.Error("expected a batch ID")
	}

	count, err := db.Count(database)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != len(records) {
		t.Errorf("record count = %d, want %d", count, len(records))
	}

	if _, err := db.GetByCode(database, "99"); err == nil {
		t.Error("stale record should have been replaced")
	}

	rec, err := db.GetByCode(database, "511210")
	if err != nil {
		t.Fatalf("failed to fetch loaded record: %v", err)
	}
	if rec.Title != "Software Publishers" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.CreatedAt == 0 || rec.UpdatedAt == 0 {
		t.Error("timestamps should be filled during load")
	}

	batches, err := db.ListBatches(database, 10)
	if err != nil {
		t.Fatalf("failed to list batches: %v", err)
	}
	if len(batches) != 1 || batches[0].Format != "census" {
		t.Errorf("batches = %+v, want one census batch", batches)
	}
}
