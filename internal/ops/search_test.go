package ops

import (
	"database/sql"
	"testing"
	"time"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

func setupTest(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedTest(t *testing.T, database *sql.DB) {
	t.Helper()
	now := time.Now().Unix()
	records := []naics.Record{
		{Code: "11", Level: 2, Title: "Agriculture, Forestry, Fishing and Hunting",
			Description: "The Sector as a Whole."},
		{Code: "111", Level: 3, Title: "Crop Production",
			Description: "Industries in the Crop Production subsector grow crops mainly for food and fiber.",
			Examples:    []string{"Wheat farming", "Corn farming"},
			Exclusions:  []string{"Agricultural research 5417"}},
		{Code: "1111", Level: 4, Title: "Oilseed and Grain Farming",
			Description: "This industry group comprises establishments primarily engaged in growing oilseed and grain crops."},
		{Code: "51", Level: 2, Title: "Information",
			Description: "Establishments that create and distribute information and cultural products."},
		{Code: "511", Level: 3, Title: "Publishing Industries",
			Description: "Industries in the Publishing Industries subsector."},
	}
	for i := range records {
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
		if err := db.Insert(database, &records[i]); err != nil {
			t.Fatalf("Insert(%s) error = %v", records[i].Code, err)
		}
	}
}

func TestSearch_Pattern(t *testing.T) {
	database := setupTest(t)
	seedTest(t, database)

	out, err := Search(database, SearchInput{Pattern: "crop"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(out.Items))
	}
	// Ascending code order.
	if out.Items[0].Code != "111" || out.Items[1].Code != "1111" {
		t.Errorf("codes = %s, %s; want 111, 1111", out.Items[0].Code, out.Items[1].Code)
	}
	if out.Items[0].MatchField != "title" {
		t.Errorf("MatchField = %q, want title", out.Items[0].MatchField)
	}
	if out.Sort != "code" {
		t.Errorf("Sort = %q, want code", out.Sort)
	}
}

func TestSearch_LevelAndPrefix(t *testing.T) {
	database := setupTest(t)
	seedTest(t, database)

	out, err := Search(database, SearchInput{Level: 3, CodePrefix: "11"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Code != "111" {
		t.Errorf("items = %+v, want just 111", out.Items)
	}
	// No pattern, so no match context.
	if out.Items[0].MatchField != "" || out.Items[0].Snippet != "" {
		t.Errorf("unexpected match context: %+v", out.Items[0])
	}
}

func TestSearch_ExclusionsField(t *testing.T) {
	database := setupTest(t)
	seedTest(t, database)

	out, err := Search(database, SearchInput{Pattern: "agricultural research"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Code != "111" {
		t.Fatalf("items = %+v, want just 111", out.Items)
	}
	if out.Items[0].MatchField != "exclusions" {
		t.Errorf("MatchField = %q, want exclusions", out.Items[0].MatchField)
	}
}

func TestSearch_Pagination(t *testing.T) {
	database := setupTest(t)
	seedTest(t, database)

	out, err := Search(database, SearchInput{CodePrefix: "11", Limit: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(out.Items))
	}
	if !out.Pagination.HasMore || out.Pagination.Total != 3 {
		t.Errorf("pagination = %+v", out.Pagination)
	}

	out, err = Search(database, SearchInput{CodePrefix: "11", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Code != "1111" {
		t.Errorf("second page = %+v", out.Items)
	}
	if out.Pagination.HasMore {
		t.Error("HasMore should be false on the last page")
	}
}

func TestSearch_NoFilters(t *testing.T) {
	database := setupTest(t)

	_, err := Search(database, SearchInput{})
	if !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("expected INVALID_QUERY, got %v", err)
	}
}

func TestSearch_InvalidPattern(t *testing.T) {
	database := setupTest(t)
	seedTest(t, database)

	_, err := Search(database, SearchInput{Pattern: "[unclosed"})
	if !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("expected INVALID_QUERY, got %v", err)
	}
}

func TestSearch_EmptyResult(t *testing.T) {
	database := setupTest(t)
	seedTest(t, database)

	out, err := Search(database, SearchInput{Pattern: "zzznomatch"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out.Items) != 0 || out.Pagination.Total != 0 {
		t.Errorf("expected empty result, got %+v", out)
	}
}
