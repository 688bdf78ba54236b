package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lowmason/naics-editor/internal/config"
	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/naics"
	"github.com/lowmason/naics-editor/internal/ops"
)

// setupTestDB creates a temporary seeded database for testing.
func setupTestDB(t *testing.T) (*sql.DB, *config.Config, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}

	now := time.Now().Unix()
	records := []naics.Record{
		{Code: "51", Level: 2, Title: "Information"},
		{Code: "511", Level: 3, Title: "Publishing Industries",
			Examples: []string{"Newspaper publishers", "Software publishers"}},
		{Code: "5112", Level: 4, Title: "Software Publishers",
			Description: "This industry group comprises establishments publishing software."},
	}
	for i := range records {
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
		if err := db.Insert(database, &records[i]); err != nil {
			t.Fatalf("failed to seed %s: %v", records[i].Code, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{tmpDir}

	cleanup := func() {
		database.Close()
	}
	return database, cfg, cleanup
}

// runApp runs a CLI invocation and returns captured stdout.
func runApp(t *testing.T, app *cli.App, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"naics"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

func TestCLISearch(t *testing.T) {
	database, cfg, cleanup := setupTestDB(t)
	defer cleanup()
	app := newCLIApp(database, cfg)

	t.Run("search by pattern", func(t *testing.T) {
		out, err := runApp(t, app, "search", "publish")
		if err != nil {
			t.Fatalf("search command failed: %v", err)
		}

		var output ops.SearchOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(output.Items) != 2 {
			t.Errorf("items = %d, want 2", len(output.Items))
		}
	})

	t.Run("search restricted field", func(t *testing.T) {
		out, err := runApp(t, app, "search", "--field=examples", "newspaper")
		if err != nil {
			t.Fatalf("search command failed: %v", err)
		}

		var output ops.SearchOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(output.Items) != 1 || output.Items[0].Code != "511" {
			t.Errorf("items = %+v, want only 511", output.Items)
		}
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		_, err := runApp(t, app, "search")
		if err == nil {
			t.Fatal("expected an error for an empty query")
		}
		if !strings.Contains(err.Error(), "INVALID_QUERY") {
			t.Errorf("error = %v, want INVALID_QUERY", err)
		}
	})
}

func TestCLIShow(t *testing.T) {
	database, cfg, cleanup := setupTestDB(t)
	defer cleanup()
	app := newCLIApp(database, cfg)

	out, err := runApp(t, app, "show", "5112")
	if err != nil {
		t.Fatalf("show command failed: %v", err)
	}

	var output ops.FetchOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Record.Code != "5112" {
		t.Errorf("code = %s, want 5112", output.Record.Code)
	}
	if len(output.Parents) != 2 {
		t.Errorf("parents = %d, want 2", len(output.Parents))
	}

	if _, err := runApp(t, app, "show", "9999"); err == nil {
		t.Error("expected an error for a missing code")
	}

	if _, err := runApp(t, app, "show"); err == nil {
		t.Error("expected an error for a missing argument")
	}
}

func TestCLIList(t *testing.T) {
	database, cfg, cleanup := setupTestDB(t)
	defer cleanup()
	app := newCLIApp(database, cfg)

	out, err := runApp(t, app, "list", "--level=2")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}

	var output ops.ListOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Items) != 1 || output.Items[0].Code != "51" {
		t.Errorf("items = %+v, want only sector 51", output.Items)
	}
}

func TestCLIChildren(t *testing.T) {
	database, cfg, cleanup := setupTestDB(t)
	defer cleanup()
	app := newCLIApp(database, cfg)

	out, err := runApp(t, app, "children", "51")
	if err != nil {
		t.Fatalf("children command failed: %v", err)
	}

	var output ops.ChildrenOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Children) != 1 || output.Children[0].Code != "511" {
		t.Errorf("children = %+v, want only 511", output.Children)
	}
}

func TestCLIUpdate(t *testing.T) {
	database, cfg, cleanup := setupTestDB(t)
	defer cleanup()
	app := newCLIApp(database, cfg)

	out, err := runApp(t, app, "update", "5112",
		"--title=Software Publishers (Revised)",
		"--example=Packaged software publishers",
		"--example=Game studios")
	if err != nil {
		t.Fatalf("update command failed: %v", err)
	}

	var output ops.UpdateOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Record.Title != "Software Publishers (Revised)" {
		t.Errorf("title = %q", output.Record.Title)
	}
	if len(output.Record.Examples) != 2 {
		t.Errorf("examples = %v, want 2 entries", output.Record.Examples)
	}
	if len(output.Changed) != 2 {
		t.Errorf("changed = %v, want title and examples", output.Changed)
	}

	// Untouched description survives the edit.
	rec, err := db.GetByCode(database, "5112")
	if err != nil {
		t.Fatalf("failed to re-fetch: %v", err)
	}
	if !strings.Contains(rec.Description, "publishing software") {
		t.Errorf("description = %q, want untouched", rec.Description)
	}

	t.Run("no edits", func(t *testing.T) {
		_, err := runApp(t, app, "update", "5112")
		if err == nil {
			t.Fatal("expected an error for no edits")
		}
		if !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("error = %v, want INVALID_REQUEST", err)
		}
	})
}

func TestCLIInventory(t *testing.T) {
	database, cfg, cleanup := setupTestDB(t)
	defer cleanup()
	app := newCLIApp(database, cfg)

	out, err := runApp(t, app, "inventory")
	if err != nil {
		t.Fatalf("inventory command failed: %v", err)
	}

	var output ops.InventoryOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Total != 3 {
		t.Errorf("total = %d, want 3", output.Total)
	}
}

func TestCLIExportImport(t *testing.T) {
	database, cfg, cleanup := setupTestDB(t)
	defer cleanup()
	app := newCLIApp(database, cfg)

	path := filepath.Join(cfg.AllowedPaths[0], "cli-export.jsonl")

	out, err := runApp(t, app, "export", "--path="+path)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	var exportOutput ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &exportOutput); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if exportOutput.Count != 3 {
		t.Errorf("count = %d, want 3", exportOutput.Count)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file not written: %v", err)
	}

	out, err = runApp(t, app, "import", "--path="+path, "--mode=replace")
	if err != nil {
		t.Fatalf("import command failed: %v", err)
	}

	var importOutput ops.ImportOutput
	if err := json.Unmarshal([]byte(out), &importOutput); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if importOutput.Imported != 3 {
		t.Errorf("imported = %d, want 3", importOutput.Imported)
	}
}

func TestIsCLIMode(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "no args", args: []string{"naics"}, want: false},
		{name: "known command", args: []string{"naics", "search"}, want: true},
		{name: "help flag", args: []string{"naics", "--help"}, want: true},
		{name: "version flag", args: []string{"naics", "-v"}, want: true},
		{name: "unknown arg", args: []string{"naics", "bogus"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			if got := isCLIMode(); got != tt.want {
				t.Errorf("isCLIMode() = %v, want %v", got, tt.want)
			}
		})
	}
}
