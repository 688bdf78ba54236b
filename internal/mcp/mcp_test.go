package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lowmason/naics-editor/internal/config"
	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/naics"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{tmpDir}

	cleanup := func() {
		database.Close()
	}

	return database, cfg, cleanup
}

// seedRecords inserts a small publishing hierarchy for handler tests.
func seedRecords(t *testing.T, database *sql.DB) {
	t.Helper()

	now := time.Now().Unix()
	records := []naics.Record{
		{Code: "51", Level: 2, Title: "Information",
			Description: "Industries that publish, distribute, or provide access to information."},
		{Code: "511", Level: 3, Title: "Publishing Industries",
			Examples: []string{"Newspaper publishers", "Software publishers"}},
		{Code: "5112", Level: 4, Title: "Software Publishers",
			Exclusions: []string{"Custom software development (see 5415)"}},
		{Code: "54", Level: 2, Title: "Professional, Scientific, and Technical Services"},
	}
	for i := range records {
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
		if err := db.Insert(database, &records[i]); err != nil {
			t.Fatalf("failed to seed %s: %v", records[i].Code, err)
		}
	}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleSearch(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "search by pattern",
			args:      map[string]any{"pattern": "publish"},
			wantError: false,
		},
		{
			name:      "search by level",
			args:      map[string]any{"level": 2},
			wantError: false,
		},
		{
			name:      "search restricted to examples",
			args:      map[string]any{"pattern": "software", "fields": []any{"examples"}},
			wantError: false,
		},
		{
			name:      "empty query",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_QUERY",
		},
		{
			name:      "invalid regex",
			args:      map[string]any{"pattern": "[unclosed"},
			wantError: true,
			errorCode: "INVALID_QUERY",
		},
		{
			name:      "level out of range",
			args:      map[string]any{"level": 7},
			wantError: true,
			errorCode: "INVALID_QUERY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSearch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			checkResult(t, result, tt.wantError, tt.errorCode)
		})
	}
}

func TestHandleSearch_MatchDetails(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)

	result, err := h.HandleSearch(context.Background(), makeRequest(map[string]any{
		"pattern": "newspaper",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}

	output := unmarshalResult(t, result)
	items, ok := output["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %v, want exactly one match", output["items"])
	}
	item := items[0].(map[string]any)
	if item["code"] != "511" {
		t.Errorf("matched code = %v, want 511", item["code"])
	}
	if item["match_field"] != "examples" {
		t.Errorf("match_field = %v, want examples", item["match_field"])
	}
}

func TestHandleFetch(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "fetch existing code",
			args:      map[string]any{"code": "5112"},
			wantError: false,
		},
		{
			name:      "fetch missing code",
			args:      map[string]any{"code": "99"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "fetch malformed code",
			args:      map[string]any{"code": "5x"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleFetch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			checkResult(t, result, tt.wantError, tt.errorCode)
		})
	}
}

func TestHandleFetch_IncludesAncestry(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)

	result, err := h.HandleFetch(context.Background(), makeRequest(map[string]any{"code": "5112"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}

	output := unmarshalResult(t, result)
	record := output["record"].(map[string]any)
	if record["code"] != "5112" {
		t.Errorf("record code = %v, want 5112", record["code"])
	}
	parents, _ := output["parents"].([]any)
	if len(parents) != 2 {
		t.Fatalf("parents count = %d, want 2", len(parents))
	}
	first := parents[0].(map[string]any)
	if first["code"] != "51" {
		t.Errorf("first parent = %v, want 51 (sector first)", first["code"])
	}
}

func TestHandleFetchMany(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)

	result, err := h.HandleFetchMany(context.Background(), makeRequest(map[string]any{
		"codes": []any{"51", "5112", "99", "bad-code"},
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected partial success, got error: %v", extractErrorMessage(result))
	}

	output := unmarshalResult(t, result)
	items, _ := output["items"].([]any)
	if len(items) != 2 {
		t.Errorf("items count = %d, want 2", len(items))
	}
	errs, _ := output["errors"].([]any)
	if len(errs) != 2 {
		t.Errorf("errors count = %d, want 2", len(errs))
	}
}

func TestHandleList(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)

	result, err := h.HandleList(context.Background(), makeRequest(map[string]any{"level": 2}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}

	output := unmarshalResult(t, result)
	items, _ := output["items"].([]any)
	if len(items) != 2 {
		t.Errorf("items count = %d, want 2 sectors", len(items))
	}
}

func TestHandleChildren(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	result, err := h.HandleChildren(ctx, makeRequest(map[string]any{"code": "51"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	output := unmarshalResult(t, result)
	children, _ := output["children"].([]any)
	if len(children) != 1 {
		t.Errorf("children count = %d, want 1", len(children))
	}

	result, err = h.HandleChildren(ctx, makeRequest(map[string]any{"code": "99"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	checkResult(t, result, true, "NOT_FOUND")
}

func TestHandleUpdate(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "update title and examples",
			args: map[string]any{
				"code": "5112",
				"edits": map[string]any{
					"title":    "Software Publishers (Revised)",
					"examples": []any{"Packaged software publishers"},
				},
			},
			wantError: false,
		},
		{
			name: "unknown field",
			args: map[string]any{
				"code":  "5112",
				"edits": map[string]any{"bogus": "value"},
			},
			wantError: true,
			errorCode: "FIELD_NOT_FOUND",
		},
		{
			name: "wrong value shape",
			args: map[string]any{
				"code":  "5112",
				"edits": map[string]any{"examples": "not a list"},
			},
			wantError: true,
			errorCode: "INVALID_VALUE",
		},
		{
			name: "missing record",
			args: map[string]any{
				"code":  "9999",
				"edits": map[string]any{"title": "nope"},
			},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name: "no edits",
			args: map[string]any{
				"code":  "5112",
				"edits": map[string]any{},
			},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleUpdate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			checkResult(t, result, tt.wantError, tt.errorCode)
		})
	}

	// The successful edit persisted; the failed ones did not.
	rec, err := db.GetByCode(database, "5112")
	if err != nil {
		t.Fatalf("failed to re-fetch record: %v", err)
	}
	if rec.Title != "Software Publishers (Revised)" {
		t.Errorf("title = %q, want revised title", rec.Title)
	}
	if len(rec.Exclusions) != 1 {
		t.Errorf("exclusions = %v, want untouched original", rec.Exclusions)
	}
}

func TestHandleInventory(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)

	result, err := h.HandleInventory(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}

	output := unmarshalResult(t, result)
	if total, _ := output["total"].(float64); int(total) != 4 {
		t.Errorf("total = %v, want 4", output["total"])
	}
}

func TestHandleExportImport(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	seedRecords(t, database)

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	path := filepath.Join(cfg.AllowedPaths[0], "roundtrip.jsonl")
	exportResult, err := h.HandleExport(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("export handler returned error: %v", err)
	}
	if exportResult.IsError {
		t.Fatalf("export failed: %v", extractErrorMessage(exportResult))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file not written: %v", err)
	}

	importResult, err := h.HandleImport(ctx, makeRequest(map[string]any{
		"path": path,
		"mode": "replace",
	}))
	if err != nil {
		t.Fatalf("import handler returned error: %v", err)
	}
	if importResult.IsError {
		t.Fatalf("import failed: %v", extractErrorMessage(importResult))
	}

	output := unmarshalResult(t, importResult)
	if imported, _ := output["imported"].(float64); int(imported) != 4 {
		t.Errorf("imported = %v, want 4", output["imported"])
	}

	// Re-import in mode error collides and imports nothing.
	collideResult, err := h.HandleImport(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("import handler returned error: %v", err)
	}
	if collideResult.IsError {
		t.Fatalf("collision should report per-record errors, not fail: %v", extractErrorMessage(collideResult))
	}
	collideOutput := unmarshalResult(t, collideResult)
	if imported, _ := collideOutput["imported"].(float64); int(imported) != 0 {
		t.Errorf("imported = %v, want 0 on collision", collideOutput["imported"])
	}
	if errs, _ := collideOutput["errors"].([]any); len(errs) == 0 {
		t.Error("expected collision errors in output")
	}
}

func TestHandleImport_InvalidMode(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)

	result, err := h.HandleImport(context.Background(), makeRequest(map[string]any{
		"path": filepath.Join(cfg.AllowedPaths[0], "data.jsonl"),
		"mode": "merge",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	checkResult(t, result, true, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(database, cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"naics_search",
		"naics_fetch",
		"naics_fetch_many",
		"naics_list",
		"naics_children",
		"naics_update",
		"naics_inventory",
		"naics_export",
		"naics_import",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = []string{"naics_import", "naics_export"}
	s := NewServer(database, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}

	for _, name := range []string{"naics_import", "naics_export"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}

	for _, name := range []string{"naics_search", "naics_fetch", "naics_update"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = AllToolNames()
	s := NewServer(database, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"naics_search", "naics_purge", "bogus"})
	if len(unknown) != 2 {
		t.Fatalf("unknown count = %d, want 2", len(unknown))
	}

	if unknown := ValidateDisabledTools(nil); len(unknown) != 0 {
		t.Errorf("unknown = %v, want empty for nil input", unknown)
	}
}

func TestErrorResult_StorageDoesNotExposeDetails(t *testing.T) {
	err := &testStorageError{}
	result := errorResult(err)

	if !result.IsError {
		t.Fatal("expected IsError")
	}

	var payload map[string]any
	text := result.Content[0].(mcp.TextContent).Text
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	errorObj := payload["error"].(map[string]any)
	if errorObj["code"] != "STORAGE" {
		t.Errorf("code = %v, want STORAGE", errorObj["code"])
	}
	if _, ok := errorObj["details"]; ok {
		t.Error("storage errors must not include details")
	}
}

type testStorageError struct{}

func (e *testStorageError) Error() string { return "disk on fire" }

// Test result helpers

func checkResult(t *testing.T, result *mcp.CallToolResult, wantError bool, errorCode string) {
	t.Helper()

	if wantError {
		if !result.IsError {
			t.Errorf("expected error result, got success")
			return
		}
		if errorCode != "" {
			assertErrorCode(t, result, errorCode)
		}
	} else if result.IsError {
		t.Errorf("expected success, got error: %v", extractErrorMessage(result))
	}
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}
	if code != expectedCode {
		t.Errorf("error code = %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent")
	}

	var output map[string]any
	if err := json.Unmarshal([]byte(text.Text), &output); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	return output
}
