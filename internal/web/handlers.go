package web

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lowmason/naics-editor/internal/config"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
	"github.com/lowmason/naics-editor/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI and JSON API.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	logger   *zap.Logger
	renderer *Renderer
}

// HandleList handles GET /codes: browse records by level and prefix.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Level:      parseIntParam(r, "level", 0),
		CodePrefix: r.URL.Query().Get("code"),
		Limit:      parseIntParam(r, "limit", 20),
		Offset:     parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Codes",
			Version: h.renderer.version,
			Nav:     "codes",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Level:      input.Level,
		CodePrefix: r.URL.Query().Get("code"),
	})
}

// HandleSearch handles GET /codes/search: regex search over the text fields.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("q")
	level := parseIntParam(r, "level", 0)
	prefix := r.URL.Query().Get("code")

	data := SearchPageData{
		PageData: PageData{
			Title:   "Search",
			Version: h.renderer.version,
			Nav:     "search",
		},
		Pattern:    pattern,
		Level:      level,
		CodePrefix: prefix,
		HasQuery:   pattern != "" || level != 0 || prefix != "",
	}

	if !data.HasQuery {
		h.renderer.renderPage(w, "search", data)
		return
	}

	input := ops.SearchInput{
		Level:      level,
		CodePrefix: prefix,
		Pattern:    pattern,
		Limit:      parseIntParam(r, "limit", 20),
		Offset:     parseIntParam(r, "offset", 0),
	}

	result, err := ops.Search(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data.Items = result.Items
	data.Pagination = result.Pagination

	h.renderer.renderPage(w, "search", data)
}

// HandleInventory handles GET /codes/inventory: dataset statistics.
func (h *Handlers) HandleInventory(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Inventory(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "inventory", InventoryPageData{
		PageData: PageData{
			Title:   "Inventory",
			Version: h.renderer.version,
			Nav:     "inventory",
		},
		Inventory: result,
	})
}

// HandleDetail handles GET /codes/{code}: view a single record.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("code is required"))
		return
	}

	record, err := ops.Fetch(h.db, ops.FetchInput{Code: code})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   record.Record.Code + " " + record.Record.Title,
			Version: h.renderer.version,
			Nav:     "codes",
		},
		Record:          record,
		DescriptionHTML: renderMarkdown(record.Record.Description),
	})
}

// HandleEditForm handles GET /codes/{code}/edit: show the edit form.
func (h *Handlers) HandleEditForm(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	record, err := ops.Fetch(h.db, ops.FetchInput{Code: code})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "edit", EditPageData{
		PageData: PageData{
			Title:   "Edit " + record.Record.Code,
			Version: h.renderer.version,
			Nav:     "codes",
		},
		Record:     record.Record,
		Examples:   strings.Join(record.Record.Examples, "\n"),
		Exclusions: strings.Join(record.Record.Exclusions, "\n"),
	})
}

// HandleEditSubmit handles POST /codes/{code}: apply form edits.
// Examples and exclusions arrive as one entry per textarea line.
func (h *Handlers) HandleEditSubmit(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	edits := map[string]any{
		naics.FieldTitle:       r.FormValue("title"),
		naics.FieldDescription: r.FormValue("description"),
		naics.FieldExamples:    splitLines(r.FormValue("examples")),
		naics.FieldExclusions:  splitLines(r.FormValue("exclusions")),
	}

	result, err := ops.Update(h.db, ops.UpdateInput{Code: code, Edits: edits})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.logger.Info("record updated",
		zap.String("code", result.Record.Code),
		zap.Strings("fields", result.Changed))

	http.Redirect(w, r, "/codes/"+result.Record.Code, http.StatusFound)
}

// HandleAPIList handles GET /api/codes: filtered records as JSON.
// Query parameters: level, code (prefix), search (regex pattern),
// limit, offset.
func (h *Handlers) HandleAPIList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pattern := q.Get("search")

	// Without a pattern this is a plain browse; with one it is a search.
	if pattern == "" && q.Get("level") == "" && q.Get("code") == "" {
		result, err := ops.List(h.db, ops.ListInput{
			Limit:  parseIntParam(r, "limit", 20),
			Offset: parseIntParam(r, "offset", 0),
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, result)
		return
	}

	result, err := ops.Search(h.db, ops.SearchInput{
		Level:      parseIntParam(r, "level", 0),
		CodePrefix: q.Get("code"),
		Pattern:    pattern,
		Limit:      parseIntParam(r, "limit", 20),
		Offset:     parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIFetch handles GET /api/codes/{code}: one record with its
// hierarchy context.
func (h *Handlers) HandleAPIFetch(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Fetch(h.db, ops.FetchInput{Code: r.PathValue("code")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// apiUpdateRequest is the PUT /api/codes/{code} body: either a single
// field/value pair or a map of edits.
type apiUpdateRequest struct {
	Field string         `json:"field,omitempty"`
	Value any            `json:"value,omitempty"`
	Edits map[string]any `json:"edits,omitempty"`
}

// HandleAPIUpdate handles PUT /api/codes/{code}: apply field edits.
func (h *Handlers) HandleAPIUpdate(w http.ResponseWriter, r *http.Request) {
	var req apiUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
		return
	}

	edits := req.Edits
	if edits == nil {
		if req.Field == "" {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("field or edits is required"))
			return
		}
		edits = map[string]any{req.Field: req.Value}
	}

	result, err := ops.Update(h.db, ops.UpdateInput{
		Code:  r.PathValue("code"),
		Edits: edits,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.logger.Info("record updated",
		zap.String("code", result.Record.Code),
		zap.Strings("fields", result.Changed))

	renderJSON(w, http.StatusOK, result)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// splitLines turns textarea input into a list, one entry per non-empty line.
func splitLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
