package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Descriptions are what MCP clients show to the model,
// so they spell out defaults and limits explicitly.

var searchToolDef = mcp.NewTool("naics_search",
	mcp.WithDescription("Search NAICS classification records by level, code prefix, and/or a case-insensitive regular expression over the text fields. At least one of level, code, or pattern is required. Results are sorted by code, which is also hierarchical order."),
	mcp.WithNumber("level",
		mcp.Description("Restrict to a hierarchy level: 2 (sector) through 6 (national industry)."),
	),
	mcp.WithString("code",
		mcp.Description("Restrict to codes starting with this digit prefix. Combined sector codes like 44-45 are accepted and normalized."),
	),
	mcp.WithString("pattern",
		mcp.Description("Regular expression matched case-insensitively against record text."),
	),
	mcp.WithArray("fields",
		mcp.Description("Restrict the pattern to these fields: title, description, examples, exclusions. Default: all four."),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default 20, max 100)."),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of results to skip for pagination (default 0)."),
	),
)

var fetchToolDef = mcp.NewTool("naics_fetch",
	mcp.WithDescription("Fetch one NAICS record by code, with its ancestors and direct children."),
	mcp.WithString("code",
		mcp.Required(),
		mcp.Description("NAICS code, 2 to 6 digits. Combined sector codes like 44-45 are accepted."),
	),
)

var fetchManyToolDef = mcp.NewTool("naics_fetch_many",
	mcp.WithDescription("Fetch up to 50 NAICS records by code in one call. Codes that fail resolve into per-code errors; the rest still succeed."),
	mcp.WithArray("codes",
		mcp.Required(),
		mcp.Description("NAICS codes to fetch (max 50)."),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var listToolDef = mcp.NewTool("naics_list",
	mcp.WithDescription("List NAICS records in code order, optionally restricted by level or code prefix. Paginated."),
	mcp.WithNumber("level",
		mcp.Description("Restrict to a hierarchy level: 2 through 6."),
	),
	mcp.WithString("code",
		mcp.Description("Restrict to codes starting with this digit prefix."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default 20, max 100)."),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of results to skip for pagination (default 0)."),
	),
)

var childrenToolDef = mcp.NewTool("naics_children",
	mcp.WithDescription("List the direct children of a NAICS code (records one level down whose codes extend it)."),
	mcp.WithString("code",
		mcp.Required(),
		mcp.Description("Parent NAICS code, 2 to 5 digits."),
	),
)

var updateToolDef = mcp.NewTool("naics_update",
	mcp.WithDescription("Edit fields of a NAICS record. Editable fields: title, description (strings), examples, exclusions (string lists). All edits apply atomically; an invalid field or value rejects the whole call."),
	mcp.WithString("code",
		mcp.Required(),
		mcp.Description("NAICS code of the record to edit."),
	),
	mcp.WithObject("edits",
		mcp.Required(),
		mcp.Description("Map of field name to new value, e.g. {\"title\": \"New title\", \"examples\": [\"one\", \"two\"]}."),
	),
)

var inventoryToolDef = mcp.NewTool("naics_inventory",
	mcp.WithDescription("Summarize the dataset: total record count, counts by level, counts by sector, and recent import batches."),
)

var exportToolDef = mcp.NewTool("naics_export",
	mcp.WithDescription("Export records to a JSONL or CSV file. The path must end in .jsonl or .csv and sit directly in an allowed directory (default ~/.naics/exports)."),
	mcp.WithString("path",
		mcp.Description("Destination file path. Default: ~/.naics/exports/naics-<timestamp>.jsonl."),
	),
	mcp.WithNumber("level",
		mcp.Description("Only export records at this level."),
	),
	mcp.WithString("code",
		mcp.Description("Only export records whose codes start with this prefix."),
	),
)

var importToolDef = mcp.NewTool("naics_import",
	mcp.WithDescription("Import records from a JSONL or CSV file. Mode 'error' fails on any code collision; mode 'replace' overwrites existing records on collision. Both modes are atomic."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Source file path, ending in .jsonl or .csv."),
	),
	mcp.WithString("mode",
		mcp.Description("Collision handling: 'error' (default) or 'replace'."),
		mcp.Enum("error", "replace"),
	),
)
