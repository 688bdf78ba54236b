package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lowmason/naics-editor/internal/census"
	"github.com/lowmason/naics-editor/internal/config"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/ops"
	"github.com/lowmason/naics-editor/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "naics",
		Usage:   "NAICS reference browser and editor",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(db, cfg),
			searchCmd(db),
			showCmd(db),
			listCmd(db),
			childrenCmd(db),
			updateCmd(db),
			inventoryCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			preprocessCmd(db),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return cli.Exit(fmt.Sprintf("failed to create logger: %v", err), 1)
			}
			defer logger.Sync() //nolint:errcheck

			bind := cfg.Bind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			srv := web.NewServer(db, cfg, logger, Version, bind, port)
			if err := web.Run(srv, logger); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// searchCmd creates the search command.
func searchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search records by level, code prefix, and/or regex pattern",
		ArgsUsage: "[pattern]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "level", Usage: "Hierarchy level (2-6)"},
			&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Usage: "Code prefix"},
			&cli.StringSliceFlag{Name: "field", Aliases: []string{"f"}, Usage: "Restrict pattern to a field (repeatable)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SearchInput{
				Level:      c.Int("level"),
				CodePrefix: c.String("code"),
				Fields:     c.StringSlice("field"),
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
			}
			if c.NArg() > 0 {
				input.Pattern = c.Args().First()
			}

			output, err := ops.Search(db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a record with its ancestors and children",
		ArgsUsage: "<code>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("code argument is required"))
			}

			output, err := ops.Fetch(db, ops.FetchInput{Code: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List records in code order",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "level", Usage: "Hierarchy level (2-6)"},
			&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Usage: "Code prefix"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				Level:      c.Int("level"),
				CodePrefix: c.String("code"),
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
			}

			output, err := ops.List(db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// childrenCmd creates the children command.
func childrenCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "children",
		Usage:     "List the direct children of a code",
		ArgsUsage: "<code>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("code argument is required"))
			}

			output, err := ops.Children(db, ops.ChildrenInput{Code: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Edit fields of a record",
		ArgsUsage: "<code>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
			&cli.StringSliceFlag{Name: "example", Usage: "Replacement example (repeatable; empty list clears)"},
			&cli.StringSliceFlag{Name: "exclusion", Usage: "Replacement exclusion (repeatable; empty list clears)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("code argument is required"))
			}

			edits := make(map[string]any)
			if c.IsSet("title") {
				edits["title"] = c.String("title")
			}
			if c.IsSet("description") {
				edits["description"] = c.String("description")
			}
			if c.IsSet("example") {
				edits["examples"] = c.StringSlice("example")
			}
			if c.IsSet("exclusion") {
				edits["exclusions"] = c.StringSlice("exclusion")
			}

			output, err := ops.Update(db, ops.UpdateInput{
				Code:  c.Args().First(),
				Edits: edits,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// inventoryCmd creates the inventory command.
func inventoryCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "inventory",
		Usage: "Summarize the dataset by level and sector",
		Action: func(c *cli.Context) error {
			output, err := ops.Inventory(db)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export records to a JSONL or CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.naics/exports/naics-<timestamp>.jsonl)"},
			&cli.IntFlag{Name: "level", Usage: "Only export records at this level"},
			&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Usage: "Only export codes with this prefix"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{
				Path:       c.String("path"),
				Level:      c.Int("level"),
				CodePrefix: c.String("code"),
			}

			output, err := ops.Export(db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import records from a JSONL or CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			}

			output, err := ops.Import(db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// preprocessCmd creates the preprocess command.
func preprocessCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "preprocess",
		Usage: "Download the 2022 Census workbooks and replace the dataset",
		Action: func(c *cli.Context) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return cli.Exit(fmt.Sprintf("failed to create logger: %v", err), 1)
			}
			defer logger.Sync() //nolint:errcheck

			src := census.DefaultSources()
			raw, err := census.Download(context.Background(), nil, src, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("download failed: %v", err), 1)
			}

			records := census.Build(raw)
			batchID, err := census.Load(db, records, src.CodesURL, logger)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"batch_id": batchID,
				"records":  len(records),
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
