package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/usecase/schema"
	"github.com/urfave/cli/v3"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Inspect the database schema context",
		Commands: []*cli.Command{
			schemaShowCommand(),
			schemaRefreshCommand(),
		},
	}
}

// withSchema builds the schema engine and fails when the database is unreachable
func (cfg *config) withSchema(ctx context.Context, fn func(engine *schema.Engine) error) error {
	if cfg.dbDriver == "" {
		return goerr.New("db-driver is required")
	}
	engine, closeCatalog := cfg.newSchema(ctx)
	defer closeCatalog()

	if !engine.IsAvailable() {
		return goerr.New("database schema is unavailable", goerr.V("driver", cfg.dbDriver))
	}
	return fn(engine)
}

func schemaShowCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "show",
		Usage:     "Print the tables relevant to a query, or the first tables without one",
		ArgsUsage: "[query]",
		Flags:     joinFlags(globalFlags(&cfg), databaseFlags(&cfg)),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			query := strings.Join(c.Args().Slice(), " ")

			return cfg.withSchema(ctx, func(engine *schema.Engine) error {
				fmt.Fprintln(c.Root().Writer, engine.FilteredSchema(ctx, query))
				return nil
			})
		},
	}
}

func schemaRefreshCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "refresh",
		Usage: "Read the database catalog and print a summary",
		Flags: joinFlags(globalFlags(&cfg), databaseFlags(&cfg)),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)

			return cfg.withSchema(ctx, func(engine *schema.Engine) error {
				info := engine.Schema()
				w := c.Root().Writer
				fmt.Fprintf(w, "%d tables, %d foreign keys\n", len(info.Tables), len(info.ForeignKeys))
				for _, t := range info.Tables {
					fmt.Fprintf(w, "  %s.%s (%d columns)\n", t.Schema, t.Name, len(t.Columns))
				}
				return nil
			})
		},
	}
}
