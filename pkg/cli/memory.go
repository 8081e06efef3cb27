package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func memoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Manage episodic memories of past conversations",
		Commands: []*cli.Command{
			memoryAddCommand(),
			memoryListCommand(),
			memorySearchCommand(),
			memoryForgetCommand(),
			memoryClearCommand(),
			memoryBackfillCommand(),
		},
	}
}

func memoryFlagSet(cfg *config) []cli.Flag {
	return joinFlags(
		globalFlags(cfg),
		storeFlags(cfg),
		embeddingFlags(cfg),
		llmFlags(cfg),
		cloudFlags(cfg),
		memoryFlags(cfg),
	)
}

// withMemory builds the memory engine, runs fn and flushes pending changes
func (cfg *config) withMemory(ctx context.Context, fn func(engine *memory.Engine) error) error {
	store, closeStore, err := cfg.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		return err
	}
	llm, err := cfg.newLLM(ctx)
	if err != nil {
		return err
	}

	engine, err := cfg.newMemory(ctx, store, embedder, llm)
	if err != nil {
		return err
	}

	if err := fn(engine); err != nil {
		return err
	}
	if err := engine.Flush(ctx); err != nil {
		return goerr.Wrap(err, "failed to save memories")
	}
	return nil
}

func memoryAddCommand() *cli.Command {
	var (
		cfg       config
		user      string
		assistant string
	)

	flags := append(memoryFlagSet(&cfg),
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User message",
			Required:    true,
			Destination: &user,
		},
		&cli.StringFlag{
			Name:        "assistant",
			Aliases:     []string{"a"},
			Usage:       "Assistant reply",
			Required:    true,
			Destination: &assistant,
		},
	)

	return &cli.Command{
		Name:  "add",
		Usage: "Offer one user/assistant exchange to memory",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			return cfg.withMemory(ctx, func(engine *memory.Engine) error {
				result, err := engine.Record(ctx, user, assistant)
				if err != nil {
					return goerr.Wrap(err, "failed to record memory")
				}
				if result.Entry != nil {
					fmt.Fprintf(c.Root().Writer, "%s: %s\n", result.Status, result.Entry.Summary)
				} else {
					fmt.Fprintln(c.Root().Writer, result.Status)
				}
				return nil
			})
		},
	}
}

func memoryListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List stored memories",
		Flags: memoryFlagSet(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			return cfg.withMemory(ctx, func(engine *memory.Engine) error {
				w := c.Root().Writer
				for _, entry := range engine.Entries() {
					embedded := " "
					if entry.HasEmbedding() {
						embedded = "*"
					}
					fmt.Fprintf(w, "%s %s %s [%d] %s\n",
						embedded,
						entry.ID,
						entry.Time().Format(time.DateTime),
						entry.RetrievalCount,
						entry.Summary)
				}
				return nil
			})
		},
	}
}

func memorySearchCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "search",
		Usage:     "Show the memories relevant to a query with their scores",
		ArgsUsage: "<query>",
		Flags:     memoryFlagSet(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return goerr.New("query is required")
			}

			return cfg.withMemory(ctx, func(engine *memory.Engine) error {
				for _, m := range engine.Search(ctx, query) {
					fmt.Fprintf(c.Root().Writer, "%.3f (sim %.3f) %s\n", m.Score, m.Similarity, m.Entry.Summary)
				}
				return nil
			})
		},
	}
}

func memoryForgetCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "forget",
		Usage:     "Delete every memory containing a keyword",
		ArgsUsage: "<keyword>",
		Flags:     memoryFlagSet(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			keyword := c.Args().First()
			if keyword == "" {
				return goerr.New("keyword is required")
			}

			return cfg.withMemory(ctx, func(engine *memory.Engine) error {
				n := engine.Forget(ctx, keyword)
				fmt.Fprintf(c.Root().Writer, "%d memories removed\n", n)
				return nil
			})
		},
	}
}

func memoryClearCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all memories",
		Flags: memoryFlagSet(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			return cfg.withMemory(ctx, func(engine *memory.Engine) error {
				if err := engine.Clear(ctx); err != nil {
					return goerr.Wrap(err, "failed to clear memories")
				}
				fmt.Fprintln(c.Root().Writer, "memories cleared")
				return nil
			})
		},
	}
}

func memoryBackfillCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "backfill",
		Usage: "Embed memories stored while the embedding backend was down",
		Flags: memoryFlagSet(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			return cfg.withMemory(ctx, func(engine *memory.Engine) error {
				if !engine.IsAvailable() {
					return goerr.New("embedding backend is unavailable")
				}
				n := engine.Backfill(ctx)
				fmt.Fprintf(c.Root().Writer, "%d memories embedded\n", n)
				return nil
			})
		},
	}
}
