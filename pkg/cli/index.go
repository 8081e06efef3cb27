package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/urfave/cli/v3"
)

func indexCommand() *cli.Command {
	var (
		cfg   config
		force bool
	)

	flags := joinFlags(
		globalFlags(&cfg),
		storeFlags(&cfg),
		embeddingFlags(&cfg),
		cloudFlags(&cfg),
		[]cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Aliases:     []string{"f"},
				Usage:       "Re-embed every document even when the cache is valid",
				Destination: &force,
			},
		},
	)

	return &cli.Command{
		Name:  "index",
		Usage: "Embed the document folder into the vector index",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)

			store, closeStore, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}
			engine := cfg.newVector(embedder, store)

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " indexing " + cfg.docsDir
			s.Start()

			var result *model.RunResult
			if force {
				if !engine.Probe(ctx) {
					s.Stop()
					return goerr.New("embedding backend is unavailable", goerr.V("model", embedder.ModelName()))
				}
				result, err = engine.Index(ctx)
			} else {
				result = engine.Initialize(ctx)
			}
			s.Stop()

			if err != nil {
				return goerr.Wrap(err, "failed to index documents")
			}
			if result.Status == model.RunFailed {
				return goerr.New("indexing failed", goerr.V("model", embedder.ModelName()))
			}

			fmt.Fprintf(c.Root().Writer, "%s: %d files, %d chunks\n", result.Status, result.Files, result.Entries)
			return nil
		},
	}
}
