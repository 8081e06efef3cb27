package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func knowledgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "knowledge",
		Usage: "Manage the knowledge base text",
		Commands: []*cli.Command{
			knowledgeSetCommand(),
			knowledgeShowCommand(),
		},
	}
}

func knowledgeSetCommand() *cli.Command {
	var (
		cfg   config
		input string
	)

	flags := joinFlags(globalFlags(&cfg), storeFlags(&cfg), []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "File to read the text from. Reads stdin when omitted and no text argument is given",
			Destination: &input,
		},
	})

	return &cli.Command{
		Name:      "set",
		Usage:     "Replace the knowledge base text",
		ArgsUsage: "[text]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)

			var text string
			switch {
			case input != "":
				raw, err := os.ReadFile(input)
				if err != nil {
					return goerr.Wrap(err, "failed to read input", goerr.V("path", input))
				}
				text = string(raw)
			case c.Args().Present():
				text = strings.Join(c.Args().Slice(), " ")
			default:
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return goerr.Wrap(err, "failed to read stdin")
				}
				text = string(raw)
			}

			store, closeStore, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			engine, err := cfg.newKnowledge(ctx, store)
			if err != nil {
				return err
			}
			engine.SetText(text)
			if err := engine.Flush(ctx); err != nil {
				return goerr.Wrap(err, "failed to save knowledge")
			}

			fmt.Fprintf(c.Root().Writer, "knowledge updated: %d chunks\n", len(engine.Chunks()))
			return nil
		},
	}
}

func knowledgeShowCommand() *cli.Command {
	var (
		cfg    config
		chunks bool
	)

	flags := joinFlags(globalFlags(&cfg), storeFlags(&cfg), []cli.Flag{
		&cli.BoolFlag{
			Name:        "chunks",
			Usage:       "Print the chunks instead of the raw text",
			Destination: &chunks,
		},
	})

	return &cli.Command{
		Name:  "show",
		Usage: "Print the knowledge base text",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)

			store, closeStore, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			engine, err := cfg.newKnowledge(ctx, store)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if !chunks {
				fmt.Fprintln(w, engine.Text())
				return nil
			}
			for i, chunk := range engine.Chunks() {
				fmt.Fprintf(w, "--- chunk %d ---\n%s\n", i+1, chunk.Content)
			}
			return nil
		},
	}
}
