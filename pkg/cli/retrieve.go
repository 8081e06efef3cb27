package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/utils/tokens"
	"github.com/urfave/cli/v3"
)

func retrieveCommand() *cli.Command {
	var (
		cfg    config
		prompt bool
	)

	flags := append(allFlags(&cfg), &cli.BoolFlag{
		Name:        "prompt",
		Usage:       "Print the rendered system prompt instead of each section",
		Destination: &prompt,
	})

	return &cli.Command{
		Name:      "retrieve",
		Usage:     "Print the context every engine returns for a query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)

			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return goerr.New("query is required")
			}

			eng, err := cfg.openEngines(ctx)
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			eng.vector.Initialize(ctx)
			retrieved := eng.session().Gather(ctx, query)
			w := c.Root().Writer

			if prompt {
				text, err := retrieved.Prompt()
				if err != nil {
					return err
				}
				fmt.Fprintln(w, text)
				fmt.Fprintf(w, "\n(%d tokens)\n", tokens.Count(text))
				return nil
			}

			sections := []struct {
				name string
				text string
			}{
				{"knowledge", retrieved.Knowledge},
				{"documents", retrieved.Documents},
				{"schema", retrieved.Schema},
				{"memories", retrieved.Memories},
			}

			total := 0
			for _, sec := range sections {
				n := tokens.Count(sec.text)
				total += n
				fmt.Fprintf(w, "=== %s (%d tokens) ===\n", sec.name, n)
				if sec.text == "" {
					fmt.Fprintln(w, "(no context)")
				} else {
					fmt.Fprintln(w, sec.text)
				}
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "total: %d tokens\n", total)
			return nil
		},
	}
}
