package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat grounded on documents, knowledge, schema and memories",
		Flags: allFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)

			eng, err := cfg.openEngines(ctx)
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			if eng.llm == nil {
				return goerr.New("chat requires an llm backend")
			}

			// Documents become searchable once the first index pass ends
			go func() {
				result := eng.vector.Initialize(ctx)
				logging.From(ctx).Debug("document engine initialized", "status", result.Status)
			}()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     filepath.Join(cfg.dataDir, "chat_history"),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			session := eng.session()
			defer session.Wait()

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started. Type 'exit' to quit.\n")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				answer, err := session.Send(ctx, message)
				if err != nil {
					logging.From(ctx).Error("failed to answer", "error", err)
					continue
				}
				fmt.Fprintf(w, "%s\n\n", answer)
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}
