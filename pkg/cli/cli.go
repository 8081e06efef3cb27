package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// Version is overwritten at build time
var Version = "dev"

type Error struct {
	Code    int
	Message string
}

// Run executes the recall command line. A .env file in the working
// directory is loaded first, without overriding variables already set.
func Run(ctx context.Context, argv []string) *Error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{
			Code:    1,
			Message: "failed to load .env: " + err.Error(),
		}
	}

	cmd := &cli.Command{
		Name:    "recall",
		Usage:   "Retrieval context for a grounded conversational agent",
		Version: Version,
		Commands: []*cli.Command{
			indexCommand(),
			retrieveCommand(),
			knowledgeCommand(),
			memoryCommand(),
			schemaCommand(),
			chatCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
