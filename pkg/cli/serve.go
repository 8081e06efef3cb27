package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/service/mcp"
	"github.com/m-mizutani/recall/pkg/service/scheduler"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg             config
		transport       string
		addr            string
		reprobeSchedule string
		refreshSchedule string
	)

	flags := append(allFlags(&cfg),
		&cli.StringFlag{
			Name:        "transport",
			Aliases:     []string{"t"},
			Usage:       "MCP transport (stdio, http)",
			Value:       "stdio",
			Sources:     envVars("TRANSPORT"),
			Destination: &transport,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address of the http transport",
			Value:       "127.0.0.1:8080",
			Sources:     envVars("ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "reprobe-schedule",
			Usage:       "Cron schedule of embedding backend re-probe and memory backfill",
			Value:       "@every 1m",
			Sources:     envVars("REPROBE_SCHEDULE"),
			Destination: &reprobeSchedule,
		},
		&cli.StringFlag{
			Name:        "schema-refresh-schedule",
			Usage:       "Cron schedule of database schema refresh. Empty disables it",
			Value:       "@every 30m",
			Sources:     envVars("SCHEMA_REFRESH_SCHEDULE"),
			Destination: &refreshSchedule,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the engines as MCP tools",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// stdout carries the protocol stream on stdio
			ctx = cfg.setupLogger(ctx, os.Stderr)
			logger := logging.From(ctx)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := cfg.openEngines(ctx)
			if err != nil {
				return err
			}
			defer eng.Close(context.WithoutCancel(ctx))

			go func() {
				result := eng.vector.Initialize(ctx)
				logger.Info("document engine initialized", "status", result.Status, "entries", result.Entries)
			}()

			sched := scheduler.New()
			if err := sched.Add("reconnect-documents", reprobeSchedule, scheduler.ReconnectDocuments(eng.vector)); err != nil {
				return err
			}
			if err := sched.Add("backfill-memories", reprobeSchedule, scheduler.BackfillMemories(eng.memory)); err != nil {
				return err
			}
			if refreshSchedule != "" && cfg.dbDriver != "" {
				if err := sched.Add("refresh-schema", refreshSchedule, scheduler.RefreshSchema(eng.schema)); err != nil {
					return err
				}
			}
			sched.Start(ctx)
			defer sched.Stop()

			server := mcp.NewServer(c.Root().Version,
				mcp.WithDocuments(eng.vector),
				mcp.WithKnowledge(eng.knowledge),
				mcp.WithMemory(eng.memory),
				mcp.WithSchema(eng.schema),
			)

			switch transport {
			case "stdio":
				logger.Info("serving MCP on stdio")
				return server.RunStdio(ctx)

			case "http":
				return serveHTTP(ctx, addr, server.Handler())
			}

			return goerr.New("unknown transport", goerr.V("transport", transport))
		},
	}
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("serving MCP over http", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return goerr.Wrap(err, "http server failed", goerr.V("addr", addr))
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown http server")
		}
		return nil
	}
}
