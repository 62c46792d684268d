// Package main provides the MCP server entry point for Rapport.
// It serves the analysis tools over stdin/stdout; logs go to stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rapport-agent/src/app"
	"rapport-agent/src/config"
	"rapport-agent/src/jobs"
	"rapport-agent/src/logger"
	"rapport-agent/src/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("RAPPORT_CONFIG"))
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Submitted jobs need a worker in this process unless a group runs them.
	if a.Mode() == jobs.ModeLocal {
		go func() {
			if err := a.RunWorkers(ctx); err != nil && ctx.Err() == nil {
				log.Error("[MCP] Workers stopped: %v", err)
			}
		}()
	}

	log.Info("[MCP] Serving on stdio (%s mode)", a.Mode())
	return mcp.NewServer(a.Orchestrator, a.Manager, a.History, log).Run()
}
