package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rapport-agent/src/app"
	"rapport-agent/src/jobs"
)

// workerCmd runs job workers only
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued jobs from the Redpanda worker group",
	Long: `Joins the worker group and processes analysis jobs until interrupted.
Requires distributed mode (REDPANDA_BROKERS) and a shared job store.

Example:
  REDPANDA_BROKERS=localhost:19092 RAPPORT_STORE_DRIVER=postgres rapport worker`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(false)
		a, err := app.New(appConfig, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Mode() != jobs.ModeDistributed {
			return errors.New("worker needs distributed mode: set REDPANDA_BROKERS, e.g. localhost:19092")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("[Worker] Started with %d workers", appConfig.Jobs.Concurrency)
		if err := a.RunWorkers(ctx); err != nil {
			return err
		}
		log.Info("[Worker] Stopped")
		return nil
	},
}
