package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rapport-agent/src/api"
	"rapport-agent/src/app"
	"rapport-agent/src/jobs"
)

var (
	serveAddr    string
	serveWorkers bool
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and job workers",
	Long: `Serves the HTTP API and, unless --workers=false, processes queued jobs in
the same process.

In distributed mode API nodes can run without workers and leave jobs to
'rapport worker' processes.

Example:
  rapport serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(false)
		a, err := app.New(appConfig, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if !serveWorkers && a.Mode() == jobs.ModeLocal {
			log.Info("[Server] Local mode without workers: submitted jobs will stay pending")
		}

		addr := appConfig.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e := api.NewServer(api.NewHandler(a.Orchestrator, a.Manager, a.History, log, api.WithMaxBytes(appConfig.Analysis.MaxInputBytes)))
		g, ctx := errgroup.WithContext(ctx)
		if serveWorkers {
			g.Go(func() error { return a.RunWorkers(ctx) })
		}
		g.Go(func() error {
			log.Info("[Server] Listening on %s (%s mode)", addr, a.Mode())
			return api.Serve(ctx, e, addr, appConfig.Server.ShutdownTimeout)
		})

		err = g.Wait()
		log.Info("[Server] Stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().BoolVar(&serveWorkers, "workers", true, "Process queued jobs in this process")
}
