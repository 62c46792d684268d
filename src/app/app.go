// Package app wires a configuration into the analyzer, job manager and
// history store shared by the CLI, the HTTP server and the MCP server.
package app

import (
	"context"
	"fmt"

	"rapport-agent/src/analyze/llmscore"
	"rapport-agent/src/config"
	"rapport-agent/src/extract"
	"rapport-agent/src/history"
	"rapport-agent/src/jobs"
	"rapport-agent/src/logger"
	"rapport-agent/src/pipeline"
)

// App holds the long-lived components of one process.
type App struct {
	Config       *config.Config
	Logger       logger.Logger
	Orchestrator *pipeline.Orchestrator
	History      history.Store
	Infra        *jobs.Infra
	Manager      *jobs.Manager
}

// New opens history and job infrastructure and builds the orchestrator.
// Close releases everything New opened.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewSilentLogger()
	}

	hist, err := history.Open(cfg.History.Path, cfg.History.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	infra, err := jobs.OpenInfra(cfg, log)
	if err != nil {
		hist.Close()
		return nil, err
	}

	orch := pipeline.New(Options(cfg, hist, log)...)
	manager := jobs.NewManager(infra.Store, infra.Broker, orch,
		jobs.WithConcurrency(cfg.Jobs.Concurrency),
		jobs.WithLogger(log),
	)

	return &App{
		Config:       cfg,
		Logger:       log,
		Orchestrator: orch,
		History:      hist,
		Infra:        infra,
		Manager:      manager,
	}, nil
}

// Options translates cfg into orchestrator options. The extraction client
// and the LLM annotator are only added when configured.
func Options(cfg *config.Config, hist history.Store, log logger.Logger) []pipeline.Option {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	opts := []pipeline.Option{
		pipeline.WithMaxBytes(cfg.Analysis.MaxInputBytes),
		pipeline.WithLogger(log),
	}
	if hist != nil {
		opts = append(opts, pipeline.WithHistory(hist))
	}
	if cfg.Extraction.Endpoint != "" {
		log.Debug("[App] Text extraction via %s", cfg.Extraction.Endpoint)
		opts = append(opts, pipeline.WithExtractor(extract.NewClient(cfg.Extraction.Endpoint, cfg.Extraction.Timeout, log)))
	}
	if cfg.LLM.Enabled {
		log.Debug("[App] LLM polarity scoring with %s", cfg.LLM.Model)
		opts = append(opts, pipeline.WithAnnotator(llmscore.New(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BatchSize, log)))
	}
	return opts
}

// Mode reports whether jobs run locally or across a worker group.
func (a *App) Mode() jobs.Mode {
	return a.Infra.Mode
}

// RunWorkers processes queued jobs until ctx is cancelled.
func (a *App) RunWorkers(ctx context.Context) error {
	return a.Manager.Run(ctx)
}

// Close releases the job infrastructure and the history store.
func (a *App) Close() error {
	ierr := a.Infra.Close()
	herr := a.History.Close()
	if ierr != nil {
		return ierr
	}
	return herr
}
