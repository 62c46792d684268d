// Package main provides the rapport CLI: analyze conversations locally,
// queue background jobs, run the HTTP server and workers, and export reports.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rapport-agent/src/config"
	"rapport-agent/src/extract"
	"rapport-agent/src/logger"
)

var (
	// Application configuration, loaded before any command runs
	appConfig *config.Config

	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rapport",
	Short: "Rapport - relationship health analysis for two-person conversations",
	Long: `Rapport reads an exported chat between two people and scores its health:
sentiment, toxicity, engagement, response times, apologies and more, combined
into a single positivity index with insights and recommendations.

Jobs run in-process by default. Set REDPANDA_BROKERS (or jobs.brokers in the
config file) to queue them on Redpanda for a worker group.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = os.Getenv("RAPPORT_CONFIG")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		appConfig = cfg
		return nil
	},
}

// newLogger returns a console logger, or a silent one while the TUI owns the terminal.
func newLogger(quiet bool) logger.Logger {
	if quiet {
		return logger.NewSilentLogger()
	}
	return logger.NewLogger(appConfig.LogLevel)
}

// userMessage renders err for the terminal, with the hint when there is one.
func userMessage(err error) string {
	var userErr *extract.UserError
	if errors.As(extract.WrapError(err), &userErr) {
		msg := userErr.Message
		if userErr.Hint != "" {
			msg += "\n\nHint: " + userErr.Hint
		}
		return msg
	}
	return err.Error()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: $RAPPORT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info or error")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		os.Exit(1)
	}
}
