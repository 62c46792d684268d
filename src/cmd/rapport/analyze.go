package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rapport-agent/src/app"
	"rapport-agent/src/contracts"
	"rapport-agent/src/export"
	"rapport-agent/src/pipeline"
	"rapport-agent/src/tui"
)

var (
	analyzeInput  inputFlags
	analyzeOutput string
	analyzeWidth  int
)

// analyzeCmd runs one analysis in-process
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|->",
	Short: "Analyze a conversation and show the report",
	Long: `Reads a conversation export (or stdin with "-") and analyzes it in-process.

On a terminal the report opens in an interactive viewer with live progress.
Otherwise, or with --output, the report is written to stdout.

Screenshots (.png, .jpg) and PDFs are sent to the extraction service
configured under extraction.endpoint.

Example:
  rapport analyze chat.txt --party-a Alice --party-b Bob
  pbpaste | rapport analyze - --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	output, err := resolveOutput(analyzeOutput, stdoutIsTerminal())
	if err != nil {
		return err
	}
	in, err := readSource(args[0], cmd.InOrStdin(), appConfig.Analysis.MaxInputBytes, analyzeInput)
	if err != nil {
		return err
	}

	a, err := app.New(appConfig, newLogger(output == outputTUI))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if output == outputTUI {
		_, err := tui.Start(ctx, func(ctx context.Context, onProgress pipeline.ProgressFunc) (*contracts.Report, error) {
			return a.Orchestrator.RunWithProgress(ctx, in, onProgress)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	report, err := a.Orchestrator.Run(ctx, in)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), report, output, analyzeWidth)
}

func init() {
	analyzeInput.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Output: tui, json, csv or text (default: tui on a terminal, text otherwise)")
	analyzeCmd.Flags().IntVarP(&analyzeWidth, "width", "w", export.DefaultWidth, "Line width for text output")
}
