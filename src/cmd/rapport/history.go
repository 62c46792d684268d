package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rapport-agent/src/app"
	"rapport-agent/src/export"
	"rapport-agent/src/history"
	"rapport-agent/src/tui"
)

var (
	showOutput   string
	showWidth    int
	exportFormat string
	exportOut    string
)

// historyCmd lists stored reports
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent reports, newest first",
	Long: `Lists reports kept in history. Set history.path (RAPPORT_HISTORY_PATH) to
keep them across runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(appConfig, newLogger(false))
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.History.List(cmd.Context())
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), list)
		return nil
	},
}

// historyShowCmd opens one stored report
var historyShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := resolveOutput(showOutput, stdoutIsTerminal())
		if err != nil {
			return err
		}
		a, err := app.New(appConfig, newLogger(output == outputTUI))
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.History.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load report %s: %w", args[0], err)
		}
		if output == outputTUI {
			return tui.Show(report)
		}
		return writeReport(cmd.OutOrStdout(), report, output, showWidth)
	},
}

// exportCmd writes a stored report to a file or stdout
var exportCmd = &cobra.Command{
	Use:   "export <report-id>",
	Short: "Export a stored report as JSON, CSV or text",
	Long: `Writes a report from history in the chosen format.

Example:
  rapport export 2b7e... --format csv --out report.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		a, err := app.New(appConfig, newLogger(false))
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.History.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load report %s: %w", args[0], err)
		}

		if exportOut == "" || exportOut == "-" {
			return export.Write(cmd.OutOrStdout(), report, format)
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		if err := export.Write(f, report, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", exportOut)
		return nil
	},
}

// printHistory writes one row per report.
func printHistory(w io.Writer, list []history.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No reports yet.")
		return
	}
	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		export.TruncateAndPad("ID", 36, false),
		export.TruncateAndPad("Generated", 20, false),
		export.TruncateAndPad("Health", 16, false),
		export.TruncateAndPad("Messages", 8, false),
		"Parties")
	for _, s := range list {
		parties := s.PartyA
		if s.PartyB != "" {
			parties += " & " + s.PartyB
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			export.TruncateAndPad(s.ID, 36, false),
			export.TruncateAndPad(s.GeneratedAt.Local().Format("2006-01-02 15:04:05"), 20, false),
			export.TruncateAndPad(fmt.Sprintf("%.1f (%s)", s.HealthScore, s.HealthLevel), 16, false),
			export.TruncateAndPad(fmt.Sprintf("%d", s.Messages), 8, false),
			parties)
	}
}

func init() {
	historyShowCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Output: tui, json, csv or text (default: tui on a terminal, text otherwise)")
	historyShowCmd.Flags().IntVarP(&showWidth, "width", "w", export.DefaultWidth, "Line width for text output")
	historyCmd.AddCommand(historyShowCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Format: json, csv or text")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default: stdout)")
}
