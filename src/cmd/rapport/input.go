package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"rapport-agent/src/contracts"
	"rapport-agent/src/export"
)

// Output modes for analyze and submit --wait.
const (
	outputTUI  = "tui"
	outputJSON = "json"
	outputCSV  = "csv"
	outputText = "text"
)

// binaryFormats maps extensions that need text extraction to their input format.
var binaryFormats = map[string]contracts.Format{
	".png":  contracts.FormatScreenshot,
	".jpg":  contracts.FormatScreenshot,
	".jpeg": contracts.FormatScreenshot,
	".gif":  contracts.FormatScreenshot,
	".webp": contracts.FormatScreenshot,
	".pdf":  contracts.FormatFile,
}

// inputFlags are shared by analyze and submit.
type inputFlags struct {
	format string
	partyA string
	partyB string
	goal   string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "", "Input format: paste, file or screenshot (default: from the file extension)")
	cmd.Flags().StringVar(&f.partyA, "party-a", "", "Display name for the first speaker")
	cmd.Flags().StringVar(&f.partyB, "party-b", "", "Display name for the second speaker")
	cmd.Flags().StringVar(&f.goal, "goal", "", "What you hope to learn from the analysis")
}

// readSource reads a conversation from path, or from stdin when path is "-".
// At most limit+1 bytes are read so oversized input still fails the size check.
func readSource(path string, stdin io.Reader, limit int64, flags inputFlags) (contracts.AnalysisInput, error) {
	var (
		in   contracts.AnalysisInput
		r    io.Reader
		name string
	)
	if path == "-" {
		r, name = stdin, "stdin"
		in.Format = contracts.FormatPaste
	} else {
		f, err := os.Open(path)
		if err != nil {
			return in, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r, name = f, filepath.Base(path)
		in.Format = contracts.FormatFile
	}

	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return in, fmt.Errorf("failed to read %s: %w", name, err)
	}

	in.SourceName = name
	if format, ok := binaryFormats[strings.ToLower(filepath.Ext(name))]; ok {
		in.Raw = data
		in.Format = format
	} else {
		in.Content = string(data)
	}

	if flags.format != "" {
		in.Format = contracts.Format(flags.format)
		if !in.Format.Valid() {
			return in, fmt.Errorf("unknown format %q (expected paste, file or screenshot)", flags.format)
		}
	}
	in.Personalization = contracts.Personalization{
		PartyAName:   strings.TrimSpace(flags.partyA),
		PartyBName:   strings.TrimSpace(flags.partyB),
		AnalysisGoal: strings.TrimSpace(flags.goal),
	}
	return in, nil
}

// resolveOutput picks the TUI on a terminal and plain text otherwise.
func resolveOutput(flag string, terminal bool) (string, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "":
		if terminal {
			return outputTUI, nil
		}
		return outputText, nil
	case outputTUI:
		return outputTUI, nil
	case outputJSON:
		return outputJSON, nil
	case outputCSV:
		return outputCSV, nil
	case outputText, "txt":
		return outputText, nil
	}
	return "", fmt.Errorf("unknown output %q (expected tui, json, csv or text)", flag)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeReport renders a report in a non-interactive output mode.
func writeReport(w io.Writer, r *contracts.Report, output string, width int) error {
	if output == outputText {
		return export.Text(w, r, width)
	}
	format, err := export.ParseFormat(output)
	if err != nil {
		return err
	}
	return export.Write(w, r, format)
}
