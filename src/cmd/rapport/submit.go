package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rapport-agent/src/app"
	"rapport-agent/src/contracts"
	"rapport-agent/src/export"
	"rapport-agent/src/jobs"
)

const pollInterval = 200 * time.Millisecond

var (
	submitInput  inputFlags
	submitWait   bool
	submitOutput string
)

// submitCmd queues an analysis job
var submitCmd = &cobra.Command{
	Use:   "submit <file|->",
	Short: "Queue a conversation for background analysis",
	Long: `Queues a conversation as an analysis job and prints its job ID.

In distributed mode the job goes to the Redpanda worker group and the command
returns immediately; use 'rapport status <job-id>' to follow it.

In local mode there is no one else to run the job, so submit runs the workers
itself and waits for the result.

Example:
  rapport submit chat.txt
  rapport submit chat.txt --wait --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	output, err := resolveOutput(submitOutput, false)
	if err != nil {
		return err
	}
	if output == outputTUI {
		return errors.New("submit does not support --output tui")
	}
	in, err := readSource(args[0], cmd.InOrStdin(), appConfig.Analysis.MaxInputBytes, submitInput)
	if err != nil {
		return err
	}

	a, err := app.New(appConfig, newLogger(false))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wait := submitWait || a.Mode() == jobs.ModeLocal
	g, ctx := errgroup.WithContext(ctx)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if a.Mode() == jobs.ModeLocal {
		g.Go(func() error { return a.RunWorkers(workerCtx) })
	}

	var job *contracts.AnalysisJob
	g.Go(func() error {
		defer stopWorkers()
		jobID, err := a.Manager.Submit(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Submitted job %s\n", jobID)
		if !wait {
			fmt.Fprintln(cmd.OutOrStdout(), jobID)
			return nil
		}
		job, err = waitForJob(ctx, a.Manager, jobID, cmd.ErrOrStderr())
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	if job.Status == contracts.JobError {
		return fmt.Errorf("job %s failed: %s", job.JobID, job.ErrorMessage)
	}
	return writeReport(cmd.OutOrStdout(), job.Result, output, export.DefaultWidth)
}

// waitForJob polls until the job is terminal, printing each progress change.
func waitForJob(ctx context.Context, m *jobs.Manager, jobID string, progress io.Writer) (*contracts.AnalysisJob, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := ""
	for {
		job, err := m.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if line := fmt.Sprintf("[%3d%%] %s", job.ProgressPercent, job.ProgressMessage); line != last {
			fmt.Fprintln(progress, line)
			last = line
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	submitInput.register(submitCmd)
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Wait for the job to finish and print the report (always on in local mode)")
	submitCmd.Flags().StringVarP(&submitOutput, "output", "o", outputText, "Report output with --wait: json, csv or text")
}
