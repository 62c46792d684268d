package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rapport-agent/src/app"
	"rapport-agent/src/contracts"
)

var (
	statusJSON bool
	statusAck  bool
)

// statusCmd shows a job snapshot
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of an analysis job",
	Long: `Shows the status, progress and outcome of a job submitted with
'rapport submit'. Needs a shared job store (store.driver sqlite or postgres)
to see jobs from other processes.

With --ack a finished job is deleted after it is shown.

Example:
  rapport status 6f1c...
  rapport status 6f1c... --json --ack`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(appConfig, newLogger(false))
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.Manager.Status(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get job %s: %w", args[0], err)
		}

		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(job); err != nil {
				return err
			}
		} else {
			printJob(cmd.OutOrStdout(), job)
		}

		if statusAck {
			if err := a.Manager.Acknowledge(cmd.Context(), job.JobID); err != nil {
				return fmt.Errorf("failed to acknowledge job %s: %w", job.JobID, err)
			}
		}
		return nil
	},
}

// printJob writes a short human-readable job summary.
func printJob(w io.Writer, job *contracts.AnalysisJob) {
	fmt.Fprintf(w, "Job:      %s\n", job.JobID)
	fmt.Fprintf(w, "Status:   %s\n", job.Status)
	fmt.Fprintf(w, "Progress: %d%% %s\n", job.ProgressPercent, job.ProgressMessage)
	fmt.Fprintf(w, "Source:   %s (%s, %d bytes)\n", job.Source.Name, job.Source.Format, job.Source.Bytes)
	switch job.Status {
	case contracts.JobError:
		fmt.Fprintf(w, "Error:    %s\n", job.ErrorMessage)
	case contracts.JobCompleted:
		fmt.Fprintf(w, "Report:   %s, health %.1f (%s)\n", job.Result.ID, job.Result.HealthScore, job.Result.HealthLevel)
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the full job as JSON")
	statusCmd.Flags().BoolVar(&statusAck, "ack", false, "Delete the job after showing it, once finished")
}
