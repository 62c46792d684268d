//go:build integration

package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"rapport-agent/src/app"
	"rapport-agent/src/config"
	"rapport-agent/src/contracts"
	"rapport-agent/src/jobs"
)

const conversation = `09:00 Alice: morning! did you sleep ok?
09:05 Bob: yes thanks, you?
09:06 Alice: not really, sorry for being grumpy yesterday
09:20 Bob: no worries, love you`

// distributedConfig needs a running Redpanda and Postgres, e.g. from the
// docker compose setup used for local development.
func distributedConfig(t *testing.T) *config.Config {
	brokers := os.Getenv("REDPANDA_BROKERS")
	if brokers == "" {
		t.Skip("REDPANDA_BROKERS not set, skipping integration test")
	}
	dsn := os.Getenv("RAPPORT_STORE_DSN")
	if dsn == "" {
		t.Skip("RAPPORT_STORE_DSN not set, skipping integration test")
	}

	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Jobs.Brokers = strings.Split(brokers, ",")
	cfg.Store = config.StoreConfig{Driver: "postgres", DSN: dsn}
	return cfg
}

func TestDistributedJobLifecycle(t *testing.T) {
	cfg := distributedConfig(t)

	producer, err := app.New(cfg, nil)
	if err != nil {
		t.Fatalf("app.New (producer) failed: %v", err)
	}
	defer producer.Close()
	if producer.Mode() != jobs.ModeDistributed {
		t.Fatalf("Mode() = %s, expected %s", producer.Mode(), jobs.ModeDistributed)
	}

	worker, err := app.New(cfg, nil)
	if err != nil {
		t.Fatalf("app.New (worker) failed: %v", err)
	}
	defer worker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	go worker.RunWorkers(ctx)

	id, err := producer.Manager.Submit(ctx, contracts.AnalysisInput{Content: conversation, Format: contracts.FormatPaste})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for {
		job, err := producer.Manager.Status(ctx, id)
		if err != nil {
			t.Fatalf("Status(%s) failed: %v", id, err)
		}
		switch job.Status {
		case contracts.JobCompleted:
			if job.Result == nil {
				t.Fatal("completed job has no report")
			}
			t.Logf("Job %s completed: health %.1f (%s)", id, job.Result.HealthScore, job.Result.HealthLevel)
			return
		case contracts.JobError:
			t.Fatalf("job %s failed: %s", id, job.ErrorMessage)
		}
		select {
		case <-ctx.Done():
			t.Fatalf("job %s still %s at deadline", id, job.Status)
		case <-time.After(200 * time.Millisecond):
		}
	}
}
