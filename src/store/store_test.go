package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapport-agent/src/contracts"
)

var created = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newJob(id string) (*contracts.AnalysisJob, contracts.AnalysisInput) {
	in := contracts.AnalysisInput{
		Content: "10:00 Alice: hi\n10:01 Bob: hey",
		Format:  contracts.FormatPaste,
		Personalization: contracts.Personalization{
			PartyAName: "Alice",
			PartyBName: "Bob",
		},
	}
	job := &contracts.AnalysisJob{
		JobID:     id,
		Status:    contracts.JobPending,
		Source:    contracts.SourceDescriptor{Format: in.Format, Bytes: in.Size()},
		CreatedAt: created,
	}
	return job, in
}

// backends returns every JobStore implementation testable in this environment.
func backends(t *testing.T) map[string]func(t *testing.T) JobStore {
	b := map[string]func(t *testing.T) JobStore{
		"memory": func(t *testing.T) JobStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) JobStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
			require.NoError(t, err)
			return s
		},
	}
	if dsn := os.Getenv("RAPPORT_TEST_POSTGRES_DSN"); dsn != "" {
		b["postgres"] = func(t *testing.T) JobStore {
			s, err := NewPostgresStore(dsn)
			require.NoError(t, err)
			_, err = s.db.Exec(`DELETE FROM analysis_jobs`)
			require.NoError(t, err)
			return s
		}
	}
	return b
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s JobStore)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			fn(t, s)
		})
	}
}

func TestJobStore_CreateAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		job, in := newJob("job-1")
		require.NoError(t, s.Create(ctx, job, in))

		got, err := s.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, contracts.JobPending, got.Status)
		assert.Equal(t, 0, got.ProgressPercent)
		assert.Equal(t, "Queued", got.ProgressMessage)
		assert.True(t, created.Equal(got.CreatedAt))
		assert.Nil(t, got.StartedAt)
		assert.Nil(t, got.Result)
		assert.Equal(t, in.Size(), got.Source.Bytes)

		stored, err := s.Input(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, in, stored)

		assert.ErrorIs(t, s.Create(ctx, job, in), ErrDuplicate)
	})
}

func TestJobStore_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Input(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Start(ctx, "missing", created), ErrNotFound)
		assert.ErrorIs(t, s.SetProgress(ctx, "missing", 10, "x"), ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	})
}

func TestJobStore_Lifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		job, in := newJob("job-2")
		require.NoError(t, s.Create(ctx, job, in))

		started := created.Add(time.Second)
		require.NoError(t, s.Start(ctx, "job-2", started))
		assert.ErrorIs(t, s.Start(ctx, "job-2", started), ErrInvalidTransition)

		require.NoError(t, s.SetProgress(ctx, "job-2", 40, "Running Toxicity (3/12)"))
		require.NoError(t, s.SetProgress(ctx, "job-2", 40, "Running Engagement (4/12)"))
		assert.ErrorIs(t, s.SetProgress(ctx, "job-2", 20, "late"), ErrProgressRegression)

		got, err := s.Get(ctx, "job-2")
		require.NoError(t, err)
		assert.Equal(t, contracts.JobProcessing, got.Status)
		assert.Equal(t, 40, got.ProgressPercent)
		assert.Equal(t, "Running Engagement (4/12)", got.ProgressMessage)
		require.NotNil(t, got.StartedAt)
		assert.True(t, started.Equal(*got.StartedAt))

		report := &contracts.Report{
			ID:          "report-1",
			HealthScore: 72.5,
			HealthLevel: contracts.HealthGood,
			Trend:       contracts.TrendStable,
			Metrics:     contracts.Metrics{},
		}
		done := started.Add(time.Second)
		require.NoError(t, s.Complete(ctx, "job-2", report, done))

		got, err = s.Get(ctx, "job-2")
		require.NoError(t, err)
		assert.Equal(t, contracts.JobCompleted, got.Status)
		assert.Equal(t, 100, got.ProgressPercent)
		assert.Empty(t, got.ErrorMessage)
		require.NotNil(t, got.Result)
		assert.Equal(t, "report-1", got.Result.ID)
		assert.Equal(t, 72.5, got.Result.HealthScore)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, done.Equal(*got.CompletedAt))
	})
}

func TestJobStore_TerminalJobsAreImmutable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		job, in := newJob("job-3")
		require.NoError(t, s.Create(ctx, job, in))
		require.NoError(t, s.Start(ctx, "job-3", created))
		require.NoError(t, s.Fail(ctx, "job-3", "No messages found in the conversation", created))

		assert.ErrorIs(t, s.SetProgress(ctx, "job-3", 90, "x"), ErrJobTerminal)
		assert.ErrorIs(t, s.Complete(ctx, "job-3", &contracts.Report{}, created), ErrJobTerminal)
		assert.ErrorIs(t, s.Fail(ctx, "job-3", "again", created), ErrJobTerminal)
		assert.ErrorIs(t, s.Start(ctx, "job-3", created), ErrJobTerminal)

		got, err := s.Get(ctx, "job-3")
		require.NoError(t, err)
		assert.Equal(t, contracts.JobError, got.Status)
		assert.Equal(t, "No messages found in the conversation", got.ErrorMessage)
		assert.Nil(t, got.Result)
	})
}

func TestJobStore_FailBeforeStart(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		job, in := newJob("job-4")
		require.NoError(t, s.Create(ctx, job, in))
		assert.ErrorIs(t, s.Complete(ctx, "job-4", &contracts.Report{}, created), ErrInvalidTransition)
		require.NoError(t, s.Fail(ctx, "job-4", "analysis failed unexpectedly", created))
	})
}

func TestJobStore_Delete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		job, in := newJob("job-5")
		require.NoError(t, s.Create(ctx, job, in))
		assert.ErrorIs(t, s.Delete(ctx, "job-5"), ErrJobActive)

		require.NoError(t, s.Fail(ctx, "job-5", "boom", created))
		require.NoError(t, s.Delete(ctx, "job-5"))

		_, err := s.Get(ctx, "job-5")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Input(ctx, "job-5")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestJobStore_ConcurrentProgressKeepsMax(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		job, in := newJob("job-6")
		require.NoError(t, s.Create(ctx, job, in))
		require.NoError(t, s.Start(ctx, "job-6", created))

		var wg sync.WaitGroup
		for p := 10; p <= 90; p += 10 {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				_ = s.SetProgress(ctx, "job-6", p, "working")
			}(p)
		}
		wg.Wait()

		got, err := s.Get(ctx, "job-6")
		require.NoError(t, err)
		assert.Equal(t, 90, got.ProgressPercent)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job, in := newJob("job-7")
	in.Raw = []byte("png")
	in.Content = ""
	require.NoError(t, s.Create(ctx, job, in))

	got, _ := s.Get(ctx, "job-7")
	got.Status = contracts.JobCompleted
	stored, _ := s.Input(ctx, "job-7")
	stored.Raw[0] = 'x'

	again, _ := s.Get(ctx, "job-7")
	assert.Equal(t, contracts.JobPending, again.Status)
	input, _ := s.Input(ctx, "job-7")
	assert.Equal(t, []byte("png"), input.Raw)
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to contracts.JobStatus
		wantErr  error
	}{
		{contracts.JobPending, contracts.JobProcessing, nil},
		{contracts.JobPending, contracts.JobError, nil},
		{contracts.JobPending, contracts.JobCompleted, ErrInvalidTransition},
		{contracts.JobProcessing, contracts.JobCompleted, nil},
		{contracts.JobProcessing, contracts.JobError, nil},
		{contracts.JobProcessing, contracts.JobPending, ErrInvalidTransition},
		{contracts.JobCompleted, contracts.JobError, ErrJobTerminal},
		{contracts.JobError, contracts.JobProcessing, ErrJobTerminal},
	}
	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.wantErr == nil {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, tt.wantErr, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &sqlStore{postgres: true}
	if got := pg.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind() = %q, expected $n placeholders", got)
	}
	lite := &sqlStore{}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind() = %q, expected unchanged", got)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("sqlite", filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = Open("mongo", "")
	assert.Error(t, err)
}
