package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapport-agent/src/contracts"
)

func report(i int) *contracts.Report {
	return &contracts.Report{
		ID:          fmt.Sprintf("r-%02d", i),
		GeneratedAt: time.Date(2024, 3, 4, 9, i, 0, 0, time.UTC),
		HealthScore: float64(40 + i),
		HealthLevel: contracts.HealthModerate,
		Trend:       contracts.TrendStable,
		Metrics:     contracts.Metrics{},
		SourceStats: contracts.SourceStats{Messages: 10 + i, PartyALabel: "alice", PartyBLabel: "bob"},
		Personalization: contracts.Personalization{
			PartyAName: "Alice",
		},
	}
}

func stores(t *testing.T, capacity int) map[string]Store {
	lite, err := NewSQLite(filepath.Join(t.TempDir(), "history.db"), capacity)
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })
	return map[string]Store{
		"memory": NewMemory(capacity),
		"sqlite": lite,
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	for name, s := range stores(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				require.NoError(t, s.Append(ctx, report(i)))
			}

			list, err := s.List(ctx)
			require.NoError(t, err)
			var ids []string
			for _, sum := range list {
				ids = append(ids, sum.ID)
			}
			assert.Equal(t, []string{"r-05", "r-04", "r-03"}, ids)

			_, err = s.Get(ctx, "r-01")
			assert.ErrorIs(t, err, ErrNotFound)

			got, err := s.Get(ctx, "r-04")
			require.NoError(t, err)
			assert.Equal(t, 44.0, got.HealthScore)
		})
	}
}

func TestSummaryUsesNamesThenLabels(t *testing.T) {
	for name, s := range stores(t, DefaultCapacity) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Append(ctx, report(7)))

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			sum := list[0]
			assert.Equal(t, "Alice", sum.PartyA)
			assert.Equal(t, "bob", sum.PartyB)
			assert.Equal(t, 17, sum.Messages)
			assert.Equal(t, contracts.HealthModerate, sum.HealthLevel)
			assert.True(t, report(7).GeneratedAt.Equal(sum.GeneratedAt))
		})
	}
}

func TestAppendRejectsReportWithoutID(t *testing.T) {
	for name, s := range stores(t, 1) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Append(context.Background(), &contracts.Report{}))
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLite(path, 5)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), report(1)))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path, 5)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "r-01")
	require.NoError(t, err)
	assert.Equal(t, "r-01", got.ID)
}

func TestOpen(t *testing.T) {
	s, err := Open("", 0)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}
