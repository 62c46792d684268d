// Package history keeps the most recent reports, oldest evicted first.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rapport-agent/src/contracts"
)

// DefaultCapacity is the number of reports retained when none is configured.
const DefaultCapacity = 50

// ErrNotFound is returned for a report that was never stored or was evicted.
var ErrNotFound = errors.New("report not found")

// Summary is the list view of a stored report.
type Summary struct {
	ID          string                `json:"id"`
	GeneratedAt time.Time             `json:"generated_at"`
	HealthScore float64               `json:"health_score"`
	HealthLevel contracts.HealthLevel `json:"health_level"`
	Messages    int                   `json:"messages"`
	PartyA      string                `json:"party_a"`
	PartyB      string                `json:"party_b"`
}

// Summarize builds the list view of r.
func Summarize(r *contracts.Report) Summary {
	return Summary{
		ID:          r.ID,
		GeneratedAt: r.GeneratedAt,
		HealthScore: r.HealthScore,
		HealthLevel: r.HealthLevel,
		Messages:    r.SourceStats.Messages,
		PartyA:      r.Personalization.NameFor(contracts.PartyA, r.SourceStats.PartyALabel),
		PartyB:      r.Personalization.NameFor(contracts.PartyB, r.SourceStats.PartyBLabel),
	}
}

// Store is a capped report history.
type Store interface {
	// Append adds r, evicting the oldest report past capacity.
	Append(ctx context.Context, r *contracts.Report) error
	// List returns summaries, newest first.
	List(ctx context.Context) ([]Summary, error)
	// Get returns a stored report.
	Get(ctx context.Context, id string) (*contracts.Report, error)
	Close() error
}

// Open returns a SQLite-backed history when path is set, otherwise an
// in-memory one.
func Open(path string, capacity int) (Store, error) {
	if path == "" {
		return NewMemory(capacity), nil
	}
	return NewSQLite(path, capacity)
}

// Memory is an in-process ring of reports.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	reports  []*contracts.Report // oldest first
}

// NewMemory creates a history holding up to capacity reports.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Append(ctx context.Context, r *contracts.Report) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("report has no ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports = append(m.reports, r)
	if over := len(m.reports) - m.capacity; over > 0 {
		// Drop references so evicted reports can be collected.
		clear(m.reports[:over])
		m.reports = m.reports[over:]
	}
	return nil
}

func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.reports))
	for i := len(m.reports) - 1; i >= 0; i-- {
		out = append(out, Summarize(m.reports[i]))
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*contracts.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].ID == id {
			return m.reports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (m *Memory) Close() error {
	return nil
}
