package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"rapport-agent/src/contracts"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT UNIQUE NOT NULL,
	generated_at TEXT NOT NULL,
	health_score REAL NOT NULL,
	health_level TEXT NOT NULL,
	messages     INTEGER NOT NULL,
	party_a      TEXT NOT NULL,
	party_b      TEXT NOT NULL,
	body         TEXT NOT NULL
)`

// SQLite persists history across restarts.
type SQLite struct {
	db       *sql.DB
	capacity int
}

// NewSQLite opens (or creates) the history database at path.
func NewSQLite(path string, capacity int) (*SQLite, error) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db, capacity: capacity}, nil
}

func (s *SQLite) Append(ctx context.Context, r *contracts.Report) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("report has no ID")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	sum := Summarize(r)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reports (id, generated_at, health_score, health_level, messages, party_a, party_b, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.GeneratedAt.UTC().Format(time.RFC3339Nano), sum.HealthScore, string(sum.HealthLevel),
		sum.Messages, sum.PartyA, sum.PartyB, string(body),
	); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM reports
		WHERE seq NOT IN (SELECT seq FROM reports ORDER BY seq DESC LIMIT ?)`, s.capacity,
	); err != nil {
		return fmt.Errorf("failed to evict reports: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generated_at, health_score, health_level, messages, party_a, party_b
		FROM reports
		ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var generated, level string
		if err := rows.Scan(&sum.ID, &generated, &sum.HealthScore, &level, &sum.Messages, &sum.PartyA, &sum.PartyB); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		sum.HealthLevel = contracts.HealthLevel(level)
		if sum.GeneratedAt, err = time.Parse(time.RFC3339Nano, generated); err != nil {
			return nil, fmt.Errorf("failed to parse generated_at: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*contracts.Report, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	var r contracts.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
