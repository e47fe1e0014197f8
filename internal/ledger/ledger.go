// Package ledger records pipeline runs in a local SQLite database.
package ledger

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Status values stored for a run.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID        string
	Pipeline  string
	Input     string
	Output    string
	Files     int
	Lines     int
	Status    string
	Code      string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Ledger is an open run ledger.
type Ledger struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens (creating if needed) the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}

	return &Ledger{db: db, entropy: ulid.Monotonic(rand.Reader, 0)}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	files INTEGER NOT NULL DEFAULT 0,
	lines INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	code TEXT,
	error TEXT,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ledger: init schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// NewID returns a new, monotonically increasing run id.
func (l *Ledger) NewID(t time.Time) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), l.entropy).String()
}

// Record stores run, assigning an id when it has none. It returns the id.
func (l *Ledger) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = l.NewID(run.StartedAt)
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO runs (id, pipeline, input, output, files, lines, status, code, error, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.Input, run.Output, run.Files, run.Lines,
		run.Status, run.Code, run.Error,
		run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("ledger: record run: %w", err)
	}
	return run.ID, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
SELECT id, pipeline, input, output, files, lines, status, COALESCE(code, ''), COALESCE(error, ''), started_at, duration_ms
FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedAt string
			durMS     int64
		)
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.Input, &r.Output, &r.Files, &r.Lines,
			&r.Status, &r.Code, &r.Error, &startedAt, &durMS); err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("ledger: run %s: bad started_at %q: %w", r.ID, startedAt, err)
		}
		r.Duration = time.Duration(durMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
