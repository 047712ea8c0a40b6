// Package usage keeps a local ledger of per-request token consumption.
// Recording is best-effort bookkeeping: a write failure is logged by the
// caller and never fails the request that produced it.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ts            TIMESTAMP NOT NULL,
	model         TEXT NOT NULL,
	provider      TEXT NOT NULL DEFAULT '',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	tool_calls    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_usage_log_ts ON usage_log(ts);
`

// Entry is one recorded request.
type Entry struct {
	Time         time.Time
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
	ToolCalls    int
}

// Totals aggregates the ledger over a period.
type Totals struct {
	Requests     int
	InputTokens  int
	OutputTokens int
	ToolCalls    int
}

// Recorder writes usage entries to a sqlite database.
type Recorder struct {
	db *sql.DB
}

// Open creates or opens the ledger at path and ensures the schema exists.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage db: %w", err)
	}
	// sqlite handles one writer at a time; keep the pool at a single
	// connection to avoid SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init usage schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record appends one entry.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_log (ts, model, provider, input_tokens, output_tokens, tool_calls)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Model, e.Provider, e.InputTokens, e.OutputTokens, e.ToolCalls)
	return err
}

// TotalsSince aggregates all entries recorded at or after since.
func (r *Recorder) TotalsSince(ctx context.Context, since time.Time) (Totals, error) {
	var t Totals
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(input_tokens), 0),
		        COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(tool_calls), 0)
		 FROM usage_log WHERE ts >= ?`, since).
		Scan(&t.Requests, &t.InputTokens, &t.OutputTokens, &t.ToolCalls)
	return t, err
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}
