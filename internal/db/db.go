// Package db keeps the local upload ledger: one row per pipeline run, stored
// in SQLite. The ledger is informational. The remote existence check stays
// the only thing that decides whether a file is uploaded.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sioux/hsds-agent/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS upload_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	file_path   TEXT NOT NULL,
	domain      TEXT NOT NULL,
	status      TEXT NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS upload_log_path ON upload_log (file_path);
`

// Entry is one ledger row.
type Entry struct {
	RunID    string
	Path     string
	Domain   string
	Status   core.Status
	Attempts int
	Error    string
	Started  time.Time
	Finished time.Time
}

// Ledger is safe for concurrent use.
type Ledger struct {
	db *sql.DB
}

// Open creates the parent directory and the schema when missing.
func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends an outcome. Outcomes of aborted uploads are still written.
func (l *Ledger) Record(ctx context.Context, o core.Outcome) error {
	var errText sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}

	_, err := l.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO upload_log (run_id, file_path, domain, status, attempts, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.Path, o.Domain, string(o.Status), o.Attempts, errText, o.Started.UnixMilli(), o.Finished.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", o.Path, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. path filters to one file
// when non-empty.
func (l *Ledger) Recent(ctx context.Context, path string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT run_id, file_path, domain, status, attempts, error, started_at, finished_at FROM upload_log`
	args := []any{}
	if path != "" {
		query += ` WHERE file_path = ?`
		args = append(args, path)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			status            string
			errText           sql.NullString
			started, finished int64
		)
		if err := rows.Scan(&e.RunID, &e.Path, &e.Domain, &status, &e.Attempts, &errText, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to read history row: %w", err)
		}
		e.Status = core.Status(status)
		e.Error = errText.String
		e.Started = time.UnixMilli(started)
		e.Finished = time.UnixMilli(finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of entries per status.
func (l *Ledger) Counts(ctx context.Context) (map[core.Status]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM upload_log GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[core.Status(status)] = n
	}
	return counts, rows.Err()
}

// Reset deletes the history for targetPath, or everything when it is empty.
// It returns the number of rows removed.
func (l *Ledger) Reset(ctx context.Context, targetPath string) (int64, error) {
	var res sql.Result
	var err error
	if targetPath != "" {
		res, err = l.db.ExecContext(ctx, "DELETE FROM upload_log WHERE file_path = ?", targetPath)
	} else {
		res, err = l.db.ExecContext(ctx, "DELETE FROM upload_log")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reset history: %w", err)
	}
	return res.RowsAffected()
}
