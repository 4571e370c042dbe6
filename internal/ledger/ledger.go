// Package ledger persists a history of processed downloads in SQLite. The
// firmware this replaces kept no history; the daemon records one row per
// drained job for the cache history command and health output.
//
// The ledger is strictly observational: nothing in the sync or download path
// reads it back, and a nil *Store disables it entirely (degraded storage).
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"dialtone/internal/config"
)

// Record is one processed download.
type Record struct {
	ID         int64
	URL        string
	Path       string
	Bytes      int64
	Outcome    string
	Error      string
	CycleID    string
	DurationMs int64
	CreatedAt  time.Time
}

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `CREATE TABLE IF NOT EXISTS downloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    path TEXT NOT NULL,
    bytes INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    error_message TEXT,
    cycle_id TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
)`

// Open initializes or connects to the ledger database under the content dir.
func Open(cfg *config.Config) (*Store, error) {
	dbPath := filepath.Join(cfg.Paths.ContentDir, "ledger.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Append inserts a record. A nil store is a no-op.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO downloads (url, path, bytes, outcome, error_message, cycle_id, duration_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.URL,
		rec.Path,
		rec.Bytes,
		rec.Outcome,
		nullableString(rec.Error),
		nullableString(rec.CycleID),
		rec.DurationMs,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

const recordColumns = "id, url, path, bytes, outcome, error_message, cycle_id, duration_ms, created_at"

// Recent returns the newest records first, up to limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM downloads ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by outcome.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM downloads GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[outcome] = count
	}
	return stats, rows.Err()
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM downloads`)
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}
	return res.RowsAffected()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec        Record
		errMsg     sql.NullString
		cycleID    sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.URL,
		&rec.Path,
		&rec.Bytes,
		&rec.Outcome,
		&errMsg,
		&cycleID,
		&rec.DurationMs,
		&createdRaw,
	); err != nil {
		return Record{}, err
	}
	rec.Error = errMsg.String
	rec.CycleID = cycleID.String
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
