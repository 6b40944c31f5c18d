package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is the audit row for one resolved print attempt. Durable job state
// lives in the external job store; this table only answers "what did this
// agent do and when".
type Record struct {
	AttemptID    string     `json:"attempt_id"`
	JobID        string     `json:"job_id"`
	Mode         string     `json:"mode"`
	Outcome      string     `json:"outcome"`
	OrderCount   int        `json:"order_count"`
	Error        string     `json:"error,omitempty"`
	DispatchedAt time.Time  `json:"dispatched_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS print_attempts (
			attempt_id    TEXT PRIMARY KEY,
			job_id        TEXT NOT NULL,
			mode          TEXT NOT NULL,
			outcome       TEXT NOT NULL,
			order_count   INTEGER NOT NULL DEFAULT 0,
			error         TEXT NOT NULL DEFAULT '',
			dispatched_at DATETIME NOT NULL,
			resolved_at   DATETIME
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, rec Record) error {
	var resolvedAt interface{}
	if rec.ResolvedAt != nil {
		resolvedAt = rec.ResolvedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO print_attempts (attempt_id, job_id, mode, outcome, order_count, error, dispatched_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(attempt_id) DO UPDATE SET outcome = excluded.outcome, error = excluded.error, resolved_at = excluded.resolved_at
	`, rec.AttemptID, rec.JobID, rec.Mode, rec.Outcome, rec.OrderCount, rec.Error, rec.DispatchedAt, resolvedAt)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Recent returns the latest resolved attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_id, job_id, mode, outcome, order_count, error, dispatched_at, resolved_at
		FROM print_attempts
		ORDER BY dispatched_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&rec.AttemptID, &rec.JobID, &rec.Mode, &rec.Outcome,
			&rec.OrderCount, &rec.Error, &rec.DispatchedAt, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if resolvedAt.Valid {
			rec.ResolvedAt = &resolvedAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
