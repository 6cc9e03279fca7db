package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RunRecord is one audited execution.
type RunRecord struct {
	ID         string
	ScriptHash string
	Scenarios  []string
	Status     string
	Error      string
	Traceback  string
	OutJSON    string
	CreatedAt  time.Time
}

// WriteRun inserts a run record. Duplicate run ids are silently ignored:
// the first write wins, matching the append-only audit contract.
func (s *Store) WriteRun(ctx context.Context, rec RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, script_hash, scenarios, status, error, traceback, out_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.ScriptHash,
		strings.Join(rec.Scenarios, ","),
		rec.Status,
		rec.Error,
		rec.Traceback,
		rec.OutJSON,
		// Fixed-width fraction so the text column sorts chronologically.
		rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// GetRun reads one run record by id.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, script_hash, scenarios, status, error, traceback, out_json, created_at
		FROM runs WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("get run %q: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, script_hash, scenarios, status, error, traceback, out_json, created_at
		FROM runs ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var rec RunRecord
	var scenarios, createdAt string
	if err := row.Scan(
		&rec.ID,
		&rec.ScriptHash,
		&scenarios,
		&rec.Status,
		&rec.Error,
		&rec.Traceback,
		&rec.OutJSON,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if scenarios != "" {
		rec.Scenarios = strings.Split(scenarios, ",")
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = t
	return &rec, nil
}
