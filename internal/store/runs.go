package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one row of pipeline run history.
type Run struct {
	ID           string
	State        string
	Document     string
	Output       string
	Encoder      string
	ErrorMessage string
	Report       []byte
	StartedAt    time.Time
	FinishedAt   time.Time
}

// RecordRun inserts or replaces a run row.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO runs (id, state, document, output, encoder, error_message, report, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			output = excluded.output,
			encoder = excluded.encoder,
			error_message = excluded.error_message,
			report = excluded.report,
			finished_at = excluded.finished_at`,
		run.ID, run.State, run.Document, run.Output, run.Encoder, run.ErrorMessage, run.Report,
		run.StartedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, state, document, output, encoder, error_message, report, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                                     Run
			document, output, encoder, errorMessage sql.NullString
			finished                                sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.State, &document, &output, &encoder, &errorMessage,
			&run.Report, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Document = document.String
		run.Output = output.String
		run.Encoder = encoder.String
		run.ErrorMessage = errorMessage.String
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
