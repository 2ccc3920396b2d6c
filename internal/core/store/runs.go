package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/repolens/internal/core"
)

// RecordRun stores or replaces the summary of an extraction run.
func (s *Store) RecordRun(ctx context.Context, run core.RunSummary) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}

	var failures sql.NullString
	if len(run.Failures) > 0 {
		payload, err := json.Marshal(run.Failures)
		if err != nil {
			return fmt.Errorf("encode run failures: %w", err)
		}
		failures = sql.NullString{String: string(payload), Valid: true}
	}

	var finishedAt sql.NullInt64
	if !run.FinishedAt.IsZero() {
		finishedAt = sql.NullInt64{Int64: run.FinishedAt.UTC().Unix(), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO extraction_runs (id, source, started_at, finished_at, total, loaded, skipped, failed, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			total = excluded.total,
			loaded = excluded.loaded,
			skipped = excluded.skipped,
			failed = excluded.failed,
			failures = excluded.failures
	`, run.ID, run.Source, run.StartedAt.UTC().Unix(), finishedAt,
		run.Total, run.Loaded, run.Skipped, run.Failed, failures)
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `
		SELECT id, source, started_at, finished_at, total, loaded, skipped, failed, failures
		FROM extraction_runs
		ORDER BY started_at DESC, id
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	runs := []core.RunSummary{}
	for rows.Next() {
		var (
			run        core.RunSummary
			source     sql.NullString
			startedAt  int64
			finishedAt sql.NullInt64
			failures   sql.NullString
		)
		if err := rows.Scan(&run.ID, &source, &startedAt, &finishedAt,
			&run.Total, &run.Loaded, &run.Skipped, &run.Failed, &failures); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		run.Source = source.String
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			run.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
		}
		if failures.Valid && failures.String != "" {
			if err := json.Unmarshal([]byte(failures.String), &run.Failures); err != nil {
				return nil, fmt.Errorf("decode run failures: %w", err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}
