package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/namelens/repolens/internal/core"
)

// RecordQuota persists the latest snapshot reported for a credential slot.
// Snapshots are kept for inspection only; rotation decisions never read them.
func (s *Store) RecordQuota(ctx context.Context, slot int, snapshot core.QuotaSnapshot) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if slot < 0 {
		return fmt.Errorf("invalid credential slot %d", slot)
	}

	var resetAt sql.NullInt64
	if !snapshot.ResetAt.IsZero() {
		resetAt = sql.NullInt64{Int64: snapshot.ResetAt.UTC().Unix(), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO quota_snapshots (slot, quota_limit, cost, remaining, reset_at, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			quota_limit = excluded.quota_limit,
			cost = excluded.cost,
			remaining = excluded.remaining,
			reset_at = excluded.reset_at,
			observed_at = excluded.observed_at
	`, slot, snapshot.Limit, snapshot.Cost, snapshot.Remaining, resetAt, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store quota snapshot: %w", err)
	}
	return nil
}

// QuotaQuery selects stored snapshots.
type QuotaQuery struct {
	All  bool
	Slot *int
}

// Validate requires an explicit selection.
func (q QuotaQuery) Validate() error {
	if q.All || q.Slot != nil {
		return nil
	}
	return errors.New("must specify --all or --slot")
}

func (q QuotaQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	return "WHERE slot = ?", []any{*q.Slot}, nil
}

// ListQuota returns stored snapshots ordered by slot.
func (s *Store) ListQuota(ctx context.Context, q QuotaQuery) ([]core.QuotaRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT slot, quota_limit, cost, remaining, reset_at, observed_at
		FROM quota_snapshots
		%s
		ORDER BY slot
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list quota snapshots: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []core.QuotaRecord{}
	for rows.Next() {
		var (
			record     core.QuotaRecord
			resetAt    sql.NullInt64
			observedAt int64
		)
		if err := rows.Scan(&record.Slot, &record.Snapshot.Limit, &record.Snapshot.Cost,
			&record.Snapshot.Remaining, &resetAt, &observedAt); err != nil {
			return nil, fmt.Errorf("scan quota snapshots: %w", err)
		}
		if resetAt.Valid {
			record.Snapshot.ResetAt = time.Unix(resetAt.Int64, 0).UTC()
		}
		record.ObservedAt = time.Unix(observedAt, 0).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quota snapshots: %w", err)
	}

	return records, nil
}

// ResetQuota deletes stored snapshots and returns how many were removed.
func (s *Store) ResetQuota(ctx context.Context, q QuotaQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM quota_snapshots
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset quota snapshots: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset quota snapshots: %w", err)
	}
	return affected, nil
}
