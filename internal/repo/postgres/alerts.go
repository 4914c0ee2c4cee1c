package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/roomops/vcwatch/internal/domain"
)

// ---- AlertStore ----

func (s *Store) Upsert(ctx context.Context, a *domain.Alert) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, room_id, dedupe_key, severity, cause, opened_at, escalated_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE
		    SET severity = EXCLUDED.severity,
		        cause = EXCLUDED.cause,
		        escalated_at = EXCLUDED.escalated_at,
		        resolved_at = EXCLUDED.resolved_at`,
		a.ID, string(a.RoomID), a.DedupeKey, string(a.Severity), a.Cause, a.OpenedAt, a.EscalatedAt, a.ResolvedAt,
	)
	if err != nil {
		return storageErr("upsert alert", err)
	}
	return nil
}

func (s *Store) LoadOpen(ctx context.Context, id domain.RoomID) ([]domain.Alert, error) {
	return s.queryAlerts(ctx, `WHERE room_id = $1 AND resolved_at IS NULL ORDER BY opened_at`, string(id))
}

func (s *Store) LoadOpenAll(ctx context.Context) ([]domain.Alert, error) {
	return s.queryAlerts(ctx, `WHERE resolved_at IS NULL ORDER BY opened_at`)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.Alert, error) {
	return s.queryAlerts(ctx, `ORDER BY opened_at DESC LIMIT $1`, limit)
}

func (s *Store) DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// resolved_at IS NOT NULL is the safety rail: open alerts survive any age.
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE resolved_at IS NOT NULL AND resolved_at < $1`,
		cutoff)
	if err != nil {
		return 0, storageErr("delete alerts", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) queryAlerts(ctx context.Context, tail string, args ...any) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, dedupe_key, severity, cause, opened_at, escalated_at, resolved_at
		   FROM alerts `+tail, args...)
	if err != nil {
		return nil, storageErr("list alerts", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			roomID   string
			severity string
		)
		if err := rows.Scan(&a.ID, &roomID, &a.DedupeKey, &severity, &a.Cause, &a.OpenedAt, &a.EscalatedAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.RoomID = domain.RoomID(roomID)
		a.Severity = domain.Severity(severity)
		out = append(out, a)
	}
	return out, rows.Err()
}
