package repo

import (
	"context"
	"time"

	"github.com/roomops/vcwatch/internal/domain"
)

// Ports (interfaces); swap in any DB adapter later.

// RoomStore is the configuration source: room definitions plus the mutations
// the admin API performs. The scheduler only reads snapshots.
type RoomStore interface {
	Add(ctx context.Context, r *domain.Room) error
	Update(ctx context.Context, r *domain.Room) error
	Remove(ctx context.Context, id domain.RoomID) error
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	SetPaused(ctx context.Context, id domain.RoomID, paused bool) error
	// Snapshot returns all rooms; the scheduler polls it to pick up changes.
	Snapshot(ctx context.Context) ([]domain.Room, error)
}

// SampleStore is append-only probe history.
type SampleStore interface {
	Append(ctx context.Context, s *domain.Sample) error
	// LoadRecent returns up to limit samples for a room, newest first.
	LoadRecent(ctx context.Context, id domain.RoomID, limit int) ([]domain.Sample, error)
	// DeleteOlderThan purges samples of one probe kind strictly older than
	// cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, kind domain.ProbeKind, cutoff time.Time) (int64, error)
}

// AlertStore persists alert lifecycle state.
type AlertStore interface {
	Upsert(ctx context.Context, a *domain.Alert) error
	LoadOpen(ctx context.Context, id domain.RoomID) ([]domain.Alert, error)
	LoadOpenAll(ctx context.Context) ([]domain.Alert, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Alert, error)
	// DeleteResolvedOlderThan purges alerts resolved before cutoff. Open
	// alerts are never touched, whatever their age.
	DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
