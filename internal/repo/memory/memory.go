package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/repo"
)

var _ repo.RoomStore = (*Store)(nil)
var _ repo.SampleStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Store keeps everything in process memory. Default when DATABASE_URL is
// empty; also what most tests run against.
type Store struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomID]*domain.Room
	samples []*domain.Sample
	alerts  map[string]*domain.Alert // alert ID → alert
}

func New() *Store {
	return &Store{
		rooms:   make(map[domain.RoomID]*domain.Room),
		samples: make([]*domain.Sample, 0, 128),
		alerts:  make(map[string]*domain.Alert),
	}
}

// ---- RoomStore ----

func (m *Store) Add(ctx context.Context, r *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = domain.RoomID(time.Now().UTC().Format("20060102T150405.000000000"))
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	cp := *r
	m.rooms[r.ID] = &cp
	return nil
}

func (m *Store) Update(ctx context.Context, r *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[r.ID]; !ok {
		return &domain.StorageError{Kind: domain.StorageConflict, Op: "update room", Err: fmt.Errorf("room %s not found", r.ID)}
	}
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	m.rooms[r.ID] = &cp
	return nil
}

func (m *Store) Remove(ctx context.Context, id domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *Store) SetPaused(ctx context.Context, id domain.RoomID, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return &domain.StorageError{Kind: domain.StorageConflict, Op: "pause room", Err: fmt.Errorf("room %s not found", id)}
	}
	r.Paused = paused
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Store) Snapshot(ctx context.Context) ([]domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- SampleStore ----

func (m *Store) Append(ctx context.Context, s *domain.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.samples = append(m.samples, &cp)
	return nil
}

func (m *Store) LoadRecent(ctx context.Context, id domain.RoomID, limit int) ([]domain.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Sample
	for i := len(m.samples) - 1; i >= 0 && len(out) < limit; i-- {
		if m.samples[i].RoomID == id {
			out = append(out, *m.samples[i])
		}
	}
	// Append order is insertion order, which may interleave kinds; make
	// newest-first explicit by timestamp.
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *Store) DeleteOlderThan(ctx context.Context, kind domain.ProbeKind, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.samples[:0]
	var deleted int64
	for _, s := range m.samples {
		if s.Kind == kind && s.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.samples = kept
	return deleted, nil
}

// ---- AlertStore ----

func (m *Store) Upsert(ctx context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *Store) LoadOpen(ctx context.Context, id domain.RoomID) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Alert
	for _, a := range m.alerts {
		if a.RoomID == id && a.Open() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *Store) LoadOpenAll(ctx context.Context) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Alert
	for _, a := range m.alerts {
		if a.Open() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *Store) ListRecent(ctx context.Context, limit int) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, a := range m.alerts {
		if a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			delete(m.alerts, id)
			deleted++
		}
	}
	return deleted, nil
}
