// Package alert turns verdict changes into deduplicated, severity-tracked
// alerts with an explicit lifecycle: none → open → open(escalated) → resolved.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/repo"
)

const storeRetries = 3

// Engine owns the open-alert state for the whole fleet. Callers must ensure
// per-room call ordering (the scheduler's per-room runner does); the engine's
// own lock only guards cross-room map access.
type Engine struct {
	store  repo.AlertStore
	action ActionFunc
	log    *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	open map[string]*domain.Alert // dedupe key → open alert
}

func NewEngine(store repo.AlertStore, action ActionFunc, log *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		action: action,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		open:   make(map[string]*domain.Alert),
	}
}

// Restore reloads open alerts from storage so dedup state survives restarts.
func (e *Engine) Restore(ctx context.Context) error {
	alerts, err := e.store.LoadOpenAll(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range alerts {
		a := alerts[i]
		e.open[a.DedupeKey] = &a
	}
	return nil
}

// HandleStatus applies one evaluated status. It opens, escalates, or
// resolves alerts and hands each transition to the action exactly once.
func (e *Engine) HandleStatus(ctx context.Context, room *domain.Room, status domain.HealthStatus, sample *domain.Sample) {
	if status.Verdict == domain.VerdictOK {
		e.resolveAll(ctx, room, status, sample)
		return
	}

	if len(status.FailingSubsystems) == 0 {
		// Non-ok verdict with nothing concrete failing, e.g. mid-recovery
		// with the failing samples already aged out of the window. There is
		// no key to open under; any open alert stays until recovery confirms.
		return
	}

	key := domain.DedupeKey(room.ID, status.FailingSubsystems)
	severity := severityFor(status.Verdict)

	e.mu.Lock()
	existing := e.open[key]
	e.mu.Unlock()

	if existing == nil {
		a := &domain.Alert{
			ID:        uuid.NewString(),
			RoomID:    room.ID,
			DedupeKey: key,
			Severity:  severity,
			Cause:     status.Cause,
			OpenedAt:  sample.Timestamp,
		}
		e.mu.Lock()
		e.open[key] = a
		e.mu.Unlock()

		e.persist(ctx, a)
		e.log.Info("alert_opened",
			zap.String("room_id", string(room.ID)),
			zap.String("alert_id", a.ID),
			zap.String("dedupe_key", key),
			zap.String("severity", string(severity)),
		)
		e.emit(Event{Type: EventOpened, Alert: *a, Room: *room, Status: status})
		return
	}

	if severityRank(severity) > severityRank(existing.Severity) {
		// Escalate in place: same alert record, same opened-at.
		ts := sample.Timestamp
		existing.Severity = severity
		existing.Cause = status.Cause
		existing.EscalatedAt = &ts

		e.persist(ctx, existing)
		e.log.Info("alert_escalated",
			zap.String("room_id", string(room.ID)),
			zap.String("alert_id", existing.ID),
			zap.String("severity", string(severity)),
		)
		e.emit(Event{Type: EventEscalated, Alert: *existing, Room: *room, Status: status})
	}
	// Same or lower severity on an open alert: deduplicated, nothing fires.
}

// resolveAll closes every open alert for the room. The evaluator only
// reports ok after the recovery confirmation window, so reaching here means
// recovery is confirmed.
func (e *Engine) resolveAll(ctx context.Context, room *domain.Room, status domain.HealthStatus, sample *domain.Sample) {
	e.mu.Lock()
	var resolved []*domain.Alert
	for key, a := range e.open {
		if a.RoomID == room.ID {
			delete(e.open, key)
			resolved = append(resolved, a)
		}
	}
	e.mu.Unlock()

	for _, a := range resolved {
		ts := sample.Timestamp
		a.ResolvedAt = &ts
		e.persist(ctx, a)
		e.log.Info("alert_resolved",
			zap.String("room_id", string(room.ID)),
			zap.String("alert_id", a.ID),
			zap.Time("resolved_at", ts),
		)
		e.emit(Event{Type: EventResolved, Alert: *a, Room: *room, Status: status})
	}
}

// OpenCount reports how many alerts are currently open (all rooms).
func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

func (e *Engine) emit(ev Event) {
	if e.action != nil {
		e.action(ev)
	}
}

// persist upserts with bounded retries. A storage outage is logged and the
// cycle goes on; in-memory state stays authoritative so dedup still holds.
func (e *Engine) persist(ctx context.Context, a *domain.Alert) {
	var err error
	for attempt := 0; attempt < storeRetries; attempt++ {
		if err = e.store.Upsert(ctx, a); err == nil {
			return
		}
	}
	e.log.Error("alert_persist_failed",
		zap.String("alert_id", a.ID),
		zap.Error(err),
	)
}

func severityFor(v domain.Verdict) domain.Severity {
	if v == domain.VerdictDown {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

func severityRank(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 2
	case domain.SeverityWarning:
		return 1
	}
	return 0
}
