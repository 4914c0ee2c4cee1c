// Package scheduler drives the monitoring fleet: one timer-owning runner per
// room, probes executed under a fleet-wide concurrency ceiling, transient
// failures retried with backoff, and every result funneled through the
// room's own runner so samples are evaluated strictly in order.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/health"
	"github.com/roomops/vcwatch/internal/probe"
	"github.com/roomops/vcwatch/internal/repo"
)

// historyWindow is how many trailing samples the evaluator sees. Generous
// compared to any sane consecutive-failure threshold.
const historyWindow = 32

const appendRetries = 3

type Config struct {
	RetryAttempts  int           // total probe attempts per cycle
	RetryBackoff   time.Duration // initial backoff, doubles per attempt
	Concurrency    int           // fleet-wide probe ceiling
	ReconcileEvery time.Duration // room store poll interval
}

type Scheduler struct {
	log     *zap.Logger
	rooms   repo.RoomStore
	samples repo.SampleStore
	prober  probe.Prober
	engine  *alert.Engine
	cfg     Config

	sem chan struct{}

	mu      sync.Mutex
	runners map[domain.RoomID]*runner
}

func New(
	log *zap.Logger,
	rooms repo.RoomStore,
	samples repo.SampleStore,
	prober probe.Prober,
	engine *alert.Engine,
	cfg Config,
) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.ReconcileEvery <= 0 {
		cfg.ReconcileEvery = 30 * time.Second
	}
	return &Scheduler{
		log:     log,
		rooms:   rooms,
		samples: samples,
		prober:  prober,
		engine:  engine,
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.Concurrency),
		runners: make(map[domain.RoomID]*runner),
	}
}

// Run reconciles against the room store until ctx is cancelled, then stops
// every runner. It does an immediate pass, then polls each tick.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.ReconcileEvery)
	defer t.Stop()

	s.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			s.log.Info("scheduler_stopped")
			return
		case <-t.C:
			s.reconcile(ctx)
		}
	}
}

// reconcile diffs the store snapshot against running rooms. Changes touch
// only the affected room's runner.
func (s *Scheduler) reconcile(ctx context.Context) {
	rooms, err := s.rooms.Snapshot(ctx)
	if err != nil {
		s.log.Warn("reconcile_snapshot_error", zap.Error(err))
		return
	}

	seen := make(map[domain.RoomID]bool, len(rooms))
	for i := range rooms {
		room := rooms[i]
		seen[room.ID] = true

		s.mu.Lock()
		r := s.runners[room.ID]
		s.mu.Unlock()

		if r == nil {
			s.Add(ctx, &room)
			continue
		}
		r.apply(&room)
	}

	s.mu.Lock()
	var gone []domain.RoomID
	for id := range s.runners {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	s.mu.Unlock()
	for _, id := range gone {
		s.Remove(id)
	}
}

// Add starts monitoring a room. No-op if it is already scheduled.
func (s *Scheduler) Add(ctx context.Context, room *domain.Room) {
	s.mu.Lock()
	if _, ok := s.runners[room.ID]; ok {
		s.mu.Unlock()
		return
	}
	r := newRunner(s, room)
	s.runners[room.ID] = r
	s.mu.Unlock()

	go r.run()
	s.log.Info("room_scheduled",
		zap.String("room_id", string(room.ID)),
		zap.String("name", room.Name),
		zap.Bool("paused", room.Paused),
	)
}

// Remove stops a room's timers and cancels processing of any in-flight
// probe result. Other rooms are untouched.
func (s *Scheduler) Remove(id domain.RoomID) {
	s.mu.Lock()
	r := s.runners[id]
	delete(s.runners, id)
	s.mu.Unlock()

	if r != nil {
		r.stop()
		s.log.Info("room_unscheduled", zap.String("room_id", string(id)))
	}
}

// Pause keeps the room's history and schedule but discards results until
// Resume. Safe to call while a probe is in flight.
func (s *Scheduler) Pause(id domain.RoomID) error {
	return s.setPaused(id, true)
}

func (s *Scheduler) Resume(id domain.RoomID) error {
	return s.setPaused(id, false)
}

func (s *Scheduler) setPaused(id domain.RoomID, paused bool) error {
	s.mu.Lock()
	r := s.runners[id]
	s.mu.Unlock()
	if r == nil {
		return fmt.Errorf("room %s is not scheduled", id)
	}
	r.setPaused(paused)
	s.log.Info("room_pause_changed", zap.String("room_id", string(id)), zap.Bool("paused", paused))
	return nil
}

// ProbeNow triggers a manual probe, coalesced with the next scheduled tick
// so the timer does not double-fire.
func (s *Scheduler) ProbeNow(id domain.RoomID, kind domain.ProbeKind) error {
	s.mu.Lock()
	r := s.runners[id]
	s.mu.Unlock()
	if r == nil {
		return fmt.Errorf("room %s is not scheduled", id)
	}
	r.triggerNow(kind)
	return nil
}

// Scheduled reports whether a room currently has a runner.
func (s *Scheduler) Scheduled(id domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runners[id]
	return ok
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	runners := make([]*runner, 0, len(s.runners))
	for id, r := range s.runners {
		runners = append(runners, r)
		delete(s.runners, id)
	}
	s.mu.Unlock()
	for _, r := range runners {
		r.stop()
	}
}

// probeWithRetry runs one probe cycle: bounded attempts with exponential
// backoff on retryable failures, and always a terminal sample so the
// evaluator never sees a skipped cycle.
func (s *Scheduler) probeWithRetry(ctx context.Context, room *domain.Room, kind domain.ProbeKind) *domain.Sample {
	var lastErr error
	backoff := s.cfg.RetryBackoff
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return probe.FailureSample(room, kind, &domain.ProbeError{Kind: domain.ProbeTimeout, Err: ctx.Err()})
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		sample, err := s.prober.Probe(ctx, room, kind)
		if err == nil {
			return sample
		}
		lastErr = err

		var pe *domain.ProbeError
		if !errors.As(err, &pe) || !pe.Retryable() {
			break
		}
		s.log.Debug("probe_retrying",
			zap.String("room_id", string(room.ID)),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	s.log.Warn("probe_failed",
		zap.String("room_id", string(room.ID)),
		zap.String("kind", string(kind)),
		zap.Error(lastErr),
	)
	return probe.FailureSample(room, kind, lastErr)
}

// process feeds one sample through evaluation, persistence, and alerting.
// Runs on the room's runner goroutine, which is the serialization point.
func (s *Scheduler) process(ctx context.Context, room *domain.Room, sample *domain.Sample) {
	// Load history before appending so the window excludes this sample.
	history, err := s.samples.LoadRecent(ctx, room.ID, historyWindow)
	if err != nil {
		s.log.Warn("history_load_error", zap.String("room_id", string(room.ID)), zap.Error(err))
		history = nil
	}

	status := health.Evaluate(room, sample, history)

	if err := s.appendWithRetry(ctx, sample); err != nil {
		// Fatal to persistence for this cycle only; alerting still proceeds.
		s.log.Error("sample_persist_failed",
			zap.String("room_id", string(room.ID)),
			zap.Error(err),
		)
	}

	s.engine.HandleStatus(ctx, room, status, sample)

	s.log.Debug("room_checked",
		zap.String("room_id", string(room.ID)),
		zap.String("kind", string(sample.Kind)),
		zap.String("outcome", string(sample.Outcome)),
		zap.String("verdict", status.Verdict.String()),
	)
}

func (s *Scheduler) appendWithRetry(ctx context.Context, sample *domain.Sample) error {
	var err error
	for attempt := 0; attempt < appendRetries; attempt++ {
		if err = s.samples.Append(ctx, sample); err == nil {
			return nil
		}
	}
	return err
}
