package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/roomops/vcwatch/internal/domain"
)

// runner owns one room: its two probe timers and the delivery of every
// result for that room, in order, on a single goroutine.
type runner struct {
	sched  *Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	room   *domain.Room
	paused bool

	trigger chan domain.ProbeKind // cap 1: manual probes coalesce
	changed chan struct{}         // cap 1: config changed, reset timers
}

func newRunner(s *Scheduler, room *domain.Room) *runner {
	ctx, cancel := context.WithCancel(context.Background())
	snap := *room
	return &runner{
		sched:   s,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		room:    &snap,
		paused:  room.Paused,
		trigger: make(chan domain.ProbeKind, 1),
		changed: make(chan struct{}, 1),
	}
}

func (r *runner) run() {
	defer close(r.done)

	healthT := newStoppedTimer()
	callT := newStoppedTimer()
	defer healthT.Stop()
	defer callT.Stop()

	// First health check runs immediately so a freshly added room gets a
	// status without waiting a full interval.
	r.cycle(domain.ProbeHealthCheck)
	r.schedule(healthT, callT)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-healthT.C:
			r.cycle(domain.ProbeHealthCheck)
			r.resetTimer(healthT, domain.ProbeHealthCheck)
		case <-callT.C:
			r.cycle(domain.ProbeTestCall)
			r.resetTimer(callT, domain.ProbeTestCall)
		case kind := <-r.trigger:
			r.cycle(kind)
			// Coalesce: a manual probe pushes the next scheduled one out.
			switch kind {
			case domain.ProbeHealthCheck:
				r.resetTimer(healthT, kind)
			case domain.ProbeTestCall:
				r.resetTimer(callT, kind)
			}
		case <-r.changed:
			r.schedule(healthT, callT)
		}
	}
}

// cycle performs one probe under the fleet semaphore. A result observed
// after pause or removal is discarded, never evaluated.
func (r *runner) cycle(kind domain.ProbeKind) {
	room, paused := r.snapshot()
	if paused || !enabled(room, kind) {
		return
	}

	select {
	case r.sched.sem <- struct{}{}:
	case <-r.ctx.Done():
		return
	}
	sample := r.sched.probeWithRetry(r.ctx, room, kind)
	<-r.sched.sem

	if r.ctx.Err() != nil {
		return // removed while the probe was in flight
	}
	if _, paused := r.snapshot(); paused {
		return // paused while the probe was in flight
	}
	r.sched.process(r.ctx, room, sample)
}

// apply replaces the runner's room snapshot when the store copy changed.
func (r *runner) apply(room *domain.Room) {
	r.mu.Lock()
	intervalChanged := r.room.Monitor != room.Monitor
	pauseChanged := r.paused != room.Paused
	snap := *room
	r.room = &snap
	r.paused = room.Paused
	r.mu.Unlock()

	if intervalChanged || pauseChanged {
		select {
		case r.changed <- struct{}{}:
		default:
		}
	}
}

func (r *runner) setPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.room.Paused = paused
	r.mu.Unlock()
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

func (r *runner) triggerNow(kind domain.ProbeKind) {
	select {
	case r.trigger <- kind:
	default: // one already queued; coalesce
	}
}

func (r *runner) stop() {
	r.cancel()
	<-r.done
}

func (r *runner) snapshot() (*domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room, r.paused
}

// schedule arms both timers from the current room config. Disabled or
// paused probes leave the timer stopped.
func (r *runner) schedule(healthT, callT *time.Timer) {
	r.resetTimer(healthT, domain.ProbeHealthCheck)
	r.resetTimer(callT, domain.ProbeTestCall)
}

func (r *runner) resetTimer(t *time.Timer, kind domain.ProbeKind) {
	room, paused := r.snapshot()
	stopDrain(t)
	if paused || !enabled(room, kind) {
		return
	}
	t.Reset(interval(room, kind))
}

func enabled(room *domain.Room, kind domain.ProbeKind) bool {
	switch kind {
	case domain.ProbeTestCall:
		return room.Monitor.TestCallEnabled && room.Monitor.TestCallInterval > 0
	default:
		return room.Monitor.HealthCheckEnabled && room.Monitor.CheckInterval > 0
	}
}

func interval(room *domain.Room, kind domain.ProbeKind) time.Duration {
	if kind == domain.ProbeTestCall {
		return room.Monitor.TestCallInterval
	}
	return room.Monitor.CheckInterval
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopDrain(t)
	return t
}

func stopDrain(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
