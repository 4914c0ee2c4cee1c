// Package dispatch fans finalized alert transitions out to notification
// channels with at-least-once delivery: each channel retries independently,
// and one channel being down never blocks the others.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/notify"
)

type Dispatcher struct {
	channels []notify.Channel
	dedupe   DedupeStore
	log      *zap.Logger

	retries int
	backoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(channels []notify.Channel, dedupe DedupeStore, log *zap.Logger, retries int, backoff time.Duration) *Dispatcher {
	if retries < 1 {
		retries = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	// drop nil channels so disabled ones (unset config) cost nothing
	var active []notify.Channel
	for _, ch := range channels {
		if ch != nil {
			active = append(active, ch)
		}
	}
	return &Dispatcher{
		channels: active,
		dedupe:   dedupe,
		log:      log,
		retries:  retries,
		backoff:  backoff,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dispatch implements alert.ActionFunc. It returns quickly; deliveries run
// in the background so the alert engine never blocks on a slow channel.
func (d *Dispatcher) Dispatch(ev alert.Event) {
	dup, err := d.dedupe.Delivered(d.ctx, ev.Key())
	if err != nil {
		// Dedup store down: deliver anyway. Duplicate notifications beat
		// silently dropped ones under at-least-once semantics.
		d.log.Warn("dispatch_dedupe_error", zap.String("event", ev.Key()), zap.Error(err))
	} else if dup {
		d.log.Debug("dispatch_duplicate_suppressed", zap.String("event", ev.Key()))
		return
	}

	// The key is marked once the first channel delivers. An event whose
	// every delivery exhausted its retries stays unmarked, so a restart
	// replays it instead of suppressing it for the TTL.
	var mark sync.Once
	for _, ch := range d.channels {
		d.wg.Add(1)
		go func(ch notify.Channel) {
			defer d.wg.Done()
			if d.deliver(ch, ev) {
				mark.Do(func() {
					if _, err := d.dedupe.MarkDelivered(d.ctx, ev.Key()); err != nil {
						d.log.Warn("dispatch_dedupe_error", zap.String("event", ev.Key()), zap.Error(err))
					}
				})
			}
		}(ch)
	}
}

func (d *Dispatcher) deliver(ch notify.Channel, ev alert.Event) bool {
	var err error
	for attempt := 0; attempt < d.retries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(d.ctx, d.backoff*time.Duration(1<<(attempt-1))) {
				return false
			}
		}
		if err = ch.Send(d.ctx, ev); err == nil {
			d.log.Info("dispatch_sent",
				zap.String("channel", ch.Name()),
				zap.String("event", ev.Key()),
				zap.String("room_id", string(ev.Alert.RoomID)),
			)
			return true
		}
		d.log.Warn("dispatch_attempt_failed",
			zap.String("channel", ch.Name()),
			zap.String("event", ev.Key()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	d.log.Error("dispatch_gave_up",
		zap.String("channel", ch.Name()),
		zap.String("event", ev.Key()),
		zap.Error(err),
	)
	return false
}

// Close stops retry loops and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

// Wait blocks until queued deliveries finish. Tests use it to avoid racing
// the background goroutines.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func sleepCtx(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
