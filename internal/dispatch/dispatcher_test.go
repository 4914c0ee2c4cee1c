package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/notify"
)

type stubChannel struct {
	name string

	mu    sync.Mutex
	calls int
	fails int // fail the first N sends
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(ctx context.Context, ev alert.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.fails {
		return &domain.DispatchError{Kind: domain.DispatchChannelUnavailable, Channel: c.name, Err: errors.New("down")}
	}
	return nil
}

func (c *stubChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func event(id string, t alert.EventType) alert.Event {
	return alert.Event{
		Type:  t,
		Alert: domain.Alert{ID: id, RoomID: "r1", Severity: domain.SeverityWarning},
		Room:  domain.Room{ID: "r1", Name: "Boardroom"},
	}
}

func TestDispatcher_FansOutToAllChannels(t *testing.T) {
	a := &stubChannel{name: "a"}
	b := &stubChannel{name: "b"}
	d := New([]notify.Channel{a, b}, NewMemoryDedupe(time.Hour), zap.NewNop(), 3, time.Millisecond)
	defer d.Close()

	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestDispatcher_RetriesFailingChannelOnly(t *testing.T) {
	flaky := &stubChannel{name: "flaky", fails: 2}
	steady := &stubChannel{name: "steady"}
	d := New([]notify.Channel{flaky, steady}, NewMemoryDedupe(time.Hour), zap.NewNop(), 3, time.Millisecond)
	defer d.Close()

	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()

	assert.Equal(t, 3, flaky.count(), "two failures then success")
	assert.Equal(t, 1, steady.count(), "healthy channel must not be re-sent")
}

func TestDispatcher_DeduplicatesSameTransition(t *testing.T) {
	ch := &stubChannel{name: "a"}
	d := New([]notify.Channel{ch}, NewMemoryDedupe(time.Hour), zap.NewNop(), 1, 0)
	defer d.Close()

	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()
	d.Dispatch(event("a1", alert.EventOpened)) // duplicate redelivery
	d.Dispatch(event("a1", alert.EventResolved))
	d.Wait()

	assert.Equal(t, 2, ch.count(), "same (alert, transition) delivers once; a new transition delivers again")
}

func TestDispatcher_SkipsNilChannels(t *testing.T) {
	ch := &stubChannel{name: "a"}
	d := New([]notify.Channel{nil, ch, nil}, NewMemoryDedupe(time.Hour), zap.NewNop(), 1, 0)
	defer d.Close()

	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()
	assert.Equal(t, 1, ch.count())
}

func TestDispatcher_GivesUpAfterBoundedRetries(t *testing.T) {
	dead := &stubChannel{name: "dead", fails: 1 << 30}
	d := New([]notify.Channel{dead}, NewMemoryDedupe(time.Hour), zap.NewNop(), 3, time.Millisecond)
	defer d.Close()

	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()
	assert.Equal(t, 3, dead.count())
}

func TestDispatcher_FailedDeliveryIsNotMarkedDelivered(t *testing.T) {
	ch := &stubChannel{name: "flaky", fails: 2}
	dedupe := NewMemoryDedupe(time.Hour)
	d := New([]notify.Channel{ch}, dedupe, zap.NewNop(), 1, 0)
	defer d.Close()
	ctx := context.Background()

	// Two dispatches fail outright; neither may mark the key, or the event
	// would stay suppressed for the whole TTL without ever being sent.
	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()
	dup, err := dedupe.Delivered(ctx, event("a1", alert.EventOpened).Key())
	require.NoError(t, err)
	assert.False(t, dup, "undelivered event must stay unmarked")

	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()

	// Channel recovered: the redelivery goes out and only then is the key
	// marked, so a fourth dispatch is suppressed.
	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()
	d.Dispatch(event("a1", alert.EventOpened))
	d.Wait()

	assert.Equal(t, 3, ch.count(), "two failed sends, one success, then suppression")
	dup, _ = dedupe.Delivered(ctx, event("a1", alert.EventOpened).Key())
	assert.True(t, dup)
}

func TestMemoryDedupe_TTLExpiry(t *testing.T) {
	m := NewMemoryDedupe(10 * time.Millisecond)
	ctx := context.Background()

	fresh, err := m.MarkDelivered(ctx, "k")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, _ = m.MarkDelivered(ctx, "k")
	assert.False(t, fresh)

	time.Sleep(20 * time.Millisecond)
	fresh, _ = m.MarkDelivered(ctx, "k")
	assert.True(t, fresh, "expired keys may deliver again (at-least-once)")
}
