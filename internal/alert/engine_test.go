package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/repo/memory"
)

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func degraded(room *domain.Room, failing ...string) domain.HealthStatus {
	return domain.HealthStatus{
		RoomID:            room.ID,
		Verdict:           domain.VerdictDegraded,
		FailingSubsystems: failing,
		Cause:             "subsystems failing",
	}
}

func down(room *domain.Room, failing ...string) domain.HealthStatus {
	return domain.HealthStatus{
		RoomID:            room.ID,
		Verdict:           domain.VerdictDown,
		FailingSubsystems: failing,
		Cause:             "device unreachable",
	}
}

func okStatus(room *domain.Room) domain.HealthStatus {
	return domain.HealthStatus{RoomID: room.ID, Verdict: domain.VerdictOK}
}

func sampleAt(room *domain.Room, i int) *domain.Sample {
	return &domain.Sample{RoomID: room.ID, Timestamp: base.Add(time.Duration(i) * time.Minute)}
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *[]Event) {
	t.Helper()
	store := memory.New()
	var events []Event
	eng := NewEngine(store, func(ev Event) { events = append(events, ev) }, zap.NewNop())
	return eng, store, &events
}

func TestEngine_OpensOnceAndDeduplicates(t *testing.T) {
	eng, store, events := newTestEngine(t)
	ctx := context.Background()
	room := &domain.Room{ID: "r1", Name: "Boardroom"}

	eng.HandleStatus(ctx, room, degraded(room, "camera"), sampleAt(room, 0))
	eng.HandleStatus(ctx, room, degraded(room, "camera"), sampleAt(room, 1))
	eng.HandleStatus(ctx, room, degraded(room, "camera"), sampleAt(room, 2))

	require.Len(t, *events, 1, "repeat reports of the same failure must not re-fire")
	assert.Equal(t, EventOpened, (*events)[0].Type)
	assert.Equal(t, domain.SeverityWarning, (*events)[0].Alert.Severity)

	open, err := store.LoadOpen(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, open, 1, "at most one open alert per dedupe key")
	assert.Equal(t, domain.DedupeKey(room.ID, []string{"camera"}), open[0].DedupeKey)
}

func TestEngine_EscalatesInPlace(t *testing.T) {
	eng, store, events := newTestEngine(t)
	ctx := context.Background()
	room := &domain.Room{ID: "r1"}

	eng.HandleStatus(ctx, room, degraded(room, "network"), sampleAt(room, 0))
	eng.HandleStatus(ctx, room, down(room, "network"), sampleAt(room, 1))

	require.Len(t, *events, 2)
	assert.Equal(t, EventOpened, (*events)[0].Type)
	assert.Equal(t, EventEscalated, (*events)[1].Type)

	// same record: ID and opened-at survive the escalation
	assert.Equal(t, (*events)[0].Alert.ID, (*events)[1].Alert.ID)
	assert.Equal(t, (*events)[0].Alert.OpenedAt, (*events)[1].Alert.OpenedAt)
	assert.Equal(t, domain.SeverityCritical, (*events)[1].Alert.Severity)
	require.NotNil(t, (*events)[1].Alert.EscalatedAt)

	open, err := store.LoadOpen(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.SeverityCritical, open[0].Severity)
}

func TestEngine_NoDowngradeEvent(t *testing.T) {
	eng, _, events := newTestEngine(t)
	ctx := context.Background()
	room := &domain.Room{ID: "r1"}

	eng.HandleStatus(ctx, room, down(room, "network"), sampleAt(room, 0))
	eng.HandleStatus(ctx, room, degraded(room, "network"), sampleAt(room, 1))

	require.Len(t, *events, 1, "severity drop while open is not a transition")
	assert.Equal(t, domain.SeverityCritical, (*events)[0].Alert.Severity)
}

func TestEngine_DistinctSubsystemsOpenDistinctAlerts(t *testing.T) {
	eng, store, events := newTestEngine(t)
	ctx := context.Background()
	room := &domain.Room{ID: "r1"}

	eng.HandleStatus(ctx, room, degraded(room, "camera"), sampleAt(room, 0))
	eng.HandleStatus(ctx, room, degraded(room, "speaker"), sampleAt(room, 1))

	require.Len(t, *events, 2)
	open, err := store.LoadOpen(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, open, 2, "independent subsystem failures are separate alerts")
}

func TestEngine_ResolveSetsTimestampAndFiresOnce(t *testing.T) {
	eng, store, events := newTestEngine(t)
	ctx := context.Background()
	room := &domain.Room{ID: "r1"}

	eng.HandleStatus(ctx, room, down(room, "network"), sampleAt(room, 0))
	confirming := sampleAt(room, 4)
	eng.HandleStatus(ctx, room, okStatus(room), confirming)
	// further ok statuses must not re-resolve
	eng.HandleStatus(ctx, room, okStatus(room), sampleAt(room, 5))

	require.Len(t, *events, 2)
	resolved := (*events)[1]
	assert.Equal(t, EventResolved, resolved.Type)
	require.NotNil(t, resolved.Alert.ResolvedAt)
	assert.Equal(t, confirming.Timestamp, *resolved.Alert.ResolvedAt)

	open, err := store.LoadOpen(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Zero(t, eng.OpenCount())
}

func TestEngine_ResolveOnlyTouchesOwnRoom(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()
	r1 := &domain.Room{ID: "r1"}
	r2 := &domain.Room{ID: "r2"}

	eng.HandleStatus(ctx, r1, down(r1, "network"), sampleAt(r1, 0))
	eng.HandleStatus(ctx, r2, down(r2, "network"), sampleAt(r2, 0))
	eng.HandleStatus(ctx, r1, okStatus(r1), sampleAt(r1, 3))

	open, err := store.LoadOpenAll(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.RoomID("r2"), open[0].RoomID)
}

func TestEngine_RestoreRebuildsDedupState(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	room := &domain.Room{ID: "r1"}

	// first engine opens an alert, then "restarts"
	var firstEvents []Event
	first := NewEngine(store, func(ev Event) { firstEvents = append(firstEvents, ev) }, zap.NewNop())
	first.HandleStatus(ctx, room, degraded(room, "camera"), sampleAt(room, 0))
	require.Len(t, firstEvents, 1)

	var secondEvents []Event
	second := NewEngine(store, func(ev Event) { secondEvents = append(secondEvents, ev) }, zap.NewNop())
	require.NoError(t, second.Restore(ctx))

	second.HandleStatus(ctx, room, degraded(room, "camera"), sampleAt(room, 1))
	assert.Empty(t, secondEvents, "restored open alert must still deduplicate")
	assert.Equal(t, 1, second.OpenCount())
}
