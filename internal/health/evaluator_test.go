package health

import (
	"testing"
	"time"

	"github.com/roomops/vcwatch/internal/domain"
)

func testRoom() *domain.Room {
	return &domain.Room{
		ID: "r1",
		Monitor: domain.MonitorConfig{
			Thresholds: domain.Thresholds{
				FailuresToDegraded:    2,
				FailuresToDown:        3,
				RecoveryConfirmations: 2,
				PacketLossPct:         5.0,
				JitterMS:              30.0,
				LatencyMS:             150.0,
			},
		},
	}
}

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func okSample(i int) domain.Sample {
	return domain.Sample{
		RoomID: "r1", Timestamp: t0.Add(time.Duration(i) * time.Minute),
		Kind: domain.ProbeHealthCheck, Outcome: domain.OutcomeSuccess,
		Subsystems: domain.Subsystems{Camera: true, Microphone: true, Speaker: true, Network: true},
	}
}

func failSample(i int) domain.Sample {
	return domain.Sample{
		RoomID: "r1", Timestamp: t0.Add(time.Duration(i) * time.Minute),
		Kind: domain.ProbeHealthCheck, Outcome: domain.OutcomeTransportError,
		Detail: "connection refused",
	}
}

// newestFirst flips a chronological slice into store order.
func newestFirst(in []domain.Sample) []domain.Sample {
	out := make([]domain.Sample, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}

func TestEvaluate_SingleFailureStaysOK(t *testing.T) {
	room := testRoom()
	history := newestFirst([]domain.Sample{okSample(0), okSample(1)})
	cur := failSample(2)

	st := Evaluate(room, &cur, history)
	if st.Verdict != domain.VerdictOK {
		t.Fatalf("one transient failure must not change the verdict, got %s", st.Verdict)
	}
}

func TestEvaluate_ConsecutiveFailuresDegradeThenDown(t *testing.T) {
	room := testRoom()

	// 2 consecutive failures → degraded
	cur := failSample(2)
	st := Evaluate(room, &cur, newestFirst([]domain.Sample{okSample(0), failSample(1)}))
	if st.Verdict != domain.VerdictDegraded {
		t.Fatalf("want degraded after N=2 failures, got %s", st.Verdict)
	}
	if st.ChangedAt != cur.Timestamp {
		t.Fatalf("transition time should be the confirming sample's timestamp")
	}

	// 3 consecutive total failures → down
	cur = failSample(3)
	st = Evaluate(room, &cur, newestFirst([]domain.Sample{okSample(0), failSample(1), failSample(2)}))
	if st.Verdict != domain.VerdictDown {
		t.Fatalf("want down after M=3 failures, got %s", st.Verdict)
	}
}

func TestEvaluate_OKToDownWhenThresholdsEqual(t *testing.T) {
	room := testRoom()
	room.Monitor.Thresholds.FailuresToDown = 2

	cur := failSample(2)
	st := Evaluate(room, &cur, newestFirst([]domain.Sample{okSample(0), failSample(1)}))
	if st.Verdict != domain.VerdictDown {
		t.Fatalf("with N=M=2, two outage samples go straight to down, got %s", st.Verdict)
	}
}

func TestEvaluate_PartialFailureNeverDown(t *testing.T) {
	room := testRoom()
	partial := func(i int) domain.Sample {
		s := okSample(i)
		s.Outcome = domain.OutcomePartial
		s.Subsystems.Camera = false
		return s
	}

	cur := partial(4)
	st := Evaluate(room, &cur, newestFirst([]domain.Sample{partial(0), partial(1), partial(2), partial(3)}))
	if st.Verdict != domain.VerdictDegraded {
		t.Fatalf("partial failures cap at degraded, got %s", st.Verdict)
	}
	if len(st.FailingSubsystems) != 1 || st.FailingSubsystems[0] != "camera" {
		t.Fatalf("unexpected failing subsystems: %v", st.FailingSubsystems)
	}
}

func TestEvaluate_AllSubsystemsFailingCountsAsTotal(t *testing.T) {
	room := testRoom()
	dead := func(i int) domain.Sample {
		s := okSample(i)
		s.Outcome = domain.OutcomePartial
		s.Subsystems = domain.Subsystems{}
		return s
	}

	cur := dead(3)
	st := Evaluate(room, &cur, newestFirst([]domain.Sample{dead(0), dead(1), dead(2)}))
	if st.Verdict != domain.VerdictDown {
		t.Fatalf("all subsystems failing should reach down, got %s", st.Verdict)
	}
}

func TestEvaluate_RecoveryNeedsConfirmation(t *testing.T) {
	room := testRoom()
	chrono := []domain.Sample{failSample(0), failSample(1), failSample(2)} // down by now

	// one good sample: still down
	cur := okSample(3)
	st := Evaluate(room, &cur, newestFirst(chrono))
	if st.Verdict != domain.VerdictDown {
		t.Fatalf("one ok sample must not resolve, got %s", st.Verdict)
	}

	// second good sample: recovered
	chrono = append(chrono, okSample(3))
	cur = okSample(4)
	st = Evaluate(room, &cur, newestFirst(chrono))
	if st.Verdict != domain.VerdictOK {
		t.Fatalf("confirmed recovery should be ok, got %s", st.Verdict)
	}
	if st.ChangedAt != cur.Timestamp {
		t.Fatalf("recovery time should be the confirming sample's timestamp")
	}
}

func TestEvaluate_MidRecoveryKeepsFailureDescription(t *testing.T) {
	room := testRoom()
	chrono := []domain.Sample{failSample(0), failSample(1)} // degraded by now

	// A first clean sample leaves the verdict degraded; the status must
	// still name the original failure so the open alert's dedupe key stays
	// stable instead of flipping to an empty set.
	cur := okSample(2)
	st := Evaluate(room, &cur, newestFirst(chrono))
	if st.Verdict != domain.VerdictDegraded {
		t.Fatalf("unconfirmed recovery must stay degraded, got %s", st.Verdict)
	}
	if len(st.FailingSubsystems) != 1 || st.FailingSubsystems[0] != "network" {
		t.Fatalf("mid-recovery status must carry the last failing subsystems, got %v", st.FailingSubsystems)
	}
	if st.Cause != "connection refused" {
		t.Fatalf("cause should come from the last failing sample, got %q", st.Cause)
	}
}

func TestEvaluate_ConfidenceTracksVerdictStreak(t *testing.T) {
	room := testRoom()

	// Degraded confirmed at sample 1; the clean sample 2 agrees with
	// nothing new but the verdict is unchanged, so the streak keeps growing.
	cur := okSample(2)
	st := Evaluate(room, &cur, newestFirst([]domain.Sample{failSample(0), failSample(1)}))
	if st.Verdict != domain.VerdictDegraded {
		t.Fatalf("want degraded, got %s", st.Verdict)
	}
	if st.Confidence != 2 {
		t.Fatalf("confidence should count samples since the verdict changed, got %d", st.Confidence)
	}

	// A third transport error escalates to down; the streak restarts at the
	// transition.
	cur = failSample(2)
	st = Evaluate(room, &cur, newestFirst([]domain.Sample{failSample(0), failSample(1)}))
	if st.Verdict != domain.VerdictDown {
		t.Fatalf("want down, got %s", st.Verdict)
	}
	if st.Confidence != 1 {
		t.Fatalf("confidence should reset on a verdict change, got %d", st.Confidence)
	}
}

func TestEvaluate_PoorCallQualityDegrades(t *testing.T) {
	room := testRoom()
	badCall := func(i int) domain.Sample {
		s := okSample(i)
		s.Kind = domain.ProbeTestCall
		s.Outcome = domain.OutcomeSuccess
		s.Call = &domain.CallMetrics{PacketLossPct: 9.0, JitterMS: 10, LatencyMS: 60}
		return s
	}

	cur := badCall(2)
	st := Evaluate(room, &cur, newestFirst([]domain.Sample{okSample(0), badCall(1)}))
	if st.Verdict != domain.VerdictDegraded {
		t.Fatalf("repeated quality breaches degrade, got %s", st.Verdict)
	}
	if len(st.FailingSubsystems) != 1 || st.FailingSubsystems[0] != "call-quality" {
		t.Fatalf("unexpected failing subsystems: %v", st.FailingSubsystems)
	}
}

func TestEvaluate_GoodCallUnderThresholdStaysOK(t *testing.T) {
	room := testRoom()
	cur := okSample(1)
	cur.Kind = domain.ProbeTestCall
	cur.Call = &domain.CallMetrics{PacketLossPct: 0.5, JitterMS: 8, LatencyMS: 40, QualityScore: 4.5}

	st := Evaluate(room, &cur, newestFirst([]domain.Sample{okSample(0)}))
	if st.Verdict != domain.VerdictOK {
		t.Fatalf("clean call should stay ok, got %s", st.Verdict)
	}
}
