// Package health derives a room verdict from probe samples.
//
// The evaluator is pure: verdicts are a deterministic function of (room
// config, trailing sample window). Hysteresis keeps transient blips from
// flapping the verdict: consecutive confirming samples are required in both
// directions.
package health

import (
	"fmt"
	"strings"

	"github.com/roomops/vcwatch/internal/domain"
)

// failureClass describes how bad a single sample is.
type failureClass int

const (
	classOK failureClass = iota
	classPartial              // some subsystems down, or call quality over threshold
	classTotal                // unreachable, timed out, or every subsystem down
)

// Evaluate replays the trailing window plus the new sample through the
// hysteresis state machine and returns the room's current status.
// history must be newest-first (as SampleStore.LoadRecent returns it) and
// must not include sample itself.
func Evaluate(room *domain.Room, sample *domain.Sample, history []domain.Sample) domain.HealthStatus {
	th := room.Monitor.Thresholds

	// Oldest-first replay list ending with the newest sample.
	window := make([]domain.Sample, 0, len(history)+1)
	for i := len(history) - 1; i >= 0; i-- {
		window = append(window, history[i])
	}
	window = append(window, *sample)

	verdict := domain.VerdictOK
	changedAt := window[0].Timestamp
	failStreak, totalStreak, okStreak := 0, 0, 0
	verdictStreak := 0
	var lastFailing *domain.Sample

	for i := range window {
		s := &window[i]
		switch classify(s, th) {
		case classOK:
			okStreak++
			failStreak, totalStreak = 0, 0
		case classPartial:
			failStreak++
			totalStreak = 0
			okStreak = 0
			lastFailing = s
		case classTotal:
			failStreak++
			totalStreak++
			okStreak = 0
			lastFailing = s
		}

		next := verdict
		switch verdict {
		case domain.VerdictOK:
			if totalStreak >= th.FailuresToDown {
				next = domain.VerdictDown
			} else if failStreak >= th.FailuresToDegraded {
				next = domain.VerdictDegraded
			}
		case domain.VerdictDegraded:
			if totalStreak >= th.FailuresToDown {
				next = domain.VerdictDown
			} else if okStreak >= th.RecoveryConfirmations {
				next = domain.VerdictOK
			}
		case domain.VerdictDown:
			if okStreak >= th.RecoveryConfirmations {
				next = domain.VerdictOK
			}
		}
		if next != verdict {
			verdict = next
			changedAt = s.Timestamp
			verdictStreak = 1
		} else {
			verdictStreak++
		}
	}

	status := domain.HealthStatus{
		RoomID:     room.ID,
		Verdict:    verdict,
		ChangedAt:  changedAt,
		Confidence: verdictStreak,
	}
	if verdict != domain.VerdictOK {
		// The newest sample may already be clean while recovery is still
		// unconfirmed. The alert must keep describing the failure that
		// opened it, so the description comes from the most recent failing
		// sample, never from a clean one.
		src := sample
		if lastFailing != nil {
			src = lastFailing
		}
		status.FailingSubsystems, status.Cause = describeFailure(src, th)
	}
	return status
}

// classify grades one sample against the room thresholds.
func classify(s *domain.Sample, th domain.Thresholds) failureClass {
	switch s.Outcome {
	case domain.OutcomeTransportError, domain.OutcomeTimeout:
		return classTotal
	case domain.OutcomePartial:
		if s.Subsystems.AllFailing() {
			return classTotal
		}
		return classPartial
	}
	if s.Kind == domain.ProbeTestCall && s.Call != nil && qualityBreached(s.Call, th) {
		return classPartial
	}
	return classOK
}

func qualityBreached(m *domain.CallMetrics, th domain.Thresholds) bool {
	return m.PacketLossPct > th.PacketLossPct ||
		m.JitterMS > th.JitterMS ||
		m.LatencyMS > th.LatencyMS
}

// describeFailure names the failing subsystems for the dedupe key and a
// human-readable cause for the alert.
func describeFailure(s *domain.Sample, th domain.Thresholds) ([]string, string) {
	switch s.Outcome {
	case domain.OutcomeTransportError, domain.OutcomeTimeout:
		cause := "device unreachable"
		if s.Detail != "" {
			cause = s.Detail
		}
		return []string{"network"}, cause
	case domain.OutcomePartial:
		failing := s.Subsystems.Failing()
		return failing, "subsystems failing: " + strings.Join(failing, ", ")
	}
	if s.Kind == domain.ProbeTestCall && s.Call != nil && qualityBreached(s.Call, th) {
		cause := fmt.Sprintf("call quality below threshold: packet loss %.1f%%, jitter %.0fms, latency %.0fms",
			s.Call.PacketLossPct, s.Call.JitterMS, s.Call.LatencyMS)
		return []string{"call-quality"}, cause
	}
	// No failing sample survives in the window; nothing concrete to name.
	return nil, "awaiting recovery confirmation"
}
