package domain

import "time"

// Verdict classifies a room's derived health. Values are ordered so that
// worse verdicts compare greater.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictDegraded
	VerdictDown
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictDegraded:
		return "degraded"
	case VerdictDown:
		return "down"
	}
	return "unknown"
}

// HealthStatus is the evaluator's derived view of a room. It is recomputed
// from samples, never stored on its own.
type HealthStatus struct {
	RoomID            RoomID    `json:"room_id"`
	Verdict           Verdict   `json:"verdict"`
	FailingSubsystems []string  `json:"failing_subsystems,omitempty"`
	ChangedAt         time.Time `json:"changed_at"`
	// Confidence counts consecutive samples since the verdict last changed.
	Confidence int    `json:"confidence"`
	Cause      string `json:"cause,omitempty"`
}
