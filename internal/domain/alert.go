package domain

import (
	"strings"
	"time"
)

// Severity of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one notifiable incident on a room. At most one open alert may
// exist per (room, dedupe key); a repeat report of the same failure set
// escalates the open alert in place instead of duplicating it.
type Alert struct {
	ID          string     `json:"id"`
	RoomID      RoomID     `json:"room_id"`
	DedupeKey   string     `json:"dedupe_key"`
	Severity    Severity   `json:"severity"`
	Cause       string     `json:"cause"`
	OpenedAt    time.Time  `json:"opened_at"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Open reports whether the alert has not been resolved yet.
func (a *Alert) Open() bool { return a.ResolvedAt == nil }

// DedupeKey collapses repeated reports of the same failing-subsystem set on
// one room into a single alert, while distinct subsystem failures stay
// separate alerts.
func DedupeKey(room RoomID, failing []string) string {
	if len(failing) == 0 {
		return string(room) + "/ok"
	}
	return string(room) + "/" + strings.Join(failing, "+")
}

// RetentionPolicy holds per-entity-kind maximum ages. Applied uniformly,
// independent of room.
type RetentionPolicy struct {
	MaxSampleAge     time.Duration `json:"max_sample_age"`      // health-check samples
	MaxCallSampleAge time.Duration `json:"max_call_sample_age"` // test-call samples
	MaxAlertAge      time.Duration `json:"max_alert_age"`       // resolved alerts only
}
