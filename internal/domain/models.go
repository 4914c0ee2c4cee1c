package domain

import "time"

type RoomID string

// ProbeKind selects which check a probe performs against a room device.
type ProbeKind string

const (
	ProbeHealthCheck ProbeKind = "health-check"
	ProbeTestCall    ProbeKind = "test-call"
)

// Thresholds are the per-room tunables the evaluator and alert engine use.
type Thresholds struct {
	FailuresToDegraded    int     `json:"failures_to_degraded"`
	FailuresToDown        int     `json:"failures_to_down"`
	RecoveryConfirmations int     `json:"recovery_confirmations"`
	PacketLossPct         float64 `json:"packet_loss_pct"`
	JitterMS              float64 `json:"jitter_ms"`
	LatencyMS             float64 `json:"latency_ms"`
}

// MonitorConfig controls how a single room is scheduled.
type MonitorConfig struct {
	CheckInterval      time.Duration `json:"check_interval"`
	TestCallInterval   time.Duration `json:"test_call_interval"`
	HealthCheckEnabled bool          `json:"health_check_enabled"`
	TestCallEnabled    bool          `json:"test_call_enabled"`
	Thresholds         Thresholds    `json:"thresholds"`
}

// Room is one monitored conferencing device. Snapshots are immutable during
// a check cycle; everything else references rooms by ID only.
type Room struct {
	ID             RoomID        `json:"id"`
	Name           string        `json:"name"`
	Location       string        `json:"location,omitempty"`
	Address        string        `json:"address,omitempty"`          // on-device API host/IP
	VendorDeviceID string        `json:"vendor_device_id,omitempty"` // cloud API device ID
	Monitor        MonitorConfig `json:"monitor"`
	Paused         bool          `json:"paused"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Outcome tags how a probe attempt ended.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeTransportError Outcome = "transport-error"
	OutcomeTimeout        Outcome = "timeout"
	OutcomePartial        Outcome = "partial"
)

// Subsystems holds per-subsystem reachability from a health check.
type Subsystems struct {
	Camera     bool `json:"camera"`
	Microphone bool `json:"microphone"`
	Speaker    bool `json:"speaker"`
	Network    bool `json:"network"`
}

// Failing lists the subsystem names currently down, in a fixed order so the
// list is usable as part of a deduplication key.
func (s Subsystems) Failing() []string {
	var out []string
	if !s.Network {
		out = append(out, "network")
	}
	if !s.Camera {
		out = append(out, "camera")
	}
	if !s.Microphone {
		out = append(out, "microphone")
	}
	if !s.Speaker {
		out = append(out, "speaker")
	}
	return out
}

// AllFailing reports whether every monitored subsystem is down at once.
func (s Subsystems) AllFailing() bool {
	return !s.Camera && !s.Microphone && !s.Speaker && !s.Network
}

// CallMetrics are the quality numbers collected from a test call.
type CallMetrics struct {
	PacketLossPct float64 `json:"packet_loss_pct"`
	JitterMS      float64 `json:"jitter_ms"`
	LatencyMS     float64 `json:"latency_ms"`
	QualityScore  float64 `json:"quality_score"`
}

// Sample is one probe result. Immutable once recorded; history is
// append-only keyed by (room, timestamp).
type Sample struct {
	RoomID          RoomID       `json:"room_id"`
	Timestamp       time.Time    `json:"timestamp"`
	Kind            ProbeKind    `json:"kind"`
	Outcome         Outcome      `json:"outcome"`
	Subsystems      Subsystems   `json:"subsystems"`
	SoftwareVersion string       `json:"software_version,omitempty"`
	UptimeHours     int          `json:"uptime_hours,omitempty"`
	TemperatureC    float64      `json:"temperature_c,omitempty"`
	Call            *CallMetrics `json:"call,omitempty"`
	Detail          string       `json:"detail,omitempty"`
}

// OK reports whether the sample is a fully successful reading.
func (s *Sample) OK() bool {
	return s.Outcome == OutcomeSuccess
}
