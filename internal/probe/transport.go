package probe

import (
	"context"

	"github.com/roomops/vcwatch/internal/domain"
)

// RawDeviceStatus is the decoded status a transport returns from either the
// on-device API or the cloud API. Subsystem fields use the vendor's status
// strings ("connected", "disconnected", "unknown").
type RawDeviceStatus struct {
	Online          bool    `json:"online"`
	Camera          string  `json:"camera"`
	Microphone      string  `json:"microphone"`
	Speaker         string  `json:"speaker"`
	SoftwareVersion string  `json:"software_version"`
	UptimeHours     int     `json:"uptime_hours"`
	TemperatureC    float64 `json:"temperature_c"`
}

// RawCallMetrics is the decoded quality report from a completed test call.
type RawCallMetrics struct {
	PacketLossPct float64 `json:"packet_loss_percent"`
	JitterMS      float64 `json:"jitter_ms"`
	LatencyMS     float64 `json:"latency_ms"`
	QualityScore  float64 `json:"call_quality_score"`
}

// Transport reaches one room device. Implementations must be safe for
// concurrent use across rooms and must respect ctx deadlines.
type Transport interface {
	// DeviceStatus queries the device's own management API (room.Address).
	DeviceStatus(ctx context.Context, room *domain.Room) (*RawDeviceStatus, error)
	// CloudStatus queries the vendor cloud by room.VendorDeviceID.
	CloudStatus(ctx context.Context, room *domain.Room) (*RawDeviceStatus, error)
	// PlaceTestCall runs a short test call and reports quality metrics.
	PlaceTestCall(ctx context.Context, room *domain.Room) (*RawCallMetrics, error)
}

// connected maps a vendor peripheral status string to a reachability bool.
func connected(status string) bool {
	return status == "connected"
}
