package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roomops/vcwatch/internal/domain"
)

// Prober runs one probe against one room. No internal retries; backoff
// state lives in the scheduler so all retry policy is in one place.
type Prober interface {
	Probe(ctx context.Context, room *domain.Room, kind domain.ProbeKind) (*domain.Sample, error)
}

// DeviceProber probes through a Transport with a bounded per-attempt timeout.
// Stateless apart from its configuration, so concurrent probes of different
// rooms are safe.
type DeviceProber struct {
	Transport Transport
	Timeout   time.Duration
}

func NewDeviceProber(t Transport, timeout time.Duration) *DeviceProber {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeviceProber{Transport: t, Timeout: timeout}
}

func (p *DeviceProber) Probe(ctx context.Context, room *domain.Room, kind domain.ProbeKind) (*domain.Sample, error) {
	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	switch kind {
	case domain.ProbeHealthCheck:
		return p.healthCheck(cctx, room)
	case domain.ProbeTestCall:
		return p.testCall(cctx, room)
	}
	return nil, fmt.Errorf("unknown probe kind %q", kind)
}

func (p *DeviceProber) healthCheck(ctx context.Context, room *domain.Room) (*domain.Sample, error) {
	// Prefer the on-device API; fall back to the cloud when the room has no
	// reachable address configured.
	var (
		status *RawDeviceStatus
		err    error
	)
	if room.Address != "" {
		status, err = p.Transport.DeviceStatus(ctx, room)
	} else {
		status, err = p.Transport.CloudStatus(ctx, room)
	}
	if err != nil {
		return nil, asProbeError(err)
	}

	sample := &domain.Sample{
		RoomID:    room.ID,
		Timestamp: time.Now().UTC(),
		Kind:      domain.ProbeHealthCheck,
		Subsystems: domain.Subsystems{
			Network:    status.Online,
			Camera:     connected(status.Camera),
			Microphone: connected(status.Microphone),
			Speaker:    connected(status.Speaker),
		},
		SoftwareVersion: status.SoftwareVersion,
		UptimeHours:     status.UptimeHours,
		TemperatureC:    status.TemperatureC,
	}
	if failing := sample.Subsystems.Failing(); len(failing) > 0 {
		sample.Outcome = domain.OutcomePartial
		sample.Detail = "subsystems failing: " + fmt.Sprint(failing)
	} else {
		sample.Outcome = domain.OutcomeSuccess
	}
	return sample, nil
}

func (p *DeviceProber) testCall(ctx context.Context, room *domain.Room) (*domain.Sample, error) {
	metrics, err := p.Transport.PlaceTestCall(ctx, room)
	if err != nil {
		return nil, asProbeError(err)
	}
	return &domain.Sample{
		RoomID:    room.ID,
		Timestamp: time.Now().UTC(),
		Kind:      domain.ProbeTestCall,
		Outcome:   domain.OutcomeSuccess,
		// A call that connected at all implies the device and network work.
		Subsystems: domain.Subsystems{Camera: true, Microphone: true, Speaker: true, Network: true},
		Call: &domain.CallMetrics{
			PacketLossPct: metrics.PacketLossPct,
			JitterMS:      metrics.JitterMS,
			LatencyMS:     metrics.LatencyMS,
			QualityScore:  metrics.QualityScore,
		},
	}, nil
}

// asProbeError guarantees callers always see the typed taxonomy, even when a
// transport returns a bare error.
func asProbeError(err error) error {
	var pe *domain.ProbeError
	if errors.As(err, &pe) {
		return err
	}
	return &domain.ProbeError{Kind: domain.ProbeUnreachable, Err: err}
}

// FailureSample converts a terminal probe failure into a sample, so the
// evaluator always has something to reason about and no cycle is skipped.
func FailureSample(room *domain.Room, kind domain.ProbeKind, err error) *domain.Sample {
	outcome := domain.OutcomeTransportError
	var pe *domain.ProbeError
	if errors.As(err, &pe) {
		outcome = pe.Outcome()
	}
	return &domain.Sample{
		RoomID:    room.ID,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Outcome:   outcome,
		Detail:    err.Error(),
	}
}
