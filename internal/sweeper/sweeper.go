// Package sweeper enforces retention: old samples and old resolved alerts
// are deleted on a fixed cadence, per entity kind. Open alerts are never
// touched regardless of age.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/repo"
)

type Sweeper struct {
	log     *zap.Logger
	samples repo.SampleStore
	alerts  repo.AlertStore
	policy  domain.RetentionPolicy
	every   time.Duration
	now     func() time.Time
}

func New(log *zap.Logger, samples repo.SampleStore, alerts repo.AlertStore, policy domain.RetentionPolicy, every time.Duration) *Sweeper {
	if every <= 0 {
		every = 24 * time.Hour
	}
	return &Sweeper{
		log:     log,
		samples: samples,
		alerts:  alerts,
		policy:  policy,
		every:   every,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.every)
	defer t.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper_stopped")
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep applies every retention rule once. A failing rule is logged and the
// rest still run; the next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	s.sweepSamples(ctx, domain.ProbeHealthCheck, now.Add(-s.policy.MaxSampleAge), s.policy.MaxSampleAge)
	s.sweepSamples(ctx, domain.ProbeTestCall, now.Add(-s.policy.MaxCallSampleAge), s.policy.MaxCallSampleAge)

	if s.policy.MaxAlertAge <= 0 {
		return
	}
	cutoff := now.Add(-s.policy.MaxAlertAge)
	n, err := s.alerts.DeleteResolvedOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Warn("retention_alert_sweep_error", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("retention_alerts_deleted",
			zap.Int64("deleted", n),
			zap.Time("cutoff", cutoff),
		)
	}
}

func (s *Sweeper) sweepSamples(ctx context.Context, kind domain.ProbeKind, cutoff time.Time, maxAge time.Duration) {
	if maxAge <= 0 {
		return // retention disabled for this kind
	}
	n, err := s.samples.DeleteOlderThan(ctx, kind, cutoff)
	if err != nil {
		s.log.Warn("retention_sample_sweep_error", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("retention_samples_deleted",
			zap.String("kind", string(kind)),
			zap.Int64("deleted", n),
			zap.Time("cutoff", cutoff),
		)
	}
}
