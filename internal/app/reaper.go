package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/arnaudt-bojan/stockledger/internal/metrics"
)

// Reaper periodically expires abandoned reservations, returning their
// quantity to availability. Each reservation is processed in its own
// transaction so one bad row never wedges a sweep, and the conditional
// pending-to-expired transition makes concurrent sweeps harmless.
type Reaper struct {
	svc       *ReservationService
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

func NewReaper(svc *ReservationService, logger zerolog.Logger, m *metrics.Metrics, interval time.Duration, batchSize int) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reaper{
		svc:       svc,
		logger:    logger,
		metrics:   m,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.interval).
		Int("batch_size", r.batchSize).
		Msg("expiry reaper started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("expiry reaper stopped")
			return
		case <-ticker.C:
			expired, failed := r.Sweep(ctx)
			if expired > 0 || failed > 0 {
				r.logger.Info().
					Int("expired", expired).
					Int("failed", failed).
					Msg("expiry sweep finished")
			}
		}
	}
}

// Sweep expires one batch of due reservations. Row errors are logged and
// counted but do not stop the batch.
func (r *Reaper) Sweep(ctx context.Context) (expired, failed int) {
	due, err := r.svc.FindDue(ctx, r.batchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("expiry sweep query failed")
		return 0, 0
	}

	for _, res := range due {
		if ctx.Err() != nil {
			return expired, failed
		}
		ok, err := r.svc.ExpireOne(ctx, res.ID)
		if err != nil {
			failed++
			r.metrics.SweepErrors.Inc()
			r.logger.Error().
				Err(err).
				Str("reservation_id", res.ID).
				Msg("failed to expire reservation")
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, failed
}
