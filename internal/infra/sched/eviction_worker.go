package sched

import (
	"context"
	"time"

	"grid-agent-service/internal/infra/registry"

	"github.com/rs/zerolog"
)

// EvictionWorker periodically drops idle terminal jobs from the registry.
type EvictionWorker struct {
	interval time.Duration
	reg      *registry.Registry
	log      *zerolog.Logger
}

func NewEvictionWorker(interval time.Duration, reg *registry.Registry, logger *zerolog.Logger) *EvictionWorker {
	evLog := logger.With().Str("component", "EvictionWorker").Logger()
	return &EvictionWorker{
		interval: interval,
		reg:      reg,
		log:      &evLog,
	}
}

func (w *EvictionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting eviction worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping eviction worker")
			return ctx.Err()
		case <-ticker.C:
			n := w.reg.EvictExpired(ctx, time.Now())
			if n > 0 {
				w.log.Info().Int("count", n).Msg("idle jobs evicted")
			}
		}
	}
}
