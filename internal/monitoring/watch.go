package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gridstats/sports-cli/internal/model"
)

// Watch re-collects the snapshot on a fixed interval and hands each one to
// render, starting immediately rather than one interval in. It blocks
// until ctx is cancelled.
func (c *Collector) Watch(ctx context.Context, interval time.Duration, leagues []model.League, render func(*StatusSnapshot)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	log := zap.L().With(zap.String("component", "monitoring.watch"))
	log.Info("starting status watch", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := c.Collect(ctx, leagues)
		switch {
		case err == nil:
			render(snap)
		case ctx.Err() != nil:
			log.Info("status watch stopped")
			return
		default:
			log.Error("monitoring: collect failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			log.Info("status watch stopped")
			return
		case <-ticker.C:
		}
	}
}
