// Package pipeline orchestrates the ingestion flow: resolve a provider per
// league, fetch each entity kind through the shared transport, validate
// and quarantine, persist in batches, then derive team records and upsets
// from what landed. Every invocation ends in a report, not a crash.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gridstats/sports-cli/internal/cache"
	"github.com/gridstats/sports-cli/internal/config"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/provider"
	"github.com/gridstats/sports-cli/internal/store"
	"github.com/gridstats/sports-cli/internal/upset"
)

// Pipeline wires the fetch, detection, and export flows. Construct with
// New; all dependencies are shared and safe for concurrent use.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	registry *provider.Registry
	detector *upset.Detector
	loader   *cache.Loader
}

// New creates a Pipeline. loader may be nil when no response cache is
// configured; it is only used for the post-run expiry sweep.
func New(cfg *config.Config, st store.Store, registry *provider.Registry, detector *upset.Detector, loader *cache.Loader) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		registry: registry,
		detector: detector,
		loader:   loader,
	}
}

// leagues resolves the league set for a run: explicit selection, else the
// configured list.
func (p *Pipeline) leagues(selected []model.League) ([]model.League, error) {
	if len(selected) > 0 {
		return selected, nil
	}
	out := make([]model.League, 0, len(p.cfg.Leagues))
	for _, s := range p.cfg.Leagues {
		league, err := model.ParseLeague(s)
		if err != nil {
			return nil, err
		}
		out = append(out, league)
	}
	return out, nil
}

// DetectUpsets scores stored finalized games against pre-game expectation
// and persists any upsets found. An empty league runs every configured
// league; since bounds how far back games are considered (zero = all).
func (p *Pipeline) DetectUpsets(ctx context.Context, league model.League, since time.Time) ([]model.Upset, error) {
	targets := []model.League{league}
	if league == "" {
		var err error
		if targets, err = p.leagues(nil); err != nil {
			return nil, err
		}
	}

	var all []model.Upset
	for _, l := range targets {
		found, err := p.detector.Detect(ctx, l, since)
		if err != nil {
			return all, err
		}
		all = append(all, found...)
	}
	return all, nil
}

// sweepCache drops expired response-cache rows so store-backed caches do
// not grow without bound. Failures are logged, never fatal.
func (p *Pipeline) sweepCache(ctx context.Context) {
	if p.loader == nil {
		return
	}
	n, err := p.loader.DeleteExpired(ctx)
	if err != nil {
		zap.L().Warn("pipeline: cache sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Debug("pipeline: swept expired cache entries", zap.Int("entries", n))
	}
}
