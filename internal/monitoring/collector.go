// Package monitoring assembles the point-in-time snapshot behind the
// status command: stored entity counts per league, quarantine depth, the
// most recent upsets, and each source's remaining request budget.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/ratelimit"
	"github.com/gridstats/sports-cli/internal/store"
)

// recentUpsetLimit caps how many upsets a snapshot carries.
const recentUpsetLimit = 5

// LeagueStatus is one league's stored row counts.
type LeagueStatus struct {
	League   model.League `json:"league"`
	Teams    int          `json:"teams"`
	Players  int          `json:"players"`
	Games    int          `json:"games"`
	Injuries int          `json:"injuries"`
	Upsets   int          `json:"upsets"`
}

// StatusSnapshot holds a point-in-time view of the stored data and the
// request budgets.
type StatusSnapshot struct {
	Leagues         []LeagueStatus     `json:"leagues"`
	QuarantineDepth int                `json:"quarantine_depth"`
	RecentUpsets    []model.Upset      `json:"recent_upsets,omitempty"`
	Budgets         []ratelimit.Status `json:"budgets,omitempty"`
	CollectedAt     time.Time          `json:"collected_at"`
}

// BudgetReporter abstracts the rate limiter methods the collector reads.
type BudgetReporter interface {
	Sources() []string
	Status(source string) ratelimit.Status
}

// Collector gathers snapshots from the store and the rate limiter.
type Collector struct {
	store   store.Store
	budgets BudgetReporter
}

// NewCollector creates a snapshot collector. budgets may be nil, in which
// case the snapshot carries no budget section.
func NewCollector(st store.Store, budgets BudgetReporter) *Collector {
	return &Collector{store: st, budgets: budgets}
}

// Collect gathers a snapshot covering the given leagues, or every known
// league when none are given. Recent upsets are scoped to the league only
// when exactly one is requested.
func (c *Collector) Collect(ctx context.Context, leagues []model.League) (*StatusSnapshot, error) {
	if len(leagues) == 0 {
		leagues = model.Leagues()
	}

	snap := &StatusSnapshot{CollectedAt: time.Now().UTC()}

	for _, league := range leagues {
		counts, err := c.store.EntityCounts(ctx, league)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: count %s entities", league)
		}
		stats, err := c.store.GetUpsetStats(ctx, league)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: %s upset stats", league)
		}
		snap.Leagues = append(snap.Leagues, LeagueStatus{
			League:   league,
			Teams:    counts[model.KindTeams],
			Players:  counts[model.KindPlayers],
			Games:    counts[model.KindGames],
			Injuries: counts[model.KindInjuries],
			Upsets:   stats.Total,
		})
	}

	depth, err := c.store.CountQuarantine(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count quarantine")
	}
	snap.QuarantineDepth = depth

	filter := store.UpsetFilter{Limit: recentUpsetLimit}
	if len(leagues) == 1 {
		filter.League = leagues[0]
	}
	recent, err := c.store.ListUpsets(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list recent upsets")
	}
	snap.RecentUpsets = recent

	if c.budgets != nil {
		sources := c.budgets.Sources()
		sort.Strings(sources)
		for _, source := range sources {
			snap.Budgets = append(snap.Budgets, c.budgets.Status(source))
		}
	}

	return snap, nil
}
