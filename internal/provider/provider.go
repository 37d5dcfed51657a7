// Package provider adapts each stats source to one capability interface.
// Every provider normalizes its source's raw format into canonical
// entities before returning; date layouts, unit systems, and name
// spellings never leak past the provider boundary. A capability a source
// cannot serve returns a typed resilience.NotSupportedError so callers can
// tell "no data" from "cannot fetch this".
package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// Source names double as config keys for rate budgets and credentials.
const (
	SourceTheSportsDB = "thesportsdb"
	SourceBallDontLie = "balldontlie"
	SourceSleeper     = "sleeper"
	SourceStatsAPI    = "statsapi"
	SourceHistCSV     = "histcsv"
)

// Provider is the capability set a stats source can implement. season and
// team are optional filters; "" means all or current. Methods a source
// cannot serve return resilience.NotSupportedError rather than empty data.
type Provider interface {
	// Name returns the source identifier (matches the sources key in config).
	Name() string
	// Leagues returns the leagues this source can serve.
	Leagues() []model.League
	FetchPlayers(ctx context.Context, league model.League, season string) ([]model.Player, error)
	FetchTeams(ctx context.Context, league model.League) ([]model.Team, error)
	FetchGames(ctx context.Context, league model.League, season string) ([]model.Game, error)
	FetchInjuries(ctx context.Context, league model.League, team string) ([]model.Injury, error)
}

// Role names a provider's position in a league's source ordering.
type Role string

const (
	RolePrimary Role = "primary"
	RoleLive    Role = "live"
	RoleLegacy  Role = "legacy"
)

// roleOrder is the fallback sequence walked when no explicit source is
// requested.
var roleOrder = []Role{RolePrimary, RoleLive, RoleLegacy}

// defaultSources maps each league to its source ordering. The historical
// checkout is primary for the NFL with TheSportsDB as the live API; the
// other leagues lead with TheSportsDB and keep their community APIs as
// legacy fallbacks.
var defaultSources = map[model.League]map[Role]string{
	model.LeagueNFL: {RolePrimary: SourceHistCSV, RoleLive: SourceTheSportsDB, RoleLegacy: SourceSleeper},
	model.LeagueNBA: {RolePrimary: SourceTheSportsDB, RoleLegacy: SourceBallDontLie},
	model.LeagueMLB: {RolePrimary: SourceTheSportsDB, RoleLegacy: SourceStatsAPI},
	model.LeagueNHL: {RolePrimary: SourceTheSportsDB, RoleLegacy: SourceStatsAPI},
}

// Registry manages the registered providers. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the provider serving league. source may be empty (walk
// the league's role ordering and take the first registered source), a
// role name ("primary", "live", "legacy"), or an explicit provider name.
func (r *Registry) Resolve(league model.League, source string) (Provider, error) {
	switch Role(source) {
	case "":
		for _, role := range roleOrder {
			name, ok := defaultSources[league][role]
			if !ok {
				continue
			}
			if p := r.Get(name); p != nil && leagueSupported(p, league) {
				return p, nil
			}
		}
		return nil, eris.Errorf("provider: no registered source serves %s", league)
	case RolePrimary, RoleLive, RoleLegacy:
		name, ok := defaultSources[league][Role(source)]
		if !ok {
			return nil, eris.Errorf("provider: %s has no %s source", league, source)
		}
		p := r.Get(name)
		if p == nil || !leagueSupported(p, league) {
			return nil, eris.Errorf("provider: %s source %q for %s is not registered", source, name, league)
		}
		return p, nil
	}

	p := r.Get(source)
	if p == nil {
		return nil, eris.Errorf("provider: unknown source %q", source)
	}
	if !leagueSupported(p, league) {
		return nil, eris.Errorf("provider: %s does not serve %s", source, league)
	}
	return p, nil
}

// Sources returns the registered providers able to serve league: the
// league's role ordering first, then any extras alphabetically.
func (r *Registry) Sources(league model.League) []string {
	seen := make(map[string]bool)
	var names []string
	for _, role := range roleOrder {
		name, ok := defaultSources[league][role]
		if !ok || seen[name] {
			continue
		}
		if p := r.Get(name); p != nil && leagueSupported(p, league) {
			seen[name] = true
			names = append(names, name)
		}
	}

	var extra []string
	r.mu.RLock()
	for name, p := range r.providers {
		if !seen[name] && leagueSupported(p, league) {
			extra = append(extra, name)
		}
	}
	r.mu.RUnlock()
	sort.Strings(extra)
	return append(names, extra...)
}

func leagueSupported(p Provider, league model.League) bool {
	for _, l := range p.Leagues() {
		if l == league {
			return true
		}
	}
	return false
}

// notSupported builds the typed error a provider returns for a capability
// it does not implement.
func notSupported(source string, kind model.EntityKind, league model.League) error {
	return &resilience.NotSupportedError{Source: source, Kind: string(kind) + " for " + string(league)}
}
