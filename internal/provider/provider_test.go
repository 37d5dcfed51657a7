package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/normalize"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// stubProvider implements Provider with every capability missing.
type stubProvider struct {
	name    string
	leagues []model.League
}

func (s *stubProvider) Name() string            { return s.name }
func (s *stubProvider) Leagues() []model.League { return s.leagues }

func (s *stubProvider) FetchPlayers(_ context.Context, league model.League, _ string) ([]model.Player, error) {
	return nil, notSupported(s.name, model.KindPlayers, league)
}

func (s *stubProvider) FetchTeams(_ context.Context, league model.League) ([]model.Team, error) {
	return nil, notSupported(s.name, model.KindTeams, league)
}

func (s *stubProvider) FetchGames(_ context.Context, league model.League, _ string) ([]model.Game, error) {
	return nil, notSupported(s.name, model.KindGames, league)
}

func (s *stubProvider) FetchInjuries(_ context.Context, league model.League, _ string) ([]model.Injury, error) {
	return nil, notSupported(s.name, model.KindInjuries, league)
}

func newTestStandardizer(t *testing.T) *normalize.Standardizer {
	t.Helper()
	std, err := normalize.NewStandardizer(nil)
	require.NoError(t, err)
	return std
}

// newTestClient builds a bare client against a test server: no limiter,
// no breaker, no cache, one attempt.
func newTestClient(source, baseURL string) *fetcher.APIClient {
	return fetcher.NewAPIClient(fetcher.Options{
		Source:  source,
		BaseURL: baseURL,
		Retry:   resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond},
	}, nil, nil, nil)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	assert.NotNil(t, r)
	assert.Empty(t, r.List())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: SourceSleeper, leagues: []model.League{model.LeagueNFL}})

	got := r.Get(SourceSleeper)
	require.NotNil(t, got)
	assert.Equal(t, SourceSleeper, got.Name())
	assert.Nil(t, r.Get("espn"))
}

func TestRegistry_List_Sorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: SourceTheSportsDB, leagues: model.Leagues()})
	r.Register(&stubProvider{name: SourceBallDontLie, leagues: []model.League{model.LeagueNBA}})
	r.Register(&stubProvider{name: SourceHistCSV, leagues: []model.League{model.LeagueNFL}})

	assert.Equal(t, []string{SourceBallDontLie, SourceHistCSV, SourceTheSportsDB}, r.List())
}

func TestRegistry_Resolve_WalksRoleOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: SourceTheSportsDB, leagues: model.Leagues()})

	// The NFL primary (histcsv) is not registered, so resolution falls
	// through to the live source.
	p, err := r.Resolve(model.LeagueNFL, "")
	require.NoError(t, err)
	assert.Equal(t, SourceTheSportsDB, p.Name())

	r.Register(&stubProvider{name: SourceHistCSV, leagues: []model.League{model.LeagueNFL}})
	p, err = r.Resolve(model.LeagueNFL, "")
	require.NoError(t, err)
	assert.Equal(t, SourceHistCSV, p.Name())
}

func TestRegistry_Resolve_ByRole(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: SourceTheSportsDB, leagues: model.Leagues()})
	r.Register(&stubProvider{name: SourceBallDontLie, leagues: []model.League{model.LeagueNBA}})

	p, err := r.Resolve(model.LeagueNBA, "legacy")
	require.NoError(t, err)
	assert.Equal(t, SourceBallDontLie, p.Name())

	p, err = r.Resolve(model.LeagueNBA, "primary")
	require.NoError(t, err)
	assert.Equal(t, SourceTheSportsDB, p.Name())

	// The NBA ordering has no live slot.
	_, err = r.Resolve(model.LeagueNBA, "live")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no live source")
}

func TestRegistry_Resolve_ByName(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: SourceSleeper, leagues: []model.League{model.LeagueNFL}})

	p, err := r.Resolve(model.LeagueNFL, SourceSleeper)
	require.NoError(t, err)
	assert.Equal(t, SourceSleeper, p.Name())

	_, err = r.Resolve(model.LeagueNBA, SourceSleeper)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not serve")

	_, err = r.Resolve(model.LeagueNFL, "espn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestRegistry_Resolve_NothingRegistered(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(model.LeagueMLB, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no registered source")
}

func TestRegistry_Resolve_RoleNotRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: SourceTheSportsDB, leagues: model.Leagues()})

	_, err := r.Resolve(model.LeagueNFL, "legacy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_Sources(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: SourceTheSportsDB, leagues: model.Leagues()})
	r.Register(&stubProvider{name: SourceSleeper, leagues: []model.League{model.LeagueNFL}})
	r.Register(&stubProvider{name: SourceHistCSV, leagues: []model.League{model.LeagueNFL}})
	// An out-of-ordering extra that also serves the NFL.
	r.Register(&stubProvider{name: "espn", leagues: []model.League{model.LeagueNFL}})

	assert.Equal(t, []string{SourceHistCSV, SourceTheSportsDB, SourceSleeper, "espn"}, r.Sources(model.LeagueNFL))
	assert.Equal(t, []string{SourceTheSportsDB}, r.Sources(model.LeagueMLB))
	assert.Equal(t, []string{SourceTheSportsDB}, r.Sources(model.LeagueNBA))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(&stubProvider{name: SourceTheSportsDB, leagues: model.Leagues()})
		}()
		go func() {
			defer wg.Done()
			_ = r.Get(SourceTheSportsDB)
			_ = r.List()
			_, _ = r.Resolve(model.LeagueNHL, "")
		}()
	}
	wg.Wait()

	assert.Len(t, r.List(), 1)
}
