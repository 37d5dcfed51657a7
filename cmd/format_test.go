package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/monitoring"
	"github.com/gridstats/sports-cli/internal/provider"
	"github.com/gridstats/sports-cli/internal/ratelimit"
	"github.com/gridstats/sports-cli/internal/resilience"
	"github.com/gridstats/sports-cli/internal/store"
)

var formatUpset = model.Upset{
	League:    model.LeagueNFL,
	GameID:    "G2",
	Season:    "2024",
	GameDate:  time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC),
	HomeTeam:  "Baltimore Ravens",
	AwayTeam:  "Kansas City Chiefs",
	HomeScore: 30,
	AwayScore: 13,
	Winner:    "Baltimore Ravens",
	Loser:     "Kansas City Chiefs",
	Signal:    model.SignalOdds,
	Magnitude: 58,
	Reason:    "moneyline favorite beaten",
}

func TestFormatFetchReport(t *testing.T) {
	var buf bytes.Buffer

	report := &model.FetchReport{
		RunID:      "run-1234",
		StartedAt:  time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 11, 5, 12, 0, 1, 500_000_000, time.UTC),
		Results: []model.KindResult{
			{League: model.LeagueNFL, Kind: model.KindTeams, Provider: "thesportsdb", Fetched: 32, Validated: 32, Persisted: 32},
			{League: model.LeagueNFL, Kind: model.KindInjuries, Provider: "thesportsdb", Skipped: true, SkipReason: "source thesportsdb does not provide injuries"},
			{League: model.LeagueNFL, Kind: model.KindGames, Provider: "thesportsdb", Fetched: 10, Validated: 8, Quarantined: 2, Persisted: 6, Failed: 2, Error: "storage conflict: database is locked"},
		},
	}

	formatFetchReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "LEAGUE")
	assert.Contains(t, out, "thesportsdb")
	assert.Contains(t, out, "skipped: source thesportsdb does not provide injuries")
	assert.Contains(t, out, "error: storage conflict: database is locked")
	assert.Contains(t, out, "Run run-1234: fetched 42, validated 40, quarantined 2, persisted 38, failed 2 in 1.5s")
}

func TestFormatUpsetsList(t *testing.T) {
	var buf bytes.Buffer

	formatUpsetsList(&buf, []model.Upset{formatUpset})
	out := buf.String()

	assert.Contains(t, out, "2024-09-15")
	assert.Contains(t, out, "Kansas City Chiefs @ Baltimore Ravens")
	assert.Contains(t, out, "30-13")
	assert.Contains(t, out, "odds")
	assert.Contains(t, out, "58.0")
	assert.Contains(t, out, "moneyline favorite beaten")
}

func TestFormatUpsetsList_TruncatesLongMatchups(t *testing.T) {
	var buf bytes.Buffer

	u := formatUpset
	u.HomeTeam = "Minnesota Timberwolves"
	u.AwayTeam = "Golden State Warriors"

	formatUpsetsList(&buf, []model.Upset{u})

	assert.Contains(t, buf.String(), "Minnesota Tim...")
}

func TestFormatUpsetStats(t *testing.T) {
	var buf bytes.Buffer

	biggest := formatUpset
	stats := &store.UpsetStats{
		Total:        12,
		AvgMagnitude: 41.2,
		MaxMagnitude: 87.5,
		BySignal: map[model.UpsetSignal]int{
			model.SignalOdds:    7,
			model.SignalRanking: 3,
			model.SignalRecord:  2,
		},
		Biggest: &biggest,
	}

	formatUpsetStats(&buf, model.LeagueNFL, stats)
	out := buf.String()

	assert.Contains(t, out, "=== nfl upsets ===")
	assert.Contains(t, out, "Total:          12")
	assert.Contains(t, out, "41.2")
	assert.Contains(t, out, "87.5")
	assert.Contains(t, out, "odds")
	assert.Contains(t, out, "Biggest:")
	assert.Contains(t, out, "Baltimore Ravens over Kansas City Chiefs")
}

func TestFormatExportReports(t *testing.T) {
	var buf bytes.Buffer

	reports := []model.ExportReport{
		{League: model.LeagueNFL, Kind: model.KindPlayers, Format: "csv", Path: "exports/nfl_players.csv", Rows: 1696},
		{League: model.LeagueNFL, Kind: model.KindUpsets, Format: "csv", Path: "exports/nfl_upsets.csv", Rows: 12},
	}

	formatExportReports(&buf, reports)
	out := buf.String()

	assert.Contains(t, out, "FILE")
	assert.Contains(t, out, "exports/nfl_players.csv")
	assert.Contains(t, out, "1696")
	assert.Contains(t, out, "upsets")
}

func TestFormatStatus(t *testing.T) {
	var buf bytes.Buffer

	snap := &monitoring.StatusSnapshot{
		Leagues: []monitoring.LeagueStatus{
			{League: model.LeagueNFL, Teams: 32, Players: 1696, Games: 285, Injuries: 114, Upsets: 12},
		},
		QuarantineDepth: 3,
		RecentUpsets:    []model.Upset{formatUpset},
		Budgets: []ratelimit.Status{
			{Source: "thesportsdb", Mode: ratelimit.ModeQueue, Limit: 100, Used: 37, Remaining: 63, ResetIn: 22 * time.Minute},
		},
		CollectedAt: time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC),
	}

	formatStatus(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "=== Status at 2024-11-05T12:00:00Z ===")
	assert.Contains(t, out, "1696")
	assert.Contains(t, out, "Quarantine depth: 3")
	assert.Contains(t, out, "Recent upsets:")
	assert.Contains(t, out, "Request budgets:")
	assert.Contains(t, out, "22m0s")
}

// listProvider is a minimal Provider for registry listing tests.
type listProvider struct {
	name    string
	leagues []model.League
}

func (p *listProvider) Name() string            { return p.name }
func (p *listProvider) Leagues() []model.League { return p.leagues }

func (p *listProvider) FetchPlayers(context.Context, model.League, string) ([]model.Player, error) {
	return nil, &resilience.NotSupportedError{Source: p.name, Kind: "players"}
}

func (p *listProvider) FetchTeams(context.Context, model.League) ([]model.Team, error) {
	return nil, &resilience.NotSupportedError{Source: p.name, Kind: "teams"}
}

func (p *listProvider) FetchGames(context.Context, model.League, string) ([]model.Game, error) {
	return nil, &resilience.NotSupportedError{Source: p.name, Kind: "games"}
}

func (p *listProvider) FetchInjuries(context.Context, model.League, string) ([]model.Injury, error) {
	return nil, &resilience.NotSupportedError{Source: p.name, Kind: "injuries"}
}

func TestFormatSources(t *testing.T) {
	var buf bytes.Buffer

	registry := provider.NewRegistry()
	registry.Register(&listProvider{name: provider.SourceTheSportsDB, leagues: model.Leagues()})
	registry.Register(&listProvider{name: provider.SourceSleeper, leagues: []model.League{model.LeagueNFL}})

	formatSources(&buf, registry, []model.League{model.LeagueNFL, model.LeagueNBA})
	out := buf.String()

	// NFL walks its role order: live thesportsdb before legacy sleeper.
	assert.Contains(t, out, "thesportsdb, sleeper")
	assert.Contains(t, out, "nba")
}
