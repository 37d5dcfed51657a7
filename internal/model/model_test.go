package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLeague(t *testing.T) {
	t.Parallel()

	t.Run("accepts any case and padding", func(t *testing.T) {
		t.Parallel()
		for in, want := range map[string]League{
			"nfl": LeagueNFL, "NFL": LeagueNFL, "  nba ": LeagueNBA,
			"Mlb": LeagueMLB, "nhl": LeagueNHL,
		} {
			got, err := ParseLeague(in)
			require.NoError(t, err, "input %q", in)
			assert.Equal(t, want, got)
		}
	})

	t.Run("rejects unknown leagues", func(t *testing.T) {
		t.Parallel()
		_, err := ParseLeague("xfl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "xfl")
	})
}

func TestParseEntityKind(t *testing.T) {
	t.Parallel()

	got, err := ParseEntityKind("Players")
	require.NoError(t, err)
	assert.Equal(t, KindPlayers, got)

	_, err = ParseEntityKind("mascots")
	require.Error(t, err)
}

func TestEntityKindsOrder(t *testing.T) {
	t.Parallel()

	kinds := EntityKinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, KindTeams, kinds[0], "teams must be processed before dependent kinds")
}

func TestGameWinnerLoser(t *testing.T) {
	t.Parallel()

	intp := func(n int) *int { return &n }

	t.Run("home win", func(t *testing.T) {
		t.Parallel()
		g := Game{HomeTeam: "patriots", AwayTeam: "jets", HomeScore: intp(27), AwayScore: intp(13), Status: GameFinal}
		assert.True(t, g.Decided())
		assert.Equal(t, "patriots", g.Winner())
		assert.Equal(t, "jets", g.Loser())
		assert.Equal(t, 14, g.Margin())
	})

	t.Run("away win", func(t *testing.T) {
		t.Parallel()
		g := Game{HomeTeam: "patriots", AwayTeam: "jets", HomeScore: intp(10), AwayScore: intp(24), Status: GameFinal}
		assert.Equal(t, "jets", g.Winner())
		assert.Equal(t, "patriots", g.Loser())
	})

	t.Run("final tie has no winner", func(t *testing.T) {
		t.Parallel()
		g := Game{HomeTeam: "a", AwayTeam: "b", HomeScore: intp(20), AwayScore: intp(20), Status: GameFinal}
		assert.True(t, g.Decided())
		assert.Empty(t, g.Winner())
		assert.Empty(t, g.Loser())
	})

	t.Run("scheduled game is not decided", func(t *testing.T) {
		t.Parallel()
		g := Game{HomeTeam: "a", AwayTeam: "b", Status: GameScheduled}
		assert.False(t, g.Decided())
		assert.Empty(t, g.Winner())
		assert.Zero(t, g.Margin())
	})

	t.Run("missing score is not decided even when final", func(t *testing.T) {
		t.Parallel()
		g := Game{HomeTeam: "a", AwayTeam: "b", HomeScore: intp(3), Status: GameFinal}
		assert.False(t, g.Decided())
	})
}

func TestSeverityFromStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]Severity{
		"Questionable": SeverityMinor,
		"probable":     SeverityMinor,
		"Doubtful":     SeverityModerate,
		"Out":          SeverityMajor,
		"Sus":          SeverityMajor,
		"IR":           SeveritySeasonEnding,
		"PUP":          SeveritySeasonEnding,
		"":             SeverityUnknown,
		"NA":           SeverityUnknown,
		"something":    SeverityUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, SeverityFromStatus(in), "status %q", in)
	}
}

func TestTeamRecordWinPct(t *testing.T) {
	t.Parallel()

	assert.Zero(t, TeamRecord{}.WinPct())
	assert.InDelta(t, 0.75, TeamRecord{Wins: 9, Losses: 3}.WinPct(), 1e-9)
	assert.InDelta(t, 0.5, TeamRecord{Wins: 4, Losses: 4, Ties: 2}.WinPct(), 1e-9, "ties count as half a win")
}

func TestFetchReportTotals(t *testing.T) {
	t.Parallel()

	r := FetchReport{
		RunID:     "run-1",
		StartedAt: time.Now(),
		Results: []KindResult{
			{League: LeagueNFL, Kind: KindPlayers, Fetched: 100, Validated: 99, Quarantined: 1, Persisted: 99},
			{League: LeagueNFL, Kind: KindGames, Fetched: 16, Validated: 16, Persisted: 16},
			{League: LeagueNBA, Kind: KindInjuries, Skipped: true, SkipReason: "not supported by source"},
		},
	}

	fetched, validated, quarantined, persisted, failed := r.Totals()
	assert.Equal(t, 116, fetched)
	assert.Equal(t, 115, validated)
	assert.Equal(t, 1, quarantined)
	assert.Equal(t, 115, persisted)
	assert.Zero(t, failed)
	assert.False(t, r.Failed())

	r.Results = append(r.Results, KindResult{League: LeagueMLB, Kind: KindTeams, Error: "boom"})
	assert.True(t, r.Failed())
}
