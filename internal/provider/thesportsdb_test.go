package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/resilience"
)

func newSportsDB(t *testing.T, apiKey string, handler http.HandlerFunc) *TheSportsDB {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTheSportsDB(newTestClient(SourceTheSportsDB, srv.URL), apiKey, newTestStandardizer(t))
}

func TestTheSportsDB_FetchPlayers(t *testing.T) {
	p := newSportsDB(t, "k1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search_all_players.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "k1", q.Get("apikey"))
		assert.Equal(t, "Basketball_nba", q.Get("l"))
		assert.Equal(t, "2024", q.Get("s"))
		_, _ = w.Write([]byte(`{"player": [
			{"idPlayer": "34145937", "strPlayer": "LeBron James", "strTeam": "L.A. Lakers", "idTeam": "134867",
			 "strPosition": "Small Forward", "strNumber": "23", "strNationality": "United States",
			 "dateBorn": "1984-12-30", "strHeight": "6'9\"", "strWeight": "250 lbs"},
			{"idPlayer": "34145938", "strPlayer": "Undrafted Rookie", "dateBorn": "0000-00-00"},
			{"idPlayer": "", "strPlayer": "No Identity"}
		]}`))
	})

	players, err := p.FetchPlayers(context.Background(), model.LeagueNBA, "2024")
	require.NoError(t, err)
	require.Len(t, players, 2)

	lj := players[0]
	assert.Equal(t, "34145937", lj.ExternalID)
	assert.Equal(t, SourceTheSportsDB, lj.Source)
	assert.Equal(t, "LeBron James", lj.FullName)
	assert.Equal(t, "LeBron", lj.FirstName)
	assert.Equal(t, "James", lj.LastName)
	assert.Equal(t, "Los Angeles Lakers", lj.Team)
	assert.Equal(t, "L.A. Lakers", lj.TeamRaw)
	assert.Equal(t, "134867", lj.TeamID)
	require.NotNil(t, lj.HeightCM)
	assert.InDelta(t, 205.74, *lj.HeightCM, 0.01)
	require.NotNil(t, lj.WeightKG)
	assert.InDelta(t, 113.40, *lj.WeightKG, 0.01)
	require.NotNil(t, lj.BirthDate)
	assert.Equal(t, "1984-12-30", lj.BirthDate.Format("2006-01-02"))
	assert.True(t, lj.Active)
	assert.False(t, lj.FetchedAt.IsZero())

	// The placeholder birth date means unknown, not 0000.
	assert.Nil(t, players[1].BirthDate)
	assert.Empty(t, players[1].Team)
}

func TestTheSportsDB_FetchTeams(t *testing.T) {
	p := newSportsDB(t, "k1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search_all_teams.php", r.URL.Path)
		assert.Equal(t, "Ice hockey_nhl", r.URL.Query().Get("l"))
		_, _ = w.Write([]byte(`{"teams": [
			{"idTeam": "134846", "strTeam": "Canadiens de Montréal", "strTeamShort": "MTL",
			 "strLocation": "Montreal, Quebec", "strStadium": "Bell Centre", "strDivision": "Atlantic"},
			{"idTeam": "", "strTeam": "Phantom Franchise"}
		]}`))
	})

	teams, err := p.FetchTeams(context.Background(), model.LeagueNHL)
	require.NoError(t, err)
	require.Len(t, teams, 1)

	mtl := teams[0]
	assert.Equal(t, "134846", mtl.ExternalID)
	assert.Equal(t, "Montreal Canadiens", mtl.Name)
	assert.Equal(t, "Canadiens de Montréal", mtl.NameRaw)
	assert.Equal(t, "MTL", mtl.Abbreviation)
	assert.Equal(t, "Bell Centre", mtl.Venue)
	assert.Equal(t, "Atlantic", mtl.Division)
}

func TestTheSportsDB_FetchGames(t *testing.T) {
	p := newSportsDB(t, "k1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eventsseason.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "American football_nfl", q.Get("id"))
		assert.Equal(t, "2024", q.Get("s"))
		_, _ = w.Write([]byte(`{"events": [
			{"idEvent": "e1", "dateEvent": "2024-09-08", "strHomeTeam": "Kansas City Chiefs",
			 "strAwayTeam": "Baltimore Ravens", "intHomeScore": "27", "intAwayScore": "20", "strVenue": "Arrowhead Stadium"},
			{"idEvent": "e2", "dateEvent": "2024-09-15", "strHomeTeam": "New England Patriots",
			 "strAwayTeam": "New York Jets", "intHomeScore": "24", "intAwayScore": "0"},
			{"idEvent": "e3", "dateEvent": "2024-12-25", "strHomeTeam": "Green Bay Packers",
			 "strAwayTeam": "Chicago Bears", "intHomeScore": null, "intAwayScore": null},
			{"idEvent": "e4", "dateEvent": "", "strHomeTeam": "Detroit Lions", "strAwayTeam": "Minnesota Vikings"}
		]}`))
	})

	games, err := p.FetchGames(context.Background(), model.LeagueNFL, "2024")
	require.NoError(t, err)
	require.Len(t, games, 3)

	assert.Equal(t, model.GameFinal, games[0].Status)
	assert.Equal(t, "Kansas City Chiefs", games[0].HomeTeam)
	assert.Equal(t, "Arrowhead Stadium", games[0].Venue)
	assert.Equal(t, "2024", games[0].Season)

	// A posted zero is a shutout: the game is final, not half-scored.
	require.NotNil(t, games[1].AwayScore)
	assert.Equal(t, 0, *games[1].AwayScore)
	assert.Equal(t, model.GameFinal, games[1].Status)

	assert.Equal(t, model.GameScheduled, games[2].Status)
	assert.Nil(t, games[2].HomeScore)
}

func TestTheSportsDB_FetchGames_RequiresSeason(t *testing.T) {
	p := newSportsDB(t, "k1", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := p.FetchGames(context.Background(), model.LeagueNFL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "season is required")
}

func TestTheSportsDB_APIError(t *testing.T) {
	p := newSportsDB(t, "k1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "League not found"}`))
	})
	_, err := p.FetchTeams(context.Background(), model.LeagueMLB)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api error")
	assert.Contains(t, err.Error(), "League not found")
}

func TestTheSportsDB_MissingAPIKey(t *testing.T) {
	var hits atomic.Int32
	p := newSportsDB(t, "", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := p.FetchPlayers(context.Background(), model.LeagueNBA, "")
	require.Error(t, err)
	assert.True(t, resilience.IsAuth(err))
	assert.Zero(t, hits.Load(), "no request should be spent without credentials")
}

func TestTheSportsDB_FetchInjuries_NotSupported(t *testing.T) {
	p := newSportsDB(t, "k1", func(w http.ResponseWriter, r *http.Request) {})
	_, err := p.FetchInjuries(context.Background(), model.LeagueNFL, "")
	assert.True(t, resilience.IsNotSupported(err))
}

func TestTheSportsDB_UnknownLeague(t *testing.T) {
	p := newSportsDB(t, "k1", func(w http.ResponseWriter, r *http.Request) {})
	_, err := p.FetchPlayers(context.Background(), model.League("xfl"), "")
	assert.True(t, resilience.IsNotSupported(err))
}

func TestTheSportsDB_Leagues(t *testing.T) {
	p := NewTheSportsDB(nil, "k1", newTestStandardizer(t))
	assert.Equal(t, model.Leagues(), p.Leagues())
}
