package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/resilience"
)

func newStatsAPI(t *testing.T, league model.League, handler http.HandlerFunc) *StatsAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	clients := map[model.League]*fetcher.APIClient{
		league: newTestClient("statsapi-"+string(league), srv.URL),
	}
	return NewStatsAPI(clients, newTestStandardizer(t))
}

func TestStatsAPI_FetchPlayers(t *testing.T) {
	p := newStatsAPI(t, model.LeagueMLB, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/teams":
			assert.Equal(t, "1", r.URL.Query().Get("sportId"))
			_, _ = w.Write([]byte(`{"teams": [
				{"id": 147, "name": "New York Yankees", "active": true},
				{"id": 8969, "name": "Montreal Expos", "active": false}
			]}`))
		case "/teams/147/roster":
			_, _ = w.Write([]byte(`{"roster": [
				{"person": {"id": 592450, "fullName": "Aaron Judge"}, "jerseyNumber": "99",
				 "position": {"abbreviation": "RF"}},
				{"person": {"id": 700001, "fullName": "September Callup"}, "jerseyNumber": "81",
				 "position": {"abbreviation": "P"}}
			]}`))
		case "/people/592450":
			_, _ = w.Write([]byte(`{"people": [
				{"id": 592450, "fullName": "Aaron Judge", "firstName": "Aaron", "lastName": "Judge",
				 "primaryNumber": "99", "birthDate": "1992-04-26", "birthCountry": "USA",
				 "height": "6' 7\"", "weight": 282}
			]}`))
		case "/people/700001":
			_, _ = w.Write([]byte(`{"people": []}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	players, err := p.FetchPlayers(context.Background(), model.LeagueMLB, "")
	require.NoError(t, err)
	require.Len(t, players, 2, "only active franchises feed the fan-out")

	judge := players[0]
	assert.Equal(t, "592450", judge.ExternalID)
	assert.Equal(t, "Aaron Judge", judge.FullName)
	assert.Equal(t, "RF", judge.Position)
	assert.Equal(t, "99", judge.JerseyNumber)
	assert.Equal(t, "New York Yankees", judge.Team)
	assert.Equal(t, "147", judge.TeamID)
	assert.Equal(t, "USA", judge.Nationality)
	require.NotNil(t, judge.HeightCM)
	assert.InDelta(t, 200.66, *judge.HeightCM, 0.01)
	require.NotNil(t, judge.WeightKG)
	assert.InDelta(t, 127.91, *judge.WeightKG, 0.01)

	// A person the bio endpoint does not know falls back to roster data.
	callup := players[1]
	assert.Equal(t, "September Callup", callup.FullName)
	assert.Equal(t, "81", callup.JerseyNumber)
	assert.Nil(t, callup.HeightCM)
}

func TestStatsAPI_FetchTeams(t *testing.T) {
	p := newStatsAPI(t, model.LeagueMLB, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/teams", r.URL.Path)
		_, _ = w.Write([]byte(`{"teams": [
			{"id": 147, "name": "New York Yankees", "abbreviation": "NYY", "locationName": "Bronx",
			 "active": true, "venue": {"name": "Yankee Stadium"},
			 "league": {"name": "American League"}, "division": {"name": "AL East"}}
		]}`))
	})

	teams, err := p.FetchTeams(context.Background(), model.LeagueMLB)
	require.NoError(t, err)
	require.Len(t, teams, 1)

	nyy := teams[0]
	assert.Equal(t, "147", nyy.ExternalID)
	assert.Equal(t, "New York Yankees", nyy.Name)
	assert.Equal(t, "NYY", nyy.Abbreviation)
	assert.Equal(t, "Bronx", nyy.City)
	assert.Equal(t, "Yankee Stadium", nyy.Venue)
	// MLB nests leagues where the NHL has conferences.
	assert.Equal(t, "American League", nyy.Conference)
	assert.Equal(t, "AL East", nyy.Division)
}

func TestStatsAPI_FetchGames(t *testing.T) {
	p := newStatsAPI(t, model.LeagueMLB, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/schedule", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("sportId"))
		assert.Equal(t, "2024", q.Get("season"))
		_, _ = w.Write([]byte(`{"dates": [
			{"date": "2024-05-01", "games": [
				{"gamePk": 745804, "gameDate": "2024-05-01T23:05:00Z", "season": "2024",
				 "status": {"abstractGameState": "Final"},
				 "teams": {"home": {"team": {"id": 147, "name": "New York Yankees"}, "score": 3},
				           "away": {"team": {"id": 110, "name": "Baltimore Orioles"}, "score": 0}},
				 "venue": {"name": "Yankee Stadium"}},
				{"gamePk": 745805, "gameDate": "2024-05-01T23:10:00Z", "season": "2024",
				 "status": {"abstractGameState": "Live"},
				 "teams": {"home": {"team": {"id": 111, "name": "Boston Red Sox"}, "score": 2},
				           "away": {"team": {"id": 139, "name": "Tampa Bay Rays"}, "score": 5}}},
				{"gamePk": 745806, "gameDate": "2024-05-02T01:40:00Z", "season": "2024",
				 "status": {"abstractGameState": "Preview"},
				 "teams": {"home": {"team": {"id": 119, "name": "Los Angeles Dodgers"}},
				           "away": {"team": {"id": 137, "name": "San Francisco Giants"}}}}
			]}
		]}`))
	})

	games, err := p.FetchGames(context.Background(), model.LeagueMLB, "2024")
	require.NoError(t, err)
	require.Len(t, games, 3)

	final := games[0]
	assert.Equal(t, "745804", final.ExternalID)
	assert.Equal(t, model.GameFinal, final.Status)
	assert.Equal(t, "New York Yankees", final.HomeTeam)
	assert.Equal(t, "Baltimore Orioles", final.AwayTeam)
	require.NotNil(t, final.AwayScore)
	assert.Equal(t, 0, *final.AwayScore, "a shutout is a posted score")
	assert.Equal(t, "Yankee Stadium", final.Venue)
	assert.Equal(t, "2024-05-01T23:05:00Z", final.GameDate.UTC().Format("2006-01-02T15:04:05Z"))

	assert.Equal(t, model.GameInProgress, games[1].Status)
	require.NotNil(t, games[1].AwayScore)
	assert.Equal(t, 5, *games[1].AwayScore)

	assert.Equal(t, model.GameScheduled, games[2].Status)
	assert.Nil(t, games[2].HomeScore)
}

func TestStatsAPI_NHL_SeasonParam(t *testing.T) {
	p := newStatsAPI(t, model.LeagueNHL, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "20242025", q.Get("season"), "the NHL host takes the two-year season form")
		assert.Empty(t, q.Get("sportId"))
		_, _ = w.Write([]byte(`{"dates": []}`))
	})

	games, err := p.FetchGames(context.Background(), model.LeagueNHL, "2024")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestStatsAPI_NHL_SeasonLabelFolded(t *testing.T) {
	p := newStatsAPI(t, model.LeagueNHL, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dates": [
			{"date": "2024-10-08", "games": [
				{"gamePk": 2024020001, "gameDate": "2024-10-08T23:00:00Z", "season": "20242025",
				 "status": {"abstractGameState": "Final"},
				 "teams": {"home": {"team": {"id": 6, "name": "Boston Bruins"}, "score": 4},
				           "away": {"team": {"id": 8, "name": "Montréal Canadiens"}, "score": 1}}}
			]}
		]}`))
	})

	games, err := p.FetchGames(context.Background(), model.LeagueNHL, "")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "2024", games[0].Season)
	assert.Equal(t, "Montreal Canadiens", games[0].AwayTeam)
}

func TestStatsAPI_Leagues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	p := NewStatsAPI(map[model.League]*fetcher.APIClient{
		model.LeagueNHL: newTestClient("statsapi-nhl", srv.URL),
		model.LeagueMLB: newTestClient("statsapi-mlb", srv.URL),
	}, newTestStandardizer(t))

	assert.Equal(t, []model.League{model.LeagueMLB, model.LeagueNHL}, p.Leagues())
}

func TestStatsAPI_UnconfiguredLeague(t *testing.T) {
	p := newStatsAPI(t, model.LeagueMLB, func(w http.ResponseWriter, r *http.Request) {})

	_, err := p.FetchTeams(context.Background(), model.LeagueNHL)
	assert.True(t, resilience.IsNotSupported(err))
	_, err = p.FetchPlayers(context.Background(), model.LeagueNFL, "")
	assert.True(t, resilience.IsNotSupported(err))
}

func TestStatsAPI_FetchInjuries_NotSupported(t *testing.T) {
	p := newStatsAPI(t, model.LeagueMLB, func(w http.ResponseWriter, r *http.Request) {})
	_, err := p.FetchInjuries(context.Background(), model.LeagueMLB, "")
	assert.True(t, resilience.IsNotSupported(err))
}
