package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// sleeperDump mimics the league-wide player object: an active star, an
// injured starter, a team defense entry (no full_name), and a ghost entry
// with neither name nor position.
const sleeperDump = `{
	"4046": {"full_name": "Patrick Mahomes", "first_name": "Patrick", "last_name": "Mahomes",
	         "team": "KC", "position": "QB", "number": 15, "birth_date": "1995-09-17",
	         "height": "74", "weight": "225", "college": "Texas Tech", "active": true},
	"6794": {"full_name": "Justin Jefferson", "first_name": "Justin", "last_name": "Jefferson",
	         "team": "MIN", "position": "WR", "number": 18, "birth_date": "1999-06-16",
	         "height": "73", "weight": "195", "active": true,
	         "injury_status": "Questionable", "injury_body_part": "Hamstring",
	         "injury_notes": "Limited in practice Wednesday", "injury_start_date": "2024-10-06"},
	"KC":   {"first_name": "Kansas City", "last_name": "Chiefs", "team": "KC", "position": "DEF", "active": true},
	"9999": {"first_name": "Long", "last_name": "Retired"}
}`

func newSleeper(t *testing.T, handler http.HandlerFunc) *Sleeper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSleeper(newTestClient(SourceSleeper, srv.URL), newTestStandardizer(t))
}

func TestSleeper_FetchPlayers(t *testing.T) {
	p := newSleeper(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/players/nfl", r.URL.Path)
		_, _ = w.Write([]byte(sleeperDump))
	})

	players, err := p.FetchPlayers(context.Background(), model.LeagueNFL, "")
	require.NoError(t, err)
	require.Len(t, players, 3, "the ghost entry must be dropped")

	pm := players[0]
	assert.Equal(t, "4046", pm.ExternalID)
	assert.Equal(t, "Patrick Mahomes", pm.FullName)
	assert.Equal(t, "QB", pm.Position)
	assert.Equal(t, "15", pm.JerseyNumber)
	assert.Equal(t, "Kansas City Chiefs", pm.Team)
	assert.Equal(t, "KC", pm.TeamRaw)
	require.NotNil(t, pm.HeightCM)
	assert.InDelta(t, 187.96, *pm.HeightCM, 0.01)
	require.NotNil(t, pm.WeightKG)
	assert.InDelta(t, 102.06, *pm.WeightKG, 0.01)
	require.NotNil(t, pm.BirthDate)
	assert.Equal(t, "1995-09-17", pm.BirthDate.Format("2006-01-02"))
	assert.True(t, pm.Active)

	// Defense entries assemble their name from the city/nickname split.
	def := players[2]
	assert.Equal(t, "KC", def.ExternalID)
	assert.Equal(t, "Kansas City Chiefs", def.FullName)
	assert.Equal(t, "DEF", def.Position)
}

func TestSleeper_FetchInjuries(t *testing.T) {
	p := newSleeper(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sleeperDump))
	})

	injuries, err := p.FetchInjuries(context.Background(), model.LeagueNFL, "")
	require.NoError(t, err)
	require.Len(t, injuries, 1)

	jj := injuries[0]
	assert.Equal(t, "6794", jj.PlayerID)
	assert.Equal(t, "Justin Jefferson", jj.PlayerName)
	assert.Equal(t, "Minnesota Vikings", jj.Team)
	assert.Equal(t, "Questionable", jj.Status)
	assert.Equal(t, model.SeverityMinor, jj.Severity)
	assert.Equal(t, "Hamstring", jj.BodyPart)
	assert.Equal(t, "Limited in practice Wednesday", jj.Notes)
	assert.Equal(t, "2024-10-06", jj.ReportedAt.Format("2006-01-02"))
	assert.Empty(t, jj.ID, "the store assigns injury ids")
}

func TestSleeper_FetchInjuries_TeamFilter(t *testing.T) {
	p := newSleeper(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sleeperDump))
	})
	ctx := context.Background()

	// The filter standardizes its input: an abbreviation matches the
	// canonical name.
	injuries, err := p.FetchInjuries(ctx, model.LeagueNFL, "MIN")
	require.NoError(t, err)
	assert.Len(t, injuries, 1)

	injuries, err = p.FetchInjuries(ctx, model.LeagueNFL, "Kansas City Chiefs")
	require.NoError(t, err)
	assert.Empty(t, injuries)
}

func TestSleeper_BadPayload(t *testing.T) {
	p := newSleeper(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"not": "a map"}]`))
	})
	_, err := p.FetchPlayers(context.Background(), model.LeagueNFL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "players payload")
}

func TestSleeper_WrongLeague(t *testing.T) {
	p := NewSleeper(nil, newTestStandardizer(t))
	ctx := context.Background()

	_, err := p.FetchPlayers(ctx, model.LeagueNBA, "")
	assert.True(t, resilience.IsNotSupported(err))
	_, err = p.FetchInjuries(ctx, model.LeagueMLB, "")
	assert.True(t, resilience.IsNotSupported(err))
}

func TestSleeper_TeamsAndGames_NotSupported(t *testing.T) {
	p := NewSleeper(nil, newTestStandardizer(t))
	ctx := context.Background()

	_, err := p.FetchTeams(ctx, model.LeagueNFL)
	assert.True(t, resilience.IsNotSupported(err))
	_, err = p.FetchGames(ctx, model.LeagueNFL, "2024")
	assert.True(t, resilience.IsNotSupported(err))
}
