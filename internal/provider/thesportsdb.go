package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridstats/sports-cli/internal/cache"
	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/normalize"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// sportsDBLeagues maps a league onto TheSportsDB's sport_league string.
var sportsDBLeagues = map[model.League]string{
	model.LeagueNFL: "American football_nfl",
	model.LeagueNBA: "Basketball_nba",
	model.LeagueMLB: "Baseball_mlb",
	model.LeagueNHL: "Ice hockey_nhl",
}

// TheSportsDB serves all four leagues from the TheSportsDB JSON API. The
// API keys every call on an apikey query parameter and reports failures
// in-band: HTTP 200 with an "error" key in the body.
type TheSportsDB struct {
	client *fetcher.APIClient
	apiKey string
	std    *normalize.Standardizer
}

// NewTheSportsDB builds the provider. An empty apiKey makes every fetch
// fail with an AuthError, mirroring how the API itself would reject us.
func NewTheSportsDB(client *fetcher.APIClient, apiKey string, std *normalize.Standardizer) *TheSportsDB {
	return &TheSportsDB{client: client, apiKey: apiKey, std: std}
}

func (p *TheSportsDB) Name() string { return SourceTheSportsDB }

func (p *TheSportsDB) Leagues() []model.League { return model.Leagues() }

// sportsDBEnvelope covers the three response shapes: exactly one of the
// collection keys is populated per endpoint.
type sportsDBEnvelope struct {
	Players []sportsDBPlayer `json:"player"`
	Teams   []sportsDBTeam   `json:"teams"`
	Events  []sportsDBEvent  `json:"events"`
	Error   json.RawMessage  `json:"error"`
}

// apiErr surfaces the in-band error key; its value shape varies, so it is
// kept raw.
func (e *sportsDBEnvelope) apiErr(endpoint string) error {
	switch string(e.Error) {
	case "", "null", "false":
		return nil
	}
	return eris.Errorf("thesportsdb: %s: api error %s", endpoint, e.Error)
}

type sportsDBPlayer struct {
	ID          string `json:"idPlayer"`
	Name        string `json:"strPlayer"`
	Team        string `json:"strTeam"`
	TeamID      string `json:"idTeam"`
	Position    string `json:"strPosition"`
	Number      string `json:"strNumber"`
	Nationality string `json:"strNationality"`
	BirthDate   string `json:"dateBorn"`
	Height      string `json:"strHeight"`
	Weight      string `json:"strWeight"`
	College     string `json:"strCollege"`
}

type sportsDBTeam struct {
	ID       string `json:"idTeam"`
	Name     string `json:"strTeam"`
	Short    string `json:"strTeamShort"`
	Location string `json:"strLocation"`
	Stadium  string `json:"strStadium"`
	Division string `json:"strDivision"`
}

type sportsDBEvent struct {
	ID        string `json:"idEvent"`
	Date      string `json:"dateEvent"`
	HomeTeam  string `json:"strHomeTeam"`
	AwayTeam  string `json:"strAwayTeam"`
	HomeScore string `json:"intHomeScore"`
	AwayScore string `json:"intAwayScore"`
	Venue     string `json:"strVenue"`
}

func (p *TheSportsDB) get(ctx context.Context, endpoint string, params map[string]string, ttl time.Duration, env *sportsDBEnvelope) error {
	if p.apiKey == "" {
		return &resilience.AuthError{Source: SourceTheSportsDB}
	}
	merged := map[string]string{"apikey": p.apiKey}
	for k, v := range params {
		merged[k] = v
	}
	if err := p.client.GetJSON(ctx, endpoint, merged, ttl, env); err != nil {
		return err
	}
	return env.apiErr(endpoint)
}

func (p *TheSportsDB) FetchPlayers(ctx context.Context, league model.League, season string) ([]model.Player, error) {
	apiLeague, ok := sportsDBLeagues[league]
	if !ok {
		return nil, notSupported(SourceTheSportsDB, model.KindPlayers, league)
	}
	params := map[string]string{"l": apiLeague}
	if season != "" {
		params["s"] = season
	}
	var env sportsDBEnvelope
	if err := p.get(ctx, "search_all_players.php", params, cache.TTLRosters, &env); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	players := make([]model.Player, 0, len(env.Players))
	for _, raw := range env.Players {
		full := strings.Join(strings.Fields(raw.Name), " ")
		if raw.ID == "" || full == "" {
			zap.L().Debug("skipping player without identity",
				zap.String("source", SourceTheSportsDB),
				zap.String("id", raw.ID),
			)
			continue
		}
		first, last := splitName(full)
		team, _ := p.std.Standardize(league, raw.Team)
		players = append(players, model.Player{
			League:       league,
			ExternalID:   raw.ID,
			Source:       SourceTheSportsDB,
			FullName:     full,
			FirstName:    first,
			LastName:     last,
			Position:     raw.Position,
			JerseyNumber: raw.Number,
			Team:         team,
			TeamRaw:      raw.Team,
			TeamID:       raw.TeamID,
			BirthDate:    parseBirthDate(raw.BirthDate),
			HeightCM:     heightToCM(raw.Height),
			WeightKG:     poundsToKG(raw.Weight),
			Nationality:  raw.Nationality,
			College:      raw.College,
			Active:       true,
			FetchedAt:    now,
		})
	}
	return players, nil
}

func (p *TheSportsDB) FetchTeams(ctx context.Context, league model.League) ([]model.Team, error) {
	apiLeague, ok := sportsDBLeagues[league]
	if !ok {
		return nil, notSupported(SourceTheSportsDB, model.KindTeams, league)
	}
	var env sportsDBEnvelope
	if err := p.get(ctx, "search_all_teams.php", map[string]string{"l": apiLeague}, cache.TTLRosters, &env); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	teams := make([]model.Team, 0, len(env.Teams))
	for _, raw := range env.Teams {
		if raw.ID == "" || strings.TrimSpace(raw.Name) == "" {
			continue
		}
		name, _ := p.std.Standardize(league, raw.Name)
		teams = append(teams, model.Team{
			League:       league,
			ExternalID:   raw.ID,
			Source:       SourceTheSportsDB,
			Name:         name,
			NameRaw:      raw.Name,
			Abbreviation: raw.Short,
			City:         raw.Location,
			Venue:        raw.Stadium,
			Division:     raw.Division,
			FetchedAt:    now,
		})
	}
	return teams, nil
}

func (p *TheSportsDB) FetchGames(ctx context.Context, league model.League, season string) ([]model.Game, error) {
	apiLeague, ok := sportsDBLeagues[league]
	if !ok {
		return nil, notSupported(SourceTheSportsDB, model.KindGames, league)
	}
	if season == "" {
		return nil, eris.New("thesportsdb: season is required for games")
	}
	var env sportsDBEnvelope
	if err := p.get(ctx, "eventsseason.php", map[string]string{"id": apiLeague, "s": season}, cache.TTLGames, &env); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	games := make([]model.Game, 0, len(env.Events))
	for _, raw := range env.Events {
		date, ok := parseDate(raw.Date)
		if raw.ID == "" || !ok {
			zap.L().Debug("skipping event without identity or date",
				zap.String("source", SourceTheSportsDB),
				zap.String("id", raw.ID),
			)
			continue
		}
		home, _ := p.std.Standardize(league, raw.HomeTeam)
		away, _ := p.std.Standardize(league, raw.AwayTeam)
		g := model.Game{
			League:     league,
			ExternalID: raw.ID,
			Source:     SourceTheSportsDB,
			Season:     season,
			GameDate:   date,
			HomeTeam:   home,
			AwayTeam:   away,
			HomeScore:  parseScore(raw.HomeScore),
			AwayScore:  parseScore(raw.AwayScore),
			Status:     model.GameScheduled,
			Venue:      raw.Venue,
			FetchedAt:  now,
		}
		// The API carries no explicit lifecycle field; two posted scores
		// mean the game is done.
		if g.HomeScore != nil && g.AwayScore != nil {
			g.Status = model.GameFinal
		}
		games = append(games, g)
	}
	return games, nil
}

func (p *TheSportsDB) FetchInjuries(ctx context.Context, league model.League, team string) ([]model.Injury, error) {
	return nil, notSupported(SourceTheSportsDB, model.KindInjuries, league)
}
