package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gridstats/sports-cli/internal/cache"
	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/normalize"
)

// StatsAPI serves MLB and NHL from the MLB-style stats APIs; the NHL host
// kept the same shapes (/teams, /teams/{id}/roster, /people/{id},
// /schedule). One client per league keeps each host on its own rate
// budget.
type StatsAPI struct {
	clients map[model.League]*fetcher.APIClient
	std     *normalize.Standardizer
}

// NewStatsAPI builds the provider over per-league clients; a league
// without a client is simply not served.
func NewStatsAPI(clients map[model.League]*fetcher.APIClient, std *normalize.Standardizer) *StatsAPI {
	return &StatsAPI{clients: clients, std: std}
}

func (p *StatsAPI) Name() string { return SourceStatsAPI }

// Leagues returns the leagues a client was configured for, in stable
// order.
func (p *StatsAPI) Leagues() []model.League {
	var leagues []model.League
	for _, l := range model.Leagues() {
		if _, ok := p.clients[l]; ok {
			leagues = append(leagues, l)
		}
	}
	return leagues
}

func (p *StatsAPI) client(league model.League, kind model.EntityKind) (*fetcher.APIClient, error) {
	c, ok := p.clients[league]
	if !ok {
		return nil, notSupported(SourceStatsAPI, kind, league)
	}
	return c, nil
}

// leagueParams returns the query parameters the host wants on collection
// endpoints; MLB's multi-sport API needs an explicit sportId.
func leagueParams(league model.League) map[string]string {
	params := map[string]string{}
	if league == model.LeagueMLB {
		params["sportId"] = "1"
	}
	return params
}

// apiSeason renders the season parameter for the host: the NHL API takes
// the two-year form ("20242025"), MLB takes the year.
func apiSeason(league model.League, season string) string {
	if league != model.LeagueNHL {
		return season
	}
	year, err := strconv.Atoi(season)
	if err != nil {
		return season
	}
	return fmt.Sprintf("%d%d", year, year+1)
}

// seasonLabel prefers the requested season; a source-supplied two-year
// form is folded back to its starting year.
func seasonLabel(requested, source string) string {
	if requested != "" {
		return requested
	}
	if len(source) == 8 {
		return source[:4]
	}
	return source
}

type statsAPITeam struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Location     string `json:"locationName"`
	Active       *bool  `json:"active"`
	Venue        struct {
		Name string `json:"name"`
	} `json:"venue"`
	League struct {
		Name string `json:"name"`
	} `json:"league"`
	Conference struct {
		Name string `json:"name"`
	} `json:"conference"`
	Division struct {
		Name string `json:"name"`
	} `json:"division"`
}

type statsAPIRosterEntry struct {
	Person struct {
		ID       int    `json:"id"`
		FullName string `json:"fullName"`
	} `json:"person"`
	JerseyNumber string `json:"jerseyNumber"`
	Position     struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"position"`
}

type statsAPIPerson struct {
	ID            int    `json:"id"`
	FullName      string `json:"fullName"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	PrimaryNumber string `json:"primaryNumber"`
	BirthDate     string `json:"birthDate"`
	BirthCountry  string `json:"birthCountry"`
	Height        string `json:"height"`
	Weight        int    `json:"weight"`
}

type statsAPIGameTeam struct {
	Team struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Score *int `json:"score"`
}

type statsAPIGame struct {
	GamePk   int    `json:"gamePk"`
	GameDate string `json:"gameDate"`
	Season   string `json:"season"`
	Status   struct {
		AbstractGameState string `json:"abstractGameState"`
	} `json:"status"`
	Teams struct {
		Home statsAPIGameTeam `json:"home"`
		Away statsAPIGameTeam `json:"away"`
	} `json:"teams"`
	Venue struct {
		Name string `json:"name"`
	} `json:"venue"`
}

// teams returns the host's active franchises.
func (p *StatsAPI) teams(ctx context.Context, client *fetcher.APIClient, league model.League) ([]statsAPITeam, error) {
	var resp struct {
		Teams []statsAPITeam `json:"teams"`
	}
	if err := client.GetJSON(ctx, "teams", leagueParams(league), cache.TTLRosters, &resp); err != nil {
		return nil, err
	}
	active := make([]statsAPITeam, 0, len(resp.Teams))
	for _, t := range resp.Teams {
		// MLB's catalog includes defunct franchises marked inactive; a
		// missing flag means the host does not track it.
		if t.ID == 0 || (t.Active != nil && !*t.Active) {
			continue
		}
		active = append(active, t)
	}
	return active, nil
}

func (p *StatsAPI) person(ctx context.Context, client *fetcher.APIClient, id int) (statsAPIPerson, error) {
	var resp struct {
		People []statsAPIPerson `json:"people"`
	}
	if err := client.GetJSON(ctx, fmt.Sprintf("people/%d", id), nil, cache.TTLRosters, &resp); err != nil {
		return statsAPIPerson{}, err
	}
	if len(resp.People) == 0 {
		return statsAPIPerson{}, nil
	}
	return resp.People[0], nil
}

// FetchPlayers fans out teams → roster → person bio. The per-person calls
// ride the roster cache TTL, so re-runs within a day cost nothing.
func (p *StatsAPI) FetchPlayers(ctx context.Context, league model.League, season string) ([]model.Player, error) {
	client, err := p.client(league, model.KindPlayers)
	if err != nil {
		return nil, err
	}
	teams, err := p.teams(ctx, client, league)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var players []model.Player
	for _, team := range teams {
		var resp struct {
			Roster []statsAPIRosterEntry `json:"roster"`
		}
		if err := client.GetJSON(ctx, fmt.Sprintf("teams/%d/roster", team.ID), nil, cache.TTLRosters, &resp); err != nil {
			return nil, eris.Wrapf(err, "statsapi: roster for %s", team.Name)
		}
		stdTeam, _ := p.std.Standardize(league, team.Name)

		for _, entry := range resp.Roster {
			if entry.Person.ID == 0 {
				continue
			}
			bio, err := p.person(ctx, client, entry.Person.ID)
			if err != nil {
				return nil, err
			}
			full := bio.FullName
			if full == "" {
				full = entry.Person.FullName
			}
			if full == "" {
				continue
			}
			jersey := bio.PrimaryNumber
			if jersey == "" {
				jersey = entry.JerseyNumber
			}
			var weight *float64
			if bio.Weight > 0 {
				kg := float64(bio.Weight) * kgPerPound
				weight = &kg
			}
			players = append(players, model.Player{
				League:       league,
				ExternalID:   strconv.Itoa(entry.Person.ID),
				Source:       SourceStatsAPI,
				FullName:     full,
				FirstName:    bio.FirstName,
				LastName:     bio.LastName,
				Position:     entry.Position.Abbreviation,
				JerseyNumber: jersey,
				Team:         stdTeam,
				TeamRaw:      team.Name,
				TeamID:       strconv.Itoa(team.ID),
				BirthDate:    parseBirthDate(bio.BirthDate),
				HeightCM:     heightToCM(bio.Height),
				WeightKG:     weight,
				Nationality:  bio.BirthCountry,
				Active:       true,
				FetchedAt:    now,
			})
		}
	}
	return players, nil
}

func (p *StatsAPI) FetchTeams(ctx context.Context, league model.League) ([]model.Team, error) {
	client, err := p.client(league, model.KindTeams)
	if err != nil {
		return nil, err
	}
	teams, err := p.teams(ctx, client, league)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Team, 0, len(teams))
	for _, raw := range teams {
		name, _ := p.std.Standardize(league, raw.Name)
		conference := raw.Conference.Name
		if conference == "" {
			// MLB nests its leagues (AL/NL) where the NHL has conferences.
			conference = raw.League.Name
		}
		out = append(out, model.Team{
			League:       league,
			ExternalID:   strconv.Itoa(raw.ID),
			Source:       SourceStatsAPI,
			Name:         name,
			NameRaw:      raw.Name,
			Abbreviation: raw.Abbreviation,
			City:         raw.Location,
			Venue:        raw.Venue.Name,
			Conference:   conference,
			Division:     raw.Division.Name,
			FetchedAt:    now,
		})
	}
	return out, nil
}

func (p *StatsAPI) FetchGames(ctx context.Context, league model.League, season string) ([]model.Game, error) {
	client, err := p.client(league, model.KindGames)
	if err != nil {
		return nil, err
	}
	params := leagueParams(league)
	if season != "" {
		params["season"] = apiSeason(league, season)
	}
	var resp struct {
		Dates []struct {
			Date  string         `json:"date"`
			Games []statsAPIGame `json:"games"`
		} `json:"dates"`
	}
	if err := client.GetJSON(ctx, "schedule", params, cache.TTLGames, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var games []model.Game
	for _, day := range resp.Dates {
		for _, raw := range day.Games {
			if raw.GamePk == 0 {
				continue
			}
			date, ok := parseDate(raw.GameDate)
			if !ok {
				if date, ok = parseDate(day.Date); !ok {
					continue
				}
			}
			home, _ := p.std.Standardize(league, raw.Teams.Home.Team.Name)
			away, _ := p.std.Standardize(league, raw.Teams.Away.Team.Name)
			g := model.Game{
				League:     league,
				ExternalID: strconv.Itoa(raw.GamePk),
				Source:     SourceStatsAPI,
				Season:     seasonLabel(season, raw.Season),
				GameDate:   date,
				HomeTeam:   home,
				AwayTeam:   away,
				Status:     model.GameScheduled,
				Venue:      raw.Venue.Name,
				FetchedAt:  now,
			}
			switch raw.Status.AbstractGameState {
			case "Final":
				g.Status = model.GameFinal
				g.HomeScore = raw.Teams.Home.Score
				g.AwayScore = raw.Teams.Away.Score
			case "Live":
				g.Status = model.GameInProgress
				g.HomeScore = raw.Teams.Home.Score
				g.AwayScore = raw.Teams.Away.Score
			}
			games = append(games, g)
		}
	}
	return games, nil
}

func (p *StatsAPI) FetchInjuries(ctx context.Context, league model.League, team string) ([]model.Injury, error) {
	return nil, notSupported(SourceStatsAPI, model.KindInjuries, league)
}
