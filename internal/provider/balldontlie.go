package provider

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gridstats/sports-cli/internal/cache"
	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/normalize"
)

const bdlPerPage = 100

// BallDontLie serves the NBA from the balldontlie API. Collections are
// paginated behind a meta.total_pages contract; the API key rides the
// Authorization header, configured on the client.
type BallDontLie struct {
	client *fetcher.APIClient
	std    *normalize.Standardizer
}

func NewBallDontLie(client *fetcher.APIClient, std *normalize.Standardizer) *BallDontLie {
	return &BallDontLie{client: client, std: std}
}

func (p *BallDontLie) Name() string { return SourceBallDontLie }

func (p *BallDontLie) Leagues() []model.League { return []model.League{model.LeagueNBA} }

type bdlMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

type bdlTeam struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	City         string `json:"city"`
	Conference   string `json:"conference"`
	Division     string `json:"division"`
	FullName     string `json:"full_name"`
	Name         string `json:"name"`
}

type bdlPlayer struct {
	ID        int     `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Position  string  `json:"position"`
	Team      bdlTeam `json:"team"`
}

type bdlGame struct {
	ID           int     `json:"id"`
	Date         string  `json:"date"`
	Season       int     `json:"season"`
	Status       string  `json:"status"`
	Period       int     `json:"period"`
	HomeTeam     bdlTeam `json:"home_team"`
	VisitorTeam  bdlTeam `json:"visitor_team"`
	HomeScore    int     `json:"home_team_score"`
	VisitorScore int     `json:"visitor_team_score"`
}

func (p *BallDontLie) FetchPlayers(ctx context.Context, league model.League, season string) ([]model.Player, error) {
	if league != model.LeagueNBA {
		return nil, notSupported(SourceBallDontLie, model.KindPlayers, league)
	}

	now := time.Now().UTC()
	var players []model.Player
	for page := 1; ; page++ {
		var resp struct {
			Data []bdlPlayer `json:"data"`
			Meta bdlMeta     `json:"meta"`
		}
		params := map[string]string{
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(bdlPerPage),
		}
		if err := p.client.GetJSON(ctx, "players", params, cache.TTLRosters, &resp); err != nil {
			return nil, err
		}

		for _, raw := range resp.Data {
			first := strings.TrimSpace(raw.FirstName)
			last := strings.TrimSpace(raw.LastName)
			full := strings.TrimSpace(first + " " + last)
			if raw.ID == 0 || full == "" {
				continue
			}
			team, _ := p.std.Standardize(league, raw.Team.FullName)
			players = append(players, model.Player{
				League:     league,
				ExternalID: strconv.Itoa(raw.ID),
				Source:     SourceBallDontLie,
				FullName:   full,
				FirstName:  first,
				LastName:   last,
				Position:   raw.Position,
				Team:       team,
				TeamRaw:    raw.Team.FullName,
				TeamID:     intID(raw.Team.ID),
				Active:     true,
				FetchedAt:  now,
			})
		}
		if page >= resp.Meta.TotalPages {
			break
		}
	}
	return players, nil
}

func (p *BallDontLie) FetchTeams(ctx context.Context, league model.League) ([]model.Team, error) {
	if league != model.LeagueNBA {
		return nil, notSupported(SourceBallDontLie, model.KindTeams, league)
	}

	var resp struct {
		Data []bdlTeam `json:"data"`
	}
	if err := p.client.GetJSON(ctx, "teams", nil, cache.TTLRosters, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	teams := make([]model.Team, 0, len(resp.Data))
	for _, raw := range resp.Data {
		if raw.ID == 0 || raw.FullName == "" {
			continue
		}
		name, _ := p.std.Standardize(league, raw.FullName)
		teams = append(teams, model.Team{
			League:       league,
			ExternalID:   strconv.Itoa(raw.ID),
			Source:       SourceBallDontLie,
			Name:         name,
			NameRaw:      raw.FullName,
			Abbreviation: raw.Abbreviation,
			City:         raw.City,
			Conference:   raw.Conference,
			Division:     raw.Division,
			FetchedAt:    now,
		})
	}
	return teams, nil
}

func (p *BallDontLie) FetchGames(ctx context.Context, league model.League, season string) ([]model.Game, error) {
	if league != model.LeagueNBA {
		return nil, notSupported(SourceBallDontLie, model.KindGames, league)
	}

	now := time.Now().UTC()
	var games []model.Game
	for page := 1; ; page++ {
		params := map[string]string{
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(bdlPerPage),
		}
		if season != "" {
			params["seasons[]"] = season
		}
		var resp struct {
			Data []bdlGame `json:"data"`
			Meta bdlMeta   `json:"meta"`
		}
		if err := p.client.GetJSON(ctx, "games", params, cache.TTLGames, &resp); err != nil {
			return nil, err
		}

		for _, raw := range resp.Data {
			g, ok := p.game(league, raw, season, now)
			if ok {
				games = append(games, g)
			}
		}
		if page >= resp.Meta.TotalPages {
			break
		}
	}
	return games, nil
}

func (p *BallDontLie) game(league model.League, raw bdlGame, season string, now time.Time) (model.Game, bool) {
	if raw.ID == 0 {
		return model.Game{}, false
	}
	date, ok := parseDate(raw.Date)
	if !ok {
		return model.Game{}, false
	}
	home, _ := p.std.Standardize(league, raw.HomeTeam.FullName)
	away, _ := p.std.Standardize(league, raw.VisitorTeam.FullName)

	g := model.Game{
		League:     league,
		ExternalID: strconv.Itoa(raw.ID),
		Source:     SourceBallDontLie,
		Season:     season,
		GameDate:   date,
		HomeTeam:   home,
		AwayTeam:   away,
		Status:     model.GameScheduled,
		FetchedAt:  now,
	}
	if g.Season == "" && raw.Season > 0 {
		g.Season = strconv.Itoa(raw.Season)
	}
	// Status is "Final" once settled; in-flight games carry the current
	// period instead.
	switch {
	case raw.Status == "Final":
		hs, as := raw.HomeScore, raw.VisitorScore
		g.HomeScore, g.AwayScore = &hs, &as
		g.Status = model.GameFinal
	case raw.Period > 0:
		hs, as := raw.HomeScore, raw.VisitorScore
		g.HomeScore, g.AwayScore = &hs, &as
		g.Status = model.GameInProgress
	}
	return g, true
}

func (p *BallDontLie) FetchInjuries(ctx context.Context, league model.League, team string) ([]model.Injury, error) {
	return nil, notSupported(SourceBallDontLie, model.KindInjuries, league)
}
