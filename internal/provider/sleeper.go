package provider

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gridstats/sports-cli/internal/cache"
	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/normalize"
)

// Sleeper serves the NFL from the Sleeper fantasy API. The whole league
// arrives as one keyed JSON object of several thousand players, so the
// payload is decoded as a stream. The injury log is carved from the same
// dump: injury_status and its sibling fields ride the player records.
type Sleeper struct {
	client *fetcher.APIClient
	std    *normalize.Standardizer
}

func NewSleeper(client *fetcher.APIClient, std *normalize.Standardizer) *Sleeper {
	return &Sleeper{client: client, std: std}
}

func (p *Sleeper) Name() string { return SourceSleeper }

func (p *Sleeper) Leagues() []model.League { return []model.League{model.LeagueNFL} }

type sleeperPlayer struct {
	FullName       string `json:"full_name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Team           string `json:"team"`
	Position       string `json:"position"`
	Number         int    `json:"number"`
	BirthDate      string `json:"birth_date"`
	Height         string `json:"height"`
	Weight         string `json:"weight"`
	College        string `json:"college"`
	Active         bool   `json:"active"`
	InjuryStatus   string `json:"injury_status"`
	InjuryBodyPart string `json:"injury_body_part"`
	InjuryNotes    string `json:"injury_notes"`
	InjuryStart    string `json:"injury_start_date"`
}

// name assembles the display name; team defense entries carry no
// full_name, only the city/nickname split.
func (s sleeperPlayer) name() string {
	if s.FullName != "" {
		return s.FullName
	}
	return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
}

func (p *Sleeper) payload(ctx context.Context, ttl time.Duration) ([]byte, error) {
	return p.client.Get(ctx, "players/nfl", nil, ttl)
}

func (p *Sleeper) FetchPlayers(ctx context.Context, league model.League, season string) ([]model.Player, error) {
	if league != model.LeagueNFL {
		return nil, notSupported(SourceSleeper, model.KindPlayers, league)
	}
	data, err := p.payload(ctx, cache.TTLRosters)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var players []model.Player
	entries, errc := fetcher.DecodeJSONMap[sleeperPlayer](ctx, bytes.NewReader(data))
	for entry := range entries {
		raw := entry.Val
		// Entries with neither a position nor a name are retired ghosts
		// the dump still carries.
		if raw.Position == "" && raw.FullName == "" {
			continue
		}
		full := raw.name()
		if full == "" {
			continue
		}
		team, _ := p.std.Standardize(league, raw.Team)
		players = append(players, model.Player{
			League:       league,
			ExternalID:   entry.Key,
			Source:       SourceSleeper,
			FullName:     full,
			FirstName:    raw.FirstName,
			LastName:     raw.LastName,
			Position:     raw.Position,
			JerseyNumber: intID(raw.Number),
			Team:         team,
			TeamRaw:      raw.Team,
			TeamID:       raw.Team,
			BirthDate:    parseBirthDate(raw.BirthDate),
			HeightCM:     inchesToCM(raw.Height),
			WeightKG:     poundsToKG(raw.Weight),
			College:      raw.College,
			Active:       raw.Active,
			FetchedAt:    now,
		})
	}
	if err := <-errc; err != nil {
		return nil, eris.Wrap(err, "sleeper: players payload")
	}
	return players, nil
}

func (p *Sleeper) FetchInjuries(ctx context.Context, league model.League, team string) ([]model.Injury, error) {
	if league != model.LeagueNFL {
		return nil, notSupported(SourceSleeper, model.KindInjuries, league)
	}
	data, err := p.payload(ctx, cache.TTLLive)
	if err != nil {
		return nil, err
	}

	want := ""
	if team != "" {
		want, _ = p.std.Standardize(league, team)
	}

	now := time.Now().UTC()
	var injuries []model.Injury
	entries, errc := fetcher.DecodeJSONMap[sleeperPlayer](ctx, bytes.NewReader(data))
	for entry := range entries {
		raw := entry.Val
		if raw.InjuryStatus == "" {
			continue
		}
		stdTeam, _ := p.std.Standardize(league, raw.Team)
		if want != "" && stdTeam != want {
			continue
		}
		reported := now
		if t, ok := parseDate(raw.InjuryStart); ok {
			reported = t
		}
		injuries = append(injuries, model.Injury{
			League:     league,
			Source:     SourceSleeper,
			PlayerID:   entry.Key,
			PlayerName: raw.name(),
			Team:       stdTeam,
			Status:     raw.InjuryStatus,
			Severity:   model.SeverityFromStatus(raw.InjuryStatus),
			BodyPart:   raw.InjuryBodyPart,
			Notes:      raw.InjuryNotes,
			ReportedAt: reported,
			FetchedAt:  now,
		})
	}
	if err := <-errc; err != nil {
		return nil, eris.Wrap(err, "sleeper: players payload")
	}
	return injuries, nil
}

func (p *Sleeper) FetchTeams(ctx context.Context, league model.League) ([]model.Team, error) {
	return nil, notSupported(SourceSleeper, model.KindTeams, league)
}

func (p *Sleeper) FetchGames(ctx context.Context, league model.League, season string) ([]model.Game, error) {
	return nil, notSupported(SourceSleeper, model.KindGames, league)
}
