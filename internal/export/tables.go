package export

import (
	"fmt"
	"time"

	"github.com/gridstats/sports-cli/internal/model"
)

// The converters flatten canonical entities into tables named the way
// the output files are: "<league>_<kind>". Optional fields become nil
// cells so JSON carries nulls and the text formats leave them blank.

func PlayersTable(league model.League, players []model.Player) Table {
	t := Table{
		Name: tableName(league, "players"),
		Header: []string{
			"league", "external_id", "source", "full_name", "first_name", "last_name",
			"position", "jersey_number", "team", "team_raw", "team_id",
			"birth_date", "height_cm", "weight_kg", "nationality", "college",
			"active", "fetched_at",
		},
	}
	for _, p := range players {
		t.Rows = append(t.Rows, []any{
			string(p.League), p.ExternalID, p.Source, p.FullName, p.FirstName, p.LastName,
			p.Position, p.JerseyNumber, p.Team, p.TeamRaw, p.TeamID,
			dayCell(p.BirthDate), floatCell(p.HeightCM), floatCell(p.WeightKG),
			p.Nationality, p.College, p.Active, p.FetchedAt,
		})
	}
	return t
}

func TeamsTable(league model.League, teams []model.Team) Table {
	t := Table{
		Name: tableName(league, "teams"),
		Header: []string{
			"league", "external_id", "source", "name", "name_raw", "abbreviation",
			"city", "venue", "conference", "division", "fetched_at",
		},
	}
	for _, tm := range teams {
		t.Rows = append(t.Rows, []any{
			string(tm.League), tm.ExternalID, tm.Source, tm.Name, tm.NameRaw, tm.Abbreviation,
			tm.City, tm.Venue, tm.Conference, tm.Division, tm.FetchedAt,
		})
	}
	return t
}

func GamesTable(league model.League, games []model.Game) Table {
	t := Table{
		Name: tableName(league, "games"),
		Header: []string{
			"league", "external_id", "source", "season", "game_date",
			"home_team", "away_team", "home_score", "away_score", "status",
			"venue", "spread_line", "moneyline_home", "moneyline_away", "fetched_at",
		},
	}
	for _, g := range games {
		t.Rows = append(t.Rows, []any{
			string(g.League), g.ExternalID, g.Source, g.Season, g.GameDate,
			g.HomeTeam, g.AwayTeam, intCell(g.HomeScore), intCell(g.AwayScore), string(g.Status),
			g.Venue, floatCell(g.SpreadLine), intCell(g.MoneylineHome), intCell(g.MoneylineAway), g.FetchedAt,
		})
	}
	return t
}

func InjuriesTable(league model.League, injuries []model.Injury) Table {
	t := Table{
		Name: tableName(league, "injuries"),
		Header: []string{
			"id", "league", "source", "player_id", "player_name", "team",
			"status", "severity", "body_part", "notes", "reported_at", "fetched_at",
		},
	}
	for _, in := range injuries {
		t.Rows = append(t.Rows, []any{
			in.ID, string(in.League), in.Source, in.PlayerID, in.PlayerName, in.Team,
			in.Status, string(in.Severity), in.BodyPart, in.Notes, in.ReportedAt, in.FetchedAt,
		})
	}
	return t
}

func UpsetsTable(league model.League, upsets []model.Upset) Table {
	t := Table{
		Name: tableName(league, "upsets"),
		Header: []string{
			"league", "game_id", "season", "game_date", "home_team", "away_team",
			"home_score", "away_score", "winner", "loser", "signal", "magnitude",
			"reason", "spread_line", "favorite_odds", "detected_at",
		},
	}
	for _, u := range upsets {
		t.Rows = append(t.Rows, []any{
			string(u.League), u.GameID, u.Season, u.GameDate, u.HomeTeam, u.AwayTeam,
			u.HomeScore, u.AwayScore, u.Winner, u.Loser, string(u.Signal), u.Magnitude,
			u.Reason, floatCell(u.SpreadLine), floatCell(u.FavoriteOdds), u.DetectedAt,
		})
	}
	return t
}

func tableName(league model.League, kind string) string {
	return fmt.Sprintf("%s_%s", league, kind)
}

func intCell(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatCell(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// dayCell renders calendar dates without a phantom midnight timestamp.
func dayCell(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC().Format("2006-01-02")
}
