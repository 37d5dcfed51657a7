package normalize

import (
	"fmt"
	"time"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// Validation rules run after a provider normalizes a record and before it
// reaches the store. A failure quarantines that record; the rest of the
// batch proceeds.

func invalid(field, format string, args ...any) error {
	return &resilience.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidatePlayer checks the fields the upsert key and roster joins depend on.
func ValidatePlayer(p model.Player) error {
	if p.ExternalID == "" {
		return invalid("external_id", "missing player id")
	}
	if p.FullName == "" {
		return invalid("full_name", "missing player name")
	}
	if _, err := model.ParseLeague(string(p.League)); err != nil {
		return invalid("league", "unknown league %q", p.League)
	}
	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return invalid("birth_date", "birth date %s is in the future", p.BirthDate.Format("2006-01-02"))
	}
	if p.HeightCM != nil && (*p.HeightCM <= 0 || *p.HeightCM > 300) {
		return invalid("height_cm", "implausible height %.1f", *p.HeightCM)
	}
	if p.WeightKG != nil && (*p.WeightKG <= 0 || *p.WeightKG > 300) {
		return invalid("weight_kg", "implausible weight %.1f", *p.WeightKG)
	}
	return nil
}

// ValidateTeam checks the fields team reconciliation depends on.
func ValidateTeam(t model.Team) error {
	if t.ExternalID == "" {
		return invalid("external_id", "missing team id")
	}
	if t.Name == "" {
		return invalid("name", "missing team name")
	}
	if _, err := model.ParseLeague(string(t.League)); err != nil {
		return invalid("league", "unknown league %q", t.League)
	}
	return nil
}

// ValidateGame checks identity, participants, date, and score shape. A
// final game must carry both scores; a negative score is always rejected.
func ValidateGame(g model.Game) error {
	if g.ExternalID == "" {
		return invalid("external_id", "missing game id")
	}
	if _, err := model.ParseLeague(string(g.League)); err != nil {
		return invalid("league", "unknown league %q", g.League)
	}
	if g.HomeTeam == "" || g.AwayTeam == "" {
		return invalid("teams", "missing team name")
	}
	if g.HomeTeam == g.AwayTeam {
		return invalid("teams", "home and away are both %q", g.HomeTeam)
	}
	if g.GameDate.IsZero() {
		return invalid("game_date", "missing game date")
	}
	switch g.Status {
	case model.GameScheduled, model.GameInProgress, model.GameFinal:
	default:
		return invalid("status", "unknown status %q", g.Status)
	}
	if g.HomeScore != nil && *g.HomeScore < 0 {
		return invalid("home_score", "negative score %d", *g.HomeScore)
	}
	if g.AwayScore != nil && *g.AwayScore < 0 {
		return invalid("away_score", "negative score %d", *g.AwayScore)
	}
	if g.Status == model.GameFinal && (g.HomeScore == nil || g.AwayScore == nil) {
		return invalid("status", "final game without scores")
	}
	return nil
}

// ValidateInjury checks that the entry can be attributed to a player.
func ValidateInjury(i model.Injury) error {
	if i.PlayerID == "" && i.PlayerName == "" {
		return invalid("player", "injury without player id or name")
	}
	if _, err := model.ParseLeague(string(i.League)); err != nil {
		return invalid("league", "unknown league %q", i.League)
	}
	if i.Status == "" {
		return invalid("status", "missing injury designation")
	}
	return nil
}
