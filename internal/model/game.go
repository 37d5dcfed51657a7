package model

import "time"

// GameStatus represents where a game stands in its lifecycle.
type GameStatus string

const (
	GameScheduled  GameStatus = "scheduled"
	GameInProgress GameStatus = "in_progress"
	GameFinal      GameStatus = "final"
)

// Game is the canonical game record shared by every source. Team names are
// standardized before the game leaves its provider. The pre-game market
// fields (SpreadLine, MoneylineHome, MoneylineAway) are only present for
// sources that carry them; they feed upset detection and are never
// back-filled after the fact.
type Game struct {
	League        League     `json:"league"`
	ExternalID    string     `json:"external_id"`
	Source        string     `json:"source"`
	Season        string     `json:"season"`
	GameDate      time.Time  `json:"game_date"`
	HomeTeam      string     `json:"home_team"`
	AwayTeam      string     `json:"away_team"`
	HomeScore     *int       `json:"home_score,omitempty"`
	AwayScore     *int       `json:"away_score,omitempty"`
	Status        GameStatus `json:"status"`
	Venue         string     `json:"venue,omitempty"`
	SpreadLine    *float64   `json:"spread_line,omitempty"`    // home perspective, negative = home favored
	MoneylineHome *int       `json:"moneyline_home,omitempty"` // American odds
	MoneylineAway *int       `json:"moneyline_away,omitempty"`
	FetchedAt     time.Time  `json:"fetched_at"`
}

// Decided reports whether the game finished with a winner. Final ties
// (possible in the NFL) are decided games with no winner.
func (g Game) Decided() bool {
	return g.Status == GameFinal && g.HomeScore != nil && g.AwayScore != nil
}

// Winner returns the standardized name of the winning team, or "" for a
// tie or an unfinished game.
func (g Game) Winner() string {
	if !g.Decided() {
		return ""
	}
	switch {
	case *g.HomeScore > *g.AwayScore:
		return g.HomeTeam
	case *g.AwayScore > *g.HomeScore:
		return g.AwayTeam
	}
	return ""
}

// Loser returns the standardized name of the losing team, or "" for a tie
// or an unfinished game.
func (g Game) Loser() string {
	switch g.Winner() {
	case g.HomeTeam:
		return g.AwayTeam
	case g.AwayTeam:
		return g.HomeTeam
	}
	return ""
}

// Margin returns the absolute score difference for a decided game.
func (g Game) Margin() int {
	if !g.Decided() {
		return 0
	}
	m := *g.HomeScore - *g.AwayScore
	if m < 0 {
		m = -m
	}
	return m
}
