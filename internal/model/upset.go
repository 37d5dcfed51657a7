package model

import "time"

// UpsetSignal names the evidence class that established the pre-game
// favorite. Signals are tried in priority order: market odds when present,
// then ranking differential, then record differential.
type UpsetSignal string

const (
	SignalOdds    UpsetSignal = "odds"
	SignalRanking UpsetSignal = "ranking"
	SignalRecord  UpsetSignal = "record"
)

// Factor records one piece of evidence that contributed to an upset call,
// so every stored upset can be re-derived and audited.
type Factor struct {
	Signal UpsetSignal `json:"signal"`
	Detail string      `json:"detail"`
	Value  float64     `json:"value"`
}

// Upset is a derived record: a decided game whose winner contradicted the
// pre-game expectation. Upsets are keyed by their game and written at most
// once per game; re-running detection over the same data is a no-op.
type Upset struct {
	ID           int64      `json:"id,omitempty"`
	League       League     `json:"league"`
	GameID       string     `json:"game_id"` // games.external_id
	Season       string     `json:"season"`
	GameDate     time.Time  `json:"game_date"`
	HomeTeam     string     `json:"home_team"`
	AwayTeam     string     `json:"away_team"`
	HomeScore    int        `json:"home_score"`
	AwayScore    int        `json:"away_score"`
	Winner       string     `json:"winner"`
	Loser        string     `json:"loser"`
	Signal       UpsetSignal `json:"signal"`
	Magnitude    float64    `json:"magnitude"` // 0-100, comparable across signals
	Reason       string     `json:"reason"`
	Factors      []Factor   `json:"factors,omitempty"`
	SpreadLine   *float64   `json:"spread_line,omitempty"`
	FavoriteOdds *float64   `json:"favorite_odds,omitempty"` // decimal odds of the beaten favorite
	DetectedAt   time.Time  `json:"detected_at"`
}

// FavoredTeam returns the team the pre-game signal expected to win; in
// an upset that is always the loser.
func (u Upset) FavoredTeam() string { return u.Loser }

// UnderdogTeam returns the team that won against expectation.
func (u Upset) UnderdogTeam() string { return u.Winner }
