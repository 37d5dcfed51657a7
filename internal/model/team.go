package model

import "time"

// Team is the canonical team record shared by every source.
type Team struct {
	League       League    `json:"league"`
	ExternalID   string    `json:"external_id"`
	Source       string    `json:"source"`
	Name         string    `json:"name"`              // standardized name
	NameRaw      string    `json:"name_raw"`          // name as the source gave it
	Abbreviation string    `json:"abbreviation,omitempty"`
	City         string    `json:"city,omitempty"`
	Venue        string    `json:"venue,omitempty"`
	Conference   string    `json:"conference,omitempty"`
	Division     string    `json:"division,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// TeamRecord is a team's won-lost standing for one season. Records are
// derived from stored final games rather than fetched, so they stay
// consistent with the games table they summarize.
type TeamRecord struct {
	League    League    `json:"league"`
	Team      string    `json:"team"` // standardized name
	Season    string    `json:"season"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Ties      int       `json:"ties"`
	Ranking   *int      `json:"ranking,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WinPct returns wins over decided games, counting a tie as half a win.
// Returns 0 when no games have been played.
func (r TeamRecord) WinPct() float64 {
	games := r.Wins + r.Losses + r.Ties
	if games == 0 {
		return 0
	}
	return (float64(r.Wins) + 0.5*float64(r.Ties)) / float64(games)
}
