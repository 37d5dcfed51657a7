package model

import "time"

// Player is the canonical player record shared by every source.
// ExternalID is the source's own identifier; (league, external_id) is the
// stable identity used for upserts.
type Player struct {
	League       League     `json:"league"`
	ExternalID   string     `json:"external_id"`
	Source       string     `json:"source"`
	FullName     string     `json:"full_name"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Position     string     `json:"position,omitempty"`
	JerseyNumber string     `json:"jersey_number,omitempty"`
	Team         string     `json:"team,omitempty"`      // standardized team name
	TeamRaw      string     `json:"team_raw,omitempty"`  // name as the source gave it
	TeamID       string     `json:"team_id,omitempty"`   // source's team identifier
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	HeightCM     *float64   `json:"height_cm,omitempty"`
	WeightKG     *float64   `json:"weight_kg,omitempty"`
	Nationality  string     `json:"nationality,omitempty"`
	College      string     `json:"college,omitempty"`
	Active       bool       `json:"active"`
	FetchedAt    time.Time  `json:"fetched_at"`
}
