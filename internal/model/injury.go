package model

import (
	"strings"
	"time"
)

// Severity buckets a source's free-form injury designation into a small
// ordered scale so reports can be filtered consistently across leagues.
type Severity string

const (
	SeverityUnknown      Severity = "unknown"
	SeverityMinor        Severity = "minor"
	SeverityModerate     Severity = "moderate"
	SeverityMajor        Severity = "major"
	SeveritySeasonEnding Severity = "season_ending"
)

// SeverityFromStatus maps the designations the supported sources actually
// emit (Questionable, Doubtful, Out, IR, PUP, Sus, NA) onto the scale.
// Unrecognized designations map to unknown rather than failing the record.
func SeverityFromStatus(status string) Severity {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "questionable", "probable", "day-to-day", "dtd":
		return SeverityMinor
	case "doubtful":
		return SeverityModerate
	case "out", "sus", "suspended":
		return SeverityMajor
	case "ir", "injured reserve", "pup", "season":
		return SeveritySeasonEnding
	case "", "na", "n/a", "dnr", "cov":
		return SeverityUnknown
	}
	return SeverityUnknown
}

// Injury is one entry in the append-only injury log. The same player may
// accumulate many entries over a season; entries are never updated in
// place.
type Injury struct {
	ID         string    `json:"id"`
	League     League    `json:"league"`
	Source     string    `json:"source"`
	PlayerID   string    `json:"player_id"` // source's player identifier
	PlayerName string    `json:"player_name"`
	Team       string    `json:"team,omitempty"` // standardized team name
	Status     string    `json:"status"`         // designation as the source gave it
	Severity   Severity  `json:"severity"`
	BodyPart   string    `json:"body_part,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
	FetchedAt  time.Time `json:"fetched_at"`
}
