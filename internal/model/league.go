package model

import (
	"fmt"
	"strings"
)

// League identifies one of the supported professional leagues.
type League string

const (
	LeagueNFL League = "nfl"
	LeagueNBA League = "nba"
	LeagueMLB League = "mlb"
	LeagueNHL League = "nhl"
)

// Leagues lists every supported league in stable order.
func Leagues() []League {
	return []League{LeagueNFL, LeagueNBA, LeagueMLB, LeagueNHL}
}

// ParseLeague normalizes user input ("NFL", "nfl") into a League.
func ParseLeague(s string) (League, error) {
	l := League(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LeagueNFL, LeagueNBA, LeagueMLB, LeagueNHL:
		return l, nil
	}
	return "", fmt.Errorf("unknown league %q (want nfl, nba, mlb, or nhl)", s)
}

// EntityKind names a category of records a source can produce.
type EntityKind string

const (
	KindPlayers  EntityKind = "players"
	KindTeams    EntityKind = "teams"
	KindGames    EntityKind = "games"
	KindInjuries EntityKind = "injuries"

	// KindUpsets is derived data, never fetched; it exists for export and
	// reporting surfaces only.
	KindUpsets EntityKind = "upsets"
)

// EntityKinds lists every kind in the order the pipeline processes them.
// Teams come first so later kinds can resolve against them.
func EntityKinds() []EntityKind {
	return []EntityKind{KindTeams, KindPlayers, KindGames, KindInjuries}
}

// ParseEntityKind normalizes user input into an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindPlayers, KindTeams, KindGames, KindInjuries:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q (want players, teams, games, or injuries)", s)
}
