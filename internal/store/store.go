// Package store persists canonical entities, derived upsets, quarantined
// records, and the cross-invocation response cache. Two backends implement
// the same interface: SQLite (default, zero-setup) and Postgres (pgxpool).
package store

import (
	"context"
	"time"

	"github.com/gridstats/sports-cli/internal/model"
)

// GameFilter narrows ListGames. Zero fields match everything.
type GameFilter struct {
	League model.League     `json:"league,omitempty"`
	Season string           `json:"season,omitempty"`
	Status model.GameStatus `json:"status,omitempty"`
	Since  time.Time        `json:"since,omitempty"`
	Limit  int              `json:"limit,omitempty"`
}

// UpsetFilter narrows ListUpsets. Limit 0 applies the default cap of
// 100 rows; a negative Limit disables the cap for full exports.
type UpsetFilter struct {
	League model.League `json:"league,omitempty"`
	Since  time.Time    `json:"since,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

// UpsetStats aggregates the upsets table for the stats command.
type UpsetStats struct {
	Total        int                        `json:"total"`
	AvgMagnitude float64                    `json:"avg_magnitude"`
	MaxMagnitude float64                    `json:"max_magnitude"`
	BySignal     map[model.UpsetSignal]int  `json:"by_signal"`
	Biggest      *model.Upset               `json:"biggest,omitempty"`
}

// Store is the persistence interface for the ingestion pipeline.
//
// Batch methods are atomic per call: either every row in the slice lands
// or none do, and the returned count is rows actually written. Upserts key
// on (league, external_id). Games that reached final are frozen: a
// conflicting upsert leaves them untouched. Injuries are append-only.
// Upsets insert at most once per game; replays are no-ops.
type Store interface {
	// Entity writes
	UpsertPlayers(ctx context.Context, players []model.Player) (int64, error)
	UpsertTeams(ctx context.Context, teams []model.Team) (int64, error)
	UpsertGames(ctx context.Context, games []model.Game) (int64, error)
	InsertInjuries(ctx context.Context, injuries []model.Injury) (int64, error)

	// Entity reads. For limited lists, limit 0 applies a default cap and
	// a negative limit disables it.
	ListPlayers(ctx context.Context, league model.League) ([]model.Player, error)
	ListTeams(ctx context.Context, league model.League) ([]model.Team, error)
	ListGames(ctx context.Context, filter GameFilter) ([]model.Game, error)
	ListInjuries(ctx context.Context, league model.League, limit int) ([]model.Injury, error)

	// Team records, derived from stored final games. RefreshTeamRecords
	// recomputes wins/losses/ties for a league+season; rankings supplied
	// via UpsertTeamRecords survive the refresh.
	RefreshTeamRecords(ctx context.Context, league model.League, season string) (int64, error)
	UpsertTeamRecords(ctx context.Context, records []model.TeamRecord) (int64, error)
	GetTeamRecord(ctx context.Context, league model.League, team, season string) (*model.TeamRecord, error)
	ListTeamRecords(ctx context.Context, league model.League, season string) ([]model.TeamRecord, error)

	// Upsets
	InsertUpsets(ctx context.Context, upsets []model.Upset) (int64, error)
	ListUpsets(ctx context.Context, filter UpsetFilter) ([]model.Upset, error)
	GetUpsetStats(ctx context.Context, league model.League) (*UpsetStats, error)

	// Quarantine
	Quarantine(ctx context.Context, records []model.QuarantineRecord) error
	ListQuarantine(ctx context.Context, league model.League, limit int) ([]model.QuarantineRecord, error)
	CountQuarantine(ctx context.Context) (int, error)

	// Response cache backing (implements cache.KV)
	CacheGet(ctx context.Context, key string) ([]byte, time.Time, bool, error)
	CacheSet(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	CacheDeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// Status
	EntityCounts(ctx context.Context, league model.League) (map[model.EntityKind]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
