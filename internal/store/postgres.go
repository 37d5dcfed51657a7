package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gridstats/sports-cli/internal/db"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations. The cache
// KV runs once per API request, so it dominates query volume.
var preparedStatements = map[string]string{
	"cache_get":            `SELECT value, expires_at FROM api_cache WHERE key = $1`,
	"cache_set":            `INSERT INTO api_cache (key, value, expires_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
	"cache_delete_expired": `DELETE FROM api_cache WHERE expires_at <= $1`,
	"get_team_record":      `SELECT league, team, season, wins, losses, ties, ranking, updated_at FROM team_records WHERE league = $1 AND team = $2 AND season = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS teams (
	league       TEXT NOT NULL,
	external_id  TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL,
	name_raw     TEXT NOT NULL DEFAULT '',
	abbreviation TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	venue        TEXT NOT NULL DEFAULT '',
	conference   TEXT NOT NULL DEFAULT '',
	division     TEXT NOT NULL DEFAULT '',
	fetched_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (league, external_id)
);

CREATE TABLE IF NOT EXISTS players (
	league        TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	full_name     TEXT NOT NULL,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	position      TEXT NOT NULL DEFAULT '',
	jersey_number TEXT NOT NULL DEFAULT '',
	team          TEXT NOT NULL DEFAULT '',
	team_raw      TEXT NOT NULL DEFAULT '',
	team_id       TEXT NOT NULL DEFAULT '',
	birth_date    DATE,
	height_cm     DOUBLE PRECISION,
	weight_kg     DOUBLE PRECISION,
	nationality   TEXT NOT NULL DEFAULT '',
	college       TEXT NOT NULL DEFAULT '',
	active        BOOLEAN NOT NULL DEFAULT true,
	fetched_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (league, external_id)
);

CREATE TABLE IF NOT EXISTS games (
	league         TEXT NOT NULL,
	external_id    TEXT NOT NULL,
	source         TEXT NOT NULL DEFAULT '',
	season         TEXT NOT NULL DEFAULT '',
	game_date      TIMESTAMPTZ NOT NULL,
	home_team      TEXT NOT NULL,
	away_team      TEXT NOT NULL,
	home_score     INTEGER,
	away_score     INTEGER,
	status         TEXT NOT NULL DEFAULT 'scheduled',
	venue          TEXT NOT NULL DEFAULT '',
	spread_line    DOUBLE PRECISION,
	moneyline_home INTEGER,
	moneyline_away INTEGER,
	fetched_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (league, external_id)
);

CREATE TABLE IF NOT EXISTS injuries (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	league      TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	player_id   TEXT NOT NULL,
	player_name TEXT NOT NULL,
	team        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	severity    TEXT NOT NULL DEFAULT 'unknown',
	body_part   TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	reported_at TIMESTAMPTZ,
	fetched_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS team_records (
	league     TEXT NOT NULL,
	team       TEXT NOT NULL,
	season     TEXT NOT NULL,
	wins       INTEGER NOT NULL DEFAULT 0,
	losses     INTEGER NOT NULL DEFAULT 0,
	ties       INTEGER NOT NULL DEFAULT 0,
	ranking    INTEGER,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (league, team, season)
);

CREATE TABLE IF NOT EXISTS upsets (
	id            BIGSERIAL PRIMARY KEY,
	league        TEXT NOT NULL,
	game_id       TEXT NOT NULL,
	season        TEXT NOT NULL DEFAULT '',
	game_date     TIMESTAMPTZ NOT NULL,
	home_team     TEXT NOT NULL,
	away_team     TEXT NOT NULL,
	home_score    INTEGER NOT NULL,
	away_score    INTEGER NOT NULL,
	winner        TEXT NOT NULL,
	loser         TEXT NOT NULL,
	signal        TEXT NOT NULL,
	magnitude     DOUBLE PRECISION NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	factors       JSONB,
	spread_line   DOUBLE PRECISION,
	favorite_odds DOUBLE PRECISION,
	detected_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (league, game_id)
);

CREATE TABLE IF NOT EXISTS quarantine (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	league     TEXT NOT NULL,
	source     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	field      TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_teams_league_name ON teams(league, name);
CREATE INDEX IF NOT EXISTS idx_players_league_team ON players(league, team);
CREATE INDEX IF NOT EXISTS idx_players_full_name ON players(full_name);
CREATE INDEX IF NOT EXISTS idx_games_league_date ON games(league, game_date);
CREATE INDEX IF NOT EXISTS idx_games_league_season ON games(league, season);
CREATE INDEX IF NOT EXISTS idx_injuries_league_player ON injuries(league, player_id);
CREATE INDEX IF NOT EXISTS idx_injuries_fetched ON injuries(fetched_at);
CREATE INDEX IF NOT EXISTS idx_upsets_league ON upsets(league);
CREATE INDEX IF NOT EXISTS idx_upsets_date ON upsets(game_date);
CREATE INDEX IF NOT EXISTS idx_upsets_winner ON upsets(winner);
CREATE INDEX IF NOT EXISTS idx_quarantine_league_kind ON quarantine(league, kind);
CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// classifyPG converts serialization failures and deadlocks into a
// ConflictError so the pipeline can retry the batch once. Everything else
// passes through unchanged.
func classifyPG(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return &resilience.ConflictError{Err: err}
		}
	}
	return err
}

var teamColumns = []string{
	"league", "external_id", "source", "name", "name_raw",
	"abbreviation", "city", "venue", "conference", "division", "fetched_at",
}

func (s *PostgresStore) UpsertTeams(ctx context.Context, teams []model.Team) (int64, error) {
	rows := make([][]any, len(teams))
	for i, t := range teams {
		rows[i] = []any{
			string(t.League), t.ExternalID, t.Source, t.Name, t.NameRaw,
			t.Abbreviation, t.City, t.Venue, t.Conference, t.Division, t.FetchedAt.UTC(),
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "teams",
		Columns:      teamColumns,
		ConflictKeys: []string{"league", "external_id"},
		UpdateExprs: map[string]string{
			"abbreviation": `COALESCE(NULLIF(EXCLUDED.abbreviation, ''), teams.abbreviation)`,
			"city":         `COALESCE(NULLIF(EXCLUDED.city, ''), teams.city)`,
			"venue":        `COALESCE(NULLIF(EXCLUDED.venue, ''), teams.venue)`,
			"conference":   `COALESCE(NULLIF(EXCLUDED.conference, ''), teams.conference)`,
			"division":     `COALESCE(NULLIF(EXCLUDED.division, ''), teams.division)`,
		},
	}, rows)
	return n, classifyPG(err)
}

var playerColumns = []string{
	"league", "external_id", "source", "full_name", "first_name", "last_name",
	"position", "jersey_number", "team", "team_raw", "team_id",
	"birth_date", "height_cm", "weight_kg", "nationality", "college", "active", "fetched_at",
}

func (s *PostgresStore) UpsertPlayers(ctx context.Context, players []model.Player) (int64, error) {
	rows := make([][]any, len(players))
	for i, p := range players {
		rows[i] = []any{
			string(p.League), p.ExternalID, p.Source, p.FullName, p.FirstName, p.LastName,
			p.Position, p.JerseyNumber, p.Team, p.TeamRaw, p.TeamID,
			p.BirthDate, p.HeightCM, p.WeightKG, p.Nationality, p.College, p.Active, p.FetchedAt.UTC(),
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "players",
		Columns:      playerColumns,
		ConflictKeys: []string{"league", "external_id"},
		UpdateExprs: map[string]string{
			"first_name":    `COALESCE(NULLIF(EXCLUDED.first_name, ''), players.first_name)`,
			"last_name":     `COALESCE(NULLIF(EXCLUDED.last_name, ''), players.last_name)`,
			"position":      `COALESCE(NULLIF(EXCLUDED.position, ''), players.position)`,
			"jersey_number": `COALESCE(NULLIF(EXCLUDED.jersey_number, ''), players.jersey_number)`,
			"team":          `COALESCE(NULLIF(EXCLUDED.team, ''), players.team)`,
			"team_raw":      `COALESCE(NULLIF(EXCLUDED.team_raw, ''), players.team_raw)`,
			"team_id":       `COALESCE(NULLIF(EXCLUDED.team_id, ''), players.team_id)`,
			"birth_date":    `COALESCE(EXCLUDED.birth_date, players.birth_date)`,
			"height_cm":     `COALESCE(EXCLUDED.height_cm, players.height_cm)`,
			"weight_kg":     `COALESCE(EXCLUDED.weight_kg, players.weight_kg)`,
			"nationality":   `COALESCE(NULLIF(EXCLUDED.nationality, ''), players.nationality)`,
			"college":       `COALESCE(NULLIF(EXCLUDED.college, ''), players.college)`,
		},
	}, rows)
	return n, classifyPG(err)
}

var gameColumns = []string{
	"league", "external_id", "source", "season", "game_date", "home_team", "away_team",
	"home_score", "away_score", "status", "venue",
	"spread_line", "moneyline_home", "moneyline_away", "fetched_at",
}

func (s *PostgresStore) UpsertGames(ctx context.Context, games []model.Game) (int64, error) {
	rows := make([][]any, len(games))
	for i, g := range games {
		rows[i] = []any{
			string(g.League), g.ExternalID, g.Source, g.Season, g.GameDate.UTC(),
			g.HomeTeam, g.AwayTeam, g.HomeScore, g.AwayScore, string(g.Status), g.Venue,
			g.SpreadLine, g.MoneylineHome, g.MoneylineAway, g.FetchedAt.UTC(),
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "games",
		Columns:      gameColumns,
		ConflictKeys: []string{"league", "external_id"},
		UpdateExprs: map[string]string{
			"venue":          `COALESCE(NULLIF(EXCLUDED.venue, ''), games.venue)`,
			"spread_line":    `COALESCE(EXCLUDED.spread_line, games.spread_line)`,
			"moneyline_home": `COALESCE(EXCLUDED.moneyline_home, games.moneyline_home)`,
			"moneyline_away": `COALESCE(EXCLUDED.moneyline_away, games.moneyline_away)`,
		},
		UpdateWhere: `games.status <> 'final'`,
	}, rows)
	return n, classifyPG(err)
}

var injuryColumns = []string{
	"id", "league", "source", "player_id", "player_name", "team",
	"status", "severity", "body_part", "notes", "reported_at", "fetched_at",
}

func (s *PostgresStore) InsertInjuries(ctx context.Context, injuries []model.Injury) (int64, error) {
	rows := make([][]any, len(injuries))
	for i, in := range injuries {
		id := in.ID
		if id == "" {
			id = uuid.New().String()
		}
		var reported any
		if !in.ReportedAt.IsZero() {
			reported = in.ReportedAt.UTC()
		}
		rows[i] = []any{
			id, string(in.League), in.Source, in.PlayerID, in.PlayerName, in.Team,
			in.Status, string(in.Severity), in.BodyPart, in.Notes, reported, in.FetchedAt.UTC(),
		}
	}
	n, err := db.CopyFrom(ctx, s.pool, "injuries", injuryColumns, rows)
	return n, classifyPG(err)
}

func (s *PostgresStore) ListPlayers(ctx context.Context, league model.League) ([]model.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT league, external_id, source, full_name, first_name, last_name, position, jersey_number,
		        team, team_raw, team_id, birth_date, height_cm, weight_kg, nationality, college, active, fetched_at
		   FROM players WHERE league = $1 ORDER BY full_name`,
		string(league),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list players")
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.League, &p.ExternalID, &p.Source, &p.FullName, &p.FirstName, &p.LastName,
			&p.Position, &p.JerseyNumber, &p.Team, &p.TeamRaw, &p.TeamID,
			&p.BirthDate, &p.HeightCM, &p.WeightKG, &p.Nationality, &p.College, &p.Active, &p.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan player")
		}
		players = append(players, p)
	}
	return players, eris.Wrap(rows.Err(), "postgres: list players iterate")
}

func (s *PostgresStore) ListTeams(ctx context.Context, league model.League) ([]model.Team, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT league, external_id, source, name, name_raw, abbreviation, city, venue, conference, division, fetched_at
		   FROM teams WHERE league = $1 ORDER BY name`,
		string(league),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list teams")
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.League, &t.ExternalID, &t.Source, &t.Name, &t.NameRaw,
			&t.Abbreviation, &t.City, &t.Venue, &t.Conference, &t.Division, &t.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan team")
		}
		teams = append(teams, t)
	}
	return teams, eris.Wrap(rows.Err(), "postgres: list teams iterate")
}

func (s *PostgresStore) ListGames(ctx context.Context, filter GameFilter) ([]model.Game, error) {
	query := `SELECT league, external_id, source, season, game_date, home_team, away_team,
	                 home_score, away_score, status, venue, spread_line, moneyline_home, moneyline_away, fetched_at
	            FROM games WHERE true`
	args := []any{}
	argIdx := 1

	if filter.League != "" {
		query += fmt.Sprintf(` AND league = $%d`, argIdx)
		args = append(args, string(filter.League))
		argIdx++
	}
	if filter.Season != "" {
		query += fmt.Sprintf(` AND season = $%d`, argIdx)
		args = append(args, filter.Season)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND game_date >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY game_date, external_id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list games")
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.League, &g.ExternalID, &g.Source, &g.Season, &g.GameDate,
			&g.HomeTeam, &g.AwayTeam, &g.HomeScore, &g.AwayScore, &g.Status, &g.Venue,
			&g.SpreadLine, &g.MoneylineHome, &g.MoneylineAway, &g.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan game")
		}
		games = append(games, g)
	}
	return games, eris.Wrap(rows.Err(), "postgres: list games iterate")
}

func (s *PostgresStore) ListInjuries(ctx context.Context, league model.League, limit int) ([]model.Injury, error) {
	query := `SELECT id, league, source, player_id, player_name, team, status, severity, body_part, notes, reported_at, fetched_at
	            FROM injuries WHERE league = $1 ORDER BY fetched_at DESC, id`
	args := []any{string(league)}
	if limit == 0 {
		limit = 100
	}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list injuries")
	}
	defer rows.Close()

	var injuries []model.Injury
	for rows.Next() {
		var in model.Injury
		var reported *time.Time
		if err := rows.Scan(&in.ID, &in.League, &in.Source, &in.PlayerID, &in.PlayerName, &in.Team,
			&in.Status, &in.Severity, &in.BodyPart, &in.Notes, &reported, &in.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan injury")
		}
		if reported != nil {
			in.ReportedAt = *reported
		}
		injuries = append(injuries, in)
	}
	return injuries, eris.Wrap(rows.Err(), "postgres: list injuries iterate")
}

const pgRefreshRecordsSQL = `
INSERT INTO team_records (league, team, season, wins, losses, ties, updated_at)
SELECT league, team, season, SUM(win), SUM(loss), SUM(tie), $1
FROM (
	SELECT league, season, home_team AS team,
	       CASE WHEN home_score > away_score THEN 1 ELSE 0 END AS win,
	       CASE WHEN home_score < away_score THEN 1 ELSE 0 END AS loss,
	       CASE WHEN home_score = away_score THEN 1 ELSE 0 END AS tie
	  FROM games
	 WHERE league = $2 AND season = $3 AND status = 'final'
	   AND home_score IS NOT NULL AND away_score IS NOT NULL
	UNION ALL
	SELECT league, season, away_team,
	       CASE WHEN away_score > home_score THEN 1 ELSE 0 END,
	       CASE WHEN away_score < home_score THEN 1 ELSE 0 END,
	       CASE WHEN home_score = away_score THEN 1 ELSE 0 END
	  FROM games
	 WHERE league = $2 AND season = $3 AND status = 'final'
	   AND home_score IS NOT NULL AND away_score IS NOT NULL
) AS sides
GROUP BY league, season, team
ON CONFLICT (league, team, season) DO UPDATE SET
	wins       = EXCLUDED.wins,
	losses     = EXCLUDED.losses,
	ties       = EXCLUDED.ties,
	updated_at = EXCLUDED.updated_at`

func (s *PostgresStore) RefreshTeamRecords(ctx context.Context, league model.League, season string) (int64, error) {
	tag, err := s.pool.Exec(ctx, pgRefreshRecordsSQL, time.Now().UTC(), string(league), season)
	if err != nil {
		return 0, eris.Wrap(classifyPG(err), "postgres: refresh team records")
	}
	return tag.RowsAffected(), nil
}

var recordColumns = []string{"league", "team", "season", "wins", "losses", "ties", "ranking", "updated_at"}

func (s *PostgresStore) UpsertTeamRecords(ctx context.Context, records []model.TeamRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			string(r.League), r.Team, r.Season, r.Wins, r.Losses, r.Ties, r.Ranking, r.UpdatedAt.UTC(),
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "team_records",
		Columns:      recordColumns,
		ConflictKeys: []string{"league", "team", "season"},
		UpdateExprs: map[string]string{
			"ranking": `COALESCE(EXCLUDED.ranking, team_records.ranking)`,
		},
	}, rows)
	return n, classifyPG(err)
}

func (s *PostgresStore) GetTeamRecord(ctx context.Context, league model.League, team, season string) (*model.TeamRecord, error) {
	var r model.TeamRecord
	err := s.pool.QueryRow(ctx,
		`SELECT league, team, season, wins, losses, ties, ranking, updated_at
		   FROM team_records WHERE league = $1 AND team = $2 AND season = $3`,
		string(league), team, season,
	).Scan(&r.League, &r.Team, &r.Season, &r.Wins, &r.Losses, &r.Ties, &r.Ranking, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get team record")
	}
	return &r, nil
}

func (s *PostgresStore) ListTeamRecords(ctx context.Context, league model.League, season string) ([]model.TeamRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT league, team, season, wins, losses, ties, ranking, updated_at
		   FROM team_records WHERE league = $1 AND season = $2
		  ORDER BY (wins + 0.5*ties) / GREATEST(wins + losses + ties, 1)::float DESC, team`,
		string(league), season,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list team records")
	}
	defer rows.Close()

	var records []model.TeamRecord
	for rows.Next() {
		var r model.TeamRecord
		if err := rows.Scan(&r.League, &r.Team, &r.Season, &r.Wins, &r.Losses, &r.Ties, &r.Ranking, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan team record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list team records iterate")
}

var upsetColumns = []string{
	"league", "game_id", "season", "game_date", "home_team", "away_team",
	"home_score", "away_score", "winner", "loser", "signal", "magnitude",
	"reason", "factors", "spread_line", "favorite_odds", "detected_at",
}

func (s *PostgresStore) InsertUpsets(ctx context.Context, upsets []model.Upset) (int64, error) {
	rows := make([][]any, len(upsets))
	for i, u := range upsets {
		factorsJSON, err := json.Marshal(u.Factors)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal factors")
		}
		rows[i] = []any{
			string(u.League), u.GameID, u.Season, u.GameDate.UTC(), u.HomeTeam, u.AwayTeam,
			u.HomeScore, u.AwayScore, u.Winner, u.Loser, string(u.Signal), u.Magnitude,
			u.Reason, factorsJSON, u.SpreadLine, u.FavoriteOdds, u.DetectedAt.UTC(),
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "upsets",
		Columns:      upsetColumns,
		ConflictKeys: []string{"league", "game_id"},
		DoNothing:    true,
	}, rows)
	return n, classifyPG(err)
}

func (s *PostgresStore) ListUpsets(ctx context.Context, filter UpsetFilter) ([]model.Upset, error) {
	query := `SELECT id, league, game_id, season, game_date, home_team, away_team, home_score, away_score,
	                 winner, loser, signal, magnitude, reason, factors, spread_line, favorite_odds, detected_at
	            FROM upsets WHERE true`
	args := []any{}
	argIdx := 1

	if filter.League != "" {
		query += fmt.Sprintf(` AND league = $%d`, argIdx)
		args = append(args, string(filter.League))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND game_date >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY game_date DESC, magnitude DESC`

	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list upsets")
	}
	defer rows.Close()

	var upsets []model.Upset
	for rows.Next() {
		u, err := scanPGUpset(rows)
		if err != nil {
			return nil, err
		}
		upsets = append(upsets, *u)
	}
	return upsets, eris.Wrap(rows.Err(), "postgres: list upsets iterate")
}

func (s *PostgresStore) GetUpsetStats(ctx context.Context, league model.League) (*UpsetStats, error) {
	where := ""
	args := []any{}
	if league != "" {
		where = ` WHERE league = $1`
		args = append(args, string(league))
	}

	stats := &UpsetStats{BySignal: make(map[model.UpsetSignal]int)}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(magnitude), 0), COALESCE(MAX(magnitude), 0) FROM upsets`+where, args...,
	).Scan(&stats.Total, &stats.AvgMagnitude, &stats.MaxMagnitude)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upset stats totals")
	}

	rows, err := s.pool.Query(ctx, `SELECT signal, COUNT(*) FROM upsets`+where+` GROUP BY signal`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upset stats by signal")
	}
	defer rows.Close()
	for rows.Next() {
		var sig string
		var n int
		if err := rows.Scan(&sig, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal count")
		}
		stats.BySignal[model.UpsetSignal(sig)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: upset stats iterate")
	}

	if stats.Total > 0 {
		row := s.pool.QueryRow(ctx,
			`SELECT id, league, game_id, season, game_date, home_team, away_team, home_score, away_score,
			        winner, loser, signal, magnitude, reason, factors, spread_line, favorite_odds, detected_at
			   FROM upsets`+where+` ORDER BY magnitude DESC LIMIT 1`, args...)
		biggest, err := scanPGUpset(row)
		if err != nil {
			return nil, err
		}
		stats.Biggest = biggest
	}
	return stats, nil
}

var quarantineColumns = []string{"id", "league", "source", "kind", "payload", "field", "reason", "created_at"}

func (s *PostgresStore) Quarantine(ctx context.Context, records []model.QuarantineRecord) error {
	rows := make([][]any, len(records))
	for i, q := range records {
		id := q.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows[i] = []any{
			id, string(q.League), q.Source, string(q.Kind), q.Payload, q.Field, q.Reason, q.CreatedAt.UTC(),
		}
	}
	_, err := db.CopyFrom(ctx, s.pool, "quarantine", quarantineColumns, rows)
	return classifyPG(err)
}

func (s *PostgresStore) ListQuarantine(ctx context.Context, league model.League, limit int) ([]model.QuarantineRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, league, source, kind, payload, field, reason, created_at FROM quarantine`
	args := []any{}
	if league != "" {
		query += ` WHERE league = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, string(league), limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quarantine")
	}
	defer rows.Close()

	var records []model.QuarantineRecord
	for rows.Next() {
		var q model.QuarantineRecord
		if err := rows.Scan(&q.ID, &q.League, &q.Source, &q.Kind, &q.Payload, &q.Field, &q.Reason, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quarantine")
		}
		records = append(records, q)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list quarantine iterate")
}

func (s *PostgresStore) CountQuarantine(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quarantine`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count quarantine")
}

func (s *PostgresStore) CacheGet(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var value []byte
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT value, expires_at FROM api_cache WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, eris.Wrap(err, "postgres: cache get")
	}
	return value, expiresAt, true, nil
}

func (s *PostgresStore) CacheSet(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_cache (key, value, expires_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt.UTC(),
	)
	return eris.Wrap(classifyPG(err), "postgres: cache set")
}

func (s *PostgresStore) CacheDeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_cache WHERE expires_at <= $1`, cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: cache delete expired")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) EntityCounts(ctx context.Context, league model.League) (map[model.EntityKind]int, error) {
	counts := make(map[model.EntityKind]int, 4)
	for _, kind := range model.EntityKinds() {
		// Kind names double as table names.
		query := `SELECT COUNT(*) FROM ` + string(kind)
		args := []any{}
		if league != "" {
			query += ` WHERE league = $1`
			args = append(args, string(league))
		}
		var n int
		if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", kind)
		}
		counts[kind] = n
	}
	return counts, nil
}

func scanPGUpset(row pgx.Row) (*model.Upset, error) {
	var u model.Upset
	var factorsJSON []byte

	err := row.Scan(&u.ID, &u.League, &u.GameID, &u.Season, &u.GameDate, &u.HomeTeam, &u.AwayTeam,
		&u.HomeScore, &u.AwayScore, &u.Winner, &u.Loser, &u.Signal, &u.Magnitude,
		&u.Reason, &factorsJSON, &u.SpreadLine, &u.FavoriteOdds, &u.DetectedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan upset")
	}
	if len(factorsJSON) > 0 && string(factorsJSON) != "null" {
		if err := json.Unmarshal(factorsJSON, &u.Factors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal factors")
		}
	}
	return &u, nil
}
