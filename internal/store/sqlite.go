package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	fetched_at   DATETIME NOT NULL,
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
	birth_date    DATETIME,
	height_cm     REAL,
	weight_kg     REAL,
	nationality   TEXT NOT NULL DEFAULT '',
	college       TEXT NOT NULL DEFAULT '',
	active        INTEGER NOT NULL DEFAULT 1,
	fetched_at    DATETIME NOT NULL,
	PRIMARY KEY (league, external_id)
);

CREATE TABLE IF NOT EXISTS games (
	league         TEXT NOT NULL,
	external_id    TEXT NOT NULL,
	source         TEXT NOT NULL DEFAULT '',
	season         TEXT NOT NULL DEFAULT '',
	game_date      DATETIME NOT NULL,
	home_team      TEXT NOT NULL,
	away_team      TEXT NOT NULL,
	home_score     INTEGER,
	away_score     INTEGER,
	status         TEXT NOT NULL DEFAULT 'scheduled',
	venue          TEXT NOT NULL DEFAULT '',
	spread_line    REAL,
	moneyline_home INTEGER,
	moneyline_away INTEGER,
	fetched_at     DATETIME NOT NULL,
	PRIMARY KEY (league, external_id)
);

CREATE TABLE IF NOT EXISTS injuries (
	id          TEXT PRIMARY KEY,
	league      TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	player_id   TEXT NOT NULL,
	player_name TEXT NOT NULL,
	team        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	severity    TEXT NOT NULL DEFAULT 'unknown',
	body_part   TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	reported_at DATETIME,
	fetched_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS team_records (
	league     TEXT NOT NULL,
	team       TEXT NOT NULL,
	season     TEXT NOT NULL,
	wins       INTEGER NOT NULL DEFAULT 0,
	losses     INTEGER NOT NULL DEFAULT 0,
	ties       INTEGER NOT NULL DEFAULT 0,
	ranking    INTEGER,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (league, team, season)
);

CREATE TABLE IF NOT EXISTS upsets (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	league        TEXT NOT NULL,
	game_id       TEXT NOT NULL,
	season        TEXT NOT NULL DEFAULT '',
	game_date     DATETIME NOT NULL,
	home_team     TEXT NOT NULL,
	away_team     TEXT NOT NULL,
	home_score    INTEGER NOT NULL,
	away_score    INTEGER NOT NULL,
	winner        TEXT NOT NULL,
	loser         TEXT NOT NULL,
	signal        TEXT NOT NULL,
	magnitude     REAL NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	factors       TEXT,
	spread_line   REAL,
	favorite_odds REAL,
	detected_at   DATETIME NOT NULL,
	UNIQUE (league, game_id)
);

CREATE TABLE IF NOT EXISTS quarantine (
	id         TEXT PRIMARY KEY,
	league     TEXT NOT NULL,
	source     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	field      TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS api_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at DATETIME NOT NULL
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// wrapSQLite classifies lock contention as a ConflictError so callers can
// retry the batch, and wraps everything else as-is.
func wrapSQLite(err error, msg string) error {
	if err == nil {
		return nil
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "database is locked") || strings.Contains(lower, "sqlite_busy") {
		return eris.Wrap(&resilience.ConflictError{Err: err}, msg)
	}
	return eris.Wrap(err, msg)
}

const sqliteUpsertTeam = `
INSERT INTO teams (league, external_id, source, name, name_raw, abbreviation, city, venue, conference, division, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (league, external_id) DO UPDATE SET
	source       = excluded.source,
	name         = excluded.name,
	name_raw     = excluded.name_raw,
	abbreviation = CASE WHEN excluded.abbreviation <> '' THEN excluded.abbreviation ELSE teams.abbreviation END,
	city         = CASE WHEN excluded.city <> '' THEN excluded.city ELSE teams.city END,
	venue        = CASE WHEN excluded.venue <> '' THEN excluded.venue ELSE teams.venue END,
	conference   = CASE WHEN excluded.conference <> '' THEN excluded.conference ELSE teams.conference END,
	division     = CASE WHEN excluded.division <> '' THEN excluded.division ELSE teams.division END,
	fetched_at   = excluded.fetched_at`

func (s *SQLiteStore) UpsertTeams(ctx context.Context, teams []model.Team) (int64, error) {
	if len(teams) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert teams: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertTeam)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert teams: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var written int64
	for _, t := range teams {
		res, err := stmt.ExecContext(ctx,
			string(t.League), t.ExternalID, t.Source, t.Name, t.NameRaw,
			t.Abbreviation, t.City, t.Venue, t.Conference, t.Division, t.FetchedAt.UTC(),
		)
		if err != nil {
			return 0, wrapSQLite(err, "sqlite: upsert team "+t.ExternalID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert team rows")
		}
		written += n
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert teams: commit")
	}
	return written, nil
}

const sqliteUpsertPlayer = `
INSERT INTO players (league, external_id, source, full_name, first_name, last_name, position, jersey_number,
	team, team_raw, team_id, birth_date, height_cm, weight_kg, nationality, college, active, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (league, external_id) DO UPDATE SET
	source        = excluded.source,
	full_name     = excluded.full_name,
	first_name    = CASE WHEN excluded.first_name <> '' THEN excluded.first_name ELSE players.first_name END,
	last_name     = CASE WHEN excluded.last_name <> '' THEN excluded.last_name ELSE players.last_name END,
	position      = CASE WHEN excluded.position <> '' THEN excluded.position ELSE players.position END,
	jersey_number = CASE WHEN excluded.jersey_number <> '' THEN excluded.jersey_number ELSE players.jersey_number END,
	team          = CASE WHEN excluded.team <> '' THEN excluded.team ELSE players.team END,
	team_raw      = CASE WHEN excluded.team_raw <> '' THEN excluded.team_raw ELSE players.team_raw END,
	team_id       = CASE WHEN excluded.team_id <> '' THEN excluded.team_id ELSE players.team_id END,
	birth_date    = COALESCE(excluded.birth_date, players.birth_date),
	height_cm     = COALESCE(excluded.height_cm, players.height_cm),
	weight_kg     = COALESCE(excluded.weight_kg, players.weight_kg),
	nationality   = CASE WHEN excluded.nationality <> '' THEN excluded.nationality ELSE players.nationality END,
	college       = CASE WHEN excluded.college <> '' THEN excluded.college ELSE players.college END,
	active        = excluded.active,
	fetched_at    = excluded.fetched_at`

func (s *SQLiteStore) UpsertPlayers(ctx context.Context, players []model.Player) (int64, error) {
	if len(players) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert players: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertPlayer)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert players: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var written int64
	for _, p := range players {
		var birth any
		if p.BirthDate != nil {
			birth = p.BirthDate.UTC()
		}
		res, err := stmt.ExecContext(ctx,
			string(p.League), p.ExternalID, p.Source, p.FullName, p.FirstName, p.LastName,
			p.Position, p.JerseyNumber, p.Team, p.TeamRaw, p.TeamID,
			birth, p.HeightCM, p.WeightKG, p.Nationality, p.College, p.Active, p.FetchedAt.UTC(),
		)
		if err != nil {
			return 0, wrapSQLite(err, "sqlite: upsert player "+p.ExternalID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert player rows")
		}
		written += n
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert players: commit")
	}
	return written, nil
}

const sqliteUpsertGame = `
INSERT INTO games (league, external_id, source, season, game_date, home_team, away_team,
	home_score, away_score, status, venue, spread_line, moneyline_home, moneyline_away, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (league, external_id) DO UPDATE SET
	source         = excluded.source,
	season         = excluded.season,
	game_date      = excluded.game_date,
	home_team      = excluded.home_team,
	away_team      = excluded.away_team,
	home_score     = excluded.home_score,
	away_score     = excluded.away_score,
	status         = excluded.status,
	venue          = CASE WHEN excluded.venue <> '' THEN excluded.venue ELSE games.venue END,
	spread_line    = COALESCE(excluded.spread_line, games.spread_line),
	moneyline_home = COALESCE(excluded.moneyline_home, games.moneyline_home),
	moneyline_away = COALESCE(excluded.moneyline_away, games.moneyline_away),
	fetched_at     = excluded.fetched_at
WHERE games.status <> 'final'`

func (s *SQLiteStore) UpsertGames(ctx context.Context, games []model.Game) (int64, error) {
	if len(games) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert games: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertGame)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert games: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var written int64
	for _, g := range games {
		res, err := stmt.ExecContext(ctx,
			string(g.League), g.ExternalID, g.Source, g.Season, g.GameDate.UTC(),
			g.HomeTeam, g.AwayTeam, g.HomeScore, g.AwayScore, string(g.Status),
			g.Venue, g.SpreadLine, g.MoneylineHome, g.MoneylineAway, g.FetchedAt.UTC(),
		)
		if err != nil {
			return 0, wrapSQLite(err, "sqlite: upsert game "+g.ExternalID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert game rows")
		}
		written += n
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert games: commit")
	}
	return written, nil
}

func (s *SQLiteStore) InsertInjuries(ctx context.Context, injuries []model.Injury) (int64, error) {
	if len(injuries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: insert injuries: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO injuries (id, league, source, player_id, player_name, team, status, severity, body_part, notes, reported_at, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: insert injuries: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for _, in := range injuries {
		id := in.ID
		if id == "" {
			id = uuid.New().String()
		}
		var reported any
		if !in.ReportedAt.IsZero() {
			reported = in.ReportedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			id, string(in.League), in.Source, in.PlayerID, in.PlayerName, in.Team,
			in.Status, string(in.Severity), in.BodyPart, in.Notes, reported, in.FetchedAt.UTC(),
		); err != nil {
			return 0, wrapSQLite(err, "sqlite: insert injury for "+in.PlayerID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapSQLite(err, "sqlite: insert injuries: commit")
	}
	return int64(len(injuries)), nil
}

func (s *SQLiteStore) ListPlayers(ctx context.Context, league model.League) ([]model.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT league, external_id, source, full_name, first_name, last_name, position, jersey_number,
		        team, team_raw, team_id, birth_date, height_cm, weight_kg, nationality, college, active, fetched_at
		   FROM players WHERE league = ? ORDER BY full_name`,
		string(league),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list players")
	}
	defer rows.Close() //nolint:errcheck

	var players []model.Player
	for rows.Next() {
		p, err := scanSQLitePlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, eris.Wrap(rows.Err(), "sqlite: list players iterate")
}

func (s *SQLiteStore) ListTeams(ctx context.Context, league model.League) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT league, external_id, source, name, name_raw, abbreviation, city, venue, conference, division, fetched_at
		   FROM teams WHERE league = ? ORDER BY name`,
		string(league),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list teams")
	}
	defer rows.Close() //nolint:errcheck

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.League, &t.ExternalID, &t.Source, &t.Name, &t.NameRaw,
			&t.Abbreviation, &t.City, &t.Venue, &t.Conference, &t.Division, &t.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan team")
		}
		teams = append(teams, t)
	}
	return teams, eris.Wrap(rows.Err(), "sqlite: list teams iterate")
}

func (s *SQLiteStore) ListGames(ctx context.Context, filter GameFilter) ([]model.Game, error) {
	query := `SELECT league, external_id, source, season, game_date, home_team, away_team,
	                 home_score, away_score, status, venue, spread_line, moneyline_home, moneyline_away, fetched_at
	            FROM games WHERE 1=1`
	var args []any

	if filter.League != "" {
		query += ` AND league = ?`
		args = append(args, string(filter.League))
	}
	if filter.Season != "" {
		query += ` AND season = ?`
		args = append(args, filter.Season)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND game_date >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY game_date, external_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list games")
	}
	defer rows.Close() //nolint:errcheck

	var games []model.Game
	for rows.Next() {
		g, err := scanSQLiteGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, eris.Wrap(rows.Err(), "sqlite: list games iterate")
}

func (s *SQLiteStore) ListInjuries(ctx context.Context, league model.League, limit int) ([]model.Injury, error) {
	query := `SELECT id, league, source, player_id, player_name, team, status, severity, body_part, notes, reported_at, fetched_at
	            FROM injuries WHERE league = ? ORDER BY fetched_at DESC, id`
	args := []any{string(league)}
	if limit == 0 {
		limit = 100
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list injuries")
	}
	defer rows.Close() //nolint:errcheck

	var injuries []model.Injury
	for rows.Next() {
		var in model.Injury
		var reported sql.NullTime
		if err := rows.Scan(&in.ID, &in.League, &in.Source, &in.PlayerID, &in.PlayerName, &in.Team,
			&in.Status, &in.Severity, &in.BodyPart, &in.Notes, &reported, &in.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan injury")
		}
		if reported.Valid {
			in.ReportedAt = reported.Time
		}
		injuries = append(injuries, in)
	}
	return injuries, eris.Wrap(rows.Err(), "sqlite: list injuries iterate")
}

const refreshRecordsSQL = `
INSERT INTO team_records (league, team, season, wins, losses, ties, updated_at)
SELECT league, team, season, SUM(win), SUM(loss), SUM(tie), ?
FROM (
	SELECT league, season, home_team AS team,
	       CASE WHEN home_score > away_score THEN 1 ELSE 0 END AS win,
	       CASE WHEN home_score < away_score THEN 1 ELSE 0 END AS loss,
	       CASE WHEN home_score = away_score THEN 1 ELSE 0 END AS tie
	  FROM games
	 WHERE league = ? AND season = ? AND status = 'final'
	   AND home_score IS NOT NULL AND away_score IS NOT NULL
	UNION ALL
	SELECT league, season, away_team,
	       CASE WHEN away_score > home_score THEN 1 ELSE 0 END,
	       CASE WHEN away_score < home_score THEN 1 ELSE 0 END,
	       CASE WHEN home_score = away_score THEN 1 ELSE 0 END
	  FROM games
	 WHERE league = ? AND season = ? AND status = 'final'
	   AND home_score IS NOT NULL AND away_score IS NOT NULL
) AS sides
GROUP BY league, season, team
ON CONFLICT (league, team, season) DO UPDATE SET
	wins       = excluded.wins,
	losses     = excluded.losses,
	ties       = excluded.ties,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) RefreshTeamRecords(ctx context.Context, league model.League, season string) (int64, error) {
	res, err := s.db.ExecContext(ctx, refreshRecordsSQL,
		time.Now().UTC(), string(league), season, string(league), season)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: refresh team records")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: refresh team records rows")
}

const sqliteUpsertRecord = `
INSERT INTO team_records (league, team, season, wins, losses, ties, ranking, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (league, team, season) DO UPDATE SET
	wins       = excluded.wins,
	losses     = excluded.losses,
	ties       = excluded.ties,
	ranking    = COALESCE(excluded.ranking, team_records.ranking),
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertTeamRecords(ctx context.Context, records []model.TeamRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert records: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertRecord)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert records: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var written int64
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			string(r.League), r.Team, r.Season, r.Wins, r.Losses, r.Ties, r.Ranking, r.UpdatedAt.UTC(),
		)
		if err != nil {
			return 0, wrapSQLite(err, "sqlite: upsert record "+r.Team)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert record rows")
		}
		written += n
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapSQLite(err, "sqlite: upsert records: commit")
	}
	return written, nil
}

func (s *SQLiteStore) GetTeamRecord(ctx context.Context, league model.League, team, season string) (*model.TeamRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT league, team, season, wins, losses, ties, ranking, updated_at
		   FROM team_records WHERE league = ? AND team = ? AND season = ?`,
		string(league), team, season,
	)
	r, err := scanSQLiteRecord(row)
	if err == errNoRecord {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) ListTeamRecords(ctx context.Context, league model.League, season string) ([]model.TeamRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT league, team, season, wins, losses, ties, ranking, updated_at
		   FROM team_records WHERE league = ? AND season = ?
		  ORDER BY (wins + 0.5*ties) * 1.0 / MAX(wins + losses + ties, 1) DESC, team`,
		string(league), season,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list team records")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.TeamRecord
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list team records iterate")
}

func (s *SQLiteStore) InsertUpsets(ctx context.Context, upsets []model.Upset) (int64, error) {
	if len(upsets) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: insert upsets: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO upsets (league, game_id, season, game_date, home_team, away_team, home_score, away_score,
		                     winner, loser, signal, magnitude, reason, factors, spread_line, favorite_odds, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (league, game_id) DO NOTHING`)
	if err != nil {
		return 0, wrapSQLite(err, "sqlite: insert upsets: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for _, u := range upsets {
		factorsJSON, err := json.Marshal(u.Factors)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal factors")
		}
		res, err := stmt.ExecContext(ctx,
			string(u.League), u.GameID, u.Season, u.GameDate.UTC(), u.HomeTeam, u.AwayTeam,
			u.HomeScore, u.AwayScore, u.Winner, u.Loser, string(u.Signal), u.Magnitude,
			u.Reason, string(factorsJSON), u.SpreadLine, u.FavoriteOdds, u.DetectedAt.UTC(),
		)
		if err != nil {
			return 0, wrapSQLite(err, "sqlite: insert upset for game "+u.GameID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert upset rows")
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapSQLite(err, "sqlite: insert upsets: commit")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListUpsets(ctx context.Context, filter UpsetFilter) ([]model.Upset, error) {
	query := `SELECT id, league, game_id, season, game_date, home_team, away_team, home_score, away_score,
	                 winner, loser, signal, magnitude, reason, factors, spread_line, favorite_odds, detected_at
	            FROM upsets WHERE 1=1`
	var args []any

	if filter.League != "" {
		query += ` AND league = ?`
		args = append(args, string(filter.League))
	}
	if !filter.Since.IsZero() {
		query += ` AND game_date >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY game_date DESC, magnitude DESC`

	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list upsets")
	}
	defer rows.Close() //nolint:errcheck

	var upsets []model.Upset
	for rows.Next() {
		u, err := scanSQLiteUpset(rows)
		if err != nil {
			return nil, err
		}
		upsets = append(upsets, *u)
	}
	return upsets, eris.Wrap(rows.Err(), "sqlite: list upsets iterate")
}

func (s *SQLiteStore) GetUpsetStats(ctx context.Context, league model.League) (*UpsetStats, error) {
	where := ""
	var args []any
	if league != "" {
		where = ` WHERE league = ?`
		args = append(args, string(league))
	}

	stats := &UpsetStats{BySignal: make(map[model.UpsetSignal]int)}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(magnitude), 0), COALESCE(MAX(magnitude), 0) FROM upsets`+where, args...,
	).Scan(&stats.Total, &stats.AvgMagnitude, &stats.MaxMagnitude)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upset stats totals")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT signal, COUNT(*) FROM upsets`+where+` GROUP BY signal`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upset stats by signal")
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var sig string
		var n int
		if err := rows.Scan(&sig, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal count")
		}
		stats.BySignal[model.UpsetSignal(sig)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: upset stats iterate")
	}

	if stats.Total > 0 {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, league, game_id, season, game_date, home_team, away_team, home_score, away_score,
			        winner, loser, signal, magnitude, reason, factors, spread_line, favorite_odds, detected_at
			   FROM upsets`+where+` ORDER BY magnitude DESC LIMIT 1`, args...)
		biggest, err := scanSQLiteUpset(row)
		if err != nil {
			return nil, err
		}
		stats.Biggest = biggest
	}
	return stats, nil
}

func (s *SQLiteStore) Quarantine(ctx context.Context, records []model.QuarantineRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapSQLite(err, "sqlite: quarantine: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quarantine (id, league, source, kind, payload, field, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return wrapSQLite(err, "sqlite: quarantine: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for _, q := range records {
		id := q.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			id, string(q.League), q.Source, string(q.Kind), string(q.Payload), q.Field, q.Reason, q.CreatedAt.UTC(),
		); err != nil {
			return wrapSQLite(err, "sqlite: quarantine insert")
		}
	}
	return wrapSQLite(tx.Commit(), "sqlite: quarantine: commit")
}

func (s *SQLiteStore) ListQuarantine(ctx context.Context, league model.League, limit int) ([]model.QuarantineRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, league, source, kind, payload, field, reason, created_at FROM quarantine`
	var args []any
	if league != "" {
		query += ` WHERE league = ?`
		args = append(args, string(league))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quarantine")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.QuarantineRecord
	for rows.Next() {
		var q model.QuarantineRecord
		var payload string
		if err := rows.Scan(&q.ID, &q.League, &q.Source, &q.Kind, &payload, &q.Field, &q.Reason, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quarantine")
		}
		q.Payload = []byte(payload)
		records = append(records, q)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list quarantine iterate")
}

func (s *SQLiteStore) CountQuarantine(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quarantine`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count quarantine")
}

func (s *SQLiteStore) CacheGet(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var value []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM api_cache WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, eris.Wrap(err, "sqlite: cache get")
	}
	return value, expiresAt, true, nil
}

func (s *SQLiteStore) CacheSet(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_cache (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt.UTC(),
	)
	return wrapSQLite(err, "sqlite: cache set")
}

func (s *SQLiteStore) CacheDeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= ?`, cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: cache delete expired")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: cache delete expired rows")
}

func (s *SQLiteStore) EntityCounts(ctx context.Context, league model.League) (map[model.EntityKind]int, error) {
	counts := make(map[model.EntityKind]int, 4)
	for _, kind := range model.EntityKinds() {
		// Kind names double as table names.
		query := `SELECT COUNT(*) FROM ` + string(kind)
		var args []any
		if league != "" {
			query += ` WHERE league = ?`
			args = append(args, string(league))
		}
		var n int
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", kind)
		}
		counts[kind] = n
	}
	return counts, nil
}

// scan helpers

type scannable interface {
	Scan(dest ...any) error
}

var errNoRecord = eris.New("record not found")

func scanSQLitePlayer(row scannable) (*model.Player, error) {
	var p model.Player
	var birth sql.NullTime
	var height, weight sql.NullFloat64

	err := row.Scan(&p.League, &p.ExternalID, &p.Source, &p.FullName, &p.FirstName, &p.LastName,
		&p.Position, &p.JerseyNumber, &p.Team, &p.TeamRaw, &p.TeamID,
		&birth, &height, &weight, &p.Nationality, &p.College, &p.Active, &p.FetchedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan player")
	}
	if birth.Valid {
		t := birth.Time
		p.BirthDate = &t
	}
	if height.Valid {
		v := height.Float64
		p.HeightCM = &v
	}
	if weight.Valid {
		v := weight.Float64
		p.WeightKG = &v
	}
	return &p, nil
}

func scanSQLiteGame(row scannable) (*model.Game, error) {
	var g model.Game
	var homeScore, awayScore, mlHome, mlAway sql.NullInt64
	var spread sql.NullFloat64

	err := row.Scan(&g.League, &g.ExternalID, &g.Source, &g.Season, &g.GameDate,
		&g.HomeTeam, &g.AwayTeam, &homeScore, &awayScore, &g.Status, &g.Venue,
		&spread, &mlHome, &mlAway, &g.FetchedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan game")
	}
	if homeScore.Valid {
		v := int(homeScore.Int64)
		g.HomeScore = &v
	}
	if awayScore.Valid {
		v := int(awayScore.Int64)
		g.AwayScore = &v
	}
	if spread.Valid {
		v := spread.Float64
		g.SpreadLine = &v
	}
	if mlHome.Valid {
		v := int(mlHome.Int64)
		g.MoneylineHome = &v
	}
	if mlAway.Valid {
		v := int(mlAway.Int64)
		g.MoneylineAway = &v
	}
	return &g, nil
}

func scanSQLiteRecord(row scannable) (*model.TeamRecord, error) {
	var r model.TeamRecord
	var ranking sql.NullInt64

	err := row.Scan(&r.League, &r.Team, &r.Season, &r.Wins, &r.Losses, &r.Ties, &ranking, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNoRecord
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan team record")
	}
	if ranking.Valid {
		v := int(ranking.Int64)
		r.Ranking = &v
	}
	return &r, nil
}

func scanSQLiteUpset(row scannable) (*model.Upset, error) {
	var u model.Upset
	var factorsJSON sql.NullString
	var spread, odds sql.NullFloat64

	err := row.Scan(&u.ID, &u.League, &u.GameID, &u.Season, &u.GameDate, &u.HomeTeam, &u.AwayTeam,
		&u.HomeScore, &u.AwayScore, &u.Winner, &u.Loser, &u.Signal, &u.Magnitude,
		&u.Reason, &factorsJSON, &spread, &odds, &u.DetectedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan upset")
	}
	if factorsJSON.Valid && factorsJSON.String != "" && factorsJSON.String != "null" {
		if err := json.Unmarshal([]byte(factorsJSON.String), &u.Factors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal factors")
		}
	}
	if spread.Valid {
		v := spread.Float64
		u.SpreadLine = &v
	}
	if odds.Valid {
		v := odds.Float64
		u.FavoriteOdds = &v
	}
	return &u, nil
}
