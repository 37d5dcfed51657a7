package provider

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/normalize"
)

// HistCSV serves games and teams from a local nflverse-style CSV checkout,
// one directory per league (<dir>/<league>/games.csv, teams.csv). Files
// are streamed so full-history game files never load whole. The games
// file carries closing market columns (spread_line, home_moneyline,
// away_moneyline) that feed upset detection.
type HistCSV struct {
	dir     string
	leagues []model.League
	std     *normalize.Standardizer
}

// NewHistCSV builds the provider over a checkout directory. With no
// leagues given it serves the NFL, the league the checkout format comes
// from.
func NewHistCSV(dir string, leagues []model.League, std *normalize.Standardizer) *HistCSV {
	if len(leagues) == 0 {
		leagues = []model.League{model.LeagueNFL}
	}
	return &HistCSV{dir: dir, leagues: leagues, std: std}
}

func (p *HistCSV) Name() string { return SourceHistCSV }

func (p *HistCSV) Leagues() []model.League { return p.leagues }

func (p *HistCSV) FetchGames(ctx context.Context, league model.League, season string) ([]model.Game, error) {
	if !leagueSupported(p, league) {
		return nil, notSupported(SourceHistCSV, model.KindGames, league)
	}

	now := time.Now().UTC()
	var games []model.Game
	err := p.streamFile(ctx, league, "games.csv",
		[]string{"game_id", "gameday", "home_team", "away_team"},
		func(cols map[string]int, row []string) {
			if g, ok := p.gameRow(league, season, cols, row, now); ok {
				games = append(games, g)
			}
		})
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (p *HistCSV) gameRow(league model.League, season string, cols map[string]int, row []string, now time.Time) (model.Game, bool) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rowSeason := get("season")
	if season != "" && rowSeason != "" && rowSeason != season {
		return model.Game{}, false
	}
	id := get("game_id")
	date, ok := parseDate(get("gameday"))
	if id == "" || !ok {
		return model.Game{}, false
	}
	if rowSeason == "" {
		rowSeason = season
	}
	home, _ := p.std.Standardize(league, get("home_team"))
	away, _ := p.std.Standardize(league, get("away_team"))

	g := model.Game{
		League:     league,
		ExternalID: id,
		Source:     SourceHistCSV,
		Season:     rowSeason,
		GameDate:   date,
		HomeTeam:   home,
		AwayTeam:   away,
		HomeScore:  parseScore(get("home_score")),
		AwayScore:  parseScore(get("away_score")),
		Status:     model.GameScheduled,
		Venue:      get("stadium"),
		FetchedAt:  now,
	}
	if g.HomeScore != nil && g.AwayScore != nil {
		g.Status = model.GameFinal
	}
	if v, err := strconv.ParseFloat(get("spread_line"), 64); err == nil {
		// The checkout writes positive = home favored; the model carries
		// the betting convention, negative = home favored.
		spread := -v
		g.SpreadLine = &spread
	}
	if v, err := strconv.Atoi(get("home_moneyline")); err == nil {
		g.MoneylineHome = &v
	}
	if v, err := strconv.Atoi(get("away_moneyline")); err == nil {
		g.MoneylineAway = &v
	}
	return g, true
}

func (p *HistCSV) FetchTeams(ctx context.Context, league model.League) ([]model.Team, error) {
	if !leagueSupported(p, league) {
		return nil, notSupported(SourceHistCSV, model.KindTeams, league)
	}

	now := time.Now().UTC()
	var teams []model.Team
	err := p.streamFile(ctx, league, "teams.csv",
		[]string{"team_abbr", "team_name"},
		func(cols map[string]int, row []string) {
			get := func(name string) string {
				i, ok := cols[name]
				if !ok || i >= len(row) {
					return ""
				}
				return row[i]
			}
			abbr := get("team_abbr")
			rawName := get("team_name")
			if abbr == "" || rawName == "" {
				return
			}
			name, _ := p.std.Standardize(league, rawName)
			teams = append(teams, model.Team{
				League:       league,
				ExternalID:   abbr,
				Source:       SourceHistCSV,
				Name:         name,
				NameRaw:      rawName,
				Abbreviation: abbr,
				Conference:   get("team_conf"),
				Division:     get("team_division"),
				FetchedAt:    now,
			})
		})
	if err != nil {
		return nil, err
	}
	return teams, nil
}

// streamFile opens a league file and feeds each data row, with resolved
// column indexes, to fn. Required columns are checked once the first data
// row arrives; a header-only file yields nothing.
func (p *HistCSV) streamFile(ctx context.Context, league model.League, file string, required []string, fn func(cols map[string]int, row []string)) error {
	path := filepath.Join(p.dir, string(league), file)
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "histcsv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	// Cancel on early return so the stream goroutine never blocks on a
	// full channel.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rows, errc := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		TrimSpace:  true,
		LazyQuotes: true,
	})

	var cols map[string]int
	for row := range rows {
		if cols == nil {
			// The header is buffered before the first row is sent.
			cols = indexColumns(<-headerCh)
			for _, name := range required {
				if _, ok := cols[name]; !ok {
					return eris.Errorf("histcsv: %s is missing column %q", path, name)
				}
			}
		}
		fn(cols, row)
	}
	if err := <-errc; err != nil {
		return eris.Wrapf(err, "histcsv: %s", path)
	}
	return nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func (p *HistCSV) FetchPlayers(ctx context.Context, league model.League, season string) ([]model.Player, error) {
	return nil, notSupported(SourceHistCSV, model.KindPlayers, league)
}

func (p *HistCSV) FetchInjuries(ctx context.Context, league model.League, team string) ([]model.Injury, error) {
	return nil, notSupported(SourceHistCSV, model.KindInjuries, league)
}
