package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridstats/sports-cli/internal/export"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/store"
)

// ExportOptions selects what one export run writes. Zero values fall back
// to the configured leagues, every exportable kind, and the configured
// format and directory.
type ExportOptions struct {
	Leagues []model.League
	Kinds   []model.EntityKind
	Format  string
	Dir     string
	Season  string // narrows the games table only
}

// exportKinds is the default export surface: the four fetched kinds plus
// the derived upsets table.
func exportKinds() []model.EntityKind {
	return append(model.EntityKinds(), model.KindUpsets)
}

// RunExport reads the store and writes one file set per league. Formats
// that bundle tables (xlsx) produce a single workbook per league; the
// rest produce one file per non-empty table.
func (p *Pipeline) RunExport(ctx context.Context, opts ExportOptions) ([]model.ExportReport, error) {
	leagues, err := p.leagues(opts.Leagues)
	if err != nil {
		return nil, err
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = exportKinds()
	}
	format := opts.Format
	if format == "" {
		format = p.cfg.Export.Format
	}
	dir := opts.Dir
	if dir == "" {
		dir = p.cfg.Export.Dir
	}

	writer, err := export.NewWriter(format)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "pipeline.export"), zap.String("format", writer.Format()))

	var reports []model.ExportReport
	for _, league := range leagues {
		tables, kindByTable, terr := p.exportTables(ctx, league, kinds, opts.Season)
		if terr != nil {
			return reports, terr
		}
		results, werr := writer.Write(dir, string(league), tables)
		if werr != nil {
			return reports, eris.Wrapf(werr, "pipeline: export %s", league)
		}
		finished := time.Now().UTC()
		for _, result := range results {
			reports = append(reports, model.ExportReport{
				League:     league,
				Kind:       kindByTable[result.Table],
				Format:     writer.Format(),
				Path:       result.Path,
				Rows:       result.Rows,
				FinishedAt: finished,
			})
			log.Info("pipeline: table exported",
				zap.String("league", string(league)),
				zap.String("table", result.Table),
				zap.String("path", result.Path),
				zap.Int("rows", result.Rows),
			)
		}
	}
	return reports, nil
}

// exportTables builds the requested tables for one league from the store,
// tracking which entity kind each table name carries.
func (p *Pipeline) exportTables(ctx context.Context, league model.League, kinds []model.EntityKind, season string) ([]export.Table, map[string]model.EntityKind, error) {
	tables := make([]export.Table, 0, len(kinds))
	kindByTable := make(map[string]model.EntityKind, len(kinds))
	add := func(kind model.EntityKind, table export.Table) {
		tables = append(tables, table)
		kindByTable[table.Name] = kind
	}

	for _, kind := range kinds {
		switch kind {
		case model.KindTeams:
			teams, err := p.store.ListTeams(ctx, league)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "pipeline: read %s teams", league)
			}
			add(kind, export.TeamsTable(league, teams))
		case model.KindPlayers:
			players, err := p.store.ListPlayers(ctx, league)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "pipeline: read %s players", league)
			}
			add(kind, export.PlayersTable(league, players))
		case model.KindGames:
			games, err := p.store.ListGames(ctx, store.GameFilter{League: league, Season: season})
			if err != nil {
				return nil, nil, eris.Wrapf(err, "pipeline: read %s games", league)
			}
			add(kind, export.GamesTable(league, games))
		case model.KindInjuries:
			injuries, err := p.store.ListInjuries(ctx, league, -1)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "pipeline: read %s injuries", league)
			}
			add(kind, export.InjuriesTable(league, injuries))
		case model.KindUpsets:
			upsets, err := p.store.ListUpsets(ctx, store.UpsetFilter{League: league, Limit: -1})
			if err != nil {
				return nil, nil, eris.Wrapf(err, "pipeline: read %s upsets", league)
			}
			add(kind, export.UpsetsTable(league, upsets))
		default:
			return nil, nil, eris.Errorf("pipeline: kind %q is not exportable", kind)
		}
	}
	return tables, kindByTable, nil
}
