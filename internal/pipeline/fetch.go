package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/normalize"
	"github.com/gridstats/sports-cli/internal/provider"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// FetchOptions selects what one fetch run covers. Zero values mean the
// configured leagues, every entity kind, the default source ordering, and
// the current season.
type FetchOptions struct {
	Leagues []model.League
	Source  string // empty, a role name (primary/live/legacy), or a provider
	Kinds   []model.EntityKind
	Season  string
}

// RunFetch pulls the requested entity kinds for each league through its
// resolved provider and persists what validates. Units fan out per
// (league, kind) under the configured concurrency bound. Unit failures
// land in the report; the error return is reserved for a run that could
// not start at all.
func (p *Pipeline) RunFetch(ctx context.Context, opts FetchOptions) (*model.FetchReport, error) {
	leagues, err := p.leagues(opts.Leagues)
	if err != nil {
		return nil, err
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = model.EntityKinds()
	}

	report := &model.FetchReport{
		RunID:     uuid.NewString(),
		Source:    opts.Source,
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", report.RunID))
	log.Info("pipeline: starting fetch",
		zap.Int("leagues", len(leagues)),
		zap.Int("kinds", len(kinds)),
		zap.String("source", opts.Source),
		zap.String("season", opts.Season),
	)

	var mu sync.Mutex // guards report.Results
	record := func(res model.KindResult) {
		mu.Lock()
		report.Results = append(report.Results, res)
		mu.Unlock()
	}

	// Providers that rejected credentials this run; their queued units
	// skip instead of burning requests on guaranteed failures.
	var dead sync.Map

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Fetch.MaxConcurrentRequests)

	for _, league := range leagues {
		prov, rerr := p.registry.Resolve(league, opts.Source)
		if rerr != nil {
			for _, kind := range kinds {
				record(model.KindResult{League: league, Kind: kind, Error: rerr.Error()})
			}
			log.Warn("pipeline: no provider for league",
				zap.String("league", string(league)), zap.Error(rerr))
			continue
		}
		for _, kind := range kinds {
			g.Go(func() error {
				record(p.fetchUnit(gCtx, prov, league, kind, opts.Season, &dead))
				return nil
			})
		}
	}
	_ = g.Wait() // unit outcomes live in the report

	sortResults(report.Results)
	report.FinishedAt = time.Now().UTC()
	p.sweepCache(ctx)

	fetched, validated, quarantined, persisted, failed := report.Totals()
	log.Info("pipeline: fetch complete",
		zap.Int("fetched", fetched),
		zap.Int("validated", validated),
		zap.Int("quarantined", quarantined),
		zap.Int("persisted", persisted),
		zap.Int("failed", failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// fetchUnit runs one (provider, league, kind) unit end to end: fetch,
// validate, quarantine, persist.
func (p *Pipeline) fetchUnit(ctx context.Context, prov provider.Provider, league model.League, kind model.EntityKind, season string, dead *sync.Map) model.KindResult {
	res := model.KindResult{League: league, Kind: kind, Provider: prov.Name()}
	start := time.Now()
	defer func() { res.Duration = time.Since(start).Milliseconds() }()

	log := zap.L().With(
		zap.String("provider", prov.Name()),
		zap.String("league", string(league)),
		zap.String("kind", string(kind)),
	)

	if _, aborted := dead.Load(prov.Name()); aborted {
		res.Skipped = true
		res.SkipReason = "authentication failed earlier in this run"
		return res
	}

	var fetchErr error
	switch kind {
	case model.KindTeams:
		var teams []model.Team
		if teams, fetchErr = prov.FetchTeams(ctx, league); fetchErr == nil {
			res.Fetched = len(teams)
			persistBatch(ctx, p, teams, &res, normalize.ValidateTeam,
				func(t model.Team) string { return t.ExternalID },
				p.store.UpsertTeams, log)
		}
	case model.KindPlayers:
		var players []model.Player
		if players, fetchErr = prov.FetchPlayers(ctx, league, season); fetchErr == nil {
			res.Fetched = len(players)
			persistBatch(ctx, p, players, &res, normalize.ValidatePlayer,
				func(pl model.Player) string { return pl.ExternalID },
				p.store.UpsertPlayers, log)
		}
	case model.KindGames:
		var games []model.Game
		if games, fetchErr = prov.FetchGames(ctx, league, season); fetchErr == nil {
			res.Fetched = len(games)
			persistBatch(ctx, p, games, &res, normalize.ValidateGame,
				func(g model.Game) string { return g.ExternalID },
				p.store.UpsertGames, log)
			if res.Persisted > 0 {
				p.refreshRecords(ctx, league, games, log)
			}
		}
	case model.KindInjuries:
		var injuries []model.Injury
		if injuries, fetchErr = prov.FetchInjuries(ctx, league, ""); fetchErr == nil {
			res.Fetched = len(injuries)
			// Injuries are an append-only log with no upsert key.
			persistBatch(ctx, p, injuries, &res, normalize.ValidateInjury,
				func(model.Injury) string { return "" },
				p.store.InsertInjuries, log)
		}
	default:
		res.Error = fmt.Sprintf("unknown entity kind %q", kind)
		return res
	}

	if fetchErr != nil {
		classifyFetchError(&res, prov.Name(), fetchErr, dead, log)
	}
	return res
}

// classifyFetchError routes a provider failure into the unit result: a
// missing capability is a skip, a credential rejection kills the provider
// for the rest of the run, anything else is a recorded error.
func classifyFetchError(res *model.KindResult, source string, err error, dead *sync.Map, log *zap.Logger) {
	switch {
	case resilience.IsNotSupported(err):
		res.Skipped = true
		res.SkipReason = err.Error()
		log.Debug("pipeline: capability not supported", zap.Error(err))
	case resilience.IsAuth(err):
		dead.Store(source, true)
		res.Error = err.Error()
		log.Error("pipeline: authentication failed, aborting provider for this run", zap.Error(err))
	default:
		res.Error = err.Error()
		log.Error("pipeline: fetch failed", zap.Error(err))
	}
}

// persistBatch validates, dedupes, and writes one unit's records in
// batch-size chunks. Invalid records are quarantined without blocking the
// rest; a conflicted chunk is retried once before counting as failed.
func persistBatch[T any](
	ctx context.Context,
	p *Pipeline,
	records []T,
	res *model.KindResult,
	validate func(T) error,
	key func(T) string,
	write func(context.Context, []T) (int64, error),
	log *zap.Logger,
) {
	valid := make([]T, 0, len(records))
	var quarantined []model.QuarantineRecord
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if err := validate(rec); err != nil {
			quarantined = append(quarantined, quarantineRecord(res.League, res.Provider, res.Kind, rec, err))
			continue
		}
		if k := key(rec); k != "" {
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		valid = append(valid, rec)
	}
	res.Validated = len(valid)
	res.Quarantined = len(quarantined)

	if len(quarantined) > 0 {
		if err := p.store.Quarantine(ctx, quarantined); err != nil {
			log.Error("pipeline: quarantine write failed", zap.Error(err))
			if res.Error == "" {
				res.Error = err.Error()
			}
		} else {
			log.Warn("pipeline: records quarantined", zap.Int("records", len(quarantined)))
		}
	}

	batchSize := p.cfg.Fetch.BatchSize
	if batchSize <= 0 {
		batchSize = len(valid)
	}
	for start := 0; start < len(valid); start += batchSize {
		chunk := valid[start:min(start+batchSize, len(valid))]
		n, err := write(ctx, chunk)
		if err != nil && resilience.IsConflict(err) {
			log.Warn("pipeline: storage conflict, retrying batch", zap.Error(err))
			n, err = write(ctx, chunk)
		}
		if err != nil {
			res.Failed += len(chunk)
			if res.Error == "" {
				res.Error = err.Error()
			}
			log.Error("pipeline: batch persist failed",
				zap.Int("rows", len(chunk)), zap.Error(err))
			continue
		}
		res.Persisted += int(n)
	}
}

// quarantineRecord packages a rejected source record with why, so
// operators can inspect it and extend the mapping tables.
func quarantineRecord[T any](league model.League, source string, kind model.EntityKind, rec T, err error) model.QuarantineRecord {
	payload, _ := json.Marshal(rec)
	q := model.QuarantineRecord{
		League:    league,
		Source:    source,
		Kind:      kind,
		Payload:   payload,
		Reason:    err.Error(),
		CreatedAt: time.Now().UTC(),
	}
	var verr *resilience.ValidationError
	if errors.As(err, &verr) {
		q.Field = verr.Field
		q.Reason = verr.Reason
	}
	return q
}

// refreshRecords recomputes team standings for every season the persisted
// games touched, so record-signal upset detection sees current win-loss
// numbers without a separate pass.
func (p *Pipeline) refreshRecords(ctx context.Context, league model.League, games []model.Game, log *zap.Logger) {
	seasons := make(map[string]bool)
	for _, g := range games {
		seasons[g.Season] = true
	}
	ordered := make([]string, 0, len(seasons))
	for season := range seasons {
		ordered = append(ordered, season)
	}
	sort.Strings(ordered)

	for _, season := range ordered {
		if _, err := p.store.RefreshTeamRecords(ctx, league, season); err != nil {
			log.Warn("pipeline: team record refresh failed",
				zap.String("season", season), zap.Error(err))
		}
	}
}

// sortResults orders the report by league, then kind in processing order,
// so concurrent scheduling never changes what operators read.
func sortResults(results []model.KindResult) {
	rank := make(map[model.EntityKind]int, len(model.EntityKinds()))
	for i, kind := range model.EntityKinds() {
		rank[kind] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].League != results[j].League {
			return results[i].League < results[j].League
		}
		return rank[results[i].Kind] < rank[results[j].Kind]
	})
}
