package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridstats/sports-cli/internal/cache"
	"github.com/gridstats/sports-cli/internal/fetcher"
	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/monitoring"
	"github.com/gridstats/sports-cli/internal/normalize"
	"github.com/gridstats/sports-cli/internal/pipeline"
	"github.com/gridstats/sports-cli/internal/provider"
	"github.com/gridstats/sports-cli/internal/ratelimit"
	"github.com/gridstats/sports-cli/internal/resilience"
	"github.com/gridstats/sports-cli/internal/store"
	"github.com/gridstats/sports-cli/internal/upset"
)

// appEnv holds the initialized store, provider registry, and pipeline
// shared by the fetch, upsets, export, status, and sources commands.
type appEnv struct {
	Store     store.Store
	Registry  *provider.Registry
	Limiter   *ratelimit.Limiter
	Loader    *cache.Loader
	Pipeline  *pipeline.Pipeline
	Collector *monitoring.Collector
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Loader != nil {
		_ = ae.Loader.Close()
	}
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initStore opens the configured store backend. Callers migrate.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache builds the response cache behind the configured backend. The
// store backend shares st's lifecycle and its Close is a no-op.
func initCache(st store.Store) (*cache.Loader, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewLoader(cache.NewMemory()), nil
	case "store":
		return cache.NewLoader(cache.NewStoreBacked(st)), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return cache.NewLoader(cache.NewRedis(client, "")), nil
	default:
		return nil, eris.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// initEnv validates the config, opens and migrates the store, and wires
// the rate limiter, cache, providers, and pipeline. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	loader, err := initCache(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	budgets := make(map[string]ratelimit.SourceConfig, len(cfg.Sources))
	for name, src := range cfg.Sources {
		budgets[name] = ratelimit.SourceConfig{
			RequestsPerHour: src.RequestsPerHour,
			Burst:           src.BurstLimit,
			Mode:            ratelimit.Mode(src.Mode),
		}
	}
	limiter := ratelimit.New(budgets)
	breakers := resilience.NewSourceBreakers(resilience.DefaultCircuitBreakerConfig())

	retry := resilience.DefaultRetryConfig()
	// max_retries counts attempts after the first.
	retry.MaxAttempts = cfg.Fetch.MaxRetries + 1
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second

	// Every source client shares the limiter, breakers, and cache; the
	// source name keys its budget and breaker.
	apiClient := func(name string, headers map[string]string) *fetcher.APIClient {
		src := cfg.Sources[name]
		return fetcher.NewAPIClient(fetcher.Options{
			Source:  name,
			BaseURL: src.BaseURL,
			Headers: headers,
			Timeout: timeout,
			Retry:   retry,
		}, limiter, breakers, loader)
	}

	std, err := normalize.NewStandardizer(cfg.Normalize.Aliases)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	registry := provider.NewRegistry()

	registry.Register(provider.NewTheSportsDB(
		apiClient(provider.SourceTheSportsDB, nil),
		cfg.Sources[provider.SourceTheSportsDB].APIKey,
		std,
	))

	var bdlHeaders map[string]string
	if key := cfg.Sources[provider.SourceBallDontLie].APIKey; key != "" {
		bdlHeaders = map[string]string{"Authorization": key}
	}
	registry.Register(provider.NewBallDontLie(apiClient(provider.SourceBallDontLie, bdlHeaders), std))

	registry.Register(provider.NewSleeper(apiClient(provider.SourceSleeper, nil), std))

	// The MLB and NHL stats APIs live on different hosts with separate
	// budgets, so each league gets its own client.
	registry.Register(provider.NewStatsAPI(map[model.League]*fetcher.APIClient{
		model.LeagueMLB: apiClient("statsapi-mlb", nil),
		model.LeagueNHL: apiClient("statsapi-nhl", nil),
	}, std))

	if hist := cfg.Sources[provider.SourceHistCSV]; hist.Dir != "" {
		leagues := make([]model.League, 0, len(hist.Leagues))
		for _, raw := range hist.Leagues {
			league, err := model.ParseLeague(raw)
			if err != nil {
				zap.L().Warn("skipping unknown league in histcsv config", zap.String("league", raw))
				continue
			}
			leagues = append(leagues, league)
		}
		registry.Register(provider.NewHistCSV(hist.Dir, leagues, std))
	} else {
		zap.L().Debug("histcsv dir not configured, historical checkout disabled")
	}

	detector := upset.NewDetector(st)
	p := pipeline.New(cfg, st, registry, detector, loader)

	return &appEnv{
		Store:     st,
		Registry:  registry,
		Limiter:   limiter,
		Loader:    loader,
		Pipeline:  p,
		Collector: monitoring.NewCollector(st, limiter),
	}, nil
}
