package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig             `yaml:"store" mapstructure:"store"`
	Leagues   []string                `yaml:"leagues" mapstructure:"leagues"`
	Sources   map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
	Cache     CacheConfig             `yaml:"cache" mapstructure:"cache"`
	Fetch     FetchConfig             `yaml:"fetch" mapstructure:"fetch"`
	Export    ExportConfig            `yaml:"export" mapstructure:"export"`
	Normalize NormalizeConfig         `yaml:"normalize" mapstructure:"normalize"`
	Log       LogConfig               `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. Path is the SQLite file;
// DatabaseURL is the Postgres DSN.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourceConfig is one stats source's credentials and request budget. Dir
// and Leagues apply only to the local historical checkout.
type SourceConfig struct {
	APIKey          string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerHour int      `yaml:"requests_per_hour" mapstructure:"requests_per_hour"`
	BurstLimit      int      `yaml:"burst_limit" mapstructure:"burst_limit"`
	Mode            string   `yaml:"mode" mapstructure:"mode"`
	Dir             string   `yaml:"dir" mapstructure:"dir"`
	Leagues         []string `yaml:"leagues" mapstructure:"leagues"`
}

// CacheConfig selects the response-cache backend: memory (per-process),
// store (persisted in the relational store), or redis.
type CacheConfig struct {
	Backend string      `yaml:"backend" mapstructure:"backend"`
	Redis   RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds redis connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// FetchConfig bounds the fetch pipeline.
type FetchConfig struct {
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`
	BatchSize             int `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs           int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries            int `yaml:"max_retries" mapstructure:"max_retries"`
}

// ExportConfig configures the export command defaults.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// NormalizeConfig extends the embedded team-alias table: league →
// canonical name → source spellings. Config entries win on conflict so a
// deployment can correct the embedded table without a rebuild.
type NormalizeConfig struct {
	Aliases map[string]map[string][]string `yaml:"aliases" mapstructure:"aliases"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SPORTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "sports.db")
	v.SetDefault("leagues", []string{"nfl", "nba", "mlb", "nhl"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.backend", "store")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("fetch.max_concurrent_requests", 4)
	v.SetDefault("fetch.batch_size", 500)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.format", "csv")
	// An api_key default makes the SPORTS_SOURCES_*_API_KEY env path
	// visible to viper even without a config file.
	v.SetDefault("sources.thesportsdb.base_url", "https://www.thesportsdb.com/api/v1/json")
	v.SetDefault("sources.thesportsdb.api_key", "")
	v.SetDefault("sources.thesportsdb.requests_per_hour", 100)
	v.SetDefault("sources.thesportsdb.burst_limit", 10)
	v.SetDefault("sources.thesportsdb.mode", "queue")
	v.SetDefault("sources.balldontlie.base_url", "https://api.balldontlie.io/v1")
	v.SetDefault("sources.balldontlie.api_key", "")
	v.SetDefault("sources.balldontlie.requests_per_hour", 300)
	v.SetDefault("sources.balldontlie.burst_limit", 5)
	v.SetDefault("sources.balldontlie.mode", "queue")
	v.SetDefault("sources.sleeper.base_url", "https://api.sleeper.app/v1")
	v.SetDefault("sources.sleeper.requests_per_hour", 1000)
	v.SetDefault("sources.sleeper.burst_limit", 10)
	v.SetDefault("sources.sleeper.mode", "queue")
	v.SetDefault("sources.statsapi-mlb.base_url", "https://statsapi.mlb.com/api/v1")
	v.SetDefault("sources.statsapi-mlb.requests_per_hour", 1200)
	v.SetDefault("sources.statsapi-mlb.burst_limit", 20)
	v.SetDefault("sources.statsapi-mlb.mode", "queue")
	v.SetDefault("sources.statsapi-nhl.base_url", "https://statsapi.web.nhl.com/api/v1")
	v.SetDefault("sources.statsapi-nhl.requests_per_hour", 1200)
	v.SetDefault("sources.statsapi-nhl.burst_limit", 20)
	v.SetDefault("sources.statsapi-nhl.mode", "queue")
	v.SetDefault("sources.histcsv.dir", "data/history")
	v.SetDefault("sources.histcsv.leagues", []string{"nfl"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields every command depends on. It reports every
// problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			add("store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for the postgres driver")
		}
	default:
		add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}

	switch c.Cache.Backend {
	case "memory", "store":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr is required for the redis backend")
		}
	default:
		add("cache.backend must be memory, store, or redis, got %q", c.Cache.Backend)
	}

	if c.Fetch.MaxConcurrentRequests < 1 || c.Fetch.MaxConcurrentRequests > 32 {
		add("fetch.max_concurrent_requests must be between 1 and 32")
	}
	if c.Fetch.BatchSize < 1 || c.Fetch.BatchSize > 10000 {
		add("fetch.batch_size must be between 1 and 10000")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		add("fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxRetries < 0 || c.Fetch.MaxRetries > 10 {
		add("fetch.max_retries must be between 0 and 10")
	}

	for name, src := range c.Sources {
		switch src.Mode {
		case "", "queue", "failfast":
		default:
			add("sources.%s.mode must be queue or failfast, got %q", name, src.Mode)
		}
		if src.RequestsPerHour < 0 {
			add("sources.%s.requests_per_hour must be >= 0", name)
		}
		if src.BurstLimit < 0 {
			add("sources.%s.burst_limit must be >= 0", name)
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
