package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/statline/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Warehouse  WarehouseConfig  `yaml:"warehouse" mapstructure:"warehouse"`
	Refresh    RefreshConfig    `yaml:"refresh" mapstructure:"refresh"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScoringConfig configures fantasy scoring.
type ScoringConfig struct {
	PPRValue float64 `yaml:"ppr_value" mapstructure:"ppr_value"`
}

// CacheConfig configures the read cache in front of the warehouse.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// FetchConfig configures the upstream stats client.
type FetchConfig struct {
	Format                  string `yaml:"format" mapstructure:"format"`
	BaseURL                 string `yaml:"base_url" mapstructure:"base_url"`
	APIKey                  string `yaml:"api_key" mapstructure:"api_key"`
	StatsURLTemplate        string `yaml:"stats_url_template" mapstructure:"stats_url_template"`
	SnapsURLTemplate        string `yaml:"snaps_url_template" mapstructure:"snaps_url_template"`
	InjuriesURL             string `yaml:"injuries_url" mapstructure:"injuries_url"`
	UserAgent               string `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimitIntervalMs     int    `yaml:"rate_limit_interval_ms" mapstructure:"rate_limit_interval_ms"`
	TimeoutSecs             int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries              int    `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs        int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs            int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	ResponseCacheSeconds    int    `yaml:"response_cache_seconds" mapstructure:"response_cache_seconds"`
	CircuitFailureThreshold int    `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSeconds     int    `yaml:"circuit_reset_seconds" mapstructure:"circuit_reset_seconds"`
	PageSize                int    `yaml:"page_size" mapstructure:"page_size"`
}

// WarehouseConfig configures season routing and refresh concurrency.
type WarehouseConfig struct {
	HistoricalSeasonCutoff int `yaml:"historical_season_cutoff" mapstructure:"historical_season_cutoff"`
	MinSeason              int `yaml:"min_season" mapstructure:"min_season"`
	MaxSeason              int `yaml:"max_season" mapstructure:"max_season"`
	MaxWeek                int `yaml:"max_week" mapstructure:"max_week"`
	MaxConcurrentFetches   int `yaml:"max_concurrent_fetches" mapstructure:"max_concurrent_fetches"`
}

// Policy returns the season policy shared by the refresh and query layers.
func (w WarehouseConfig) Policy() model.SeasonPolicy {
	return model.SeasonPolicy{
		HistoricalCutoff: w.HistoricalSeasonCutoff,
		MinSeason:        w.MinSeason,
		MaxSeason:        w.MaxSeason,
		MaxWeek:          w.MaxWeek,
	}
}

// RefreshConfig configures scheduled refreshes in serve mode.
type RefreshConfig struct {
	Schedule      string `yaml:"schedule" mapstructure:"schedule"`
	Seasons       []int  `yaml:"seasons" mapstructure:"seasons"`
	Participation bool   `yaml:"participation" mapstructure:"participation"`
	Injuries      bool   `yaml:"injuries" mapstructure:"injuries"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures refresh health alerts in serve mode. Alerts
// are only sent when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	StuckAfterMinutes    int     `yaml:"stuck_after_minutes" mapstructure:"stuck_after_minutes"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Scoring.PPRValue {
	case 0, 0.5, 1:
	default:
		return eris.Errorf("config: scoring.ppr_value must be 0, 0.5 or 1 (got %v)", c.Scoring.PPRValue)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	switch c.Fetch.Format {
	case "json", "csv":
	default:
		return eris.Errorf("config: unknown fetch.format %q", c.Fetch.Format)
	}
	if c.Warehouse.MaxWeek <= 0 {
		return eris.New("config: warehouse.max_week must be positive")
	}
	if c.Warehouse.MaxConcurrentFetches <= 0 {
		return eris.New("config: warehouse.max_concurrent_fetches must be positive")
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "statline.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("scoring.ppr_value", 1.0)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("fetch.format", "json")
	v.SetDefault("fetch.base_url", "https://api.balldontlie.io/nfl/v1")
	v.SetDefault("fetch.stats_url_template", "https://github.com/nflverse/nflverse-data/releases/download/player_stats/player_stats_%d.csv")
	v.SetDefault("fetch.snaps_url_template", "https://github.com/nflverse/nflverse-data/releases/download/snap_counts/snap_counts_%d.csv")
	v.SetDefault("fetch.injuries_url", "https://www.pro-football-reference.com/players/injuries.htm")
	v.SetDefault("fetch.user_agent", "statline/1.0")
	v.SetDefault("fetch.rate_limit_interval_ms", 100)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.max_backoff_ms", 30000)
	v.SetDefault("fetch.response_cache_seconds", 600)
	v.SetDefault("fetch.circuit_failure_threshold", 5)
	v.SetDefault("fetch.circuit_reset_seconds", 30)
	v.SetDefault("fetch.page_size", 100)
	v.SetDefault("warehouse.historical_season_cutoff", 2024)
	v.SetDefault("warehouse.min_season", 2012)
	v.SetDefault("warehouse.max_week", 18)
	v.SetDefault("warehouse.max_concurrent_fetches", 3)
	v.SetDefault("refresh.participation", true)
	v.SetDefault("refresh.injuries", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.stale_after_hours", 192)
	v.SetDefault("monitoring.stuck_after_minutes", 30)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
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
