package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/cache"
	"github.com/sells-group/statline/internal/config"
	"github.com/sells-group/statline/internal/fetcher"
	"github.com/sells-group/statline/internal/metrics"
	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/query"
	"github.com/sells-group/statline/internal/refresh"
	"github.com/sells-group/statline/internal/resilience"
	"github.com/sells-group/statline/internal/transform"
	"github.com/sells-group/statline/internal/warehouse"
)

// app holds the wired services shared by the commands.
type app struct {
	Store     warehouse.Store
	Client    *fetcher.Client
	Cache     *cache.Cache[any]
	Query     *query.Service
	Refresher *refresh.Orchestrator
	Metrics   *metrics.Manager
}

// initApp opens the warehouse and wires fetch, refresh and query on top.
func initApp(ctx context.Context, c *config.Config) (*app, error) {
	store, err := warehouse.Open(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, eris.Wrap(err, "migrate warehouse")
	}

	m := metrics.NewManager()
	policy := c.Warehouse.Policy()
	client := fetcher.NewClient(newHTTPFetcher(c.Fetch, m), policy, clientConfig(c.Fetch))

	readCache := cache.New[any](c.Cache.TTL(), c.Cache.MaxEntries)
	orch := refresh.New(client, store, readCache, m, refresh.Options{
		Policy:        policy,
		Scoring:       transform.Scoring{PPR: c.Scoring.PPRValue},
		MaxConcurrent: c.Warehouse.MaxConcurrentFetches,
		Participation: c.Refresh.Participation,
	})

	zap.L().Debug("app initialized",
		zap.String("driver", c.Store.Driver),
		zap.String("format", string(client.Format())),
	)
	return &app{
		Store:     store,
		Client:    client,
		Cache:     readCache,
		Query:     query.New(store, readCache, policy),
		Refresher: orch,
		Metrics:   m,
	}, nil
}

// Close releases the warehouse connection.
func (a *app) Close() {
	if err := a.Store.Close(); err != nil {
		zap.L().Warn("close warehouse", zap.Error(err))
	}
}

func newHTTPFetcher(c config.FetchConfig, obs fetcher.Observer) *fetcher.HTTPFetcher {
	headers := map[string]string{}
	if c.APIKey != "" {
		headers["Authorization"] = c.APIKey
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.UserAgent,
		Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		Interval:  time.Duration(c.RateLimitIntervalMs) * time.Millisecond,
		Headers:   headers,
		Retry:     resilience.FromRetryConfig(c.MaxRetries, c.InitialBackoffMs, c.MaxBackoffMs),
		Breakers:  resilience.NewBreakers(resilience.FromCircuitConfig(c.CircuitFailureThreshold, c.CircuitResetSeconds)),
		Observer:  obs,
	})
}

func clientConfig(c config.FetchConfig) fetcher.ClientConfig {
	return fetcher.ClientConfig{
		Format:           rawFormat(c.Format),
		BaseURL:          c.BaseURL,
		StatsURLTemplate: c.StatsURLTemplate,
		SnapsURLTemplate: c.SnapsURLTemplate,
		InjuriesURL:      c.InjuriesURL,
		PageSize:         c.PageSize,
		CacheTTL:         time.Duration(c.ResponseCacheSeconds) * time.Second,
	}
}

// rawFormat maps the config name of a source to its raw batch format.
func rawFormat(name string) model.RawFormat {
	if name == "csv" {
		return model.FormatCSVv1
	}
	return model.FormatJSONv1
}

// defaultSeasons returns the configured refresh seasons, or the season in
// progress at now. A season starts in September and runs into February.
func defaultSeasons(c *config.Config, now time.Time) []int {
	if len(c.Refresh.Seasons) > 0 {
		return c.Refresh.Seasons
	}
	year := now.Year()
	if now.Month() < time.September {
		year--
	}
	if c.Warehouse.MaxSeason > 0 && year > c.Warehouse.MaxSeason {
		year = c.Warehouse.MaxSeason
	}
	return []int{year}
}
