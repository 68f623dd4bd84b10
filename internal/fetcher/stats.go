package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/statline/internal/cache"
	"github.com/sells-group/statline/internal/model"
)

// maxPages bounds cursor pagination against an upstream that never stops.
const maxPages = 500

// ClientConfig configures the stats client.
type ClientConfig struct {
	Format model.RawFormat
	// BaseURL is the JSON API root; stats are read from BaseURL + "/stats".
	BaseURL string
	// StatsURLTemplate and SnapsURLTemplate hold one %d for the season.
	StatsURLTemplate string
	SnapsURLTemplate string
	// InjuriesURL is the league injury report page.
	InjuriesURL  string
	PageSize     int
	CacheTTL     time.Duration
	CacheEntries int
}

// Client retrieves raw stats batches for refresh units. Identical requests
// within the cache TTL are served from memory and concurrent identical
// requests share one download.
type Client struct {
	fetcher Fetcher
	cfg     ClientConfig
	policy  model.SeasonPolicy
	cache   *cache.Cache[*model.RawBatch]
	group   singleflight.Group
	log     *zap.Logger
}

// NewClient creates a stats client on top of f.
func NewClient(f Fetcher, policy model.SeasonPolicy, cfg ClientConfig) *Client {
	if cfg.Format == "" {
		cfg.Format = model.FormatJSONv1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Client{
		fetcher: f,
		cfg:     cfg,
		policy:  policy,
		cache:   cache.New[*model.RawBatch](cfg.CacheTTL, cfg.CacheEntries),
		log:     zap.L().With(zap.String("component", "fetcher")),
	}
}

// Format returns the raw format this client produces.
func (c *Client) Format() model.RawFormat {
	return c.cfg.Format
}

// Fetch returns the raw stat rows for one unit. Week 0 requests a whole
// historical season. The returned batch may be shared and must not be
// modified.
func (c *Client) Fetch(ctx context.Context, season, week int) (*model.RawBatch, error) {
	if err := c.policy.ValidUnit(season, week); err != nil {
		return nil, &FetchError{Season: season, Week: week, Err: err}
	}

	var (
		batch *model.RawBatch
		err   error
	)
	switch c.cfg.Format {
	case model.FormatCSVv1:
		batch, err = c.seasonCSV(ctx, c.cfg.StatsURLTemplate, season)
	default:
		batch, err = c.cached(ctx, cache.Key(string(c.cfg.Format), season, week), func(ctx context.Context) (*model.RawBatch, error) {
			return c.fetchJSON(ctx, season, week)
		})
	}
	if err != nil {
		return nil, &FetchError{Season: season, Week: week, Err: err}
	}
	return forUnit(batch, season, week), nil
}

// FetchParticipation returns the snap-count rows for one unit. The source
// publishes a file per season, so all weeks of a season share a download.
func (c *Client) FetchParticipation(ctx context.Context, season, week int) (*model.RawBatch, error) {
	if err := c.policy.ValidUnit(season, week); err != nil {
		return nil, &FetchError{Season: season, Week: week, Err: err}
	}
	if c.cfg.SnapsURLTemplate == "" {
		return nil, &FetchError{Season: season, Week: week, Err: eris.New("no participation source configured")}
	}
	batch, err := c.seasonCSV(ctx, c.cfg.SnapsURLTemplate, season)
	if err != nil {
		return nil, &FetchError{Season: season, Week: week, Err: err}
	}
	return forUnit(batch, season, week), nil
}

// forUnit returns a view of b labelled with the requested unit. Rows are
// shared, not copied.
func forUnit(b *model.RawBatch, season, week int) *model.RawBatch {
	return &model.RawBatch{
		Format:  b.Format,
		Season:  season,
		Week:    week,
		Columns: b.Columns,
		Rows:    b.Rows,
	}
}

func (c *Client) cached(ctx context.Context, key string, load func(context.Context) (*model.RawBatch, error)) (*model.RawBatch, error) {
	if b, ok := c.cache.Get(key); ok {
		c.log.Debug("raw batch served from cache", zap.String("key", key))
		return b, nil
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		b, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("joined in-flight download", zap.String("key", key))
	}
	return v.(*model.RawBatch), nil
}

func (c *Client) seasonCSV(ctx context.Context, tmpl string, season int) (*model.RawBatch, error) {
	if tmpl == "" {
		return nil, eris.New("no CSV url template configured")
	}
	u := fmt.Sprintf(tmpl, season)
	return c.cached(ctx, cache.Key("csv", u), func(ctx context.Context) (*model.RawBatch, error) {
		body, err := c.fetcher.Download(ctx, u)
		if err != nil {
			return nil, err
		}
		defer body.Close() //nolint:errcheck

		header, rows, err := ReadCSV(ctx, body)
		if err != nil {
			return nil, eris.Wrapf(err, "parse %s", u)
		}
		c.log.Info("downloaded season file",
			zap.String("url", u),
			zap.Int("rows", len(rows)),
		)
		return &model.RawBatch{Format: model.FormatCSVv1, Season: season, Columns: header, Rows: rows}, nil
	})
}

type statsPage struct {
	Data []map[string]any `json:"data"`
	Meta struct {
		NextCursor *int64 `json:"next_cursor"`
	} `json:"meta"`
}

func (c *Client) fetchJSON(ctx context.Context, season, week int) (*model.RawBatch, error) {
	if c.cfg.BaseURL == "" {
		return nil, eris.New("no stats base url configured")
	}

	var (
		records []map[string]string
		keys    [][]string
		cursor  string
		seen    = make(map[string]bool)
		done    bool
	)
	for page := 0; !done; page++ {
		if page == maxPages {
			return nil, eris.Errorf("stats for %d week %d exceed %d pages", season, week, maxPages)
		}
		u := c.statsURL(season, week, cursor)
		body, err := c.fetcher.Download(ctx, u)
		if err != nil {
			return nil, err
		}
		p, err := DecodeJSONObject[statsPage](body)
		_ = body.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "decode page %d", page+1)
		}

		for _, rec := range p.Data {
			flat, ks := FlattenJSON(rec)
			records = append(records, flat)
			keys = append(keys, ks)
		}

		if p.Meta.NextCursor == nil {
			done = true
			continue
		}
		next := strconv.FormatInt(*p.Meta.NextCursor, 10)
		if seen[next] {
			return nil, eris.Errorf("upstream repeated cursor %s", next)
		}
		seen[next] = true
		cursor = next
	}

	columns, rows := tabulate(records, keys)
	c.log.Info("fetched stats",
		zap.Int("season", season),
		zap.Int("week", week),
		zap.Int("rows", len(rows)),
	)
	return &model.RawBatch{
		Format:  model.FormatJSONv1,
		Season:  season,
		Week:    week,
		Columns: columns,
		Rows:    rows,
	}, nil
}

func (c *Client) statsURL(season, week int, cursor string) string {
	q := url.Values{}
	q.Set("seasons[]", strconv.Itoa(season))
	if week > 0 {
		q.Set("weeks[]", strconv.Itoa(week))
	}
	q.Set("per_page", strconv.Itoa(c.cfg.PageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/stats?" + q.Encode()
}
