package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/statline/internal/resilience"
)

// Observer receives one call per upstream HTTP request. status is 0 when
// the request failed before a response arrived.
type Observer interface {
	ObserveUpstream(host string, status int, d time.Duration)
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Interval is the minimum spacing between requests. Callers block until
	// their slot comes up. Zero disables limiting.
	Interval time.Duration
	// Headers are sent with every request (e.g. Authorization).
	Headers  map[string]string
	Retry    resilience.RetryConfig
	Breakers *resilience.Breakers
	Observer Observer
}

// StatusError is a non-retryable HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// HTTPFetcher implements Fetcher using net/http with rate limiting, retries
// and a circuit breaker per upstream host.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiter  *rate.Limiter
	breakers *resilience.Breakers
	now      func() time.Time
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "statline/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	breakers := opts.Breakers
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultCircuitBreakerConfig())
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		breakers: breakers,
		now:      time.Now,
	}
}

// Breakers exposes the per-host circuit breakers for status reporting.
func (f *HTTPFetcher) Breakers() *resilience.Breakers {
	return f.breakers
}

// Download fetches the URL and returns the response body. Transient failures
// (transport errors, 408, 429, 5xx) are retried; other statuses fail at once
// with a *StatusError.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse url")
	}
	cb := f.breakers.Get(u.Host)

	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("http", u.Host)
	}

	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (io.ReadCloser, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (io.ReadCloser, error) {
			return f.attempt(ctx, rawURL)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	return body, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, v := range f.opts.Headers {
		req.Header.Set(k, v)
	}

	start := f.now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.observe(req.URL.Host, 0, start)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.NewTransientError(eris.Wrapf(err, "get %s", rawURL), 0)
	}
	f.observe(req.URL.Host, resp.StatusCode, start)

	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		zap.L().Warn("upstream returned retryable status",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &resilience.TransientError{
			Err:        &StatusError{URL: rawURL, StatusCode: resp.StatusCode},
			StatusCode: resp.StatusCode,
			RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), f.now()),
		}
	}
	return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
}

func (f *HTTPFetcher) observe(host string, status int, start time.Time) {
	if f.opts.Observer != nil {
		f.opts.Observer.ObserveUpstream(host, status, f.now().Sub(start))
	}
}
