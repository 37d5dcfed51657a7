// Package fetcher is the shared transport for stats sources: a rate-limited,
// retrying, cache-fronted HTTP client plus streaming parsers for the local
// CSV checkout. Providers never touch net/http directly.
package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridstats/sports-cli/internal/cache"
	"github.com/gridstats/sports-cli/internal/ratelimit"
	"github.com/gridstats/sports-cli/internal/resilience"
)

// Options configures an APIClient for one source.
type Options struct {
	// Source keys the rate-limit budget, circuit breaker, and cache
	// fingerprints. Required.
	Source string

	// BaseURL is the API root; endpoints are resolved relative to it.
	BaseURL string

	// Headers are set on every request (e.g. an Authorization key).
	Headers map[string]string

	UserAgent string
	Timeout   time.Duration

	// Retry overrides the per-call retry policy. Zero value means defaults
	// with a per-source retry log.
	Retry resilience.RetryConfig
}

// APIClient is the one way providers reach their APIs. Each request flows
// cache → circuit breaker → retry → rate limiter → HTTP, so a cache hit
// spends no budget and a tripped breaker spends no budget either.
type APIClient struct {
	http     *http.Client
	opts     Options
	retry    resilience.RetryConfig
	limiter  *ratelimit.Limiter
	breakers *resilience.SourceBreakers
	loader   *cache.Loader
}

// NewAPIClient builds a client for one source. limiter, breakers, and
// loader are shared across sources and may each be nil, which disables
// that layer (tests construct bare clients this way).
func NewAPIClient(opts Options, limiter *ratelimit.Limiter, breakers *resilience.SourceBreakers, loader *cache.Loader) *APIClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sports-cli/1.0"
	}
	retry := opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(opts.Source, "get")
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &APIClient{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		retry:    retry,
		limiter:  limiter,
		breakers: breakers,
		loader:   loader,
	}
}

// Source returns the source name the client was built for.
func (c *APIClient) Source() string {
	return c.opts.Source
}

// GetJSON fetches endpoint and decodes the response into out. A ttl > 0
// serves repeat calls from cache for that long.
func (c *APIClient) GetJSON(ctx context.Context, endpoint string, params map[string]string, ttl time.Duration, out any) error {
	data, err := c.Get(ctx, endpoint, params, ttl)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "%s: decode %s", c.opts.Source, endpoint)
	}
	return nil
}

// Get fetches endpoint and returns the raw response body. Cache hits
// bypass the rate limiter entirely.
func (c *APIClient) Get(ctx context.Context, endpoint string, params map[string]string, ttl time.Duration) ([]byte, error) {
	if c.loader == nil || ttl <= 0 {
		return c.fetch(ctx, endpoint, params)
	}

	key := cache.Fingerprint(c.opts.Source, endpoint, params)
	data, hit, err := c.loader.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, endpoint, params)
	})
	if hit {
		zap.L().Debug("serving from cache",
			zap.String("source", c.opts.Source),
			zap.String("endpoint", endpoint),
		)
	}
	return data, err
}

func (c *APIClient) fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	call := func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			// Budget is spent per attempt: a retried request is a second
			// request as far as the hourly window is concerned.
			if c.limiter != nil {
				if err := c.limiter.Acquire(ctx, c.opts.Source); err != nil {
					return nil, err
				}
			}
			return c.doOnce(ctx, endpoint, params)
		})
	}

	if c.breakers == nil {
		return call(ctx)
	}
	return resilience.ExecuteVal(ctx, c.breakers.Get(c.opts.Source), call)
}

func (c *APIClient) doOnce(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(endpoint, params), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: build request for %s", c.opts.Source, endpoint)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get %s", c.opts.Source, endpoint)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read %s", c.opts.Source, endpoint)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &resilience.AuthError{Source: c.opts.Source, StatusCode: resp.StatusCode}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("%s: http %d for %s", c.opts.Source, resp.StatusCode, endpoint),
			resp.StatusCode,
		)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("%s: http %d for %s", c.opts.Source, resp.StatusCode, endpoint)
	}

	return body, nil
}

func (c *APIClient) buildURL(endpoint string, params map[string]string) string {
	u := strings.TrimSuffix(c.opts.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return u + "?" + q.Encode()
}
