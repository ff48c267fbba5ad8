// Package search wraps the external custom-search endpoint with a global
// rate pace and exponential-backoff retry, mirroring
// internal/process/factcheck.GoogleClient's request-building shape.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/config"
	apperrors "github.com/kestrelscan/leadscrape/internal/core/errors"
	"github.com/kestrelscan/leadscrape/internal/platform/observability"
)

const (
	searchEndpoint  = "https://www.googleapis.com/customsearch/v1"
	maxResults      = 10
	defaultHTTPWait = 20 * time.Second
)

// Hit is one search result: a candidate domain for a company.
type Hit struct {
	Title       string
	Link        string
	DisplayHost string
}

// Client performs paced, retried searches against the custom-search API. It
// is safe for concurrent use: the last-call timestamp is guarded by a mutex
// and every caller shares the same global pace.
type Client struct {
	apiKey       string
	cxID         string
	safeInterval time.Duration
	maxRetries   int
	httpClient   *http.Client
	logger       *zerolog.Logger
	endpoint     string

	// flight serialises outbound API calls: at most one is in flight.
	flight sync.Mutex

	mu       sync.Mutex
	lastCall time.Time
}

// New builds a Client from cfg.
func New(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		apiKey:       cfg.GoogleAPIKey,
		cxID:         cfg.GoogleCXID,
		safeInterval: time.Duration(cfg.GoogleSafeInterval * float64(time.Second)),
		maxRetries:   cfg.GoogleMaxRetries,
		httpClient:   &http.Client{Timeout: defaultHTTPWait},
		logger:       logger,
		endpoint:     searchEndpoint,
	}
}

// Search returns up to 10 hits for query. It retries on 403/429 and on read
// timeouts with a 2^attempt second backoff, and surfaces
// apperrors.ErrRateLimitExceeded once the retry budget is exhausted.
func (c *Client) Search(ctx context.Context, query string) ([]Hit, error) {
	if query == "" {
		return nil, nil
	}

	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		c.flight.Lock()
		c.waitTurn(ctx)

		hits, status, err := c.call(ctx, query)

		c.recordCall()
		c.flight.Unlock()

		if err == nil {
			observability.SearchRequests.WithLabelValues("ok").Inc()

			return hits, nil
		}

		lastErr = err

		if status == http.StatusForbidden || status == http.StatusTooManyRequests {
			observability.SearchRequests.WithLabelValues(strconv.Itoa(status)).Inc()
			sleep(ctx, backoff(attempt))

			continue
		}

		if isTimeout(err) {
			observability.SearchRequests.WithLabelValues("timeout").Inc()
			sleep(ctx, backoff(attempt))

			continue
		}

		observability.SearchRequests.WithLabelValues("error").Inc()

		return nil, fmt.Errorf("%w: %w", apperrors.ErrSearch, err)
	}

	observability.SearchRequests.WithLabelValues("rate_limit_exceeded").Inc()

	return nil, fmt.Errorf("%w: %w", apperrors.ErrRateLimitExceeded, lastErr)
}

// SafeSearch wraps Search, swallowing any error and returning an empty
// slice instead: the "fallback" search call.
func (c *Client) SafeSearch(ctx context.Context, query string) []Hit {
	hits, err := c.Search(ctx, query)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("search failed, falling back to empty result")

		return nil
	}

	return hits
}

// waitTurn blocks until safeInterval has elapsed since the last call,
// computing the wait under the lock but sleeping outside it.
func (c *Client) waitTurn(ctx context.Context) {
	c.mu.Lock()
	wait := c.safeInterval - time.Since(c.lastCall)
	c.mu.Unlock()

	if wait > 0 {
		sleep(ctx, wait)
	}
}

func (c *Client) recordCall() {
	c.mu.Lock()
	c.lastCall = time.Now()
	c.mu.Unlock()
}

func (c *Client) call(ctx context.Context, query string) ([]Hit, int, error) {
	endpoint, err := c.buildURL(query)
	if err != nil {
		return nil, 0, fmt.Errorf("build search url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("search status %d", resp.StatusCode)
	}

	var payload customSearchResponse

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode search response: %w", err)
	}

	return payload.hits(), resp.StatusCode, nil
}

func (c *Client) buildURL(query string) (string, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("cx", c.cxID)
	values.Set("key", c.apiKey)
	values.Set("num", strconv.Itoa(maxResults))

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse search endpoint: %w", err)
	}

	u.RawQuery = values.Encode()

	return u.String(), nil
}

type customSearchResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		DisplayLink string `json:"displayLink"` //nolint:tagliatelle
	} `json:"items"`
}

func (r customSearchResponse) hits() []Hit {
	out := make([]Hit, 0, len(r.Items))

	for _, item := range r.Items {
		out = append(out, Hit{Title: item.Title, Link: item.Link, DisplayHost: item.DisplayLink})
	}

	return out
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func isTimeout(err error) bool {
	type timeouter interface {
		Timeout() bool
	}

	var te timeouter

	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok { //nolint:errorlint // walking a plain net error chain
			te = t

			break
		}

		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}

		e = u.Unwrap()
	}

	return te != nil && te.Timeout()
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
