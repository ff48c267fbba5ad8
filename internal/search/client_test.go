package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/config"
	apperrors "github.com/kestrelscan/leadscrape/internal/core/errors"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()

	return &logger
}

func testConfig(safeInterval float64, maxRetries int) *config.Config {
	return &config.Config{
		GoogleAPIKey:       "key",
		GoogleCXID:         "cx",
		GoogleSafeInterval: safeInterval,
		GoogleMaxRetries:   maxRetries,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, safeInterval float64, maxRetries int) *Client {
	t.Helper()

	c := New(testConfig(safeInterval, maxRetries), newTestLogger())
	c.httpClient = srv.Client()
	c.endpoint = srv.URL

	return c
}

func TestSearchReturnsHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(customSearchResponse{
			Items: []struct {
				Title       string `json:"title"`
				Link        string `json:"link"`
				DisplayLink string `json:"displayLink"` //nolint:tagliatelle
			}{
				{Title: "Example", Link: "https://example.com/", DisplayLink: "example.com"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0.01, 3)

	hits, err := c.Search(context.Background(), "Example Corp")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(hits) != 1 || hits[0].Link != "https://example.com/" {
		t.Errorf("Search() = %+v, want one example.com hit", hits)
	}
}

func TestSearchEmptyQueryReturnsNil(t *testing.T) {
	c := New(testConfig(0.01, 3), newTestLogger())

	hits, err := c.Search(context.Background(), "")
	if err != nil || hits != nil {
		t.Errorf("Search(\"\") = %v, %v, want nil, nil", hits, err)
	}
}

func TestSearchObservesSafeInterval(t *testing.T) {
	var calls []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, time.Now())
		_ = json.NewEncoder(w).Encode(customSearchResponse{})
	}))
	defer srv.Close()

	const interval = 50 * time.Millisecond

	c := newTestClient(t, srv, interval.Seconds(), 3)

	if _, err := c.Search(context.Background(), "first"); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if _, err := c.Search(context.Background(), "second"); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}

	if gap := calls[1].Sub(calls[0]); gap < interval {
		t.Errorf("calls %v apart, want at least %v", gap, interval)
	}
}

func TestSearchRetriesOnTooManyRequestsThenSucceeds(t *testing.T) {
	attempt := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		_ = json.NewEncoder(w).Encode(customSearchResponse{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0.001, 3)

	if _, err := c.Search(context.Background(), "retry me"); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if attempt != 2 {
		t.Errorf("expected 2 attempts, got %d", attempt)
	}
}

func TestSearchExhaustsRetriesAsRateLimitExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0.001, 2)

	if _, err := c.Search(context.Background(), "always limited"); !errors.Is(err, apperrors.ErrRateLimitExceeded) {
		t.Errorf("Search() error = %v, want ErrRateLimitExceeded once retries are exhausted", err)
	}
}

func TestSafeSearchSwallowsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0.001, 1)

	hits := c.SafeSearch(context.Background(), "anything")
	if hits != nil {
		t.Errorf("SafeSearch() = %v, want nil on failure", hits)
	}
}

func TestBackoffGrows(t *testing.T) {
	if backoff(0) >= backoff(1) || backoff(1) >= backoff(2) {
		t.Errorf("expected backoff to grow with attempt: %v, %v, %v", backoff(0), backoff(1), backoff(2))
	}
}
