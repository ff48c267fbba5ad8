// Package httpclient implements the engine's outbound HTTP surface: a
// per-domain session cache, URL canonicalisation and validation, per-domain
// rate limiting, and a retry-with-fallback policy (www prefix, scheme
// downgrade, insecure TLS).
//
// A Client is owned by a single worker goroutine; it is not safe for
// concurrent use. The *Limiters registry it is built with, however, is
// process-wide and safe to share across many Clients.
package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/kestrelscan/leadscrape/internal/canonical"
	"github.com/kestrelscan/leadscrape/internal/config"
	apperrors "github.com/kestrelscan/leadscrape/internal/core/errors"
	"github.com/kestrelscan/leadscrape/internal/platform/observability"
)

const (
	retryCount       = 2
	retryBackoff     = 500 * time.Millisecond
	statusNoResponse = "no-response"
	maxRedirectSet   = 1000
)

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Response is the minimal result of a successful HTTP call.
type Response struct {
	StatusCode  int
	Body        []byte
	FinalURL    string
	ContentType string
}

// Client issues validated, rate-paced GET/HEAD requests for one worker.
type Client struct {
	cfg      *config.Config
	limiters *Limiters
	logger   *zerolog.Logger

	sessions map[string]*session
	seenGet  map[string]struct{}
}

type session struct {
	jar    *cookiejar.Jar
	client *http.Client
}

// New builds a worker-owned Client. limiters must be shared across all
// workers constructed for the same engine run.
func New(cfg *config.Config, limiters *Limiters, logger *zerolog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		limiters: limiters,
		logger:   logger,
		sessions: make(map[string]*session),
		seenGet:  make(map[string]struct{}),
	}
}

// Get performs a rate-paced, retried GET. It returns (nil, nil) -
// the "unavailable" signal - when no usable response could be obtained.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL)
}

// Head performs a HEAD request. Unlike Get, it neither consults nor updates
// the redirect-loop guard or the per-domain token bucket.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	if err := validateURL(c.cfg, rawURL); err != nil {
		return nil, err
	}

	resp, err := c.attempt(ctx, http.MethodHead, rawURL, false)
	if err != nil {
		observability.HTTPRequestsTotal.WithLabelValues(statusNoResponse).Inc()

		return nil, nil //nolint:nilnil // null response is the documented "unavailable" signal
	}

	observability.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	return resp, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*Response, error) {
	if err := validateURL(c.cfg, rawURL); err != nil {
		return nil, err
	}

	canon := canonical.URL(rawURL)

	if method == http.MethodGet {
		if _, seen := c.seenGet[canon]; seen {
			return nil, nil //nolint:nilnil // redirect-loop guard: already fetched this canonical URL
		}

		if err := c.limiters.bucket(rawURL).Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	resp, status := c.retryWithFallback(ctx, method, rawURL)

	observability.HTTPRequestsTotal.WithLabelValues(status).Inc()

	if resp == nil {
		return nil, nil //nolint:nilnil // documented "unavailable" signal
	}

	if method == http.MethodGet {
		c.recordSeen(canon)

		if c.cfg.DebugMode {
			dumpDebugBody(c.cfg, rawURL, resp.Body)
		}
	}

	return resp, nil
}

// retryWithFallback implements the retry-and-fallback policy: one attempt
// plus up to retryCount retries, a 429 backoff, then www-prefix,
// http-downgrade, and insecure-TLS fallbacks after the final attempt.
func (c *Client) retryWithFallback(ctx context.Context, method, rawURL string) (*Response, string) {
	var (
		lastStatus = statusNoResponse
		lastErr    error
	)

	for attempt := 0; attempt <= retryCount; attempt++ {
		resp, err := c.attempt(ctx, method, rawURL, false)
		if err != nil {
			lastErr = err
		}

		if err == nil && resp != nil {
			if resp.StatusCode == http.StatusTooManyRequests {
				lastStatus = strconv.Itoa(resp.StatusCode)
				sleep(ctx, retryBackoff*time.Duration(1<<attempt))

				continue
			}

			if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
				return resp, strconv.Itoa(resp.StatusCode)
			}

			lastStatus = strconv.Itoa(resp.StatusCode)

			if !retryableStatus[resp.StatusCode] {
				return nil, lastStatus
			}
		}

		if attempt == retryCount {
			break
		}

		sleep(ctx, retryBackoff*time.Duration(1<<attempt))
	}

	if resp := c.fallback(ctx, method, rawURL, lastErr); resp != nil {
		return resp, strconv.Itoa(resp.StatusCode)
	}

	return nil, lastStatus
}

// fallback retries once with a www. prefix, once with http in place of
// https, and once with TLS verification disabled — but only when the most
// recent failure was itself a TLS error, per spec.md §4.1 step 3 ("on TLS
// failure after final attempt") and original_source/http.py's
// isinstance(err, SSLError) gate: a plain non-TLS failure (404, DNS
// failure, connection refused) never triggers the insecure-TLS retry.
func (c *Client) fallback(ctx context.Context, method, rawURL string, lastErr error) *Response {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	if !strings.HasPrefix(parsed.Host, "www.") {
		withWWW := *parsed
		withWWW.Host = "www." + parsed.Host

		resp, err := c.attempt(ctx, method, withWWW.String(), false)
		if err != nil {
			lastErr = err
		}

		if err == nil && isSuccess(resp) {
			return resp
		}
	}

	if parsed.Scheme == "https" {
		downgraded := *parsed
		downgraded.Scheme = "http"

		resp, err := c.attempt(ctx, method, downgraded.String(), false)
		if err != nil {
			lastErr = err
		}

		if err == nil && isSuccess(resp) {
			return resp
		}
	}

	if c.cfg.AllowInsecureSSL && isTLSError(lastErr) {
		if resp, err := c.attempt(ctx, method, rawURL, true); err == nil && isSuccess(resp) {
			return resp
		}
	}

	return nil
}

// isTLSError reports whether err is a certificate or handshake failure,
// as opposed to a DNS failure, connection refusal, or plain HTTP error.
func isTLSError(err error) bool {
	if err == nil {
		return false
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}

	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certInvalid) {
		return true
	}

	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}

func isSuccess(resp *Response) bool {
	return resp != nil && resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, insecure bool) (*Response, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout+c.cfg.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", c.randomUserAgent())

	client := c.sessionFor(rawURL, insecure)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// sessionFor returns the persistent per-domain session, building a separate,
// unkept transport only when an insecure-TLS attempt is requested; the cookie
// jar is always reused so fallback attempts stay within the same domain's
// state. A proxy, when configured, is picked at random for every request.
func (c *Client) sessionFor(rawURL string, insecure bool) *http.Client {
	domain, _ := publicsuffix.EffectiveTLDPlusOne(canonical.Host(rawURL))
	if domain == "" {
		domain = canonical.Host(rawURL)
	}

	s, ok := c.sessions[domain]
	if !ok {
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		s = &session{jar: jar}
		c.sessions[domain] = s
	}

	if s.client != nil && !insecure {
		return s.client
	}

	transport := &http.Transport{
		Proxy: func(*http.Request) (*url.URL, error) { return c.randomProxy(), nil },
	}

	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in fallback
	}

	checkRedirect := func(_ *http.Request, via []*http.Request) error {
		if len(via) >= c.cfg.MaxRedirects {
			return fmt.Errorf("%w: exceeded %d redirects", apperrors.ErrUnavailable, c.cfg.MaxRedirects)
		}

		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Jar:           s.jar,
		CheckRedirect: checkRedirect,
	}

	if !insecure {
		s.client = client
	}

	return client
}

func (c *Client) randomUserAgent() string {
	if len(c.cfg.UserAgents) == 0 {
		return ""
	}

	return c.cfg.UserAgents[rand.Intn(len(c.cfg.UserAgents))] //nolint:gosec // non-cryptographic selection
}

func (c *Client) randomProxy() *url.URL {
	if len(c.cfg.Proxies) == 0 {
		return nil
	}

	raw := c.cfg.Proxies[rand.Intn(len(c.cfg.Proxies))] //nolint:gosec // non-cryptographic selection

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	return parsed
}

// recordSeen adds canon to the redirect-loop guard, pruning the set once it
// grows past maxRedirectSet entries.
func (c *Client) recordSeen(canon string) {
	if len(c.seenGet) > maxRedirectSet {
		c.seenGet = make(map[string]struct{}, maxRedirectSet)
	}

	c.seenGet[canon] = struct{}{}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
