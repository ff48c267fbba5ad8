// Package hybrid implements hybrid email extraction: try the static
// decoders first, and only pay for a headless-browser render when the raw
// document yields nothing.
package hybrid

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/browser"
	"github.com/kestrelscan/leadscrape/internal/canonical"
	"github.com/kestrelscan/leadscrape/internal/config"
	"github.com/kestrelscan/leadscrape/internal/emailextract"
	"github.com/kestrelscan/leadscrape/internal/httpclient"
)

// getter is the subset of *httpclient.Client a fetch-then-extract call needs.
type getter interface {
	Get(ctx context.Context, rawURL string) (*httpclient.Response, error)
}

// Extractor runs the static pass and falls back to browser.Service rendering.
// It is engine-global: the "already extracted this run" dedup and the
// per-URL render memo are both shared across every company and worker.
type Extractor struct {
	cfg     *config.Config
	browser *browser.Service
	opts    emailextract.Options
	logger  *zerolog.Logger

	mu            sync.Mutex
	extractedURLs map[string]bool
	renderMemo    map[string][]emailextract.Email
}

// New builds an Extractor. browserSvc may be nil, which disables the
// render fallback entirely (equivalent to DisableJSFallback).
func New(cfg *config.Config, browserSvc *browser.Service, opts emailextract.Options, logger *zerolog.Logger) *Extractor {
	return &Extractor{
		cfg:           cfg,
		browser:       browserSvc,
		opts:          opts,
		logger:        logger,
		extractedURLs: make(map[string]bool),
		renderMemo:    make(map[string][]emailextract.Email),
	}
}

// Extract fetches rawURL via client and runs the hybrid pass over the
// response. Every call after the first for the same canonical URL in one
// engine run returns nil without fetching.
func (e *Extractor) Extract(ctx context.Context, client getter, rawURL string) []emailextract.Email {
	if e.alreadyExtracted(rawURL) {
		return nil
	}

	resp, err := client.Get(ctx, rawURL)
	if err != nil || resp == nil {
		return nil
	}

	return e.extractFromResponse(ctx, rawURL, resp)
}

// ExtractFromResponse is the already-fetched variant of Extract: it skips
// the HTTP call but still enforces the global per-URL dedup.
func (e *Extractor) ExtractFromResponse(ctx context.Context, rawURL string, resp *httpclient.Response) []emailextract.Email {
	if e.alreadyExtracted(rawURL) {
		return nil
	}

	return e.extractFromResponse(ctx, rawURL, resp)
}

func (e *Extractor) alreadyExtracted(rawURL string) bool {
	canon := canonical.URL(rawURL)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.extractedURLs[canon] {
		return true
	}

	e.extractedURLs[canon] = true

	return false
}

func (e *Extractor) extractFromResponse(ctx context.Context, rawURL string, resp *httpclient.Response) []emailextract.Email {
	if resp == nil || !isHTMLContentType(resp.ContentType) {
		return nil
	}

	hits := emailextract.StaticPass(string(resp.Body), e.opts)
	if len(hits) > 0 || e.cfg.DisableJSFallback || e.browser == nil {
		return hits
	}

	return e.renderAndExtract(ctx, rawURL)
}

// renderAndExtract requests a render from the browser service and re-runs
// the static pass over the rendered HTML, memoizing the result per URL so a
// page is never rendered twice within one engine run.
func (e *Extractor) renderAndExtract(ctx context.Context, rawURL string) []emailextract.Email {
	canon := canonical.URL(rawURL)

	e.mu.Lock()
	if cached, ok := e.renderMemo[canon]; ok {
		e.mu.Unlock()

		return cached
	}
	e.mu.Unlock()

	rendered := e.browser.Render(ctx, rawURL, e.cfg.RenderTimeout+e.cfg.IdleTimeout)

	var hits []emailextract.Email
	if rendered != "" {
		hits = emailextract.StaticPass(rendered, e.opts)
	}

	e.mu.Lock()
	e.renderMemo[canon] = hits
	e.mu.Unlock()

	return hits
}

func isHTMLContentType(contentType string) bool {
	if contentType == "" {
		return true
	}

	return strings.Contains(strings.ToLower(contentType), "text/html")
}
