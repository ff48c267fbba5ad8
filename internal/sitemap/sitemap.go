// Package sitemap discovers a domain's sitemap via conventional filenames or
// robots.txt, parses urlset/sitemapindex XML (including gzip-framed and
// nested indexes), and extracts the "priority" subset of URLs whose lowercase
// form contains a configured path token.
//
// Grounded on original_source/scraper/sitemap.py, translated from Python
// generators into an explicit budget-and-collector walk, and from a
// ThreadPoolExecutor into a small bounded goroutine pool.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/canonical"
	"github.com/kestrelscan/leadscrape/internal/config"
	apperrors "github.com/kestrelscan/leadscrape/internal/core/errors"
	"github.com/kestrelscan/leadscrape/internal/httpclient"
)

// sitemapFilenames are probed, in order, against each candidate host.
var sitemapFilenames = []string{
	"sitemap.xml",
	"sitemap_index.xml",
	"sitemap-index.xml",
	"sitemap1.xml",
}

const nestedFetchWorkers = 4

// fetcher is the subset of *httpclient.Client that sitemap discovery needs.
// Parser takes it as a parameter on every call rather than owning one,
// since HTTP sessions are per-worker while the sitemap cache below is
// engine-global.
type fetcher interface {
	Get(ctx context.Context, rawURL string) (*httpclient.Response, error)
	Head(ctx context.Context, rawURL string) (*httpclient.Response, error)
}

// Parser discovers and parses sitemaps. A single Parser is shared by every
// worker in the engine; its cache is guarded by a mutex.
type Parser struct {
	cfg    *config.Config
	logger *zerolog.Logger

	mu         sync.Mutex
	discovered map[string]string // domain -> sitemap URL
	cache      map[string][]byte // sitemap URL -> decompressed content
}

// NewParser builds an empty, engine-global Parser.
func NewParser(cfg *config.Config, logger *zerolog.Logger) *Parser {
	return &Parser{
		cfg:        cfg,
		logger:     logger,
		discovered: make(map[string]string),
		cache:      make(map[string][]byte),
	}
}

// ClearCache drops every cached sitemap discovery and content entry.
func (p *Parser) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.discovered = make(map[string]string)
	p.cache = make(map[string][]byte)
}

// Discover finds the first sitemap for domain, trying conventional filenames
// before falling back to robots.txt Sitemap: directives. Discovery yields at
// most one sitemap URL total across both strategies, and the result is
// cached for the life of the Parser.
func (p *Parser) Discover(ctx context.Context, client fetcher, domain string) (string, []byte, bool) {
	p.mu.Lock()
	if url, ok := p.discovered[domain]; ok {
		body := p.cache[url]
		p.mu.Unlock()

		return url, body, true
	}
	p.mu.Unlock()

	if url, body, ok := p.discoverStandard(ctx, client, domain); ok {
		p.remember(domain, url, body)

		return url, body, true
	}

	if url, body, ok := p.discoverRobots(ctx, client, domain); ok {
		p.remember(domain, url, body)

		return url, body, true
	}

	return "", nil, false
}

func (p *Parser) remember(domain, url string, body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.discovered[domain] = url
	p.cache[url] = body
}

// hostsToTry returns the naked domain alone when it already carries a
// subdomain (3+ labels), or both the naked and www-prefixed forms otherwise.
func hostsToTry(domain string) []string {
	if strings.Count(domain, ".") >= 2 {
		return []string{domain}
	}

	return []string{domain, "www." + domain}
}

func (p *Parser) discoverStandard(ctx context.Context, client fetcher, domain string) (string, []byte, bool) {
	for _, host := range hostsToTry(domain) {
		for _, name := range sitemapFilenames {
			url := fmt.Sprintf("https://%s/%s", host, name)

			if body, ok := p.probe(ctx, client, url); ok {
				return url, body, true
			}
		}
	}

	return "", nil, false
}

func (p *Parser) discoverRobots(ctx context.Context, client fetcher, domain string) (string, []byte, bool) {
	robotsURL := fmt.Sprintf("https://%s/robots.txt", domain)

	resp, err := client.Get(ctx, robotsURL)
	if err != nil || resp == nil {
		return "", nil, false
	}

	for _, line := range strings.Split(string(resp.Body), "\n") {
		line = strings.TrimSpace(line)

		idx := strings.IndexByte(line, ':')
		if idx < 0 || !strings.EqualFold(line[:idx], "sitemap") {
			continue
		}

		candidate := strings.TrimSpace(line[idx+1:])
		if candidate == "" || canonical.Host(candidate) != domain {
			continue
		}

		if body, ok := p.probe(ctx, client, candidate); ok {
			return candidate, body, true
		}
	}

	return "", nil, false
}

// probe HEAD-checks then GETs url, accepting it only if the body is
// non-empty, within the size cap, and looks like a sitemap document.
func (p *Parser) probe(ctx context.Context, client fetcher, url string) ([]byte, bool) {
	head, err := client.Head(ctx, url)
	if err != nil || head == nil {
		return nil, false
	}

	resp, err := client.Get(ctx, url)
	if err != nil || resp == nil {
		return nil, false
	}

	body, err := maybeGunzip(resp.Body)
	if err != nil {
		return nil, false
	}

	if len(body) == 0 || len(body) > config.MaxSitemapSize {
		return nil, false
	}

	if !looksLikeXML(body) {
		return nil, false
	}

	return body, true
}

func looksLikeXML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 200 {
		head = head[:200]
	}

	return bytes.HasPrefix(head, []byte("<?xml")) ||
		bytes.Contains(head, []byte("<urlset")) ||
		bytes.Contains(head, []byte("<sitemapindex"))
}

func maybeGunzip(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", apperrors.ErrSitemap, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", apperrors.ErrSitemap, err)
	}

	return out, nil
}

// budget is an atomic "URLs remaining to yield" counter shared across an
// entire sitemapindex recursion tree.
type budget struct {
	remaining int64
}

func newBudget(n int) *budget {
	if n < 0 {
		n = 0
	}

	return &budget{remaining: int64(n)}
}

// take reports whether one more URL may be yielded, decrementing the budget
// if so.
func (b *budget) take() bool {
	for {
		cur := atomic.LoadInt64(&b.remaining)
		if cur <= 0 {
			return false
		}

		if atomic.CompareAndSwapInt64(&b.remaining, cur, cur-1) {
			return true
		}
	}
}

type collector struct {
	mu   sync.Mutex
	urls []string
}

func (c *collector) add(u string) {
	c.mu.Lock()
	c.urls = append(c.urls, u)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.urls))
	copy(out, c.urls)

	return out
}

// walk parses body as a sitemap document: a <sitemapindex> recurses into its
// children (fetched with up to nestedFetchWorkers concurrent requests),
// anything else is treated as a <urlset> and its <loc> entries are passed
// through filter. Matching entries are appended to out and decrement b;
// walk stops recursing once b is exhausted.
func (p *Parser) walk(
	ctx context.Context,
	client fetcher,
	body []byte,
	b *budget,
	filter func(string) bool,
	out *collector,
) {
	body, err := maybeGunzip(body)
	if err != nil || len(body) == 0 || len(body) > config.MaxSitemapSize {
		return
	}

	if !looksLikeXML(body) {
		return
	}

	if bytes.Contains(bytes.ToLower(body), []byte("<sitemapindex")) {
		p.walkIndex(ctx, client, body, b, filter, out)

		return
	}

	for _, loc := range extractLocs(body) {
		if filter != nil && !filter(loc) {
			continue
		}

		if !b.take() {
			return
		}

		out.add(loc)
	}
}

func (p *Parser) walkIndex(
	ctx context.Context,
	client fetcher,
	body []byte,
	b *budget,
	filter func(string) bool,
	out *collector,
) {
	locs := extractLocs(body)

	sem := make(chan struct{}, nestedFetchWorkers)

	var wg sync.WaitGroup

	for _, loc := range locs {
		loc := loc

		if atomic.LoadInt64(&b.remaining) <= 0 {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := client.Get(ctx, loc)
			if err != nil || resp == nil {
				return
			}

			p.walk(ctx, client, resp.Body, b, filter, out)
		}()
	}

	wg.Wait()
}

// PriorityURLs discovers domain's sitemap and returns URLs whose lowercase
// form contains a configured priority token, capped at
// Config.MaxFallbackPages.
func (p *Parser) PriorityURLs(ctx context.Context, client fetcher, domain string) []string {
	_, body, ok := p.Discover(ctx, client, domain)
	if !ok {
		return nil
	}

	out := &collector{}
	p.walk(ctx, client, body, newBudget(p.cfg.MaxFallbackPages), p.isPriority, out)

	return out.snapshot()
}

// GetAllURLs discovers domain's sitemap and returns every URL it lists, with
// no priority filter, capped at Config.MaxURLsPerSitemap.
func (p *Parser) GetAllURLs(ctx context.Context, client fetcher, domain string) []string {
	_, body, ok := p.Discover(ctx, client, domain)
	if !ok {
		return nil
	}

	out := &collector{}
	p.walk(ctx, client, body, newBudget(p.cfg.MaxURLsPerSitemap), nil, out)

	return out.snapshot()
}

func (p *Parser) isPriority(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	for _, tok := range p.cfg.PriorityPathParts {
		if tok != "" && strings.Contains(lower, tok) {
			return true
		}
	}

	return false
}
