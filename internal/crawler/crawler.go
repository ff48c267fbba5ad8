// Package crawler implements a bounded same-domain BFS that feeds pages to
// the hybrid email extractor once sitemap-derived priority pages come up
// empty.
//
// Grounded on original_source/crawler.py's Crawler.crawl_small: the same
// seen-set-plus-queue frontier, the same non-atomic check/fetch/increment
// page-counting protocol, and the same best-effort worker-pool shape,
// translated into goroutines following the teacher's worker-loop idiom
// (internal/crawler/crawler.go's processURL / panic recovery).
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/canonical"
	"github.com/kestrelscan/leadscrape/internal/config"
	"github.com/kestrelscan/leadscrape/internal/emailextract"
	"github.com/kestrelscan/leadscrape/internal/hybrid"
	"github.com/kestrelscan/leadscrape/internal/httpclient"
	"github.com/kestrelscan/leadscrape/internal/platform/observability"
	"github.com/kestrelscan/leadscrape/internal/platform/worker"
)

const (
	defaultCrawlerWorkers = 4
	maxCrawlSeconds       = 60
)

// PageCounter is the process-wide, per-domain fetched-page count. It is
// shared across every company's crawl so the page quota is enforced
// globally, not per crawl invocation.
//
// Increment deliberately happens in a separate critical section from the
// AtLimit check (step 3 then step 5 of the protocol): a fetch that is
// already in flight when the limit is reached is allowed to complete and
// counted, matching the non-atomic check-then-fetch-then-increment
// sequence of the original implementation rather than a compare-and-swap
// that would reject it outright.
type PageCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewPageCounter builds an empty, process-wide PageCounter.
func NewPageCounter() *PageCounter {
	return &PageCounter{counts: make(map[string]int)}
}

// AtLimit reports whether domain has already reached limit fetched pages.
func (p *PageCounter) AtLimit(domain string, limit int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.counts[domain] >= limit
}

// Increment records one more fetched page for domain and returns the new
// count.
func (p *PageCounter) Increment(domain string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[domain]++

	return p.counts[domain]
}

// frontier is the per-crawl BFS state: a seen-set of canonical URLs and a
// FIFO queue, both guarded by one mutex.
type frontier struct {
	mu    sync.Mutex
	seen  map[string]bool
	queue []string
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]bool)}
}

// seedWith marks canon seen and enqueues it, unconditionally (the seed URL
// is assumed fresh).
func (f *frontier) seedWith(canon string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen[canon] = true
	f.queue = append(f.queue, canon)
}

// pop removes and returns the head of the queue, or reports empty.
func (f *frontier) pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}

	u := f.queue[0]
	f.queue = f.queue[1:]

	return u, true
}

// enqueueIfNew adds canon to the queue iff it is not already in the seen
// set, atomically with the seen-set check.
func (f *frontier) enqueueIfNew(canon string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[canon] {
		return
	}

	f.seen[canon] = true
	f.queue = append(f.queue, canon)
}

// emailSet is a concurrency-safe accumulator for the crawl's result set:
// Only set semantics matter for the result: never ordering.
type emailSet struct {
	mu     sync.Mutex
	byAddr map[string]emailextract.Email
}

func newEmailSet() *emailSet {
	return &emailSet{byAddr: make(map[string]emailextract.Email)}
}

func (s *emailSet) addAll(emails []emailextract.Email) {
	if len(emails) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range emails {
		if _, ok := s.byAddr[e.Address]; !ok {
			s.byAddr[e.Address] = e
		}
	}
}

func (s *emailSet) snapshot() []emailextract.Email {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]emailextract.Email, 0, len(s.byAddr))
	for _, e := range s.byAddr {
		out = append(out, e)
	}

	return out
}

// Crawler runs bounded BFS crawls. A single Crawler is shared by every
// company worker in the engine; each crawl spawns its own short-lived
// worker goroutines, each owning its own *httpclient.Client so HTTP
// sessions stay thread-local.
type Crawler struct {
	cfg      *config.Config
	limiters *httpclient.Limiters
	counter  *PageCounter
	hybrid   *hybrid.Extractor
	logger   *zerolog.Logger
}

// New builds a Crawler. counter and limiters must be the same instances
// shared with the rest of the engine so page quotas and rate limits are
// enforced process-wide.
func New(cfg *config.Config, limiters *httpclient.Limiters, counter *PageCounter, hybridExtractor *hybrid.Extractor, logger *zerolog.Logger) *Crawler {
	return &Crawler{
		cfg:      cfg,
		limiters: limiters,
		counter:  counter,
		hybrid:   hybridExtractor,
		logger:   logger,
	}
}

// Crawl runs a bounded BFS over domain, starting from the canonical form of
// seedResp's final URL (or https://domain if seedResp is nil), and returns
// the union of emails found by every worker.
func (c *Crawler) Crawl(ctx context.Context, domain string, seedResp *httpclient.Response) []emailextract.Email {
	limit := c.cfg.MaxFallbackPages

	maxTime := time.Duration(limit*2) * time.Second
	if maxTime > maxCrawlSeconds*time.Second {
		maxTime = maxCrawlSeconds * time.Second
	}

	startTime := time.Now()

	startURL := "https://" + domain
	if seedResp != nil && seedResp.FinalURL != "" {
		startURL = seedResp.FinalURL
	}

	f := newFrontier()
	f.seedWith(canonical.URL(startURL))

	emails := newEmailSet()

	c.logger.Debug().
		Str("domain", domain).
		Int("limit", limit).
		Dur("max_time", maxTime).
		Msg("starting crawl")

	var wg sync.WaitGroup

	for i := 0; i < defaultCrawlerWorkers; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()
			defer worker.RecoverPanic(c.logger, fmt.Sprintf("crawler worker %d domain %s", workerID, domain))

			client := httpclient.New(c.cfg, c.limiters, c.logger)
			c.runWorker(ctx, client, domain, limit, startTime, maxTime, f, emails)
		}(i)
	}

	wg.Wait()

	return emails.snapshot()
}

// runWorker is one crawler-internal thread's loop, implementing the
// protocol's seven numbered steps exactly.
func (c *Crawler) runWorker(
	ctx context.Context,
	client *httpclient.Client,
	domain string,
	limit int,
	startTime time.Time,
	maxTime time.Duration,
	f *frontier,
	emails *emailSet,
) {
	for {
		// 1. wall-clock guard
		if time.Since(startTime) > maxTime {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		// 2. pop under the queue lock; empty means permanently done
		u, ok := f.pop()
		if !ok {
			return
		}

		// 3. pre-fetch domain-limit check
		if c.counter.AtLimit(domain, limit) {
			return
		}

		// 4. fetch; a failed fetch doesn't count against the quota
		resp, err := client.Get(ctx, u)
		if err != nil || resp == nil {
			continue
		}

		// 5. only now increment, and read the true count
		current := c.counter.Increment(domain)
		observability.CrawlPagesFetched.WithLabelValues(domain).Inc()

		c.logger.Debug().Str("url", u).Int("count", current).Int("limit", limit).Msg("crawled page")

		// 6. process the page: extract emails, discover same-domain links
		c.processResponse(ctx, u, domain, resp, f, emails)

		// 7. stop as soon as the limit is reached
		if current >= limit {
			return
		}
	}
}

func (c *Crawler) processResponse(
	ctx context.Context,
	pageURL, domain string,
	resp *httpclient.Response,
	f *frontier,
	emails *emailSet,
) {
	defer worker.RecoverPanic(c.logger, "crawler process response "+pageURL)

	hits := c.hybrid.ExtractFromResponse(ctx, pageURL, resp)
	emails.addAll(hits)

	for _, link := range extractLinks(string(resp.Body), pageURL) {
		if !c.worthCrawling(link) {
			continue
		}

		host := canonical.Host(link)
		if host == "" || !canonical.SameHost(domain, host) {
			continue
		}

		f.enqueueIfNew(canonical.URL(link))
	}
}
