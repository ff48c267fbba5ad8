// Package engine implements the per-company pipeline: search, score,
// extract, and aggregate, with global at-most-once domain semantics across
// concurrently processed companies.
//
// Grounded on original_source/pipeline.py's per-company flow and on the
// teacher's cmd/crawler worker-pool shape for the top-level concurrency.
package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/browser"
	"github.com/kestrelscan/leadscrape/internal/canonical"
	"github.com/kestrelscan/leadscrape/internal/config"
	"github.com/kestrelscan/leadscrape/internal/crawler"
	"github.com/kestrelscan/leadscrape/internal/emailextract"
	"github.com/kestrelscan/leadscrape/internal/hybrid"
	"github.com/kestrelscan/leadscrape/internal/httpclient"
	"github.com/kestrelscan/leadscrape/internal/platform/observability"
	"github.com/kestrelscan/leadscrape/internal/platform/worker"
	"github.com/kestrelscan/leadscrape/internal/scorer"
	"github.com/kestrelscan/leadscrape/internal/search"
	"github.com/kestrelscan/leadscrape/internal/sitemap"
)

// CompanyResult is one output row: a company matched to a domain and,
// normally, one harvested email. Email is empty for a domain-only row.
type CompanyResult struct {
	Company string
	Domain  string
	Email   string
}

// Engine runs the full per-company pipeline concurrently for many
// companies, enforcing that any one domain is ever fully processed once
// across the whole run. The global mutable state that guards this lives as
// fields on Engine, behind a single lock.
type Engine struct {
	cfg    *config.Config
	logger *zerolog.Logger

	limiters      *httpclient.Limiters
	searchClient  *search.Client
	extractOpts   emailextract.Options
	sitemapParser *sitemap.Parser
	pageCounter   *crawler.PageCounter
	hybrid        *hybrid.Extractor
	crawl         *crawler.Crawler

	stats *Stats

	saveDomainOnly bool

	mu          sync.Mutex
	seenDomains map[string]bool
	inProgress  map[string]bool
}

// New builds an Engine. browserSvc may be nil, which disables the
// render fallback for every company's extraction.
func New(cfg *config.Config, browserSvc *browser.Service, logger *zerolog.Logger, saveDomainOnly bool) *Engine {
	limiters := httpclient.NewLimiters(cfg)
	opts := emailextract.Options{}
	hybridExtractor := hybrid.New(cfg, browserSvc, opts, logger)
	pageCounter := crawler.NewPageCounter()

	return &Engine{
		cfg:            cfg,
		logger:         logger,
		limiters:       limiters,
		searchClient:   search.New(cfg, logger),
		extractOpts:    opts,
		sitemapParser:  sitemap.NewParser(cfg, logger),
		pageCounter:    pageCounter,
		hybrid:         hybridExtractor,
		crawl:          crawler.New(cfg, limiters, pageCounter, hybridExtractor, logger),
		stats:          NewStats(),
		saveDomainOnly: saveDomainOnly,
		seenDomains:    make(map[string]bool),
		inProgress:     make(map[string]bool),
	}
}

// Stats returns the engine's running statistics snapshot provider, for
// wiring into observability.NewServer's /stats endpoint.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Run processes every company in companies concurrently, bounded by
// Config.MaxWorkers, and returns the union of every company's result rows.
// Ordering of the returned rows is unspecified: there are no ordering
// guarantees between concurrent companies.
func (e *Engine) Run(ctx context.Context, companies []string) []CompanyResult {
	jobs := make(chan string)

	var (
		mu      sync.Mutex
		results []CompanyResult
		wg      sync.WaitGroup
	)

	workers := e.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for company := range jobs {
				observability.InFlightCompanies.Inc()

				rows := e.ProcessCompany(ctx, company)

				observability.InFlightCompanies.Dec()

				mu.Lock()
				results = append(results, rows...)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, company := range companies {
		select {
		case jobs <- company:
		case <-ctx.Done():
			break feed
		}
	}

	close(jobs)
	wg.Wait()

	return dedupe(results)
}

// dedupe drops exact (Company, Domain, Email) duplicates.
func dedupe(rows []CompanyResult) []CompanyResult {
	seen := make(map[CompanyResult]bool, len(rows))
	out := make([]CompanyResult, 0, len(rows))

	for _, r := range rows {
		if seen[r] {
			continue
		}

		seen[r] = true
		out = append(out, r)
	}

	return out
}

// ProcessCompany runs the full per-company pipeline for a single company
// name and returns its result rows.
func (e *Engine) ProcessCompany(ctx context.Context, company string) []CompanyResult {
	defer worker.RecoverPanic(e.logger, "process company "+company)

	e.stats.Leads.Add(1)

	hits, err := e.searchClient.Search(ctx, company)
	if err != nil {
		e.stats.GoogleErrors.Add(1)

		hits = nil
	}

	if len(hits) == 0 {
		e.stats.NoGoogle.Add(1)
		observability.CompaniesProcessed.WithLabelValues("no_google").Inc()

		return nil
	}

	best, ok := scorer.Best(company, hits)
	if !ok || best.Score < e.cfg.DomainScoreThreshold {
		e.stats.DomainUnclear.Add(1)
		observability.CompaniesProcessed.WithLabelValues("domain_unclear").Inc()

		return nil
	}

	domain := canonical.Host(best.URL)
	if domain == "" {
		e.stats.DomainUnclear.Add(1)
		observability.CompaniesProcessed.WithLabelValues("domain_unclear").Inc()

		return nil
	}

	if !e.claimDomain(domain) {
		e.stats.SkippedDomain.Add(1)
		observability.CompaniesProcessed.WithLabelValues("skipped_domain").Inc()

		return nil
	}
	defer e.releaseDomain(domain)

	e.stats.DomainFound.Add(1)

	emails := e.harvestEmails(ctx, domain, best.URL)

	return e.emitRows(company, domain, emails)
}

// claimDomain enforces the global at-most-once guard: a domain already seen
// or currently in progress is rejected outright.
func (e *Engine) claimDomain(domain string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seenDomains[domain] || e.inProgress[domain] {
		return false
	}

	e.inProgress[domain] = true

	return true
}

// releaseDomain moves domain from in-progress to seen, regardless of how
// processing ended, as if running in a finally block.
func (e *Engine) releaseDomain(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.inProgress, domain)
	e.seenDomains[domain] = true
}

// harvestEmails runs steps 6-8: home page, sitemap priority pages, and a
// crawler fallback, each merging into the accumulated result set.
func (e *Engine) harvestEmails(ctx context.Context, domain, homeURL string) []emailextract.Email {
	client := httpclient.New(e.cfg, e.limiters, e.logger)

	found := make(map[string]emailextract.Email)

	merge := func(hits []emailextract.Email) {
		for _, h := range hits {
			if _, ok := found[h.Address]; !ok {
				found[h.Address] = h
			}
		}
	}

	homeResp, err := client.Get(ctx, homeURL)
	if err != nil {
		e.stats.ProcessingErrors.Add(1)
	}

	if homeResp != nil {
		merge(e.hybrid.ExtractFromResponse(ctx, homeURL, homeResp))
	}

	priorityURLs := e.sitemapParser.PriorityURLs(ctx, client, domain)
	if len(priorityURLs) > 0 {
		e.stats.SitemapUsed.Add(1)

		for _, u := range priorityURLs {
			merge(e.hybrid.Extract(ctx, client, u))
		}
	}

	if len(found) == 0 {
		merge(e.crawl.Crawl(ctx, domain, homeResp))
	}

	out := make([]emailextract.Email, 0, len(found))
	for _, h := range found {
		out = append(out, h)
	}

	return out
}

// emitRows emits one row per email, or a single domain-only row when
// save-domain-only is enabled and nothing was found.
func (e *Engine) emitRows(company, domain string, emails []emailextract.Email) []CompanyResult {
	if len(emails) == 0 {
		e.stats.WithoutEmail.Add(1)
		observability.CompaniesProcessed.WithLabelValues("without_email").Inc()

		if !e.saveDomainOnly {
			return nil
		}

		return []CompanyResult{{Company: company, Domain: domain}}
	}

	e.stats.WithEmail.Add(1)
	observability.CompaniesProcessed.WithLabelValues("with_email").Inc()

	rows := make([]CompanyResult, 0, len(emails))

	for _, email := range emails {
		e.stats.RecordEmail(email.Address)
		observability.EmailsExtracted.Inc()

		rows = append(rows, CompanyResult{Company: company, Domain: domain, Email: email.Address})
	}

	return rows
}
