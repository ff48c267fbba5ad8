package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/canonical"
	"github.com/kestrelscan/leadscrape/internal/config"
	"github.com/kestrelscan/leadscrape/internal/crawler"
	"github.com/kestrelscan/leadscrape/internal/emailextract"
	"github.com/kestrelscan/leadscrape/internal/httpclient"
	"github.com/kestrelscan/leadscrape/internal/hybrid"
	"github.com/kestrelscan/leadscrape/internal/sitemap"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()

	return &l
}

func testConfig() *config.Config {
	return &config.Config{
		MaxFallbackPages:  3,
		MaxWorkers:        4,
		MaxRedirects:      5,
		MaxURLLength:      2000,
		ConnectionTimeout: 2 * time.Second,
		ReadTimeout:       2 * time.Second,
		MinCrawlDelay:     0.001,
		MaxCrawlDelay:     0.01,
		UserAgents:        []string{"test-agent"},
		DisableJSFallback: true,
		MaxURLsPerSitemap: 100,
		PriorityPathParts: []string{"contact", "about"},
	}
}

// testEngine builds an Engine directly (bypassing New, which wires a
// real search.Client against the live Google API) so harvesting and
// domain-claim behaviour can be exercised against a local HTTP server.
func testEngine(cfg *config.Config) *Engine {
	limiters := httpclient.NewLimiters(cfg)
	opts := emailextract.Options{TestMode: true}
	hybridExtractor := hybrid.New(cfg, nil, opts, testLogger())
	pageCounter := crawler.NewPageCounter()

	return &Engine{
		cfg:           cfg,
		logger:        testLogger(),
		limiters:      limiters,
		extractOpts:   opts,
		sitemapParser: sitemap.NewParser(cfg, testLogger()),
		pageCounter:   pageCounter,
		hybrid:        hybridExtractor,
		crawl:         crawler.New(cfg, limiters, pageCounter, hybridExtractor, testLogger()),
		stats:         NewStats(),
		seenDomains:   make(map[string]bool),
		inProgress:    make(map[string]bool),
	}
}

func TestClaimDomainIsAtMostOnce(t *testing.T) {
	e := testEngine(testConfig())

	if !e.claimDomain("example.com") {
		t.Fatal("expected the first claim to succeed")
	}

	if e.claimDomain("example.com") {
		t.Error("expected a second claim while in-progress to fail")
	}

	e.releaseDomain("example.com")

	if e.claimDomain("example.com") {
		t.Error("expected a claim after release (now seen) to fail")
	}
}

func TestClaimDomainConcurrentClaimsGrantExactlyOne(t *testing.T) {
	e := testEngine(testConfig())

	const attempts = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if e.claimDomain("contested.example") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if granted != 1 {
		t.Errorf("granted = %d concurrent claims, want exactly 1", granted)
	}
}

func TestDedupeDropsExactDuplicateRows(t *testing.T) {
	rows := []CompanyResult{
		{Company: "Acme", Domain: "acme.com", Email: "a@acme.com"},
		{Company: "Acme", Domain: "acme.com", Email: "a@acme.com"},
		{Company: "Acme", Domain: "acme.com", Email: "b@acme.com"},
	}

	out := dedupe(rows)
	if len(out) != 2 {
		t.Fatalf("dedupe() = %+v, want 2 unique rows", out)
	}
}

func TestEmitRowsOneRowPerEmail(t *testing.T) {
	e := testEngine(testConfig())

	rows := e.emitRows("Acme", "acme.com", []emailextract.Email{
		{Address: "a@acme.com", Source: "text"},
		{Address: "b@acme.com", Source: "mailto"},
	})

	if len(rows) != 2 {
		t.Fatalf("emitRows() = %+v, want 2 rows", rows)
	}

	if e.stats.WithEmail.Load() != 1 {
		t.Errorf("WithEmail = %d, want 1", e.stats.WithEmail.Load())
	}
}

func TestEmitRowsNoRowsWithoutSaveDomainOnly(t *testing.T) {
	e := testEngine(testConfig())

	rows := e.emitRows("Acme", "acme.com", nil)
	if rows != nil {
		t.Errorf("emitRows() = %+v, want nil when no emails and save-domain-only is off", rows)
	}

	if e.stats.WithoutEmail.Load() != 1 {
		t.Errorf("WithoutEmail = %d, want 1", e.stats.WithoutEmail.Load())
	}
}

func TestEmitRowsDomainOnlyRowWhenConfigured(t *testing.T) {
	e := testEngine(testConfig())
	e.saveDomainOnly = true

	rows := e.emitRows("Acme", "acme.com", nil)
	if len(rows) != 1 || rows[0].Email != "" || rows[0].Domain != "acme.com" {
		t.Fatalf("emitRows() = %+v, want a single domain-only row", rows)
	}
}

func TestHarvestEmailsFindsHomePageAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>contact@example.com</body></html>`)
	}))
	defer srv.Close()

	e := testEngine(testConfig())
	domain := canonical.Host(srv.URL)

	emails := e.harvestEmails(context.Background(), domain, srv.URL+"/")

	if len(emails) != 1 || emails[0].Address != "contact@example.com" {
		t.Fatalf("harvestEmails() = %+v, want the home page address", emails)
	}
}

func TestHarvestEmailsFallsBackToCrawlerWhenHomePageIsEmpty(t *testing.T) {
	var mux http.ServeMux

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>no address here but <a href="/contact">contact</a></body></html>`)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>reach us at deep@example.com</body></html>`)
	})

	srv := httptest.NewServer(&mux)
	defer srv.Close()

	e := testEngine(testConfig())
	domain := canonical.Host(srv.URL)

	emails := e.harvestEmails(context.Background(), domain, srv.URL+"/")

	found := false

	for _, em := range emails {
		if em.Address == "deep@example.com" {
			found = true
		}
	}

	if !found {
		t.Errorf("harvestEmails() = %+v, want the crawler fallback to reach deep@example.com", emails)
	}
}

func TestStatsSnapshotKeys(t *testing.T) {
	s := NewStats()
	s.Leads.Add(1)
	s.RecordEmail("a@example.com")
	s.RecordEmail("a@example.com")
	s.RecordEmail("b@example.com")

	snap := s.Snapshot()

	if snap["leads"] != 1 {
		t.Errorf("leads = %d, want 1", snap["leads"])
	}

	if snap["unique_emails"] != 2 {
		t.Errorf("unique_emails = %d, want 2", snap["unique_emails"])
	}

	for _, key := range []string{
		"domain_found", "no_google", "domain_unclear", "skipped_domain",
		"sitemap_used", "with_email", "without_email", "google_errors",
		"processing_errors", "runtime_seconds",
	} {
		if _, ok := snap[key]; !ok {
			t.Errorf("Snapshot() missing key %q", key)
		}
	}
}
