package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP client requests by final status bucket
	// ("no-response" for requests that never got a response).
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadscrape_http_requests_total",
		Help: "Total number of outbound HTTP requests by result status",
	}, []string{"status"})

	CrawlPagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadscrape_crawl_pages_fetched_total",
		Help: "Total number of pages fetched by the bounded crawler",
	}, []string{"domain"})

	BrowserRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadscrape_browser_renders_total",
		Help: "Total number of headless-render requests by result",
	}, []string{"result"})

	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadscrape_search_requests_total",
		Help: "Total number of search API calls by result",
	}, []string{"result"})

	CompaniesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadscrape_companies_processed_total",
		Help: "Total number of companies processed by outcome",
	}, []string{"outcome"})

	EmailsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadscrape_emails_extracted_total",
		Help: "Total number of emails emitted in result rows, counted once per company",
	})

	InFlightCompanies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadscrape_companies_in_flight",
		Help: "Number of companies currently being processed",
	})
)
