package httpclient

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/kestrelscan/leadscrape/internal/canonical"
	"github.com/kestrelscan/leadscrape/internal/config"
)

// Limiters is the process-wide registry of per-domain token buckets. It is
// shared by every worker's *Client so that pacing is enforced across the
// whole engine, not per worker.
type Limiters struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	ratePS   float64
	capacity float64
}

// NewLimiters builds a registry whose buckets refill at 1/min_crawl_delay
// tokens per second up to a capacity of max_crawl_delay/min_crawl_delay.
func NewLimiters(cfg *config.Config) *Limiters {
	return &Limiters{
		buckets:  make(map[string]*rate.Limiter),
		ratePS:   1 / cfg.MinCrawlDelay,
		capacity: cfg.MaxCrawlDelay / cfg.MinCrawlDelay,
	}
}

// bucket returns the token bucket for domain, lazily creating one seeded at
// full capacity on first use.
func (l *Limiters) bucket(rawURL string) *rate.Limiter {
	domain := canonical.Host(rawURL)

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[domain]; ok {
		return b
	}

	capacity := int(l.capacity)
	if capacity < 1 {
		capacity = 1
	}

	b := rate.NewLimiter(rate.Limit(l.ratePS), capacity)
	l.buckets[domain] = b

	return b
}
