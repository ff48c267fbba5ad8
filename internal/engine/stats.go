package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates the run-wide summary counters a completed run must
// report, implemented as independent atomics so concurrent company workers
// never contend on a single lock for the common case.
type Stats struct {
	Leads            atomic.Int64
	DomainFound      atomic.Int64
	NoGoogle         atomic.Int64
	DomainUnclear    atomic.Int64
	SkippedDomain    atomic.Int64
	SitemapUsed      atomic.Int64
	WithEmail        atomic.Int64
	WithoutEmail     atomic.Int64
	GoogleErrors     atomic.Int64
	ProcessingErrors atomic.Int64

	start time.Time

	mu           sync.Mutex
	uniqueEmails map[string]struct{}
}

// NewStats builds an empty Stats, timestamped at construction for the
// /stats runtime field.
func NewStats() *Stats {
	return &Stats{
		start:        time.Now(),
		uniqueEmails: make(map[string]struct{}),
	}
}

// RecordEmail adds address to the run's unique-email set.
func (s *Stats) RecordEmail(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uniqueEmails[address] = struct{}{}
}

func (s *Stats) uniqueEmailCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.uniqueEmails))
}

// Snapshot implements observability.StatsProvider for the /stats endpoint.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"leads":             s.Leads.Load(),
		"domain_found":      s.DomainFound.Load(),
		"no_google":         s.NoGoogle.Load(),
		"domain_unclear":    s.DomainUnclear.Load(),
		"skipped_domain":    s.SkippedDomain.Load(),
		"sitemap_used":      s.SitemapUsed.Load(),
		"with_email":        s.WithEmail.Load(),
		"without_email":     s.WithoutEmail.Load(),
		"google_errors":     s.GoogleErrors.Load(),
		"processing_errors": s.ProcessingErrors.Load(),
		"unique_emails":     s.uniqueEmailCount(),
		"runtime_seconds":   int64(time.Since(s.start).Seconds()),
	}
}
