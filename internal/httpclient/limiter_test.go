package httpclient

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelscan/leadscrape/internal/config"
)

func TestLimitersBucketIsPerDomain(t *testing.T) {
	cfg := &config.Config{MinCrawlDelay: 0.1, MaxCrawlDelay: 0.2}
	limiters := NewLimiters(cfg)

	a := limiters.bucket("https://a.example/page")
	b := limiters.bucket("https://b.example/page")
	again := limiters.bucket("https://a.example/other-page")

	if a == b {
		t.Error("different domains should not share a token bucket")
	}

	if a != again {
		t.Error("the same domain should reuse its token bucket across URLs")
	}
}

func TestLimitersBucketBurstThenBlocks(t *testing.T) {
	cfg := &config.Config{MinCrawlDelay: 0.05, MaxCrawlDelay: 0.1}
	limiters := NewLimiters(cfg)

	bucket := limiters.bucket("https://example.com/")

	ctx := context.Background()

	// capacity = max/min = 2 tokens available immediately.
	for i := 0; i < 2; i++ {
		if err := bucket.Wait(ctx); err != nil {
			t.Fatalf("burst token %d: wait error = %v", i, err)
		}
	}

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		t.Fatalf("third wait error = %v", err)
	}

	if elapsed := time.Since(start); elapsed <= 0 {
		t.Error("expected the third wait to block once the burst capacity is exhausted")
	}
}
