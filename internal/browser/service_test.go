package browser

import (
	"context"
	"testing"
	"time"
)

// TestRenderNeverBlocksIndefinitely exercises invariant 6: every Render call
// returns within its timeout even when nothing is consuming the request
// queue (e.g. the dispatch loop has not started, or the service is shut down).
func TestRenderNeverBlocksIndefinitely(t *testing.T) {
	svc := NewService(time.Second, time.Second, false, nopLogger())

	start := time.Now()

	html := svc.Render(context.Background(), "https://example.com", 100*time.Millisecond)

	if html != "" {
		t.Errorf("Render() with no running dispatcher = %q, want empty string", html)
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Render() took %v, want it bounded by its timeout", elapsed)
	}
}

func TestRenderRespectsCallerCancellation(t *testing.T) {
	svc := NewService(time.Second, time.Second, false, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	html := svc.Render(ctx, "https://example.com", time.Second)
	if html != "" {
		t.Errorf("Render() with a canceled context = %q, want empty string", html)
	}
}
