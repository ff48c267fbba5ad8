package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// idleTracker approximates Playwright's wait_until="networkidle" by counting
// in-flight requests from CDP network events: chromedp has no built-in
// equivalent, so "idle" here means zero in-flight requests held for a quiet
// window.
type idleTracker struct {
	mu       sync.Mutex
	inFlight int
}

func newIdleTracker() *idleTracker {
	return &idleTracker{}
}

func (t *idleTracker) onEvent(ev interface{}) {
	switch ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.inFlight++
		t.mu.Unlock()
	case *network.EventLoadingFinished, *network.EventLoadingFailed:
		t.mu.Lock()
		if t.inFlight > 0 {
			t.inFlight--
		}
		t.mu.Unlock()
	}
}

func (t *idleTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.inFlight
}

// waitQuiet blocks until in-flight requests have stayed at zero for quiet,
// or the surrounding context is canceled (which the caller turns into a soft
// timeout rather than a hard error).
func (t *idleTracker) waitQuiet(quiet time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(quiet / 5)
		defer ticker.Stop()

		var quietSince time.Time

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if t.count() == 0 {
					if quietSince.IsZero() {
						quietSince = time.Now()
					}

					if time.Since(quietSince) >= quiet {
						return nil
					}
				} else {
					quietSince = time.Time{}
				}
			}
		}
	}
}
