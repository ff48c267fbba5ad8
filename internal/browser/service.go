// Package browser runs a single long-lived headless browser and serves
// synchronous "render this URL to HTML" requests from concurrent callers
// through a request queue in which every request carries its own reply
// channel, so callers never share a reply channel or touch chromedp directly.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/platform/observability"
	"github.com/kestrelscan/leadscrape/internal/platform/worker"
)

const (
	networkIdleQuiet     = 500 * time.Millisecond
	requestQueueCapacity = 64
)

type renderRequest struct {
	url   string
	reply chan string
}

// Service owns the one browser instance for the engine. The zero value is
// not usable; build one with NewService.
type Service struct {
	renderTimeout time.Duration
	idleTimeout   time.Duration
	insecureTLS   bool
	logger        *zerolog.Logger

	requests chan renderRequest
}

// NewService builds a Service. Call Start to launch the browser process and
// begin serving Render calls.
func NewService(renderTimeout, idleTimeout time.Duration, insecureTLS bool, logger *zerolog.Logger) *Service {
	return &Service{
		renderTimeout: renderTimeout,
		idleTimeout:   idleTimeout,
		insecureTLS:   insecureTLS,
		logger:        logger,
		requests:      make(chan renderRequest, requestQueueCapacity),
	}
}

// Start launches the headless browser and runs the dispatch loop until ctx
// is canceled, at which point the browser is closed and Start returns. Start
// blocks, so callers should run it in its own goroutine.
func (s *Service) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("ignore-certificate-errors", s.insecureTLS),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	// Force the browser process to start now rather than lazily on first use.
	if err := chromedp.Run(browserCtx); err != nil {
		return err
	}

	s.logger.Info().Msg("browser service started")

	defer s.logger.Info().Msg("browser service shut down")

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.requests:
			s.handle(browserCtx, req)
		}
	}
}

func (s *Service) handle(browserCtx context.Context, req renderRequest) {
	defer worker.RecoverPanic(s.logger, "browser render")

	html, err := s.render(browserCtx, req.url)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", req.url).Msg("render failed")
		observability.BrowserRenders.WithLabelValues("error").Inc()
	} else if html == "" {
		observability.BrowserRenders.WithLabelValues("empty").Inc()
	} else {
		observability.BrowserRenders.WithLabelValues("ok").Inc()
	}

	req.reply <- html
}

// render navigates to url on a fresh tab, waits for network idle up to
// renderTimeout, then waits once more for idle up to idleTimeout, and
// returns whatever HTML is available. Navigation timeouts yield "", not an
// error: per the contract, only unexpected chromedp failures are errors.
func (s *Service) render(browserCtx context.Context, url string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	idle := newIdleTracker()

	chromedp.ListenTarget(tabCtx, idle.onEvent)

	navCtx, navCancel := context.WithTimeout(tabCtx, s.renderTimeout)
	defer navCancel()

	var html string

	err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(url),
		idle.waitQuiet(networkIdleQuiet),
	)
	if err != nil {
		if navCtx.Err() != nil {
			s.logger.Debug().Err(err).Str("url", url).Msg("navigation timed out")

			return "", nil
		}

		return "", err
	}

	idleCtx, idleCancel := context.WithTimeout(tabCtx, s.idleTimeout)
	defer idleCancel()

	_ = chromedp.Run(idleCtx, idle.waitQuiet(networkIdleQuiet))

	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", nil //nolint:nilerr // empty HTML is the documented failure signal
	}

	return html, nil
}

// Render requests a render of url and blocks until the result arrives, the
// caller's context is canceled, or timeout elapses, whichever comes first.
// It always returns an empty string rather than blocking indefinitely.
func (s *Service) Render(ctx context.Context, url string, timeout time.Duration) string {
	reply := make(chan string, 1)
	deadline := time.After(timeout)

	select {
	case s.requests <- renderRequest{url: url, reply: reply}:
	case <-ctx.Done():
		return ""
	case <-deadline:
		return ""
	}

	select {
	case html := <-reply:
		return html
	case <-ctx.Done():
		return ""
	case <-deadline:
		return ""
	}
}

// RequestID returns a fresh random identifier. The service does not key
// requests by ID: each request carries its own reply channel instead.
func RequestID() string {
	return uuid.NewString()
}
