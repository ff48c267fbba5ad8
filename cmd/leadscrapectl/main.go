// Command leadscrapectl is a thin demonstration CLI around the scraping
// engine: it reads a newline-delimited company list and writes CSV rows of
// (company, domain, email) to stdout. It is not the full spreadsheet-aware
// external tool; it exists to exercise the engine end to end.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/kestrelscan/leadscrape/internal/browser"
	"github.com/kestrelscan/leadscrape/internal/config"
	"github.com/kestrelscan/leadscrape/internal/engine"
	"github.com/kestrelscan/leadscrape/internal/platform/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		saveDomainOnly = flag.Bool("save-domain-only", false, "emit a domain-only row when no email is found")
		verbose        = flag.Bool("verbose", false, "enable debug logging")
		noRender       = flag.Bool("no-render", false, "disable the headless-browser render fallback")
	)

	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: leadscrapectl [flags] <company-list-file>")

		return 1
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")

		return 1
	}

	if *verbose {
		cfg.LogLevel = "debug"
	}

	setLogLevel(cfg.LogLevel)

	companies, err := readCompanies(flag.Arg(0))
	if err != nil {
		logger.Error().Err(err).Msg("failed to read company list")

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interrupted := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
		close(interrupted)
	}()

	var browserSvc *browser.Service
	if !*noRender {
		browserSvc = browser.NewService(cfg.RenderTimeout, cfg.IdleTimeout, cfg.AllowInsecureSSL, &logger)

		go func() {
			if err := browserSvc.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("browser service exited")
			}
		}()
	}

	eng := engine.New(cfg, browserSvc, &logger, *saveDomainOnly)

	healthServer := observability.NewServer(cfg.HealthPort, eng.Stats(), &logger)

	go func() {
		if err := healthServer.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("health server exited")
		}
	}()

	healthServer.SetReady(true)

	results := eng.Run(ctx, companies)

	writeCSV(results)

	snapshot := eng.Stats().Snapshot()
	logger.Info().Fields(toFields(snapshot)).Msg("run complete")

	select {
	case <-interrupted:
		return 130
	default:
		return 0
	}
}

func readCompanies(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open company list: %w", err)
	}
	defer f.Close()

	var companies []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		companies = append(companies, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan company list: %w", err)
	}

	return companies, nil
}

func writeCSV(results []engine.CompanyResult) {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	for _, r := range results {
		_ = w.Write([]string{r.Company, r.Domain, r.Email}) //nolint:errcheck // best-effort stdout write
	}
}

func toFields(snapshot map[string]int64) map[string]interface{} {
	fields := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		fields[k] = v
	}

	return fields
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
