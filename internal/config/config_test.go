package config

import "testing"

const (
	testEnvAPIKey = "GOOGLE_API_KEY"
	testEnvCXID   = "GOOGLE_CX_ID"
	testAPIKey    = "test-api-key"
	testCXID      = "test-cx-id"
	testErrLoad   = "Load() error = %v"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvAPIKey, testAPIKey)
	t.Setenv(testEnvCXID, testCXID)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv(testEnvAPIKey, "")
	t.Setenv(testEnvCXID, "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.GoogleAPIKey != testAPIKey {
		t.Errorf("GoogleAPIKey = %q, want %q", cfg.GoogleAPIKey, testAPIKey)
	}

	if cfg.GoogleCXID != testCXID {
		t.Errorf("GoogleCXID = %q, want %q", cfg.GoogleCXID, testCXID)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.MaxFallbackPages != 12 {
		t.Errorf("MaxFallbackPages default = %d, want %d", cfg.MaxFallbackPages, 12)
	}

	if cfg.MaxWorkers != 4 {
		t.Errorf("MaxWorkers default = %d, want %d", cfg.MaxWorkers, 4)
	}

	if cfg.DomainScoreThreshold != 60 {
		t.Errorf("DomainScoreThreshold default = %d, want %d", cfg.DomainScoreThreshold, 60)
	}

	if len(cfg.PriorityPathParts) == 0 {
		t.Error("PriorityPathParts should have a default set of tokens")
	}
}

func TestLoad_InvalidCrawlDelayOrdering(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("MIN_CRAWL_DELAY", "3")
	t.Setenv("MAX_CRAWL_DELAY", "1")

	if _, err := Load(); err == nil {
		t.Error("expected error when min_crawl_delay > max_crawl_delay")
	}
}

func TestLoad_OutOfRangeRejected(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("MAX_WORKERS", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for MAX_WORKERS below its valid range")
	}
}

func TestSplitBlockedDomains(t *testing.T) {
	cfg := &Config{BlockedDomains: []string{"facebook.com", ".pdf", "linkedin.com", ".exe"}}
	cfg.splitBlockedDomains()

	if len(cfg.BlockedHostSuffixes) != 2 {
		t.Errorf("BlockedHostSuffixes = %v, want 2 entries", cfg.BlockedHostSuffixes)
	}

	if len(cfg.BlockedPathExtensions) != 2 {
		t.Errorf("BlockedPathExtensions = %v, want 2 entries", cfg.BlockedPathExtensions)
	}
}
