// Package config loads and validates the engine's runtime configuration from
// the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	apperrors "github.com/kestrelscan/leadscrape/internal/core/errors"
)

// Config holds all tunables for a single engine run. It is built once at
// startup by Load and is immutable thereafter.
type Config struct {
	GoogleAPIKey string `env:"GOOGLE_API_KEY,required"`
	GoogleCXID   string `env:"GOOGLE_CX_ID,required"`

	PriorityPathParts []string `env:"PRIORITY_PATH_PARTS" envSeparator:"," envDefault:"contact,about,impress,impressum,kontakt,privacy,sales,investor,procurement,suppliers"` //nolint:lll

	MaxFallbackPages int  `env:"MAX_FALLBACK_PAGES" envDefault:"12"`
	ProcessPDFs      bool `env:"PROCESS_PDFS" envDefault:"false"`
	AllowInsecureSSL bool `env:"ALLOW_INSECURE_SSL" envDefault:"false"`
	MaxWorkers       int  `env:"MAX_WORKERS" envDefault:"4"`

	GoogleSafeInterval float64 `env:"GOOGLE_SAFE_INTERVAL" envDefault:"0.8"`
	GoogleMaxRetries   int     `env:"GOOGLE_MAX_RETRIES" envDefault:"5"`

	DomainScoreThreshold int `env:"DOMAIN_SCORE_THRESHOLD" envDefault:"60"`

	MaxRedirects int `env:"MAX_REDIRECTS" envDefault:"5"`
	MaxURLLength int `env:"MAX_URL_LENGTH" envDefault:"2000"`

	ConnectionTimeout time.Duration `env:"CONNECTION_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"20s"`

	MinCrawlDelay float64 `env:"MIN_CRAWL_DELAY" envDefault:"0.5"`
	MaxCrawlDelay float64 `env:"MAX_CRAWL_DELAY" envDefault:"2.0"`

	MaxURLsPerSitemap int `env:"MAX_URLS_PER_SITEMAP" envDefault:"10000"`

	RenderTimeout     time.Duration `env:"RENDER_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"5s"`
	DisableJSFallback bool          `env:"DISABLE_JS_FALLBACK" envDefault:"false"`

	// BlockedHostSuffixes and BlockedPathExtensions are both sourced from
	// BLOCKED_DOMAINS: an entry starting with "." is a path extension,
	// everything else is a host suffix.
	BlockedDomains        []string `env:"BLOCKED_DOMAINS" envSeparator:","`
	BlockedHostSuffixes   []string `env:"-"`
	BlockedPathExtensions []string `env:"-"`

	Proxies    []string `env:"PROXIES" envSeparator:","`
	UserAgents []string `env:"USER_AGENTS" envSeparator:"," envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"` //nolint:lll

	DebugMode bool   `env:"DEBUG_MODE" envDefault:"false"`
	DebugDir  string `env:"DEBUG_DIR" envDefault:"debug_output"`

	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present) and the environment into a Config, applies
// derived fields, and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}

	cfg.splitBlockedDomains()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitBlockedDomains classifies each BLOCKED_DOMAINS entry as a host suffix
// or, when it is dot-prefixed, a path extension.
func (c *Config) splitBlockedDomains() {
	for _, pattern := range c.BlockedDomains {
		if pattern == "" {
			continue
		}

		if pattern[0] == '.' {
			c.BlockedPathExtensions = append(c.BlockedPathExtensions, pattern)
		} else {
			c.BlockedHostSuffixes = append(c.BlockedHostSuffixes, pattern)
		}
	}
}

// Validate enforces the invariants in the data model: required credentials,
// sane crawl-delay ordering, and every bounded knob within its documented range.
func (c *Config) Validate() error {
	if c.GoogleAPIKey == "" || c.GoogleCXID == "" {
		return fmt.Errorf("%w: google api key and cx id are required", apperrors.ErrConfiguration)
	}

	if c.MinCrawlDelay <= 0 || c.MinCrawlDelay > c.MaxCrawlDelay {
		return fmt.Errorf("%w: min_crawl_delay must be in (0, max_crawl_delay]", apperrors.ErrConfiguration)
	}

	if len(c.UserAgents) == 0 {
		return fmt.Errorf("%w: at least one user agent is required", apperrors.ErrConfiguration)
	}

	if err := inRange(c.MaxFallbackPages, 1, 500, "max_fallback_pages"); err != nil {
		return err
	}

	if err := inRange(c.MaxWorkers, 1, 64, "max_workers"); err != nil {
		return err
	}

	if err := inRange(c.DomainScoreThreshold, 0, 100, "domain_score_threshold"); err != nil {
		return err
	}

	if err := inRange(c.MaxRedirects, 0, 100, "max_redirects"); err != nil {
		return err
	}

	if err := inRange(c.MaxURLLength, 100, 10000, "max_url_length"); err != nil {
		return err
	}

	if err := inRange(c.MaxURLsPerSitemap, 1, 100000, "max_urls_per_sitemap"); err != nil {
		return err
	}

	if err := inRangeFloat(c.GoogleSafeInterval, 0.1, 10, "google_safe_interval"); err != nil {
		return err
	}

	if err := inRange(c.GoogleMaxRetries, 1, 10, "google_max_retries"); err != nil {
		return err
	}

	return nil
}

func inRange(v, lo, hi int, name string) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%d out of range [%d,%d]", apperrors.ErrConfiguration, name, v, lo, hi)
	}

	return nil
}

func inRangeFloat(v, lo, hi float64, name string) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%v out of range [%v,%v]", apperrors.ErrConfiguration, name, v, lo, hi)
	}

	return nil
}

// MaxSitemapSize is the hard cap on a single sitemap document, in bytes.
const MaxSitemapSize = 50 * 1024 * 1024

// MaxRedirectSetSize is the size at which the redirect-loop guard's canonical
// URL set is pruned.
const MaxRedirectSetSize = 1000
