package httpclient

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/kestrelscan/leadscrape/internal/config"
	apperrors "github.com/kestrelscan/leadscrape/internal/core/errors"
)

var disallowedScheme = regexp.MustCompile(`^(file|data|javascript):`)

// ValidateURL rejects empty URLs, URLs over the configured length, unsupported
// schemes, missing hosts, and URLs whose host or path matches a blocked pattern.
// Exported so callers outside this package (the crawler's link filter) can
// apply the same validation spec.md §4.1 defines, rather than inventing a
// second filter.
func ValidateURL(cfg *config.Config, rawURL string) error {
	return validateURL(cfg, rawURL)
}

func validateURL(cfg *config.Config, rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty url", apperrors.ErrInvalidURL)
	}

	if len(rawURL) > cfg.MaxURLLength {
		return fmt.Errorf("%w: url exceeds max length %d", apperrors.ErrInvalidURL, cfg.MaxURLLength)
	}

	if disallowedScheme.MatchString(strings.ToLower(rawURL)) {
		return fmt.Errorf("%w: disallowed scheme", apperrors.ErrInvalidURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", apperrors.ErrInvalidURL, parsed.Scheme)
	}

	if parsed.Hostname() == "" {
		return fmt.Errorf("%w: missing host", apperrors.ErrInvalidURL)
	}

	host := strings.ToLower(parsed.Hostname())

	for _, suffix := range cfg.BlockedHostSuffixes {
		if suffix != "" && strings.HasSuffix(host, strings.ToLower(suffix)) {
			return fmt.Errorf("%w: %s matches blocked host suffix %q", apperrors.ErrBlockedHost, host, suffix)
		}
	}

	path := strings.ToLower(parsed.Path)

	for _, ext := range cfg.BlockedPathExtensions {
		if ext != "" && strings.HasSuffix(path, strings.ToLower(ext)) {
			return fmt.Errorf("%w: %s matches blocked extension %q", apperrors.ErrBlockedHost, path, ext)
		}
	}

	return nil
}
