// Package canonical normalizes raw URL strings into a stable form used for
// dedup across the HTTP client, the crawler's seen-set, and sitemap entries.
//
// Equality of the canonical string defines "same page": two URLs that differ
// only by scheme case, a www. prefix, a trailing slash, or a query string are
// treated as the same page.
package canonical

import (
	"net/url"
	"strings"
)

// URL returns the canonical form of rawURL: lowercase scheme and host, a
// stripped leading "www.", a path with its trailing slash removed (default
// "/"), and no query string or fragment.
//
// If rawURL fails to parse, it is returned unmodified so callers can still
// surface a validation error upstream.
func URL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return parsed.String()
}

// Host returns the lowercase, www-stripped host of rawURL, or "" if rawURL
// fails to parse or carries no host.
func Host(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// SameHost reports whether host b is the same domain as host a, or a
// subdomain of it, after www-stripping and lowercasing both.
func SameHost(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")

	if a == b {
		return true
	}

	return strings.HasSuffix(b, "."+a)
}
