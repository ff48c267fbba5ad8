// Package scorer fuzzy-matches a cleaned company name against a candidate
// URL's host and picks the best-scoring search hit for a company.
package scorer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/net/publicsuffix"

	apperrors "github.com/kestrelscan/leadscrape/internal/core/errors"
	"github.com/kestrelscan/leadscrape/internal/search"
)

const (
	minCompanyLen  = 3
	neutralScore   = 50
	socialPenalty  = 25
	maxScore       = 100
)

var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true, "limited": true,
	"gmbh": true, "ag": true, "corp": true, "corporation": true, "co": true,
	"company": true, "plc": true, "sa": true, "srl": true, "bv": true, "nv": true,
	"pty": true, "kk": true,
}

// penalizedHosts are social-media and generic listing hosts that are
// deprioritized even when they score well on name similarity.
var penalizedHosts = []string{
	"linkedin", "facebook", "instagram", "twitter", "youtube", "medium",
	"github", "glassdoor", "indeed", "crunchbase", "bloomberg", "wikipedia",
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// ScoredDomain is a candidate URL paired with its relevance score.
type ScoredDomain struct {
	Score int
	URL   string
}

// CleanCompany lowercases company, strips a single trailing legal-entity
// suffix word, and removes everything but letters and digits.
func CleanCompany(company string) string {
	lower := strings.ToLower(company)
	words := wordRe.FindAllString(lower, -1)

	kept := make([]string, 0, len(words))

	for i, w := range words {
		if i == len(words)-1 && legalSuffixes[w] {
			continue
		}

		kept = append(kept, w)
	}

	return strings.Join(kept, "")
}

// Score rates a candidate URL's fit to company on [0, 100]. Company names
// shorter than 3 cleaned characters can't be scored reliably and return a
// neutral 50, matching the source pipeline's behaviour for very short names.
func Score(company, rawURL string) (int, error) {
	cleaned := CleanCompany(company)
	if len(cleaned) < minCompanyLen {
		return neutralScore, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("%w: parse url: %w", apperrors.ErrDomainScoring, err)
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	if host == "" {
		return 0, fmt.Errorf("%w: no host in %q", apperrors.ErrDomainScoring, rawURL)
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}

	domainLabel := registrable
	if idx := strings.IndexByte(registrable, '.'); idx >= 0 {
		domainLabel = registrable[:idx]
	}

	subdomain := strings.TrimSuffix(host, registrable)
	subdomain = strings.TrimSuffix(subdomain, ".")

	best := partialRatio(cleaned, domainLabel)
	if subdomain != "" {
		if sub := partialRatio(cleaned, subdomain); sub > best {
			best = sub
		}
	}

	score := int(best * maxScore)

	for _, p := range penalizedHosts {
		if strings.Contains(host, p) {
			score -= socialPenalty

			break
		}
	}

	if score < 0 {
		score = 0
	}

	if score > maxScore {
		score = maxScore
	}

	return score, nil
}

// partialRatio reproduces rapidfuzz's fuzz.partial_ratio: slide a window the
// length of the shorter string across the longer one and take the best
// Levenshtein-derived similarity over all offsets.
func partialRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}

	windowLen := len(short)

	best := 0.0

	for i := 0; i+windowLen <= len(long); i++ {
		window := long[i : i+windowLen]

		dist := levenshtein.ComputeDistance(short, window)

		maxLen := len(short)
		if len(window) > maxLen {
			maxLen = len(window)
		}

		ratio := 1 - float64(dist)/float64(maxLen)
		if ratio > best {
			best = ratio
		}
	}

	return best
}

// Best scores every hit's link and returns the maximal-scoring one, ties
// broken by first occurrence. ok is false when hits is empty or every hit
// fails to score.
func Best(company string, hits []search.Hit) (ScoredDomain, bool) {
	var (
		best  ScoredDomain
		found bool
	)

	for _, h := range hits {
		if h.Link == "" {
			continue
		}

		score, err := Score(company, h.Link)
		if err != nil {
			continue
		}

		if !found || score > best.Score {
			best = ScoredDomain{Score: score, URL: h.Link}
			found = true
		}
	}

	return best, found
}
