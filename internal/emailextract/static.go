// Package emailextract finds and validates email addresses in HTML and
// plain text, including several common obfuscation schemes. It works only on
// the document it is given; it does not render pages.
package emailextract

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@(?:[A-Z0-9-]+\.)+[A-Z]{2,63}`)

const (
	maxLocalLen = 64
	maxHostLen  = 255
	hexLocalMin = 16
)

var assetExtRe = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif)$`)

var rolePatterns = []string{
	"noreply",
	"donotreply",
	"no-reply",
	"webmaster",
	"hostmaster",
	"postmaster",
}

// hostBlacklist holds registrable domains of well-known throwaway mail
// providers. Skipped in test mode so fixture addresses remain valid.
var hostBlacklist = map[string]bool{
	"example.com":   true,
	"example.org":   true,
	"mailinator.com": true,
	"guerrillamail.com": true,
	"yopmail.com":   true,
	"10minutemail.com": true,
	"tempmail.com":  true,
	"test.com":      true,
	"localhost":     true,
}

var hexOnlyRe = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// Email is a cleaned, validated address together with where it was found.
type Email struct {
	Address string
	Source  string // "text", "mailto", "cfemail"
}

// Options controls extraction behaviour that differs between production and
// test runs.
type Options struct {
	// TestMode disables the throwaway-host blacklist so fixture domains
	// like example.com validate normally.
	TestMode bool
}

// Clean normalizes a raw candidate string into a lowercase address, or
// reports false if it cannot be parsed into local@host form.
func Clean(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = stripMailto(s)

	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		s = s[:idx]
	}

	at := strings.LastIndexByte(s, '@')
	if at < 0 || at == len(s)-1 {
		return "", false
	}

	local := s[:at]
	host := strings.TrimRight(s[at+1:], `%;,:)}]>"'`)

	if local == "" || host == "" {
		return "", false
	}

	asciiHost, err := idna.ToASCII(strings.ToLower(host))
	if err != nil {
		asciiHost = strings.ToLower(host)
	}

	decodedHost, err := idna.ToUnicode(asciiHost)
	if err != nil {
		decodedHost = asciiHost
	}

	return strings.ToLower(local) + "@" + strings.ToLower(decodedHost), true
}

func stripMailto(s string) string {
	const prefix = "mailto:"
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}

	return s
}

// Validate reports whether a cleaned address passes every validation rule.
func Validate(email string, opts Options) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}

	local := email[:at]
	host := email[at+1:]

	if local == "" || len(local) > maxLocalLen {
		return false
	}

	if host == "" || len(host) > maxHostLen || !strings.Contains(host, ".") {
		return false
	}

	if !opts.TestMode && hostBlacklist[host] {
		return false
	}

	for _, pat := range rolePatterns {
		if strings.Contains(local, pat) || strings.Contains(host, pat) {
			return false
		}
	}

	if assetExtRe.MatchString(local) || assetExtRe.MatchString(host) {
		return false
	}

	if len(local) >= hexLocalMin && hexOnlyRe.MatchString(local) {
		return false
	}

	return true
}

// extractCandidates runs the email regex over text and returns cleaned,
// validated, deduplicated addresses, preserving first-seen order.
func extractCandidates(text string, source string, opts Options, seen map[string]bool, out *[]Email) {
	for _, raw := range emailRe.FindAllString(text, -1) {
		cleaned, ok := Clean(raw)
		if !ok || !Validate(cleaned, opts) {
			continue
		}

		if seen[cleaned] {
			continue
		}

		seen[cleaned] = true
		*out = append(*out, Email{Address: cleaned, Source: source})
	}
}

// ExtractFromText runs the full obfuscation-decode pipeline and regex scan
// over a plain-text candidate string (no HTML structure).
func ExtractFromText(raw string, opts Options) []Email {
	seen := make(map[string]bool)

	var out []Email

	text := unescapeEntities(raw)
	text = deobfuscateAtDot(text)

	extractCandidates(text, "text", opts, seen, &out)

	return out
}

// ExtractFromHTML runs the static extractor over a full HTML document: it
// scans the decoded visible text, mailto hrefs, and Cloudflare-obfuscated
// attributes, in that order, deduplicating across all three sources.
func ExtractFromHTML(raw string, opts Options) []Email {
	doc := parseHTML(raw)
	seen := make(map[string]bool)

	var out []Email

	text := unescapeEntities(doc.visibleText)
	text = deobfuscateAtDot(text)

	extractCandidates(text, "text", opts, seen, &out)

	for _, href := range doc.mailtoHrefs {
		cleaned, ok := Clean(href)
		if !ok || !Validate(cleaned, opts) || seen[cleaned] {
			continue
		}

		seen[cleaned] = true
		out = append(out, Email{Address: cleaned, Source: "mailto"})
	}

	for _, cf := range doc.cfEmails {
		plain, ok := decodeCFEmail(strings.TrimSpace(cf))
		if !ok {
			continue
		}

		cleaned, ok := Clean(plain)
		if !ok || !Validate(cleaned, opts) || seen[cleaned] {
			continue
		}

		seen[cleaned] = true
		out = append(out, Email{Address: cleaned, Source: "cfemail"})
	}

	return out
}

// StaticPass implements the exact ordering of the hybrid extractor's static
// step: cfemail first, then a concatenated-candidate-text pass, then a full
// HTML pass (which also picks up mailto hrefs).
func StaticPass(raw string, opts Options) []Email {
	doc := parseHTML(raw)

	var cfHits []Email

	seen := make(map[string]bool)

	for _, cf := range doc.cfEmails {
		plain, ok := decodeCFEmail(strings.TrimSpace(cf))
		if !ok {
			continue
		}

		cleaned, ok := Clean(plain)
		if !ok || !Validate(cleaned, opts) || seen[cleaned] {
			continue
		}

		seen[cleaned] = true
		cfHits = append(cfHits, Email{Address: cleaned, Source: "cfemail"})
	}

	if len(cfHits) > 0 {
		return cfHits
	}

	var candidates strings.Builder
	candidates.WriteString(unescapeEntities(doc.visibleText))
	candidates.WriteByte(' ')
	candidates.WriteString(decodeFromCharCode(raw))
	candidates.WriteByte(' ')
	candidates.WriteString(rot13Candidates(raw))
	candidates.WriteByte(' ')
	candidates.WriteString(base64Candidates(raw))

	if hits := ExtractFromText(candidates.String(), opts); len(hits) > 0 {
		return hits
	}

	return ExtractFromHTML(raw, opts)
}

