package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/kestrelscan/leadscrape/internal/httpclient"
)

// extractLinks returns every absolute, resolvable href found in an <a> tag
// of raw, resolved against base. mailto: links are skipped entirely.
func extractLinks(raw, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil
	}

	var out []string

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}

				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(strings.ToLower(href), "mailto:") {
					continue
				}

				resolved, err := baseURL.Parse(href)
				if err != nil {
					continue
				}

				out = append(out, resolved.String())
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return out
}

// worthCrawling reports whether rawURL is a candidate worth enqueueing:
// it must pass the same URL validation the HTTP client applies (scheme,
// length, blocked host/extension patterns), matching
// original_source/crawler.py's _process_response, which filters candidate
// links through nothing but validate_url() plus same-domain containment. A
// bare ".pdf" suffix is rejected unless cfg.ProcessPDFs is set, mirroring
// original_source/scraper/email_extractor_manus.py's explicit
// "not config.process_pdfs and url.lower().endswith('.pdf')" gate.
func (c *Crawler) worthCrawling(rawURL string) bool {
	if !c.cfg.ProcessPDFs && strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		return false
	}

	return httpclient.ValidateURL(c.cfg, rawURL) == nil
}
