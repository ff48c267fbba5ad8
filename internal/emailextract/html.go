package emailextract

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlDoc is a lightweight view over a parsed document exposing the pieces
// the extractor's static pass needs: visible text, mailto hrefs, and
// Cloudflare-obfuscated email attributes.
type htmlDoc struct {
	visibleText string
	mailtoHrefs []string
	cfEmails    []string
}

func parseHTML(raw string) htmlDoc {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return htmlDoc{}
	}

	var out htmlDoc

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out.visibleText += n.Data + " "
		}

		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				switch {
				case attr.Key == "href" && n.Data == "a" && strings.HasPrefix(strings.ToLower(attr.Val), "mailto:"):
					out.mailtoHrefs = append(out.mailtoHrefs, attr.Val)
				case attr.Key == "data-cfemail":
					out.cfEmails = append(out.cfEmails, attr.Val)
				}
			}
		}

		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return out
}
