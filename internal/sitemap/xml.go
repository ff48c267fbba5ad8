package sitemap

import "encoding/xml"

// urlSet is the <urlset> root of a page sitemap.
type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapIndex is the <sitemapindex> root referencing child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// extractLocs reads every <loc> text value out of body, whether it is a
// <urlset> or a <sitemapindex>; the caller has already branched on which
// shape this is, so both unmarshal attempts are cheap and harmless.
func extractLocs(body []byte) []string {
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		out := make([]string, 0, len(idx.Sitemaps))
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				out = append(out, s.Loc)
			}
		}

		return out
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil
	}

	out := make([]string, 0, len(set.URLs))

	for _, u := range set.URLs {
		if u.Loc != "" {
			out = append(out, u.Loc)
		}
	}

	return out
}
