package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// derivedConfidence is assigned to fields read straight from page meta
// tags. Below any sane AI confidence, so the AI value wins ties during
// merge.
const derivedConfidence = 0.5

// DeriveMeta pulls the deterministic fields out of a page before any AI
// call: OpenGraph title/description/image, the GTIN microdata tag, and the
// page's own domain as a fallback discovery label.
func DeriveMeta(content, pageURL string) map[string]any {
	out := map[string]any{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return out
	}

	if v := metaContent(doc, `meta[property="og:title"]`); v != "" {
		out["name"] = cleanTitle(v, pageURL)
	} else if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		out["name"] = cleanTitle(v, pageURL)
	}
	if v := metaContent(doc, `meta[property="og:description"]`); v != "" {
		out["description"] = v
	} else if v := metaContent(doc, `meta[name="description"]`); v != "" {
		out["description"] = v
	}
	if v := metaContent(doc, `meta[property="og:image"]`); v != "" {
		out["image_url"] = v
	}
	for _, sel := range []string{`meta[itemprop="gtin13"]`, `meta[itemprop="gtin"]`, `meta[itemprop="gtin14"]`} {
		if v := metaContent(doc, sel); v != "" {
			out["gtin"] = v
			break
		}
	}
	return out
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// cleanTitle strips the trailing "| Site Name" segment retailers append to
// product titles when the segment matches the page's host.
func cleanTitle(title, pageURL string) string {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	for _, sep := range []string{" | ", " – ", " - "} {
		idx := strings.LastIndex(title, sep)
		if idx <= 0 {
			continue
		}
		tail := strings.ToLower(strings.TrimSpace(title[idx+len(sep):]))
		if host != "" && strings.Contains(host, strings.ReplaceAll(tail, " ", "")) {
			title = title[:idx]
		}
	}
	return strings.TrimSpace(title)
}
