// Package search wraps the external web-search API with the domain
// filtering and official-site heuristics the discovery flows share.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/cost"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

// excludedDomains are never useful for product data: social networks,
// marketplaces, encyclopedias, forums, video.
var excludedDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"linkedin.com",
	"youtube.com",
	"pinterest.com",
	"reddit.com",
	"wikipedia.org",
	"amazon.",
	"ebay.",
	"tripadvisor.",
	"yelp.",
}

// Excluded reports whether a domain is on the unreliable list. Matching is
// suffix-or-substring so country TLD variants (amazon.co.uk) are caught.
func Excluded(domain string) bool {
	d := strings.ToLower(strings.TrimPrefix(domain, "www."))
	for _, ex := range excludedDomains {
		if strings.HasSuffix(ex, ".") {
			if strings.Contains(d, ex) {
				return true
			}
			continue
		}
		if d == ex || strings.HasSuffix(d, "."+ex) {
			return true
		}
	}
	return false
}

// Client layers cost metering and result filtering over the raw API.
type Client struct {
	api   serpapi.Client
	costs *cost.Recorder
}

func NewClient(api serpapi.Client, costs *cost.Recorder) *Client {
	return &Client{api: api, costs: costs}
}

// Search runs one query, drops excluded domains, and meters the call.
func (c *Client) Search(ctx context.Context, query string, num int) ([]serpapi.Result, error) {
	resp, err := c.api.Search(ctx, query, num)
	if c.costs != nil {
		c.costs.RecordSearch(ctx, "")
	}
	if err != nil {
		return nil, eris.Wrapf(err, "search: query %q", query)
	}

	out := make([]serpapi.Result, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		if Excluded(r.Domain()) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FindBrandOfficialSite locates a producer's own website. Scoring prefers
// domains carrying the brand slug and results that read like a homepage;
// failing that, the top result within position 3 is taken.
func (c *Client) FindBrandOfficialSite(ctx context.Context, brandName string) (*serpapi.Result, error) {
	query := fmt.Sprintf("%s official site whisky distillery", brandName)
	results, err := c.Search(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	slug := brandSlug(brandName)
	var best *serpapi.Result
	bestScore := 0
	for i := range results {
		r := &results[i]
		score := 0
		domain := strings.ToLower(strings.TrimPrefix(r.Domain(), "www."))
		if slug != "" && strings.Contains(strings.ReplaceAll(domain, "-", ""), slug) {
			score += 3
		}
		text := strings.ToLower(r.Title + " " + r.Snippet)
		if strings.Contains(text, "official") || strings.Contains(text, "welcome to") {
			score += 2
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	if best != nil {
		zap.L().Debug("official site chosen by heuristic",
			zap.String("brand", brandName),
			zap.String("domain", best.Domain()),
			zap.Int("score", bestScore))
		return best, nil
	}

	for i := range results {
		if results[i].Position <= 3 {
			return &results[i], nil
		}
	}
	return nil, nil
}

// brandSlug squeezes a brand name down to the token its domain would use.
func brandSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
