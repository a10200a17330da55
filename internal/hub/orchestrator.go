package hub

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/model"
)

// Fetcher is the tier router subset the orchestrator uses.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*model.FetchResult, error)
}

// SiteFinder resolves a brand name to its official site when the hub
// offers no external link.
type SiteFinder interface {
	FindBrandOfficialSite(ctx context.Context, brandName string) (*SiteResult, error)
}

// SiteResult is a located official site.
type SiteResult struct {
	URL    string
	Domain string
}

// SourceRegistrar persists discovered producer sources.
type SourceRegistrar interface {
	UpsertSource(ctx context.Context, s *model.Source) error
	GetSourceBySlug(ctx context.Context, slug string) (*model.Source, error)
}

// Orchestrator walks a hub breadth-first up to a page cap, registering a
// producer source per discovered brand.
type Orchestrator struct {
	fetcher   Fetcher
	parser    *Parser
	registrar SourceRegistrar
	finder    SiteFinder
	headDoer  *http.Client

	pageCap int
}

func NewOrchestrator(f Fetcher, p *Parser, r SourceRegistrar, finder SiteFinder, pageCap int) *Orchestrator {
	if pageCap <= 0 {
		pageCap = 20
	}
	return &Orchestrator{
		fetcher:   f,
		parser:    p,
		registrar: r,
		finder:    finder,
		headDoer:  &http.Client{Timeout: 10 * time.Second},
		pageCap:   pageCap,
	}
}

// Summary reports one hub walk.
type Summary struct {
	PagesCrawled      int
	BrandsFound       int
	SourcesRegistered int
	LookupsFailed     int
}

// Run walks the hub source. Brands with external links are registered
// directly; the rest go through the official-site finder when one is
// configured.
func (o *Orchestrator) Run(ctx context.Context, src *model.Source) (*Summary, error) {
	sum := &Summary{}
	queue := []string{src.BaseURL}
	visited := map[string]bool{}
	seenBrands := map[string]bool{}

	for len(queue) > 0 && sum.PagesCrawled < o.pageCap {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		pageURL := queue[0]
		queue = queue[1:]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		res, err := o.fetcher.Fetch(ctx, fetch.Request{URL: pageURL, Source: src})
		if err != nil {
			zap.L().Warn("hub page fetch failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		if !res.Success {
			continue
		}
		sum.PagesCrawled++

		parsed, err := o.parser.Parse(res.Content, pageURL)
		if err != nil {
			zap.L().Warn("hub page parse failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		for _, b := range parsed.Brands {
			key := strings.ToLower(b.Name)
			if seenBrands[key] {
				continue
			}
			seenBrands[key] = true
			sum.BrandsFound++

			registered, err := o.registerBrand(ctx, b)
			if err != nil {
				sum.LookupsFailed++
				zap.L().Warn("brand registration failed",
					zap.String("brand", b.Name), zap.Error(err))
				continue
			}
			if registered {
				sum.SourcesRegistered++
			}
		}

		for _, p := range parsed.Pagination {
			if !visited[p] {
				queue = append(queue, p)
			}
		}
	}

	zap.L().Info("hub walk finished",
		zap.String("hub", src.Slug),
		zap.Int("pages", sum.PagesCrawled),
		zap.Int("brands", sum.BrandsFound),
		zap.Int("registered", sum.SourcesRegistered))
	return sum, nil
}

// registerBrand resolves a producer site for the brand and registers it.
func (o *Orchestrator) registerBrand(ctx context.Context, b model.BrandEntry) (bool, error) {
	siteURL := b.ExternalURL
	if siteURL == "" {
		if o.finder == nil {
			return false, nil
		}
		hit, err := o.finder.FindBrandOfficialSite(ctx, b.Name)
		if err != nil {
			return false, err
		}
		if hit == nil {
			return false, nil
		}
		siteURL = hit.URL
	}

	if !o.siteReachable(ctx, siteURL) {
		return false, eris.Errorf("hub: producer site unreachable: %s", siteURL)
	}

	slug := producerSlug(siteURL)
	if slug == "" {
		return false, eris.Errorf("hub: cannot derive slug from %s", siteURL)
	}
	if existing, err := o.registrar.GetSourceBySlug(ctx, slug); err != nil {
		return false, err
	} else if existing != nil {
		return false, nil
	}

	src := &model.Source{
		Name:          b.Name,
		Slug:          slug,
		BaseURL:       siteURL,
		Category:      model.SourceProducer,
		Priority:      5,
		CrawlFreqHrs:  24 * 7,
		RateLimitRPM:  10,
		DiscoveredVia: model.DiscoveredHub,
		Active:        true,
	}
	if err := o.registrar.UpsertSource(ctx, src); err != nil {
		return false, err
	}
	return true, nil
}

// siteReachable probes with HEAD; anything below 500 counts, since many
// producer sites reject HEAD with 403/405 yet serve GET fine.
func (o *Orchestrator) siteReachable(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := o.headDoer.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func producerSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return ""
	}
	return "producer-" + strings.ReplaceAll(host, ".", "-")
}
