package competition

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/skeleton"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

// enrichmentQueries are fired per new skeleton, {name} substituted.
var enrichmentQueries = []struct{ searchType, template string }{
	{"pricing", "%s price buy online"},
	{"tasting_notes", "%s review tasting notes"},
	{"official_site", "%s official site"},
}

// resultsPerQuery caps how many search hits each enrichment query enqueues.
const resultsPerQuery = 3

// Fetcher is the tier router subset the orchestrator uses.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*model.FetchResult, error)
}

// Searcher runs filtered web searches.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]serpapi.Result, error)
}

// Enqueuer adds URLs to the frontier.
type Enqueuer interface {
	Enqueue(ctx context.Context, rawURL string, priority int, meta model.QueueMeta) (bool, error)
}

// Summary reports one competition crawl.
type Summary struct {
	RecordsParsed    int
	SkeletonsCreated int
	ProductsMerged   int
	Unsupported      int
	URLsEnqueued     int
}

// Orchestrator drives one competition source: fetch results, parse,
// create or merge skeletons, then enqueue enrichment searches for the new
// ones.
type Orchestrator struct {
	fetcher   Fetcher
	skeletons *skeleton.Manager
	search    Searcher
	frontier  Enqueuer
}

func NewOrchestrator(f Fetcher, sk *skeleton.Manager, s Searcher, fr Enqueuer) *Orchestrator {
	return &Orchestrator{fetcher: f, skeletons: sk, search: s, frontier: fr}
}

// Run crawls one competition year. The source's base URL may carry a
// {year} placeholder.
func (o *Orchestrator) Run(ctx context.Context, src *model.Source, year int) (*Summary, error) {
	parser, ok := ForSlug(src.Slug)
	if !ok {
		return nil, eris.Errorf("competition: no parser for source %s", src.Slug)
	}

	pageURL := strings.ReplaceAll(src.BaseURL, "{year}", strconv.Itoa(year))
	res, err := o.fetcher.Fetch(ctx, fetch.Request{URL: pageURL, Source: src})
	if err != nil {
		return nil, eris.Wrapf(err, "competition: fetch %s", pageURL)
	}
	if !res.Success {
		return nil, eris.Errorf("competition: results page unusable: %s (%d)", pageURL, res.Status)
	}

	recs, err := parser.Parse(res.Content, year)
	if err != nil {
		return nil, err
	}

	sum := &Summary{RecordsParsed: len(recs)}
	var fresh []*model.Product
	for _, rec := range recs {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		p, created, err := o.skeletons.CreateSkeleton(ctx, rec)
		if err != nil {
			if eris.Is(err, skeleton.ErrUnsupportedType) {
				sum.Unsupported++
				continue
			}
			return sum, err
		}
		if created {
			sum.SkeletonsCreated++
			fresh = append(fresh, p)
		} else {
			sum.ProductsMerged++
		}
	}

	for _, p := range fresh {
		n, err := o.enrich(ctx, p)
		if err != nil {
			zap.L().Warn("enrichment search failed",
				zap.String("product_id", p.ID),
				zap.Error(err))
			continue
		}
		sum.URLsEnqueued += n
	}

	zap.L().Info("competition crawl finished",
		zap.String("source", src.Slug),
		zap.Int("year", year),
		zap.Int("records", sum.RecordsParsed),
		zap.Int("created", sum.SkeletonsCreated),
		zap.Int("merged", sum.ProductsMerged),
		zap.Int("enqueued", sum.URLsEnqueued))
	return sum, nil
}

// enrich fires the three targeted searches for a skeleton and enqueues
// the hits at enrichment priority.
func (o *Orchestrator) enrich(ctx context.Context, p *model.Product) (int, error) {
	if o.search == nil || o.frontier == nil {
		return 0, nil
	}
	enqueued := 0
	for _, q := range enrichmentQueries {
		results, err := o.search.Search(ctx, fmt.Sprintf(q.template, p.Name), resultsPerQuery*2)
		if err != nil {
			return enqueued, err
		}
		taken := 0
		for _, r := range results {
			if taken >= resultsPerQuery {
				break
			}
			ok, err := o.frontier.Enqueue(ctx, r.Link, model.PriorityEnrichment, model.QueueMeta{
				SearchType:  q.searchType,
				SkeletonID:  p.ID,
				ProductName: p.Name,
			})
			if err != nil {
				return enqueued, err
			}
			if ok {
				enqueued++
				taken++
			}
		}
	}
	return enqueued, nil
}
