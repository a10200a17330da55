// Package verify drives products toward multi-source agreement: find what
// is missing, search for pages likely to have it, extract, and merge with
// conflict detection.
package verify

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/match"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/score"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

// TargetSources is how many independent sources a product should reach;
// MinVerifiedSources gates the verified status.
const (
	TargetSources      = 3
	MinVerifiedSources = 2
)

// criticalFields must each be two-source agreed before verification rests.
var criticalFields = []string{"name", "abv", "country", "region", "palate_description"}

// strategy names a query-template set.
type strategy struct {
	name      string
	templates []string
}

var (
	tastingStrategy = strategy{
		name: "tasting_notes",
		templates: []string{
			"{name} tasting notes review",
			"{name} nose palate finish",
			"{brand} {name} whisky review",
		},
	}
	pricingStrategy = strategy{
		name: "pricing",
		templates: []string{
			"{name} buy price",
			"{name} whisky exchange price",
		},
	}
)

// Searcher runs filtered web searches.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]serpapi.Result, error)
}

// Fetcher is the tier router subset the pipeline uses.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*model.FetchResult, error)
}

// Extractor turns fetched pages into validated field maps.
type Extractor interface {
	Extract(ctx context.Context, content, pageURL string, typ model.ProductType, src *model.Source) (*model.ExtractionResult, error)
}

// Store is the persistence subset the pipeline reads and writes through.
type Store interface {
	UpdateProduct(ctx context.Context, p *model.Product) error
	InsertProvenance(ctx context.Context, rows []model.FieldProvenance) error
	ListProvenance(ctx context.Context, productID string) ([]model.FieldProvenance, error)
	WithProductLock(ctx context.Context, productID string, fn func(ctx context.Context) error) error
}

// Result reports one verification run.
type Result struct {
	Product        *model.Product
	SourcesUsed    []string
	VerifiedFields []string
	Conflicts      []model.FieldConflict
}

// Pipeline enriches and verifies one product at a time.
type Pipeline struct {
	store     Store
	search    Searcher
	fetcher   Fetcher
	extractor Extractor
}

func NewPipeline(st Store, s Searcher, f Fetcher, e Extractor) *Pipeline {
	return &Pipeline{store: st, search: s, fetcher: f, extractor: e}
}

// MissingCriticals lists what still blocks verification: the three
// tasting buckets when empty, plus each unverified critical field.
func MissingCriticals(p *model.Product) []string {
	var missing []string
	t := &p.Tasting
	if !t.HasPalate() {
		missing = append(missing, "palate")
	}
	if t.NoseDescription == "" && len(t.PrimaryAromas) == 0 {
		missing = append(missing, "nose")
	}
	if t.FinishDescription == "" && len(t.FinishFlavors) == 0 {
		missing = append(missing, "finish")
	}
	for _, f := range criticalFields {
		if !p.HasVerifiedField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// chooseStrategy picks the query set for what is missing.
func chooseStrategy(missing []string, p *model.Product) strategy {
	for _, m := range missing {
		if m == "palate" || m == "nose" || m == "finish" || m == "palate_description" {
			return tastingStrategy
		}
	}
	if p.BestPriceCents == 0 {
		return pricingStrategy
	}
	return tastingStrategy
}

// VerifyProduct runs one enrichment round: search, fetch, extract, merge,
// rescore, save. The product row is advisory-locked for the save so
// concurrent rounds on the same product serialize.
func (v *Pipeline) VerifyProduct(ctx context.Context, p *model.Product) (*Result, error) {
	missing := MissingCriticals(p)
	res := &Result{Product: p}

	if len(missing) == 0 && p.SourceCount >= TargetSources {
		return res, nil
	}

	// URLs already absorbed in earlier rounds must not be fetched or
	// counted again, or repeated runs would verify fields by agreeing
	// with themselves.
	used, err := v.usedSourceURLs(ctx, p)
	if err != nil {
		return nil, err
	}

	urls, err := v.enrichmentURLs(ctx, p, missing, used)
	if err != nil {
		return nil, err
	}

	for _, pageURL := range urls {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := v.absorb(ctx, p, pageURL, res); err != nil {
			zap.L().Warn("enrichment source failed",
				zap.String("product_id", p.ID),
				zap.String("url", pageURL),
				zap.Error(err))
		}
	}

	score.Recompute(p)
	err = v.store.WithProductLock(ctx, p.ID, func(ctx context.Context) error {
		return v.store.UpdateProduct(ctx, p)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "verify: save %s", p.ID)
	}

	res.VerifiedFields = p.VerifiedFields
	return res, nil
}

// usedSourceURLs collects every URL that already contributed to the
// product: its own page plus all provenance sources.
func (v *Pipeline) usedSourceURLs(ctx context.Context, p *model.Product) (map[string]bool, error) {
	used := map[string]bool{strings.ToLower(p.SourceURL): true}
	prov, err := v.store.ListProvenance(ctx, p.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "verify: list provenance %s", p.ID)
	}
	for _, fp := range prov {
		used[strings.ToLower(fp.SourceURL)] = true
	}
	return used, nil
}

// enrichmentURLs searches with the chosen strategy and returns deduped,
// capped candidate URLs, skipping everything in used.
func (v *Pipeline) enrichmentURLs(ctx context.Context, p *model.Product, missing []string, used map[string]bool) ([]string, error) {
	strat := chooseStrategy(missing, p)
	brand := ""
	if p.Brand != nil {
		brand = p.Brand.Name
	}

	maxURLs := TargetSources - 1
	seen := used
	var urls []string

	for _, tmpl := range strat.templates {
		if len(urls) >= maxURLs {
			break
		}
		query := strings.ReplaceAll(tmpl, "{name}", p.Name)
		query = strings.TrimSpace(strings.ReplaceAll(query, "{brand}", brand))

		results, err := v.search.Search(ctx, query, 5)
		if err != nil {
			return nil, eris.Wrapf(err, "verify: search %q", query)
		}
		for _, r := range results {
			key := strings.ToLower(r.Link)
			if seen[key] {
				continue
			}
			seen[key] = true
			urls = append(urls, r.Link)
			if len(urls) >= maxURLs {
				break
			}
		}
	}
	zap.L().Debug("enrichment urls chosen",
		zap.String("product_id", p.ID),
		zap.String("strategy", strat.name),
		zap.Int("urls", len(urls)))
	return urls, nil
}

// absorb fetches one page, extracts it, and merges the fields in.
func (v *Pipeline) absorb(ctx context.Context, p *model.Product, pageURL string, res *Result) error {
	fres, err := v.fetcher.Fetch(ctx, fetch.Request{URL: pageURL})
	if err != nil {
		return err
	}
	if !fres.Success {
		return eris.Errorf("verify: fetch unusable (%d)", fres.Status)
	}

	eres, err := v.extractor.Extract(ctx, fres.Content, pageURL, p.ProductType, nil)
	if err != nil {
		return err
	}
	if !eres.Success {
		return eris.Errorf("verify: extraction failed: %s", eres.Error)
	}

	outcome := match.Merge(p, eres.Fields, pageURL)
	p.SourceCount++
	res.SourcesUsed = append(res.SourcesUsed, pageURL)
	res.Conflicts = append(res.Conflicts, outcome.Conflicts...)

	rows := make([]model.FieldProvenance, 0, len(eres.Fields))
	now := time.Now().UTC()
	for name, val := range eres.Fields {
		rows = append(rows, model.FieldProvenance{
			ProductID:   p.ID,
			FieldName:   name,
			SourceURL:   pageURL,
			RawValue:    match.Stringify(val),
			Confidence:  eres.Confidences[name],
			ExtractedAt: now,
		})
	}
	return v.store.InsertProvenance(ctx, rows)
}
