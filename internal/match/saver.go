package match

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/extract"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/score"
)

// SaverStore is the store subset the saver writes through.
type SaverStore interface {
	ProductFinder
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	UpsertBrand(ctx context.Context, b *model.Brand) error
	InsertProvenance(ctx context.Context, rows []model.FieldProvenance) error
}

// SaveResult reports what happened to one extraction.
type SaveResult struct {
	Product *model.Product
	Created bool
	Method  string
}

// Saver persists extraction results, deduplicating through the matcher.
type Saver struct {
	store   SaverStore
	matcher *Matcher
}

func NewSaver(st SaverStore) *Saver {
	return &Saver{store: st, matcher: NewMatcher(st)}
}

// Save stores an extraction as a product. With checkExisting, a matched
// product absorbs the fields under the merge rules instead of creating a
// duplicate. One provenance row is written per extracted field.
func (s *Saver) Save(ctx context.Context, res *model.ExtractionResult, sourceURL string, typ model.ProductType, discoverySource string, checkExisting bool) (*SaveResult, error) {
	in := FromFields(res.Fields)
	if in.Name == "" {
		return nil, eris.New("match: extraction has no name, refusing to save")
	}

	var brandID string
	if in.Brand != "" {
		b := &model.Brand{Name: in.Brand, Slug: slugify(in.Brand)}
		if err := s.store.UpsertBrand(ctx, b); err != nil {
			return nil, err
		}
		brandID = b.ID
	}

	if checkExisting {
		existing, method, conf, err := s.matcher.FindMatch(ctx, in, typ)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			outcome := Merge(existing, res.Fields, sourceURL)
			existing.SourceCount++
			existing.MatchConfidence = conf
			if discoverySource != "" {
				existing.AddDiscoverySource(discoverySource)
			}
			score.Recompute(existing)
			if err := s.store.UpdateProduct(ctx, existing); err != nil {
				return nil, err
			}
			if err := s.recordProvenance(ctx, existing.ID, res, sourceURL); err != nil {
				return nil, err
			}
			zap.L().Info("merged extraction into existing product",
				zap.String("product_id", existing.ID),
				zap.String("method", method),
				zap.Int("filled", len(outcome.Filled)),
				zap.Int("agreed", len(outcome.Agreed)),
				zap.Int("conflicts", len(outcome.Conflicts)))
			return &SaveResult{Product: existing, Created: false, Method: method}, nil
		}
	}

	p := &model.Product{
		ProductType:     typ,
		BrandID:         brandID,
		SourceURL:       sourceURL,
		DiscoverySource: discoverySource,
		SourceCount:     1,
		Fingerprint:     model.Fingerprint(in.Name, in.Brand),
		DiscoveredAt:    time.Now().UTC(),
	}
	if discoverySource != "" {
		p.AddDiscoverySource(discoverySource)
	}
	extract.ApplyFields(p, res.Fields)
	p.ExtractionConfidence = meanConfidence(res.Confidences)
	score.Recompute(p)

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	if err := s.recordProvenance(ctx, p.ID, res, sourceURL); err != nil {
		return nil, err
	}
	return &SaveResult{Product: p, Created: true, Method: MethodNone}, nil
}

func (s *Saver) recordProvenance(ctx context.Context, productID string, res *model.ExtractionResult, sourceURL string) error {
	rows := make([]model.FieldProvenance, 0, len(res.Fields))
	now := time.Now().UTC()
	for name, v := range res.Fields {
		rows = append(rows, model.FieldProvenance{
			ProductID:   productID,
			FieldName:   name,
			SourceURL:   sourceURL,
			RawValue:    Stringify(v),
			Confidence:  res.Confidences[name],
			ExtractedAt: now,
		})
	}
	return s.store.InsertProvenance(ctx, rows)
}

func meanConfidence(confs map[string]float64) float64 {
	if len(confs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confs {
		sum += c
	}
	return sum / float64(len(confs))
}

func slugify(s string) string {
	out := make([]rune, 0, len(s))
	lastDash := true
	for _, r := range NormalizeName(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			lastDash = false
		default:
			if !lastDash {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}
