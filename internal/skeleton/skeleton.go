// Package skeleton creates minimal product records from competition award
// data. A skeleton has a name and at least one award, an empty source URL,
// and nothing else; the verification pipeline fills it in later.
package skeleton

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/awards"
	"github.com/cellarium/catalog-cli/internal/model"
)

// ErrUnsupportedType rejects award rows for product categories outside the
// catalog (gin, rum, table wine).
var ErrUnsupportedType = eris.New("skeleton: unsupported_for_mvp")

// typeKeywords maps detection keywords to a product type. Checked against
// the lowercased name and category together.
var typeKeywords = map[model.ProductType][]string{
	model.TypeWhiskey: {
		"whisky", "whiskey", "bourbon", "scotch", "single malt",
		"rye", "tennessee", "single pot still",
	},
	model.TypePortWine: {
		"port", "porto", "tawny", "ruby port", "vintage port",
		"lbv", "late bottled vintage", "colheita",
	},
}

// rejectKeywords disqualify a row outright. "wine" alone is deliberately
// absent: port results are routinely tagged as wine.
var rejectKeywords = []string{
	"gin", "vodka", "rum", "tequila", "mezcal", "liqueur",
	"brandy", "cognac", "armagnac", "sake", "beer", "cider",
}

// DetectProductType classifies an award row by name and category keywords.
func DetectProductType(name, category string) (model.ProductType, error) {
	text := strings.ToLower(name + " " + category)

	for typ, keys := range typeKeywords {
		for _, k := range keys {
			if strings.Contains(text, k) {
				return typ, nil
			}
		}
	}
	return "", ErrUnsupportedType
}

// Rejected reports whether a row names a spirit category outside scope.
// Port rows tagged "wine" pass.
func Rejected(name, category string) bool {
	text := strings.ToLower(name + " " + category)
	if strings.Contains(text, "port") {
		return false
	}
	for _, k := range rejectKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Store is the persistence subset the manager needs.
type Store interface {
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	GetProductByFingerprint(ctx context.Context, fp string) (*model.Product, error)
	FindProductsByName(ctx context.Context, nameSubstring string, ptype model.ProductType) ([]model.Product, error)
}

// Manager creates or merges skeletons from award rows.
type Manager struct {
	store  Store
	awards *awards.Handler
}

func NewManager(st Store, h *awards.Handler) *Manager {
	return &Manager{store: st, awards: h}
}

// CreateSkeleton resolves one award row to a product: an existing product
// (by skeleton fingerprint, then name substring) absorbs the award; a new
// skeleton is created otherwise. Returns the product and whether it is new.
func (m *Manager) CreateSkeleton(ctx context.Context, rec model.AwardRecord) (*model.Product, bool, error) {
	if Rejected(rec.ProductName, rec.Category) {
		return nil, false, ErrUnsupportedType
	}
	typ, err := DetectProductType(rec.ProductName, rec.Category)
	if err != nil {
		return nil, false, err
	}

	compKey := awards.NormalizeCompetition(rec.Competition)

	existing, err := m.lookup(ctx, rec, typ)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		inserted, err := m.awards.Attach(ctx, existing.ID, rec)
		if err != nil {
			return nil, false, err
		}
		if inserted {
			existing.AwardCount++
		}
		existing.AddDiscoverySource("competition")
		existing.AddDiscoverySource(compKey)
		if err := m.store.UpdateProduct(ctx, existing); err != nil {
			return nil, false, err
		}
		zap.L().Debug("award merged into existing product",
			zap.String("product_id", existing.ID),
			zap.String("name", rec.ProductName))
		return existing, false, nil
	}

	p := &model.Product{
		ProductType:     typ,
		Name:            strings.TrimSpace(rec.ProductName),
		Country:         rec.Country,
		Status:          model.StatusSkeleton,
		SourceURL:       "",
		DiscoverySource: compKey,
		Fingerprint:     model.SkeletonFingerprint(rec.ProductName, rec.Producer),
		DiscoveredAt:    time.Now().UTC(),
	}
	p.AddDiscoverySource("competition")
	p.AddDiscoverySource(compKey)
	if err := m.store.CreateProduct(ctx, p); err != nil {
		return nil, false, eris.Wrapf(err, "skeleton: create %q", rec.ProductName)
	}
	if _, err := m.awards.Attach(ctx, p.ID, rec); err != nil {
		return nil, false, err
	}
	p.AwardCount = 1
	return p, true, nil
}

// lookup finds a product this award belongs to, across all statuses.
func (m *Manager) lookup(ctx context.Context, rec model.AwardRecord, typ model.ProductType) (*model.Product, error) {
	fp := model.SkeletonFingerprint(rec.ProductName, rec.Producer)
	p, err := m.store.GetProductByFingerprint(ctx, fp)
	if err != nil {
		return nil, eris.Wrap(err, "skeleton: fingerprint lookup")
	}
	if p != nil {
		return p, nil
	}

	name := strings.ToLower(strings.TrimSpace(rec.ProductName))
	if name == "" {
		return nil, nil
	}
	candidates, err := m.store.FindProductsByName(ctx, name, typ)
	if err != nil {
		return nil, eris.Wrap(err, "skeleton: name lookup")
	}
	for i := range candidates {
		c := &candidates[i]
		cn := strings.ToLower(c.Name)
		if strings.Contains(cn, name) || strings.Contains(name, cn) {
			return c, nil
		}
	}
	return nil, nil
}
