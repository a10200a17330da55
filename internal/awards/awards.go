// Package awards normalizes competition results onto products. The dedup
// key is (product, competition, year, medal); normalization happens before
// the key is formed so the same award from two sources collapses.
package awards

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/model"
)

// Competition keys.
const (
	CompIWSC  = "iwsc"
	CompSFWSC = "sfwsc"
	CompWWA   = "wwa"
	CompDWWA  = "dwwa"
)

// competitionAliases maps the long and short display forms seen in the
// wild onto stable keys.
var competitionAliases = map[string]string{
	"iwsc": CompIWSC,
	"international wine & spirit competition": CompIWSC,
	"international wine and spirit competition": CompIWSC,

	"sfwsc": CompSFWSC,
	"san francisco world spirits competition": CompSFWSC,

	"wwa":                   CompWWA,
	"world whiskies awards": CompWWA,
	"world whisky awards":   CompWWA,

	"dwwa":                      CompDWWA,
	"decanter":                  CompDWWA,
	"decanter world wine awards": CompDWWA,
}

// NormalizeCompetition maps a display name to its key. Unknown names fold
// to a lowercase slug so dedup still works within one competition.
func NormalizeCompetition(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	if mapped, ok := competitionAliases[k]; ok {
		return mapped
	}
	for alias, key := range competitionAliases {
		if len(alias) >= 4 && strings.Contains(k, alias) {
			return key
		}
	}
	return strings.ReplaceAll(k, " ", "_")
}

// medalOrder lists substring → medal pairs, most specific first, so
// "double gold" never falls through to "gold".
var medalOrder = []struct{ substr, medal string }{
	{"double gold", "double_gold"},
	{"double-gold", "double_gold"},
	{"best in show", "best_in_show"},
	{"best in class", "best_in_class"},
	{"platinum", "platinum"},
	{"trophy", "trophy"},
	{"gold", "gold"},
	{"silver", "silver"},
	{"bronze", "bronze"},
}

// NormalizeMedal folds a raw medal string to its canonical form, or ""
// when no medal is recognizable.
func NormalizeMedal(raw string) string {
	k := strings.ToLower(raw)
	for _, m := range medalOrder {
		if strings.Contains(k, m.substr) {
			return m.medal
		}
	}
	return ""
}

// Store is the persistence subset the handler needs.
type Store interface {
	UpsertAward(ctx context.Context, a *model.Award) (bool, error)
	ListAwards(ctx context.Context, productID string) ([]model.Award, error)
}

// Handler attaches normalized awards to products.
type Handler struct {
	store Store
}

func NewHandler(st Store) *Handler {
	return &Handler{store: st}
}

// Attach normalizes and persists one award record against a product.
// Returns true when the award was new. Unrecognizable medals are dropped.
func (h *Handler) Attach(ctx context.Context, productID string, rec model.AwardRecord) (bool, error) {
	medal := NormalizeMedal(rec.Medal)
	if medal == "" {
		zap.L().Debug("dropping award with unrecognizable medal",
			zap.String("product_id", productID),
			zap.String("raw", rec.Medal))
		return false, nil
	}

	a := &model.Award{
		ProductID:     productID,
		Competition:   NormalizeCompetition(rec.Competition),
		Year:          rec.Year,
		Medal:         medal,
		Score:         rec.Score,
		Category:      rec.Category,
		AwardCategory: rec.AwardCategory,
		ImageURL:      rec.ImageURL,
	}
	inserted, err := h.store.UpsertAward(ctx, a)
	if err != nil {
		return false, eris.Wrapf(err, "awards: attach %s to %s", a.Competition, productID)
	}
	return inserted, nil
}

// AttachAll attaches a batch, returning how many were new.
func (h *Handler) AttachAll(ctx context.Context, productID string, recs []model.AwardRecord) (int, error) {
	added := 0
	for _, rec := range recs {
		inserted, err := h.Attach(ctx, productID, rec)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}
