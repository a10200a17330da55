package match

import (
	"context"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/model"
)

// Match methods, in decreasing confidence order.
const (
	MethodGTIN        = "gtin"
	MethodFingerprint = "fingerprint"
	MethodFuzzy       = "fuzzy"
	MethodNone        = "none"
)

const (
	fuzzyThreshold  = 85
	fuzzyBase       = 0.85
	fuzzyBrandBoost = 0.05
)

// ProductFinder is the store subset the matcher needs.
type ProductFinder interface {
	GetProductByGTIN(ctx context.Context, gtin string) (*model.Product, error)
	GetProductByFingerprint(ctx context.Context, fp string) (*model.Product, error)
	FindProductsByName(ctx context.Context, nameSubstring string, ptype model.ProductType) ([]model.Product, error)
	GetBrandByName(ctx context.Context, name string) (*model.Brand, error)
}

// Input is the identity slice of extracted data the matcher operates on.
type Input struct {
	Name  string
	Brand string
	GTIN  string
}

// FromFields pulls the identity fields out of an extraction result.
func FromFields(fields map[string]any) Input {
	in := Input{}
	if v, ok := fields["name"].(string); ok {
		in.Name = v
	}
	if v, ok := fields["brand"].(string); ok {
		in.Brand = v
	}
	if v, ok := fields["gtin"].(string); ok {
		in.GTIN = v
	}
	return in
}

type Matcher struct {
	finder ProductFinder
}

func NewMatcher(finder ProductFinder) *Matcher {
	return &Matcher{finder: finder}
}

// FindMatch resolves incoming data against the catalog. GTIN beats
// fingerprint beats fuzzy; no tier consults a weaker one on a hit.
func (m *Matcher) FindMatch(ctx context.Context, in Input, typ model.ProductType) (*model.Product, string, float64, error) {
	if in.GTIN != "" {
		p, err := m.finder.GetProductByGTIN(ctx, in.GTIN)
		if err != nil {
			return nil, MethodNone, 0, eris.Wrap(err, "match: gtin lookup")
		}
		if p != nil {
			return p, MethodGTIN, 1.0, nil
		}
	}

	if in.Name != "" {
		fp := model.Fingerprint(in.Name, in.Brand)
		p, err := m.finder.GetProductByFingerprint(ctx, fp)
		if err != nil {
			return nil, MethodNone, 0, eris.Wrap(err, "match: fingerprint lookup")
		}
		if p != nil {
			return p, MethodFingerprint, 0.95, nil
		}
	}

	p, conf, err := m.fuzzyMatch(ctx, in, typ)
	if err != nil {
		return nil, MethodNone, 0, err
	}
	if p != nil {
		return p, MethodFuzzy, conf, nil
	}
	return nil, MethodNone, 0, nil
}

func (m *Matcher) fuzzyMatch(ctx context.Context, in Input, typ model.ProductType) (*model.Product, float64, error) {
	word := FirstSignificantWord(in.Name)
	if word == "" {
		return nil, 0, nil
	}

	candidates, err := m.finder.FindProductsByName(ctx, word, typ)
	if err != nil {
		return nil, 0, eris.Wrap(err, "match: candidate search")
	}

	normIn := NormalizeName(in.Name)
	var (
		best      *model.Product
		bestScore int
	)
	for i := range candidates {
		c := &candidates[i]
		if FirstSignificantWord(c.Name) != word {
			continue
		}
		if in.Brand != "" && !brandMatches(c, in.Brand) {
			continue
		}
		score := bestOfRatios(normIn, NormalizeName(c.Name))
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if best == nil || bestScore < fuzzyThreshold {
		return nil, 0, nil
	}

	conf := fuzzyBase
	if in.Brand != "" && brandMatches(best, in.Brand) {
		conf += fuzzyBrandBoost
	}
	zap.L().Debug("fuzzy match",
		zap.String("incoming", in.Name),
		zap.String("matched", best.Name),
		zap.Int("score", bestScore))
	return best, conf, nil
}

// bestOfRatios scores two normalized names with the strongest of the four
// standard similarity measures.
func bestOfRatios(a, b string) int {
	score := fuzzy.Ratio(a, b)
	if v := fuzzy.PartialRatio(a, b); v > score {
		score = v
	}
	if v := fuzzy.TokenSortRatio(a, b); v > score {
		score = v
	}
	if v := fuzzy.TokenSetRatio(a, b); v > score {
		score = v
	}
	return score
}

func brandMatches(p *model.Product, brand string) bool {
	if p.Brand != nil && strings.EqualFold(p.Brand.Name, brand) {
		return true
	}
	// Fall back to a name-prefix check when the brand row isn't loaded.
	return strings.HasPrefix(strings.ToLower(NormalizeName(p.Name)), strings.ToLower(NormalizeName(brand)))
}
