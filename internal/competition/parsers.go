package competition

import (
	"github.com/cellarium/catalog-cli/internal/awards"
	"github.com/cellarium/catalog-cli/internal/model"
)

// iwscParser handles the IWSC results listing. The site has reshuffled its
// markup twice; the fallback set covers the previous layout.
type iwscParser struct{}

func (p *iwscParser) Competition() string { return awards.CompIWSC }

func (p *iwscParser) Selectors() []SelectorSet {
	return []SelectorSet{
		{
			Row:      "div.result-card",
			Name:     "h3.result-card__title",
			Medal:    "span.result-card__medal",
			Producer: "p.result-card__producer",
			Category: "span.result-card__category",
			Score:    "span.result-card__score",
		},
		{
			Row:      "li.search-result",
			Name:     ".search-result__name",
			Medal:    ".search-result__award",
			Producer: ".search-result__company",
			Category: ".search-result__type",
		},
	}
}

func (p *iwscParser) Parse(html string, year int) ([]model.AwardRecord, error) {
	return parseCascade(html, p.Competition(), year, p.Selectors())
}

// sfwscParser handles the San Francisco World Spirits Competition medal
// database.
type sfwscParser struct{}

func (p *sfwscParser) Competition() string { return awards.CompSFWSC }

func (p *sfwscParser) Selectors() []SelectorSet {
	return []SelectorSet{
		{
			Row:      "tr.medal-row",
			Name:     "td.brand-name",
			Medal:    "td.medal-type",
			Producer: "td.company",
			Category: "td.spirit-category",
		},
		{
			Row:      "div.winner-entry",
			Name:     ".winner-entry__product",
			Medal:    ".winner-entry__medal",
			Category: ".winner-entry__class",
		},
	}
}

func (p *sfwscParser) Parse(html string, year int) ([]model.AwardRecord, error) {
	return parseCascade(html, p.Competition(), year, p.Selectors())
}

// wwaParser handles the World Whiskies Awards winners pages, which carry
// named award categories ("World's Best Single Malt") alongside medals.
type wwaParser struct{}

func (p *wwaParser) Competition() string { return awards.CompWWA }

func (p *wwaParser) Selectors() []SelectorSet {
	return []SelectorSet{
		{
			Row:      "div.award-winner",
			Name:     "h4.award-winner__name",
			Medal:    "span.award-winner__medal",
			Producer: "span.award-winner__distillery",
			Category: "h3.award-winner__category",
		},
		{
			Row:   "li.taxonomy-winner",
			Name:  ".taxonomy-winner__title",
			Medal: ".taxonomy-winner__level",
		},
	}
}

func (p *wwaParser) Parse(html string, year int) ([]model.AwardRecord, error) {
	recs, err := parseCascade(html, p.Competition(), year, p.Selectors())
	if err != nil {
		return nil, err
	}
	// the category line doubles as the named award on winners pages
	for i := range recs {
		if recs[i].AwardCategory == "" && isNamedAward(recs[i].Category) {
			recs[i].AwardCategory = recs[i].Category
		}
	}
	return recs, nil
}

func isNamedAward(category string) bool {
	return len(category) > 0 && (containsFold(category, "best") || containsFold(category, "winner"))
}

// dwwaParser handles the Decanter World Wine Awards results, filtered
// upstream to fortified entries.
type dwwaParser struct{}

func (p *dwwaParser) Competition() string { return awards.CompDWWA }

func (p *dwwaParser) Selectors() []SelectorSet {
	return []SelectorSet{
		{
			Row:      "div.dwwa-result",
			Name:     "h3.dwwa-result__wine",
			Medal:    "span.dwwa-result__medal",
			Producer: "span.dwwa-result__producer",
			Category: "span.dwwa-result__style",
			Score:    "span.dwwa-result__points",
		},
		{
			Row:      "tr[data-result-id]",
			Name:     "td.wine",
			Medal:    "td.award",
			Producer: "td.producer",
			Score:    "td.points",
		},
	}
}

func (p *dwwaParser) Parse(html string, year int) ([]model.AwardRecord, error) {
	return parseCascade(html, p.Competition(), year, p.Selectors())
}
