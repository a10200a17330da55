// Package competition parses published award results into product
// skeletons and drives the competition discovery loop. One parser per
// supported competition; each tries its primary selectors, then
// fallbacks, then a generic table walker.
package competition

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/awards"
	"github.com/cellarium/catalog-cli/internal/model"
)

// Parser extracts award rows from one competition's results page.
type Parser interface {
	// Competition returns the normalized competition key.
	Competition() string
	// Parse extracts award records from a results page for the given year.
	Parse(html string, year int) ([]model.AwardRecord, error)
	// Selectors returns the selector cascade, primary first. The health
	// checker probes these against a live sample page.
	Selectors() []SelectorSet
}

// SelectorSet is one coherent group of CSS selectors for a results page
// layout. Row is required; the rest are relative to a row and optional.
type SelectorSet struct {
	Row      string
	Name     string
	Medal    string
	Producer string
	Category string
	Score    string
}

// ForSlug returns the parser for a competition source slug.
func ForSlug(slug string) (Parser, bool) {
	switch {
	case strings.Contains(slug, awards.CompIWSC):
		return &iwscParser{}, true
	case strings.Contains(slug, awards.CompSFWSC):
		return &sfwscParser{}, true
	case strings.Contains(slug, awards.CompWWA):
		return &wwaParser{}, true
	case strings.Contains(slug, awards.CompDWWA):
		return &dwwaParser{}, true
	}
	return nil, false
}

// parseCascade runs the selector sets in order, stopping at the first one
// that yields valid rows; the generic table walker is the last resort.
func parseCascade(html, comp string, year int, sets []SelectorSet) ([]model.AwardRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "competition: parse %s page", comp)
	}

	for _, set := range sets {
		if recs := parseWithSet(doc, set, comp, year); len(recs) > 0 {
			return recs, nil
		}
	}
	return parseGenericTables(doc, comp, year), nil
}

func parseWithSet(doc *goquery.Document, set SelectorSet, comp string, year int) []model.AwardRecord {
	var recs []model.AwardRecord
	doc.Find(set.Row).Each(func(_ int, row *goquery.Selection) {
		rec := model.AwardRecord{Competition: comp, Year: year}
		rec.ProductName = text(row, set.Name)
		rec.Medal = text(row, set.Medal)
		rec.Producer = text(row, set.Producer)
		rec.Category = text(row, set.Category)
		if s := text(row, set.Score); s != "" {
			rec.Score = parseScore(s)
		}
		if img, ok := row.Find("img").First().Attr("src"); ok && strings.Contains(img, "medal") {
			rec.ImageURL = img
		}
		if acceptRecord(&rec) {
			recs = append(recs, rec)
		}
	})
	return recs
}

func text(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(row.Find(selector).First().Text())
}

// acceptRecord applies name validation and medal recognition to a parsed
// row. Rows failing either are noise, not products.
func acceptRecord(rec *model.AwardRecord) bool {
	if !ValidProductName(rec.ProductName) {
		return false
	}
	if awards.NormalizeMedal(rec.Medal) == "" {
		return false
	}
	return true
}
