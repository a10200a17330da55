// Package score computes the deterministic completeness score and derives
// product lifecycle status from it.
package score

import "github.com/cellarium/catalog-cli/internal/model"

// Status thresholds.
const (
	partialThreshold  = 30
	completeThreshold = 60
	verifiedThreshold = 80
)

// Completeness sums the per-bucket field weights, 0..100.
//
// Buckets: identification 15, basic 15, palate 20, nose 10, finish 10,
// enrichment 20, verification 10.
func Completeness(p *model.Product) int {
	s := 0

	// Identification
	if p.Name != "" {
		s += 10
	}
	if p.BrandID != "" || (p.Brand != nil && p.Brand.Name != "") {
		s += 5
	}

	// Basic info
	if p.ProductType != "" {
		s += 5
	}
	if p.ABV > 0 {
		s += 5
	}
	if p.Description != "" {
		s += 5
	}

	// Palate
	t := &p.Tasting
	if len(t.PalateFlavors) > 0 {
		s += 10
	}
	if t.PalateDescription != "" {
		s += 5
	}
	if t.MidPalateEvolution != "" {
		s += 3
	}
	if t.Mouthfeel != "" {
		s += 2
	}

	// Nose
	if t.NoseDescription != "" {
		s += 5
	}
	if len(t.PrimaryAromas) > 0 {
		s += 5
	}

	// Finish
	if t.FinishDescription != "" {
		s += 5
	}
	if len(t.FinishFlavors) > 0 {
		s += 3
	}
	if t.FinishLength != "" {
		s += 2
	}

	// Enrichment
	if p.BestPriceCents > 0 {
		s += 5
	}
	if len(p.Images) > 0 {
		s += 5
	}
	if len(p.Ratings) > 0 {
		s += 5
	}
	if p.AwardCount > 0 {
		s += 5
	}

	// Verification
	if p.SourceCount >= 2 {
		s += 5
	}
	if p.SourceCount >= 3 {
		s += 5
	}

	if s > 100 {
		s = 100
	}
	return s
}

// DeriveStatus maps a score onto the lifecycle status. Palate evidence is
// mandatory for complete and verified: a 95-point product with no palate
// stays partial. Terminal states (rejected, merged) are never overridden.
func DeriveStatus(p *model.Product, score int) model.ProductStatus {
	switch p.Status {
	case model.StatusRejected, model.StatusMerged:
		return p.Status
	}

	if score < partialThreshold {
		return model.StatusIncomplete
	}
	if score < completeThreshold {
		return model.StatusPartial
	}
	if !p.Tasting.HasPalate() {
		return model.StatusPartial
	}
	if score < verifiedThreshold {
		return model.StatusComplete
	}
	return model.StatusVerified
}

// Recompute updates the product's score and status in place.
func Recompute(p *model.Product) {
	p.CompletenessScore = Completeness(p)
	p.Status = DeriveStatus(p, p.CompletenessScore)
}
