package extract

import "github.com/cellarium/catalog-cli/internal/model"

// FieldValue reads the current value of a schema field from a product.
// Returns nil for unknown fields. The merge routine uses this to decide
// between fill, agree, and conflict.
func FieldValue(p *model.Product, name string) any {
	switch name {
	case "name":
		return p.Name
	case "gtin":
		return p.GTIN
	case "description":
		return p.Description
	case "abv":
		return p.ABV
	case "volume_ml":
		return p.VolumeML
	case "age_statement":
		return p.AgeStatement
	case "country":
		return p.Country
	case "region":
		return p.Region
	case "category":
		return p.Category
	case "image_url":
		if len(p.Images) > 0 {
			return p.Images[0]
		}
		return ""
	case "primary_cask":
		return p.PrimaryCask
	case "finishing_cask":
		return p.FinishingCask
	case "wood_type":
		return p.WoodType
	case "cask_treatment":
		return p.CaskTreatment
	}
	if v, ok := tastingFieldValue(&p.Tasting, name); ok {
		return v
	}
	return detailFieldValue(p, name)
}

func tastingFieldValue(t *model.TastingProfile, name string) (any, bool) {
	switch name {
	case "color_description":
		return t.ColorDescription, true
	case "color_intensity":
		return t.ColorIntensity, true
	case "clarity":
		return t.Clarity, true
	case "viscosity":
		return t.Viscosity, true
	case "nose_description":
		return t.NoseDescription, true
	case "primary_aromas":
		return t.PrimaryAromas, true
	case "nose_intensity":
		return t.NoseIntensity, true
	case "secondary_aromas":
		return t.SecondaryAromas, true
	case "nose_evolution":
		return t.NoseEvolution, true
	case "initial_taste":
		return t.InitialTaste, true
	case "mid_palate_evolution":
		return t.MidPalateEvolution, true
	case "palate_description":
		return t.PalateDescription, true
	case "palate_flavors":
		return t.PalateFlavors, true
	case "flavor_intensity":
		return t.FlavorIntensity, true
	case "complexity":
		return t.Complexity, true
	case "mouthfeel":
		return t.Mouthfeel, true
	case "finish_description":
		return t.FinishDescription, true
	case "finish_flavors":
		return t.FinishFlavors, true
	case "finish_length":
		return t.FinishLength, true
	case "warmth":
		return t.Warmth, true
	case "dryness":
		return t.Dryness, true
	case "finish_evolution":
		return t.FinishEvolution, true
	case "final_notes":
		return t.FinalNotes, true
	case "balance":
		return t.Balance, true
	case "overall_complexity":
		return t.OverallComplexity, true
	case "uniqueness":
		return t.Uniqueness, true
	case "drinkability":
		return t.Drinkability, true
	case "price_quality_ratio":
		return t.PriceQualityRatio, true
	case "experience_level":
		return t.ExperienceLevel, true
	case "serving_recommendation":
		return t.ServingRecommendation, true
	case "food_pairings":
		return t.FoodPairings, true
	}
	return nil, false
}

func detailFieldValue(p *model.Product, name string) any {
	switch p.ProductType {
	case model.TypeWhiskey:
		if p.Whiskey == nil {
			return zeroForDetail(name)
		}
		w := p.Whiskey
		switch name {
		case "whiskey_type":
			return string(w.WhiskeyType)
		case "distillery":
			return w.Distillery
		case "mash_bill":
			return w.MashBill
		case "cask_strength":
			return w.CaskStrength
		case "single_cask":
			return w.SingleCask
		case "peated":
			return w.Peated
		case "natural_color":
			return w.NaturalColor
		case "non_chill_filtered":
			return w.NonChillFiltered
		case "peat_level":
			return string(w.PeatLevel)
		case "peat_ppm":
			return w.PeatPPM
		case "vintage_year":
			return w.VintageYear
		case "bottling_year":
			return w.BottlingYear
		case "batch_number":
			return w.BatchNumber
		case "cask_number":
			return w.CaskNumber
		}

	case model.TypePortWine:
		if p.Port == nil {
			return zeroForDetail(name)
		}
		pw := p.Port
		switch name {
		case "style":
			return string(pw.Style)
		case "indication_age":
			return pw.IndicationAge
		case "harvest_year":
			return pw.HarvestYear
		case "bottling_year":
			return pw.BottlingYear
		case "producer_house":
			return pw.ProducerHouse
		case "quinta":
			return pw.Quinta
		case "douro_subregion":
			return string(pw.DouroSubregion)
		case "grape_varieties":
			return pw.GrapeVarieties
		case "decanting_required":
			return pw.DecantingRequired
		case "drinking_window":
			return pw.DrinkingWindow
		}
	}
	return nil
}

// zeroForDetail returns the empty value a detail field would have had, so
// merge treats missing detail records as fillable.
func zeroForDetail(name string) any {
	switch name {
	case "cask_strength", "single_cask", "peated", "natural_color",
		"non_chill_filtered", "decanting_required":
		return false
	case "peat_ppm", "vintage_year", "bottling_year", "indication_age", "harvest_year":
		return 0
	case "grape_varieties":
		return []string(nil)
	default:
		return ""
	}
}
