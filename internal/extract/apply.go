package extract

import "github.com/cellarium/catalog-cli/internal/model"

// ApplyFields writes a validated field map onto a product, overwriting
// whatever is there. Callers that need fill-only or conflict-aware merge
// semantics (the verification pipeline) compare per field before calling.
func ApplyFields(p *model.Product, fields map[string]any) {
	for name, v := range fields {
		applyField(p, name, v)
	}
}

// ApplyField writes a single validated field onto a product.
func ApplyField(p *model.Product, name string, v any) {
	applyField(p, name, v)
}

func applyField(p *model.Product, name string, v any) {
	switch name {
	case "name":
		p.Name = str(v)
	case "gtin":
		p.GTIN = str(v)
	case "description":
		p.Description = str(v)
	case "abv":
		p.ABV = f64(v)
	case "volume_ml":
		p.VolumeML = num(v)
	case "age_statement":
		p.AgeStatement = str(v)
	case "country":
		p.Country = str(v)
	case "region":
		p.Region = str(v)
	case "category":
		p.Category = str(v)
	case "image_url":
		if s := str(v); s != "" {
			p.Images = appendUnique(p.Images, s)
		}
	case "primary_cask":
		p.PrimaryCask = strs(v)
	case "finishing_cask":
		p.FinishingCask = strs(v)
	case "wood_type":
		p.WoodType = strs(v)
	case "cask_treatment":
		p.CaskTreatment = strs(v)
	default:
		if applyTastingField(&p.Tasting, name, v) {
			return
		}
		applyDetailField(p, name, v)
	}
}

func applyTastingField(t *model.TastingProfile, name string, v any) bool {
	switch name {
	case "color_description":
		t.ColorDescription = str(v)
	case "color_intensity":
		t.ColorIntensity = str(v)
	case "clarity":
		t.Clarity = str(v)
	case "viscosity":
		t.Viscosity = str(v)
	case "nose_description":
		t.NoseDescription = str(v)
	case "primary_aromas":
		t.PrimaryAromas = strs(v)
	case "nose_intensity":
		t.NoseIntensity = str(v)
	case "secondary_aromas":
		t.SecondaryAromas = strs(v)
	case "nose_evolution":
		t.NoseEvolution = str(v)
	case "initial_taste":
		t.InitialTaste = str(v)
	case "mid_palate_evolution":
		t.MidPalateEvolution = str(v)
	case "palate_description":
		t.PalateDescription = str(v)
	case "palate_flavors":
		t.PalateFlavors = strs(v)
	case "flavor_intensity":
		t.FlavorIntensity = str(v)
	case "complexity":
		t.Complexity = str(v)
	case "mouthfeel":
		t.Mouthfeel = str(v)
	case "finish_description":
		t.FinishDescription = str(v)
	case "finish_flavors":
		t.FinishFlavors = strs(v)
	case "finish_length":
		t.FinishLength = str(v)
	case "warmth":
		t.Warmth = str(v)
	case "dryness":
		t.Dryness = str(v)
	case "finish_evolution":
		t.FinishEvolution = str(v)
	case "final_notes":
		t.FinalNotes = str(v)
	case "balance":
		t.Balance = str(v)
	case "overall_complexity":
		t.OverallComplexity = str(v)
	case "uniqueness":
		t.Uniqueness = str(v)
	case "drinkability":
		t.Drinkability = str(v)
	case "price_quality_ratio":
		t.PriceQualityRatio = str(v)
	case "experience_level":
		t.ExperienceLevel = str(v)
	case "serving_recommendation":
		t.ServingRecommendation = str(v)
	case "food_pairings":
		t.FoodPairings = strs(v)
	default:
		return false
	}
	return true
}

func applyDetailField(p *model.Product, name string, v any) {
	switch p.ProductType {
	case model.TypeWhiskey:
		if p.Whiskey == nil {
			p.Whiskey = &model.WhiskeyDetails{ProductID: p.ID}
		}
		w := p.Whiskey
		switch name {
		case "whiskey_type":
			w.WhiskeyType = model.WhiskeyType(str(v))
		case "distillery":
			w.Distillery = str(v)
		case "mash_bill":
			w.MashBill = str(v)
		case "cask_strength":
			w.CaskStrength = boolean(v)
		case "single_cask":
			w.SingleCask = boolean(v)
		case "peated":
			w.Peated = boolean(v)
		case "natural_color":
			w.NaturalColor = boolean(v)
		case "non_chill_filtered":
			w.NonChillFiltered = boolean(v)
		case "peat_level":
			w.PeatLevel = model.PeatLevel(str(v))
		case "peat_ppm":
			w.PeatPPM = num(v)
		case "vintage_year":
			w.VintageYear = num(v)
		case "bottling_year":
			w.BottlingYear = num(v)
		case "batch_number":
			w.BatchNumber = str(v)
		case "cask_number":
			w.CaskNumber = str(v)
		}

	case model.TypePortWine:
		if p.Port == nil {
			p.Port = &model.PortWineDetails{ProductID: p.ID}
		}
		pw := p.Port
		switch name {
		case "style":
			pw.Style = model.PortStyle(str(v))
		case "indication_age":
			pw.IndicationAge = num(v)
		case "harvest_year":
			pw.HarvestYear = num(v)
		case "bottling_year":
			pw.BottlingYear = num(v)
		case "producer_house":
			pw.ProducerHouse = str(v)
		case "quinta":
			pw.Quinta = str(v)
		case "douro_subregion":
			pw.DouroSubregion = model.DouroSubregion(str(v))
		case "grape_varieties":
			pw.GrapeVarieties = strs(v)
		case "decanting_required":
			pw.DecantingRequired = boolean(v)
		case "drinking_window":
			pw.DrinkingWindow = str(v)
		}
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(v any) []string {
	s, _ := v.([]string)
	return s
}

func f64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}

func num(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	}
	return 0
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
