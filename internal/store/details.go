package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/model"
)

const tastingColumns = `product_id,
	color_description, color_intensity, clarity, viscosity,
	nose_description, primary_aromas, nose_intensity, secondary_aromas, nose_evolution,
	initial_taste, mid_palate_evolution, palate_description, palate_flavors, flavor_intensity, complexity, mouthfeel,
	finish_description, finish_flavors, finish_length, warmth, dryness, finish_evolution, final_notes,
	balance, overall_complexity, uniqueness, drinkability, price_quality_ratio, experience_level, serving_recommendation, food_pairings`

func (s *PostgresStore) upsertTasting(ctx context.Context, productID string, t *model.TastingProfile) error {
	args := []any{
		productID,
		t.ColorDescription, t.ColorIntensity, t.Clarity, t.Viscosity,
		t.NoseDescription, orEmpty(t.PrimaryAromas), t.NoseIntensity, orEmpty(t.SecondaryAromas), t.NoseEvolution,
		t.InitialTaste, t.MidPalateEvolution, t.PalateDescription, orEmpty(t.PalateFlavors), t.FlavorIntensity, t.Complexity, t.Mouthfeel,
		t.FinishDescription, orEmpty(t.FinishFlavors), t.FinishLength, t.Warmth, t.Dryness, t.FinishEvolution, t.FinalNotes,
		t.Balance, t.OverallComplexity, t.Uniqueness, t.Drinkability, t.PriceQualityRatio, t.ExperienceLevel, t.ServingRecommendation, orEmpty(t.FoodPairings),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_tasting (`+tastingColumns+`) VALUES (`+placeholders(len(args))+`)
		 ON CONFLICT (product_id) DO UPDATE SET
			color_description = EXCLUDED.color_description, color_intensity = EXCLUDED.color_intensity,
			clarity = EXCLUDED.clarity, viscosity = EXCLUDED.viscosity,
			nose_description = EXCLUDED.nose_description, primary_aromas = EXCLUDED.primary_aromas,
			nose_intensity = EXCLUDED.nose_intensity, secondary_aromas = EXCLUDED.secondary_aromas,
			nose_evolution = EXCLUDED.nose_evolution,
			initial_taste = EXCLUDED.initial_taste, mid_palate_evolution = EXCLUDED.mid_palate_evolution,
			palate_description = EXCLUDED.palate_description, palate_flavors = EXCLUDED.palate_flavors,
			flavor_intensity = EXCLUDED.flavor_intensity, complexity = EXCLUDED.complexity, mouthfeel = EXCLUDED.mouthfeel,
			finish_description = EXCLUDED.finish_description, finish_flavors = EXCLUDED.finish_flavors,
			finish_length = EXCLUDED.finish_length, warmth = EXCLUDED.warmth, dryness = EXCLUDED.dryness,
			finish_evolution = EXCLUDED.finish_evolution, final_notes = EXCLUDED.final_notes,
			balance = EXCLUDED.balance, overall_complexity = EXCLUDED.overall_complexity,
			uniqueness = EXCLUDED.uniqueness, drinkability = EXCLUDED.drinkability,
			price_quality_ratio = EXCLUDED.price_quality_ratio, experience_level = EXCLUDED.experience_level,
			serving_recommendation = EXCLUDED.serving_recommendation, food_pairings = EXCLUDED.food_pairings`,
		args...,
	)
	return eris.Wrapf(err, "postgres: upsert tasting %s", productID)
}

func (s *PostgresStore) loadTasting(ctx context.Context, p *model.Product) error {
	t := &p.Tasting
	err := s.pool.QueryRow(ctx,
		`SELECT `+tastingColumns+` FROM product_tasting WHERE product_id = $1`,
		p.ID,
	).Scan(
		&p.ID,
		&t.ColorDescription, &t.ColorIntensity, &t.Clarity, &t.Viscosity,
		&t.NoseDescription, &t.PrimaryAromas, &t.NoseIntensity, &t.SecondaryAromas, &t.NoseEvolution,
		&t.InitialTaste, &t.MidPalateEvolution, &t.PalateDescription, &t.PalateFlavors, &t.FlavorIntensity, &t.Complexity, &t.Mouthfeel,
		&t.FinishDescription, &t.FinishFlavors, &t.FinishLength, &t.Warmth, &t.Dryness, &t.FinishEvolution, &t.FinalNotes,
		&t.Balance, &t.OverallComplexity, &t.Uniqueness, &t.Drinkability, &t.PriceQualityRatio, &t.ExperienceLevel, &t.ServingRecommendation, &t.FoodPairings,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return eris.Wrapf(err, "postgres: load tasting %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) upsertDetails(ctx context.Context, p *model.Product) error {
	switch p.ProductType {
	case model.TypeWhiskey:
		if p.Whiskey == nil {
			return nil
		}
		w := p.Whiskey
		_, err := s.pool.Exec(ctx,
			`INSERT INTO whiskey_details
				(product_id, whiskey_type, distillery, mash_bill, cask_strength, single_cask, peated,
				 natural_color, non_chill_filtered, peat_level, peat_ppm, vintage_year, bottling_year,
				 batch_number, cask_number)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 ON CONFLICT (product_id) DO UPDATE SET
				whiskey_type = EXCLUDED.whiskey_type, distillery = EXCLUDED.distillery,
				mash_bill = EXCLUDED.mash_bill, cask_strength = EXCLUDED.cask_strength,
				single_cask = EXCLUDED.single_cask, peated = EXCLUDED.peated,
				natural_color = EXCLUDED.natural_color, non_chill_filtered = EXCLUDED.non_chill_filtered,
				peat_level = EXCLUDED.peat_level, peat_ppm = EXCLUDED.peat_ppm,
				vintage_year = EXCLUDED.vintage_year, bottling_year = EXCLUDED.bottling_year,
				batch_number = EXCLUDED.batch_number, cask_number = EXCLUDED.cask_number`,
			p.ID, string(w.WhiskeyType), w.Distillery, w.MashBill, w.CaskStrength, w.SingleCask, w.Peated,
			w.NaturalColor, w.NonChillFiltered, string(w.PeatLevel), w.PeatPPM, w.VintageYear, w.BottlingYear,
			w.BatchNumber, w.CaskNumber,
		)
		return eris.Wrapf(err, "postgres: upsert whiskey details %s", p.ID)

	case model.TypePortWine:
		if p.Port == nil {
			return nil
		}
		pw := p.Port
		_, err := s.pool.Exec(ctx,
			`INSERT INTO port_details
				(product_id, style, indication_age, harvest_year, bottling_year, producer_house,
				 quinta, douro_subregion, grape_varieties, decanting_required, drinking_window)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (product_id) DO UPDATE SET
				style = EXCLUDED.style, indication_age = EXCLUDED.indication_age,
				harvest_year = EXCLUDED.harvest_year, bottling_year = EXCLUDED.bottling_year,
				producer_house = EXCLUDED.producer_house, quinta = EXCLUDED.quinta,
				douro_subregion = EXCLUDED.douro_subregion, grape_varieties = EXCLUDED.grape_varieties,
				decanting_required = EXCLUDED.decanting_required, drinking_window = EXCLUDED.drinking_window`,
			p.ID, string(pw.Style), pw.IndicationAge, pw.HarvestYear, pw.BottlingYear, pw.ProducerHouse,
			pw.Quinta, string(pw.DouroSubregion), orEmpty(pw.GrapeVarieties), pw.DecantingRequired, pw.DrinkingWindow,
		)
		return eris.Wrapf(err, "postgres: upsert port details %s", p.ID)

	default:
		return eris.Errorf("postgres: unknown product type %q", p.ProductType)
	}
}

func (s *PostgresStore) loadDetails(ctx context.Context, p *model.Product) error {
	switch p.ProductType {
	case model.TypeWhiskey:
		var w model.WhiskeyDetails
		err := s.pool.QueryRow(ctx,
			`SELECT product_id, whiskey_type, distillery, mash_bill, cask_strength, single_cask, peated,
				natural_color, non_chill_filtered, peat_level, peat_ppm, vintage_year, bottling_year,
				batch_number, cask_number
			 FROM whiskey_details WHERE product_id = $1`,
			p.ID,
		).Scan(
			&w.ProductID, &w.WhiskeyType, &w.Distillery, &w.MashBill, &w.CaskStrength, &w.SingleCask, &w.Peated,
			&w.NaturalColor, &w.NonChillFiltered, &w.PeatLevel, &w.PeatPPM, &w.VintageYear, &w.BottlingYear,
			&w.BatchNumber, &w.CaskNumber,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return eris.Wrapf(err, "postgres: load whiskey details %s", p.ID)
		}
		p.Whiskey = &w
		return nil

	case model.TypePortWine:
		var pw model.PortWineDetails
		err := s.pool.QueryRow(ctx,
			`SELECT product_id, style, indication_age, harvest_year, bottling_year, producer_house,
				quinta, douro_subregion, grape_varieties, decanting_required, drinking_window
			 FROM port_details WHERE product_id = $1`,
			p.ID,
		).Scan(
			&pw.ProductID, &pw.Style, &pw.IndicationAge, &pw.HarvestYear, &pw.BottlingYear, &pw.ProducerHouse,
			&pw.Quinta, &pw.DouroSubregion, &pw.GrapeVarieties, &pw.DecantingRequired, &pw.DrinkingWindow,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return eris.Wrapf(err, "postgres: load port details %s", p.ID)
		}
		p.Port = &pw
		return nil
	}
	return nil
}
