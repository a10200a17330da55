// Package extract turns fetched page content into validated, typed product
// fields. Extraction itself is delegated to an external AI service; this
// package owns the product-type schemas, value coercion, deterministic
// meta-tag derivation, and the mapping of field maps onto products.
package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cellarium/catalog-cli/internal/model"
)

// Kind is the wire type a schema field coerces to.
type Kind int

const (
	KindString Kind = iota
	KindStringList
	KindFloat
	KindInt
	KindBool
)

// FieldSpec describes one extractable field: its type and an optional
// range check applied after coercion.
type FieldSpec struct {
	Kind     Kind
	Validate func(v any) error
}

func rangeFloat(min, max float64) func(any) error {
	return func(v any) error {
		f := v.(float64)
		if f < min || f > max {
			return fmt.Errorf("value %.2f outside [%.0f, %.0f]", f, min, max)
		}
		return nil
	}
}

func nonNegativeInt(v any) error {
	if n := v.(int); n < 0 {
		return fmt.Errorf("value %d is negative", n)
	}
	return nil
}

// validYear accepts 1800 through next year, the plausible bottling range.
func validYear(v any) error {
	n := v.(int)
	if n == 0 {
		return nil
	}
	max := time.Now().Year() + 1
	if n < 1800 || n > max {
		return fmt.Errorf("year %d outside [1800, %d]", n, max)
	}
	return nil
}

func oneOf(values ...string) func(any) error {
	return func(v any) error {
		s := v.(string)
		for _, want := range values {
			if s == want {
				return nil
			}
		}
		return fmt.Errorf("unknown value %q", s)
	}
}

// coreSchema covers the fields shared by every product type:
// identification, physical attributes, geography, casks, and the full
// tasting profile.
func coreSchema() map[string]FieldSpec {
	m := map[string]FieldSpec{
		"name":          {Kind: KindString},
		"brand":         {Kind: KindString},
		"gtin":          {Kind: KindString},
		"description":   {Kind: KindString},
		"abv":           {Kind: KindFloat, Validate: rangeFloat(0, 100)},
		"volume_ml":     {Kind: KindInt, Validate: nonNegativeInt},
		"age_statement": {Kind: KindString},
		"country":       {Kind: KindString},
		"region":        {Kind: KindString},
		"category":      {Kind: KindString},
		"image_url":     {Kind: KindString},

		"primary_cask":   {Kind: KindStringList},
		"finishing_cask": {Kind: KindStringList},
		"wood_type":      {Kind: KindStringList},
		"cask_treatment": {Kind: KindStringList},
	}
	for name, spec := range tastingSchema {
		m[name] = spec
	}
	return m
}

var tastingSchema = map[string]FieldSpec{
	"color_description": {Kind: KindString},
	"color_intensity":   {Kind: KindString},
	"clarity":           {Kind: KindString},
	"viscosity":         {Kind: KindString},

	"nose_description": {Kind: KindString},
	"primary_aromas":   {Kind: KindStringList},
	"nose_intensity":   {Kind: KindString},
	"secondary_aromas": {Kind: KindStringList},
	"nose_evolution":   {Kind: KindString},

	"initial_taste":        {Kind: KindString},
	"mid_palate_evolution": {Kind: KindString},
	"palate_description":   {Kind: KindString},
	"palate_flavors":       {Kind: KindStringList},
	"flavor_intensity":     {Kind: KindString},
	"complexity":           {Kind: KindString},
	"mouthfeel":            {Kind: KindString},

	"finish_description": {Kind: KindString},
	"finish_flavors":     {Kind: KindStringList},
	"finish_length":      {Kind: KindString},
	"warmth":             {Kind: KindString},
	"dryness":            {Kind: KindString},
	"finish_evolution":   {Kind: KindString},
	"final_notes":        {Kind: KindString},

	"balance":                {Kind: KindString},
	"overall_complexity":     {Kind: KindString},
	"uniqueness":             {Kind: KindString},
	"drinkability":           {Kind: KindString},
	"price_quality_ratio":    {Kind: KindString},
	"experience_level":       {Kind: KindString},
	"serving_recommendation": {Kind: KindString},
	"food_pairings":          {Kind: KindStringList},
}

// SchemaFor returns the field schema for a product type, or false for a
// type the extractor does not support.
func SchemaFor(typ model.ProductType) (map[string]FieldSpec, bool) {
	switch typ {
	case model.TypeWhiskey:
		m := coreSchema()
		m["whiskey_type"] = FieldSpec{Kind: KindString, Validate: oneOf(
			string(model.WhiskeyBourbon), string(model.WhiskeyRye), string(model.WhiskeyScotchSingle),
			string(model.WhiskeyScotchBlend), string(model.WhiskeyTennessee), string(model.WhiskeyJapanese),
			string(model.WhiskeyIrishSingleMalt), string(model.WhiskeyIrishSinglePot), string(model.WhiskeyIrishBlend),
			string(model.WhiskeyOther),
		)}
		m["distillery"] = FieldSpec{Kind: KindString}
		m["mash_bill"] = FieldSpec{Kind: KindString}
		m["cask_strength"] = FieldSpec{Kind: KindBool}
		m["single_cask"] = FieldSpec{Kind: KindBool}
		m["peated"] = FieldSpec{Kind: KindBool}
		m["natural_color"] = FieldSpec{Kind: KindBool}
		m["non_chill_filtered"] = FieldSpec{Kind: KindBool}
		m["peat_level"] = FieldSpec{Kind: KindString, Validate: oneOf(
			string(model.PeatNone), string(model.PeatLight), string(model.PeatMedium), string(model.PeatHeavy),
		)}
		m["peat_ppm"] = FieldSpec{Kind: KindInt, Validate: nonNegativeInt}
		m["vintage_year"] = FieldSpec{Kind: KindInt, Validate: validYear}
		m["bottling_year"] = FieldSpec{Kind: KindInt, Validate: validYear}
		m["batch_number"] = FieldSpec{Kind: KindString}
		m["cask_number"] = FieldSpec{Kind: KindString}
		return m, true

	case model.TypePortWine:
		m := coreSchema()
		m["style"] = FieldSpec{Kind: KindString, Validate: oneOf(
			string(model.PortRuby), string(model.PortTawny), string(model.PortVintage), string(model.PortLBV),
			string(model.PortColheita), string(model.PortWhite), string(model.PortRose), string(model.PortCrusted),
			string(model.PortSingleQuinta), string(model.PortGarrafeira), string(model.PortReserve),
		)}
		m["indication_age"] = FieldSpec{Kind: KindInt, Validate: nonNegativeInt}
		m["harvest_year"] = FieldSpec{Kind: KindInt, Validate: validYear}
		m["bottling_year"] = FieldSpec{Kind: KindInt, Validate: validYear}
		m["producer_house"] = FieldSpec{Kind: KindString}
		m["quinta"] = FieldSpec{Kind: KindString}
		m["douro_subregion"] = FieldSpec{Kind: KindString, Validate: oneOf(
			string(model.DouroBaixoCorgo), string(model.DouroCimaCorgo), string(model.DouroSuperior),
		)}
		m["grape_varieties"] = FieldSpec{Kind: KindStringList}
		m["decanting_required"] = FieldSpec{Kind: KindBool}
		m["drinking_window"] = FieldSpec{Kind: KindString}
		return m, true
	}
	return nil, false
}

// Coerce converts a decoded JSON value to the field's kind. Numbers arrive
// as float64, lists as []any; strings holding numbers are accepted since
// scrapes frequently quote them.
func Coerce(v any, kind Kind) (any, error) {
	switch kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return strings.TrimSpace(s), nil

	case KindStringList:
		switch t := v.(type) {
		case []any:
			out := make([]string, 0, len(t))
			for _, item := range t {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("list item is %T, not string", item)
				}
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out, nil
		case []string:
			return t, nil
		case string:
			// single value promoted to a one-element list
			if t = strings.TrimSpace(t); t != "" {
				return []string{t}, nil
			}
			return []string{}, nil
		}
		return nil, fmt.Errorf("expected list, got %T", v)

	case KindFloat:
		switch t := v.(type) {
		case float64:
			return t, nil
		case int:
			return float64(t), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
			if err != nil {
				return nil, fmt.Errorf("unparsable number %q", t)
			}
			return f, nil
		}
		return nil, fmt.Errorf("expected number, got %T", v)

	case KindInt:
		switch t := v.(type) {
		case float64:
			return int(t), nil
		case int:
			return t, nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("unparsable integer %q", t)
			}
			return n, nil
		}
		return nil, fmt.Errorf("expected integer, got %T", v)

	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("unparsable bool %q", t)
			}
			return b, nil
		}
		return nil, fmt.Errorf("expected bool, got %T", v)
	}
	return nil, fmt.Errorf("unknown kind %d", kind)
}
