package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ProductType identifies which detail schema a product uses.
type ProductType string

const (
	TypeWhiskey  ProductType = "whiskey"
	TypePortWine ProductType = "port_wine"
)

// ProductStatus is the quality-graded lifecycle state of a product.
type ProductStatus string

const (
	StatusSkeleton   ProductStatus = "skeleton"
	StatusIncomplete ProductStatus = "incomplete"
	StatusPartial    ProductStatus = "partial"
	StatusComplete   ProductStatus = "complete"
	StatusVerified   ProductStatus = "verified"
	StatusRejected   ProductStatus = "rejected"
	StatusMerged     ProductStatus = "merged"
)

// Brand is a shared producer brand. Products reference brands by ID.
type Brand struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
}

// TastingProfile holds the full sensory description of a product. Every
// field is optional and stored as its own typed column.
type TastingProfile struct {
	// Appearance
	ColorDescription string `json:"color_description,omitempty"`
	ColorIntensity   string `json:"color_intensity,omitempty"`
	Clarity          string `json:"clarity,omitempty"`
	Viscosity        string `json:"viscosity,omitempty"`

	// Nose
	NoseDescription string   `json:"nose_description,omitempty"`
	PrimaryAromas   []string `json:"primary_aromas,omitempty"`
	NoseIntensity   string   `json:"nose_intensity,omitempty"`
	SecondaryAromas []string `json:"secondary_aromas,omitempty"`
	NoseEvolution   string   `json:"nose_evolution,omitempty"`

	// Palate
	InitialTaste       string   `json:"initial_taste,omitempty"`
	MidPalateEvolution string   `json:"mid_palate_evolution,omitempty"`
	PalateDescription  string   `json:"palate_description,omitempty"`
	PalateFlavors      []string `json:"palate_flavors,omitempty"`
	FlavorIntensity    string   `json:"flavor_intensity,omitempty"`
	Complexity         string   `json:"complexity,omitempty"`
	Mouthfeel          string   `json:"mouthfeel,omitempty"`

	// Finish
	FinishDescription string   `json:"finish_description,omitempty"`
	FinishFlavors     []string `json:"finish_flavors,omitempty"`
	FinishLength      string   `json:"finish_length,omitempty"`
	Warmth            string   `json:"warmth,omitempty"`
	Dryness           string   `json:"dryness,omitempty"`
	FinishEvolution   string   `json:"finish_evolution,omitempty"`
	FinalNotes        string   `json:"final_notes,omitempty"`

	// Overall
	Balance               string   `json:"balance,omitempty"`
	OverallComplexity     string   `json:"overall_complexity,omitempty"`
	Uniqueness            string   `json:"uniqueness,omitempty"`
	Drinkability          string   `json:"drinkability,omitempty"`
	PriceQualityRatio     string   `json:"price_quality_ratio,omitempty"`
	ExperienceLevel       string   `json:"experience_level,omitempty"`
	ServingRecommendation string   `json:"serving_recommendation,omitempty"`
	FoodPairings          []string `json:"food_pairings,omitempty"`
}

// HasPalate reports whether any palate evidence exists. This gates the
// complete and verified statuses regardless of score.
func (t *TastingProfile) HasPalate() bool {
	return len(t.PalateFlavors) > 0 || t.PalateDescription != "" || t.InitialTaste != ""
}

// WhiskeyType enumerates the supported whiskey styles.
type WhiskeyType string

const (
	WhiskeyBourbon         WhiskeyType = "bourbon"
	WhiskeyRye             WhiskeyType = "rye"
	WhiskeyScotchSingle    WhiskeyType = "scotch_single_malt"
	WhiskeyScotchBlend     WhiskeyType = "scotch_blend"
	WhiskeyTennessee       WhiskeyType = "tennessee"
	WhiskeyJapanese        WhiskeyType = "japanese"
	WhiskeyIrishSingleMalt WhiskeyType = "irish_single_malt"
	WhiskeyIrishSinglePot  WhiskeyType = "irish_single_pot_still"
	WhiskeyIrishBlend      WhiskeyType = "irish_blend"
	WhiskeyOther           WhiskeyType = "other"
)

// PeatLevel describes smoke intensity.
type PeatLevel string

const (
	PeatNone   PeatLevel = "none"
	PeatLight  PeatLevel = "light"
	PeatMedium PeatLevel = "medium"
	PeatHeavy  PeatLevel = "heavy"
)

// WhiskeyDetails is the whiskey-specific detail record, exclusively owned
// by one product of type whiskey.
type WhiskeyDetails struct {
	ProductID        string      `json:"product_id"`
	WhiskeyType      WhiskeyType `json:"whiskey_type,omitempty"`
	Distillery       string      `json:"distillery,omitempty"`
	MashBill         string      `json:"mash_bill,omitempty"`
	CaskStrength     bool        `json:"cask_strength"`
	SingleCask       bool        `json:"single_cask"`
	Peated           bool        `json:"peated"`
	NaturalColor     bool        `json:"natural_color"`
	NonChillFiltered bool        `json:"non_chill_filtered"`
	PeatLevel        PeatLevel   `json:"peat_level,omitempty"`
	PeatPPM          int         `json:"peat_ppm,omitempty"`
	VintageYear      int         `json:"vintage_year,omitempty"`
	BottlingYear     int         `json:"bottling_year,omitempty"`
	BatchNumber      string      `json:"batch_number,omitempty"`
	CaskNumber       string      `json:"cask_number,omitempty"`
}

// PortStyle enumerates port wine styles.
type PortStyle string

const (
	PortRuby         PortStyle = "ruby"
	PortTawny        PortStyle = "tawny"
	PortVintage      PortStyle = "vintage"
	PortLBV          PortStyle = "lbv"
	PortColheita     PortStyle = "colheita"
	PortWhite        PortStyle = "white"
	PortRose         PortStyle = "rose"
	PortCrusted      PortStyle = "crusted"
	PortSingleQuinta PortStyle = "single_quinta"
	PortGarrafeira   PortStyle = "garrafeira"
	PortReserve      PortStyle = "reserve"
)

// DouroSubregion enumerates the Douro valley subregions.
type DouroSubregion string

const (
	DouroBaixoCorgo    DouroSubregion = "baixo_corgo"
	DouroCimaCorgo     DouroSubregion = "cima_corgo"
	DouroSuperior      DouroSubregion = "douro_superior"
)

// PortWineDetails is the port-specific detail record, exclusively owned by
// one product of type port_wine.
type PortWineDetails struct {
	ProductID         string         `json:"product_id"`
	Style             PortStyle      `json:"style,omitempty"`
	IndicationAge     int            `json:"indication_age,omitempty"`
	HarvestYear       int            `json:"harvest_year,omitempty"`
	BottlingYear      int            `json:"bottling_year,omitempty"`
	ProducerHouse     string         `json:"producer_house,omitempty"`
	Quinta            string         `json:"quinta,omitempty"`
	DouroSubregion    DouroSubregion `json:"douro_subregion,omitempty"`
	GrapeVarieties    []string       `json:"grape_varieties,omitempty"`
	DecantingRequired bool           `json:"decanting_required"`
	DrinkingWindow    string         `json:"drinking_window,omitempty"`
}

// Product is the central catalog entity. Scalars and lists are stored as
// typed columns; opaque maps are reserved for genuinely open schemas
// (images, ratings).
type Product struct {
	ID          string      `json:"id"`
	ProductType ProductType `json:"product_type"`

	// Identification
	Name    string `json:"name"`
	GTIN    string `json:"gtin,omitempty"`
	BrandID string `json:"brand_id,omitempty"`
	Brand   *Brand `json:"brand,omitempty"`

	// Physical
	ABV          float64 `json:"abv,omitempty"`
	VolumeML     int     `json:"volume_ml,omitempty"`
	AgeStatement string  `json:"age_statement,omitempty"` // string so "NAS" is representable

	// Geography
	Country  string `json:"country,omitempty"`
	Region   string `json:"region,omitempty"`
	Category string `json:"category,omitempty"`

	Description string `json:"description,omitempty"`

	// Cask attributes
	PrimaryCask   []string `json:"primary_cask,omitempty"`
	FinishingCask []string `json:"finishing_cask,omitempty"`
	WoodType      []string `json:"wood_type,omitempty"`
	CaskTreatment []string `json:"cask_treatment,omitempty"`

	Tasting TastingProfile `json:"tasting"`

	// Enrichment outputs
	BestPriceCents int              `json:"best_price_cents,omitempty"`
	Images         []string         `json:"images,omitempty"`
	Ratings        map[string]any   `json:"ratings,omitempty"`

	// Scoring and verification
	CompletenessScore    int      `json:"completeness_score"`
	Status               ProductStatus `json:"status"`
	SourceCount          int      `json:"source_count"`
	VerifiedFields       []string `json:"verified_fields,omitempty"`
	ExtractionConfidence float64  `json:"extraction_confidence,omitempty"`

	// Discovery provenance
	SourceURL        string   `json:"source_url"`
	DiscoverySource  string   `json:"discovery_source,omitempty"`
	DiscoverySources []string `json:"discovery_sources,omitempty"`

	// Matching
	Fingerprint     string  `json:"fingerprint"`
	MatchConfidence float64 `json:"match_confidence,omitempty"`

	// Conflict state
	HasConflicts    bool            `json:"has_conflicts"`
	ConflictDetails []FieldConflict `json:"conflict_details,omitempty"`

	// Denormalized counters
	AwardCount   int `json:"award_count"`
	RatingCount  int `json:"rating_count"`
	PriceCount   int `json:"price_count"`
	MentionCount int `json:"mention_count"`

	Whiskey *WhiskeyDetails  `json:"whiskey,omitempty"`
	Port    *PortWineDetails `json:"port,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FieldConflict records a disagreement between sources on one field. The
// first observed value is kept.
type FieldConflict struct {
	Field   string `json:"field"`
	Current string `json:"current"`
	New     string `json:"new"`
	Source  string `json:"source,omitempty"`
}

// HasVerifiedField reports whether the field is already two-source agreed.
func (p *Product) HasVerifiedField(name string) bool {
	for _, f := range p.VerifiedFields {
		if f == name {
			return true
		}
	}
	return false
}

// AddVerifiedField appends a field name to the verified set, idempotently.
func (p *Product) AddVerifiedField(name string) {
	if !p.HasVerifiedField(name) {
		p.VerifiedFields = append(p.VerifiedFields, name)
	}
}

// AddDiscoverySource appends a discovery provenance tag, idempotently.
func (p *Product) AddDiscoverySource(src string) {
	for _, s := range p.DiscoverySources {
		if s == src {
			return
		}
	}
	p.DiscoverySources = append(p.DiscoverySources, src)
}

// Fingerprint computes the deterministic identity hash over the lowercased
// name and brand, truncated to 32 hex chars. Case-insensitive by
// construction.
func Fingerprint(name, brand string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(brand))))
	return hex.EncodeToString(h[:])[:32]
}

// SkeletonFingerprint hashes the normalized name and producer with a
// skeleton marker, so skeletons dedup independently of full products.
func SkeletonFingerprint(name, producer string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(producer)) + "|skeleton"))
	return hex.EncodeToString(h[:])[:32]
}
