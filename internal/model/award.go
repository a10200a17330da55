package model

import "time"

// Award is a competition result attached to a product. The dedup key is
// (product, normalized competition, year, normalized medal).
type Award struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Competition   string    `json:"competition"` // normalized key, e.g. "iwsc"
	Year          int       `json:"year"`
	Medal         string    `json:"medal"` // normalized, e.g. "gold"
	Score         float64   `json:"score,omitempty"`
	Category      string    `json:"category,omitempty"`
	AwardCategory string    `json:"award_category,omitempty"` // e.g. "World's Best Single Malt"
	ImageURL      string    `json:"award_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AwardRecord is a raw parsed row from a competition results page, before
// skeleton creation and normalization onto a product.
type AwardRecord struct {
	ProductName   string            `json:"product_name"`
	Competition   string            `json:"competition"`
	Year          int               `json:"year"`
	Medal         string            `json:"medal"`
	Producer      string            `json:"producer,omitempty"`
	Category      string            `json:"category,omitempty"`
	Country       string            `json:"country,omitempty"`
	AwardCategory string            `json:"award_category,omitempty"`
	Score         float64           `json:"score,omitempty"`
	ImageURL      string            `json:"award_image_url,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// BrandEntry is one brand listed on a retailer hub page.
type BrandEntry struct {
	Name        string `json:"name"`
	HubURL      string `json:"hub_internal_url"`
	ExternalURL string `json:"external_url,omitempty"`
	HubDomain   string `json:"hub_domain"`
}
