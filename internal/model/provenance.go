package model

import "time"

// FieldProvenance is the per-field audit trail: one row per
// (product, field, source) recording what was extracted, from where, and
// with what confidence.
type FieldProvenance struct {
	ID          int64     `json:"id,omitempty"`
	ProductID   string    `json:"product_id"`
	FieldName   string    `json:"field_name"`
	SourceURL   string    `json:"source_url"`
	RawValue    string    `json:"raw_value"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`
}
