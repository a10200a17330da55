package model

// ExtractionResult maps field names to typed values with per-field
// confidence, as returned by the extraction layer for one page.
type ExtractionResult struct {
	Fields      map[string]any     `json:"fields"`
	Confidences map[string]float64 `json:"confidences"`
	Success     bool               `json:"success"`
	Error       string             `json:"error,omitempty"`
}

// ExtractedValue pairs a field value with its confidence for callers that
// iterate fields in a stable way.
type ExtractedValue struct {
	Field      string  `json:"field"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}
