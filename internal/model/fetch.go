package model

import "net/url"

// Fetch tiers, in escalation order.
const (
	TierPlain   = 1 // plain HTTP with realistic UA
	TierBrowser = 2 // headless browser with JS execution
	TierProxy   = 3 // managed proxy service
)

// FetchResult is the outcome of routing one URL through the tier chain.
type FetchResult struct {
	URL       string            `json:"url"`
	Content   string            `json:"content"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	ErrorKind ErrorKind         `json:"error_kind,omitempty"`
	TierUsed  int               `json:"tier_used"`
	CostCents int               `json:"cost_cents"`
}

// HostOf returns the lowercased host of a URL, or "" if unparseable.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
