package model

import "time"

// SourceCategory classifies what kind of site a source is.
type SourceCategory string

const (
	SourceRetailer    SourceCategory = "retailer"
	SourceProducer    SourceCategory = "producer"
	SourceCompetition SourceCategory = "competition"
	SourceReview      SourceCategory = "review"
	SourceNews        SourceCategory = "news"
	SourceDatabase    SourceCategory = "database"
)

// DiscoveryProvenance records how a source entered the system.
type DiscoveryProvenance string

const (
	DiscoveredManual      DiscoveryProvenance = "manual"
	DiscoveredHub         DiscoveryProvenance = "hub"
	DiscoveredSearch      DiscoveryProvenance = "search"
	DiscoveredCompetition DiscoveryProvenance = "competition"
)

// AgeGate describes how a source's age verification works.
type AgeGate struct {
	Mechanism string            `json:"mechanism,omitempty" yaml:"mechanism"` // "cookie", "form", "none"
	Cookies   map[string]string `json:"cookies,omitempty" yaml:"cookies"`
}

// Source is a crawlable origin: a retailer hub, producer site, competition
// results site, review site, or spirits database.
type Source struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	BaseURL       string              `json:"base_url"`
	Category      SourceCategory      `json:"category"`
	ProductTypes  []ProductType       `json:"product_types"`
	Priority      int                 `json:"priority"` // 1..10
	CrawlFreqHrs  int                 `json:"crawl_frequency_hours"`
	RateLimitRPM  int                 `json:"rate_limit_requests_per_minute"`
	RequiresJS    bool                `json:"requires_js"`
	RequiresProxy bool                `json:"requires_proxy"`
	RequiresManagedProxy bool         `json:"requires_managed_proxy"`
	AgeGate       *AgeGate            `json:"age_gate,omitempty"`
	DiscoveredVia DiscoveryProvenance `json:"discovered_via"`
	RobotsOK      bool                `json:"robots_ok"`
	TosOK         bool                `json:"tos_ok"`
	Active        bool                `json:"active"`
	LastCrawlAt   *time.Time          `json:"last_crawl_at,omitempty"`
	NextCrawlAt   *time.Time          `json:"next_crawl_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// IsDue reports whether the source should be crawled now. A source is due
// iff it is active and either has never been crawled or its schedule has
// elapsed.
func (s *Source) IsDue(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.NextCrawlAt == nil {
		return true
	}
	return !now.Before(*s.NextCrawlAt)
}

// Host returns the host portion of the base URL, or "" if unparseable.
func (s *Source) Host() string {
	return HostOf(s.BaseURL)
}
