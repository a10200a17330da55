package model

import "time"

// CostService identifies a metered external service.
type CostService string

const (
	CostSerpAPI      CostService = "serpapi"
	CostManagedProxy CostService = "managed_proxy"
	CostAI           CostService = "ai"
)

// CostRecord is one metering event. Insertion is fire-and-forget and must
// never fail the originating request.
type CostRecord struct {
	ID         int64       `json:"id,omitempty"`
	Service    CostService `json:"service"`
	CostCents  int         `json:"cost_cents"`
	Requests   int         `json:"requests"`
	CrawlJobID string      `json:"crawl_job_id,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}
