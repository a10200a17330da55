package model

import "time"

// Frontier priority levels. Higher runs sooner.
const (
	PriorityEnrichment   = 10 // search-derived URLs for a specific missing field
	PriorityHighValueHub = 8
	PriorityDefault      = 5
	PriorityPagination   = 3
	PrioritySpeculative  = 1
)

// QueueMeta carries routing context alongside a frontier entry.
type QueueMeta struct {
	SearchType  string `json:"search_type,omitempty"`
	SkeletonID  string `json:"skeleton_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	SourceID    string `json:"source_id,omitempty"`
}

// QueueEntry is one URL waiting in the frontier.
type QueueEntry struct {
	ID        int64     `json:"id"`
	QueueID   string    `json:"queue_id"` // domain tag
	URL       string    `json:"url"`
	Priority  int       `json:"priority"`
	Meta      QueueMeta `json:"meta"`
	Attempts  int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
