package model

import "time"

// JobStatus is the crawl job state machine:
// pending → running → {completed | failed | cancelled}.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// CanTransition reports whether the state machine allows moving to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobCancelled
	case JobRunning:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	default:
		return false
	}
}

// CrawlJob is one execution against a source. Completion updates the
// source's crawl schedule.
type CrawlJob struct {
	ID              string    `json:"id"`
	SourceID        string    `json:"source_id"`
	Status          JobStatus `json:"status"`
	PagesCrawled    int       `json:"pages_crawled"`
	ProductsFound   int       `json:"products_found"`
	ProductsNew     int       `json:"products_new"`
	ProductsUpdated int       `json:"products_updated"`
	ErrorCount      int       `json:"error_count"`
	DurationMS      int64     `json:"duration_ms"`
	Summary         string    `json:"summary,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
