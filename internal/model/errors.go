package model

import "time"

// ErrorKind is the crawl error taxonomy.
type ErrorKind string

const (
	ErrConnection ErrorKind = "connection"
	ErrTimeout    ErrorKind = "timeout"
	ErrBlocked    ErrorKind = "blocked"
	ErrAgeGate    ErrorKind = "age_gate"
	ErrRateLimit  ErrorKind = "rate_limit"
	ErrParse      ErrorKind = "parse"
	ErrAPI        ErrorKind = "api"
	ErrUnknown    ErrorKind = "unknown"
)

// CrawlError is a persisted record of a single failed attempt.
type CrawlError struct {
	ID         int64             `json:"id,omitempty"`
	SourceID   string            `json:"source_id,omitempty"`
	URL        string            `json:"url"`
	Kind       ErrorKind         `json:"kind"`
	Message    string            `json:"message"`
	Stack      string            `json:"stack,omitempty"`
	Tier       int               `json:"tier,omitempty"`
	HTTPStatus int               `json:"http_status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Resolved   bool              `json:"resolved"`
	OccurredAt time.Time         `json:"occurred_at"`
}
