package resilience

import (
	"strconv"
	"time"

	"github.com/cellarium/catalog-cli/internal/model"
)

// DLQEntry is a URL whose fetch failed at every tier and that may be retried
// on a later crawl once its backoff window has passed.
type DLQEntry struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	SourceID     string          `json:"source_id"`
	Kind         model.ErrorKind `json:"kind"`
	Error        string          `json:"error"`
	ErrorType    string          `json:"error_type"` // "transient" or "permanent"
	TierReached  int             `json:"tier_reached"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	NextRetryAt  time.Time       `json:"next_retry_at"`
	CreatedAt    time.Time       `json:"created_at"`
	LastFailedAt time.Time       `json:"last_failed_at"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
// Permanent failures (blocked, parse) never retry automatically.
func (e *DLQEntry) CanRetry() bool {
	return e.ErrorType == "transient" && e.RetryCount < e.MaxRetries
}

// Due returns true if the entry is eligible for retry at the given time.
func (e *DLQEntry) Due(now time.Time) bool {
	return e.CanRetry() && !now.Before(e.NextRetryAt)
}

// ClassifyKind categorizes a fetch error kind. Connection, timeout and
// rate-limit failures are worth retrying later; blocks and parse failures
// need operator attention.
func ClassifyKind(kind model.ErrorKind) string {
	switch kind {
	case model.ErrConnection, model.ErrTimeout, model.ErrRateLimit, model.ErrAPI:
		return "transient"
	default:
		return "permanent"
	}
}

// ReplayCandidates turns logged crawl errors into the DLQ entries worth
// another attempt: transient failures whose cooldown has elapsed. One entry
// per URL, keyed on its most recent failure.
func ReplayCandidates(errs []model.CrawlError, now time.Time, cooldown time.Duration, maxRetries int) []DLQEntry {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	latest := map[string]model.CrawlError{}
	for _, ce := range errs {
		if ce.Resolved {
			continue
		}
		if prev, ok := latest[ce.URL]; ok && prev.OccurredAt.After(ce.OccurredAt) {
			continue
		}
		latest[ce.URL] = ce
	}

	var out []DLQEntry
	for _, ce := range latest {
		e := DLQEntry{
			ID:           strconv.FormatInt(ce.ID, 10),
			URL:          ce.URL,
			SourceID:     ce.SourceID,
			Kind:         ce.Kind,
			Error:        ce.Message,
			ErrorType:    ClassifyKind(ce.Kind),
			TierReached:  ce.Tier,
			MaxRetries:   maxRetries,
			NextRetryAt:  ce.OccurredAt.Add(cooldown),
			CreatedAt:    ce.OccurredAt,
			LastFailedAt: ce.OccurredAt,
		}
		if e.Due(now) {
			out = append(out, e)
		}
	}
	return out
}
