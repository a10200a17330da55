// Package fetch routes page fetches through an escalating chain of tiers:
// plain HTTP, headless browser, then managed proxy. Cheap tiers go first;
// a tier only runs when the previous one failed in a way the next tier can
// plausibly fix.
package fetch

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/cellarium/catalog-cli/internal/model"
)

// Request is one URL to fetch, with routing hints from its source record.
type Request struct {
	URL    string
	Source *model.Source // optional: pins starting tier and carries age-gate cookies
	JobID  string        // crawl job for cost attribution
}

// Host returns the request's target host.
func (r Request) Host() string {
	return model.HostOf(r.URL)
}

// AgeGateCookies returns the configured age-gate cookies, or nil.
func (r Request) AgeGateCookies() map[string]string {
	if r.Source == nil || r.Source.AgeGate == nil {
		return nil
	}
	if r.Source.AgeGate.Mechanism != "cookie" {
		return nil
	}
	return r.Source.AgeGate.Cookies
}

// Tier fetches a single URL. Implementations are tried in escalation order.
type Tier interface {
	Fetch(ctx context.Context, req Request) (*model.FetchResult, error)
	Name() string
	Number() int
}

// ClassifyError maps a fetch failure to the crawl error taxonomy.
func ClassifyError(err error, status int, blockType BlockType) model.ErrorKind {
	switch {
	case blockType == BlockAgeGate:
		return model.ErrAgeGate
	case blockType != BlockNone:
		return model.ErrBlocked
	case status == 429:
		return model.ErrRateLimit
	case status == 403:
		return model.ErrBlocked
	case err == nil:
		return model.ErrUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return model.ErrTimeout
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "broken pipe"):
		return model.ErrConnection
	default:
		return model.ErrUnknown
	}
}
