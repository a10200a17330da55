package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/cost"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/resilience"
)

// ErrorSink persists failed fetch attempts for the error dashboard.
type ErrorSink interface {
	InsertCrawlError(ctx context.Context, ce model.CrawlError) error
}

// RouterConfig controls escalation behavior.
type RouterConfig struct {
	// MinBytes maps tier number to the minimum acceptable body size. A
	// shorter body is treated as a failed fetch and escalates.
	MinBytes map[int]int
}

// DefaultRouterConfig returns escalation thresholds for all three tiers.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MinBytes: map[int]int{
			model.TierPlain:   500,
			model.TierBrowser: 500,
			model.TierProxy:   200,
		},
	}
}

// Router walks the tier chain for each request, escalating on failure and
// recording cost and errors along the way.
type Router struct {
	tiers    []Tier // ascending by Number()
	cfg      RouterConfig
	breakers *resilience.HostBreakers
	costs    *cost.Recorder
	errs     ErrorSink
}

// NewRouter creates a Router over the given tiers. Tiers must be supplied in
// escalation order; a nil entry (e.g. browser disabled) is skipped.
func NewRouter(cfg RouterConfig, costs *cost.Recorder, errs ErrorSink, tiers ...Tier) *Router {
	kept := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &Router{
		tiers:    kept,
		cfg:      cfg,
		breakers: resilience.NewHostBreakers(resilience.DefaultCircuitBreakerConfig()),
		costs:    costs,
		errs:     errs,
	}
}

// startTier returns the first tier to try, honoring source pinning. A source
// known to need the managed proxy starts there instead of burning two
// attempts that will be blocked.
func startTier(src *model.Source) int {
	switch {
	case src == nil:
		return model.TierPlain
	case src.RequiresManagedProxy:
		return model.TierProxy
	case src.RequiresJS:
		return model.TierBrowser
	default:
		return model.TierPlain
	}
}

// shouldEscalate reports whether a tier outcome warrants trying the next
// tier, and the error kind to record for the failed attempt.
func (r *Router) shouldEscalate(res *model.FetchResult, err error, tier int) (bool, model.ErrorKind) {
	if err != nil {
		return true, ClassifyError(err, 0, BlockNone)
	}
	if res.ErrorKind != "" { // block detected by the tier
		return true, res.ErrorKind
	}
	switch {
	case res.Status >= 500:
		return true, model.ErrConnection
	case res.Status == 429:
		return true, model.ErrRateLimit
	case res.Status == 403:
		return true, model.ErrBlocked
	case res.Status >= 400:
		// Other 4xx (404, 410) will not improve with a stronger tier.
		return false, model.ErrUnknown
	}
	if min := r.cfg.MinBytes[tier]; len(res.Content) < min {
		return true, model.ErrParse
	}
	return false, ""
}

// Fetch routes one URL through the chain. The returned FetchResult is never
// nil when err is nil; on total failure Success is false and ErrorKind holds
// the last failure's classification.
func (r *Router) Fetch(ctx context.Context, req Request) (*model.FetchResult, error) {
	if len(r.tiers) == 0 {
		return nil, eris.New("fetch: no tiers configured")
	}

	host := req.Host()
	start := startTier(req.Source)

	var last *model.FetchResult
	totalCost := 0

	for _, tier := range r.tiers {
		if tier.Number() < start {
			continue
		}

		cb := r.breakers.For(fmt.Sprintf("%s/tier%d", host, tier.Number()))
		res, err := resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*model.FetchResult, error) {
			return tier.Fetch(ctx, req)
		})
		if eris.Is(err, resilience.ErrCircuitOpen) {
			zap.L().Debug("fetch: circuit open, skipping tier",
				zap.String("host", host),
				zap.Int("tier", tier.Number()),
			)
			continue
		}

		totalCost += r.costs.RecordTier(ctx, tier.Number(), req.JobID)

		escalate, kind := r.shouldEscalate(res, err, tier.Number())
		if !escalate {
			if res.Status >= 400 {
				res.Success = false
				res.ErrorKind = model.ErrUnknown
				res.Error = fmt.Sprintf("status %d", res.Status)
			}
			res.CostCents = totalCost
			return res, nil
		}

		r.recordError(ctx, req, tier.Number(), res, err, kind)

		if res != nil {
			last = res
		} else {
			last = &model.FetchResult{URL: req.URL, TierUsed: tier.Number()}
			if err != nil {
				last.Error = err.Error()
			}
		}
		last.ErrorKind = kind
		last.Success = false

		zap.L().Debug("fetch: escalating",
			zap.String("url", req.URL),
			zap.Int("from_tier", tier.Number()),
			zap.String("kind", string(kind)),
		)

		if ctx.Err() != nil {
			break
		}
	}

	if last == nil {
		return nil, eris.Errorf("fetch: no tier eligible for %s", req.URL)
	}
	last.CostCents = totalCost
	return last, nil
}

func (r *Router) recordError(ctx context.Context, req Request, tier int, res *model.FetchResult, err error, kind model.ErrorKind) {
	if r.errs == nil {
		return
	}
	ce := model.CrawlError{
		URL:        req.URL,
		Kind:       kind,
		Tier:       tier,
		OccurredAt: time.Now().UTC(),
	}
	if req.Source != nil {
		ce.SourceID = req.Source.ID
	}
	if err != nil {
		ce.Message = err.Error()
		ce.Stack = eris.ToString(err, true)
	} else if res != nil {
		ce.Message = res.Error
		ce.HTTPStatus = res.Status
		ce.Headers = res.Headers
	}
	if insErr := r.errs.InsertCrawlError(ctx, ce); insErr != nil {
		zap.L().Warn("fetch: crawl error insert failed", zap.Error(insErr))
	}
}
