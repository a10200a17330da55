package cost

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/model"
)

// Sink persists cost records.
type Sink interface {
	InsertCostRecord(ctx context.Context, rec model.CostRecord) error
}

// Recorder meters external service usage. Recording is fire-and-forget:
// a failed insert is logged and never propagated to the caller.
type Recorder struct {
	calc *Calculator
	sink Sink
}

// NewRecorder creates a Recorder writing to the given sink.
func NewRecorder(calc *Calculator, sink Sink) *Recorder {
	return &Recorder{calc: calc, sink: sink}
}

// Record inserts one metering event.
func (r *Recorder) Record(ctx context.Context, service model.CostService, costCents, requests int, jobID string) {
	if r == nil || r.sink == nil {
		return
	}
	rec := model.CostRecord{
		Service:    service,
		CostCents:  costCents,
		Requests:   requests,
		CrawlJobID: jobID,
		RecordedAt: time.Now().UTC(),
	}
	if err := r.sink.InsertCostRecord(ctx, rec); err != nil {
		zap.L().Warn("cost: record insert failed",
			zap.String("service", string(service)),
			zap.Int("cost_cents", costCents),
			zap.Error(err),
		)
	}
}

// RecordSearch meters one search query at the configured rate.
func (r *Recorder) RecordSearch(ctx context.Context, jobID string) int {
	c := r.calc.SerpAPIQuery()
	r.Record(ctx, model.CostSerpAPI, c, 1, jobID)
	return c
}

// RecordTier meters one fetch attempt for the given tier.
func (r *Recorder) RecordTier(ctx context.Context, tier int, jobID string) int {
	c := r.calc.Tier(tier)
	if tier == 3 {
		r.Record(ctx, model.CostManagedProxy, c, 1, jobID)
	} else {
		r.Record(ctx, model.CostManagedProxy, 0, 1, jobID)
	}
	return c
}

// RecordAI meters one AI extraction call.
func (r *Recorder) RecordAI(ctx context.Context, jobID string) int {
	c := r.calc.AICall()
	r.Record(ctx, model.CostAI, c, 1, jobID)
	return c
}
