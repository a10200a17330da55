package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/config"
	"github.com/cellarium/catalog-cli/internal/model"
)

// MetricsStore is the store subset the background checker reads.
type MetricsStore interface {
	ListSources(ctx context.Context, activeOnly bool) ([]model.Source, error)
	ErrorRateSince(ctx context.Context, sourceID string, since time.Time) (failures, total int, err error)
	SumCostSince(ctx context.Context, since time.Time) (int, error)
}

// SourceRate is one source's error rate over the lookback window.
type SourceRate struct {
	SourceID string  `json:"source_id"`
	Slug     string  `json:"slug"`
	Failures int     `json:"failures"`
	Total    int     `json:"total"`
	Rate     float64 `json:"rate"`
}

// MetricsSnapshot is a point-in-time view of crawl health.
type MetricsSnapshot struct {
	SourceRates   []SourceRate `json:"source_rates"`
	CostCents     int          `json:"cost_cents"`
	LookbackHours int          `json:"lookback_hours"`
	CollectedAt   time.Time    `json:"collected_at"`
}

// Checker periodically collects metrics and raises alerts on breached
// thresholds.
type Checker struct {
	store   MetricsStore
	alerter *Alerter
	cfg     config.MonitoringConfig
}

func NewChecker(st MetricsStore, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{store: st, alerter: alerter, cfg: cfg}
}

// Collect gathers error rates per active source plus total spend over the
// lookback window.
func (c *Checker) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	since := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	sources, err := c.store.ListSources(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "health: list sources")
	}
	for _, src := range sources {
		failures, total, err := c.store.ErrorRateSince(ctx, src.ID, since)
		if err != nil {
			return nil, eris.Wrapf(err, "health: error rate %s", src.Slug)
		}
		rate := SourceRate{SourceID: src.ID, Slug: src.Slug, Failures: failures, Total: total}
		if total > 0 {
			rate.Rate = float64(failures) / float64(total)
		}
		snap.SourceRates = append(snap.SourceRates, rate)
	}

	cost, err := c.store.SumCostSince(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "health: sum cost")
	}
	snap.CostCents = cost
	return snap, nil
}

// Evaluate checks the snapshot against configured thresholds.
func (c *Checker) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, sr := range snap.SourceRates {
		// Tiny samples produce noisy rates.
		if sr.Total < 5 || sr.Rate <= c.cfg.FailureRateThreshold {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertErrorRate,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("error rate %.1f%% for %s exceeds threshold %.1f%% (%d/%d in last %dh)",
				sr.Rate*100, sr.Slug, c.cfg.FailureRateThreshold*100,
				sr.Failures, sr.Total, snap.LookbackHours),
			SourceID: sr.SourceID,
			Details: map[string]any{
				"rate":      sr.Rate,
				"threshold": c.cfg.FailureRateThreshold,
				"failures":  sr.Failures,
				"total":     sr.Total,
			},
			Timestamp: now,
		})
	}

	if c.cfg.CostThresholdCents > 0 && snap.CostCents > c.cfg.CostThresholdCents {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: SeverityCritical,
			Message: fmt.Sprintf("spend %d¢ exceeds threshold %d¢ in last %dh",
				snap.CostCents, c.cfg.CostThresholdCents, snap.LookbackHours),
			Details: map[string]any{
				"cost_cents":      snap.CostCents,
				"threshold_cents": c.cfg.CostThresholdCents,
			},
			Timestamp: now,
		})
	}
	return alerts
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	lookback := c.cfg.LookbackWindowHours
	if lookback <= 0 {
		lookback = 24
	}

	log := zap.L().With(zap.String("component", "health.checker"))
	log.Info("starting health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", lookback),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, lookback, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, lookback int, log *zap.Logger) {
	snap, err := c.Collect(ctx, lookback)
	if err != nil {
		log.Error("health: failed to collect metrics", zap.Error(err))
		return
	}

	alerts := c.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("health: no alerts triggered")
		return
	}

	sent := c.alerter.Send(ctx, alerts)
	log.Info("health: check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
