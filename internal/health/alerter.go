// Package health watches crawl output for structural decay: selectors
// that stop matching, page layouts that change shape, and crawls whose
// yield collapses. Problems become webhook alerts, never crashes.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSelectorDegraded AlertType = "selector_degraded"
	AlertStructuralDrift  AlertType = "structural_drift"
	AlertYieldCollapse    AlertType = "yield_collapse"
	AlertErrorRate        AlertType = "error_rate"
	AlertCostOverrun      AlertType = "cost_overrun"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a single alert to be delivered.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	SourceID  string         `json:"source_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter delivers alerts to a webhook. Transient delivery failures are
// retried with backoff; anything still failing is logged and swallowed so
// a broken webhook can never take down a crawl.
type Alerter struct {
	webhookURL string
	client     *http.Client
	retry      resilience.RetryConfig
}

func NewAlerter(webhookURL string) *Alerter {
	retry := resilience.DefaultRetryConfig()
	retry.MaxBackoff = 5 * time.Second
	retry.OnRetry = resilience.RetryLogger("webhook", "alert")
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		retry:      retry,
	}
}

// Send delivers alerts and returns how many went through.
func (a *Alerter) Send(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.webhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("health alert (no webhook configured)",
				zap.String("type", string(alert.Type)),
				zap.String("severity", alert.Severity),
				zap.String("message", alert.Message),
			)
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if alert.Timestamp.IsZero() {
			alert.Timestamp = time.Now().UTC()
		}
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.post(ctx, alert)
		})
		if err != nil {
			zap.L().Error("health: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("health: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "health: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "health: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "health: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("health: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
