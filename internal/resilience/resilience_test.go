package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/model"
)

func TestRetry_TransientThenSuccess(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond

	calls := 0
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("upstream 503"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond

	calls := 0
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return eris.New("not found")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryVal_ReturnsValue(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond

	calls := 0
	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(eris.New("timeout"), 0)
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", val)
}

func TestRetry_ContextCancelStops(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(eris.New("flaky"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	assert.True(t, IsTransientHTTPStatus(429))
	assert.True(t, IsTransientHTTPStatus(503))
	assert.False(t, IsTransientHTTPStatus(403))
	assert.False(t, IsTransientHTTPStatus(404))
}

func TestCircuit_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})

	fail := func(_ context.Context) error { return eris.New("boom") }
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)

	err := cb.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuit_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return eris.New("boom") })
	_, state := cb.Counters()
	assert.Equal(t, CircuitOpen, state)

	// Advance past the reset timeout; the probe succeeds and closes the circuit.
	now = now.Add(2 * time.Minute)
	err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	require.NoError(t, err)
	_, state = cb.Counters()
	assert.Equal(t, CircuitClosed, state)
}

func TestHostBreakers_IsolatedPerHost(t *testing.T) {
	hb := NewHostBreakers(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})

	bad := hb.For("blocked.example.com")
	_ = bad.Execute(context.Background(), func(_ context.Context) error { return eris.New("403") })

	good := hb.For("fine.example.com")
	err := good.Execute(context.Background(), func(_ context.Context) error { return nil })
	require.NoError(t, err)

	states := hb.States()
	assert.Equal(t, CircuitOpen, states["blocked.example.com"])
	assert.Equal(t, CircuitClosed, states["fine.example.com"])
}

func TestDLQEntry_Due(t *testing.T) {
	now := time.Now()
	e := &DLQEntry{
		ErrorType:   "transient",
		RetryCount:  1,
		MaxRetries:  3,
		NextRetryAt: now.Add(time.Hour),
	}
	assert.False(t, e.Due(now))
	assert.True(t, e.Due(now.Add(2*time.Hour)))

	e.ErrorType = "permanent"
	assert.False(t, e.Due(now.Add(2*time.Hour)))
}

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, "transient", ClassifyKind(model.ErrTimeout))
	assert.Equal(t, "transient", ClassifyKind(model.ErrRateLimit))
	assert.Equal(t, "permanent", ClassifyKind(model.ErrBlocked))
	assert.Equal(t, "permanent", ClassifyKind(model.ErrParse))
}

func TestReplayCandidates(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-2 * time.Hour)
	errs := []model.CrawlError{
		{ID: 1, URL: "https://a.example.com/p", Kind: model.ErrTimeout, OccurredAt: old},
		{ID: 2, URL: "https://b.example.com/p", Kind: model.ErrBlocked, OccurredAt: old},
		{ID: 3, URL: "https://c.example.com/p", Kind: model.ErrRateLimit, OccurredAt: now.Add(-time.Minute)},
		{ID: 4, URL: "https://d.example.com/p", Kind: model.ErrConnection, OccurredAt: old, Resolved: true},
		// two failures for the same URL: only the latest counts
		{ID: 5, URL: "https://e.example.com/p", Kind: model.ErrTimeout, OccurredAt: old},
		{ID: 6, URL: "https://e.example.com/p", Kind: model.ErrTimeout, OccurredAt: now.Add(-time.Minute)},
	}

	got := ReplayCandidates(errs, now, time.Hour, 3)
	urls := make([]string, 0, len(got))
	for _, e := range got {
		urls = append(urls, e.URL)
	}
	assert.ElementsMatch(t, []string{"https://a.example.com/p"}, urls,
		"blocked, resolved, and still-cooling failures stay out")

	// once e's latest failure cools off it becomes eligible too
	got = ReplayCandidates(errs, now.Add(time.Hour), time.Hour, 3)
	urls = urls[:0]
	for _, e := range got {
		urls = append(urls, e.URL)
	}
	assert.ElementsMatch(t,
		[]string{"https://a.example.com/p", "https://c.example.com/p", "https://e.example.com/p"}, urls)
}
