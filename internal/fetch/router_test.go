package fetch

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/cost"
	"github.com/cellarium/catalog-cli/internal/model"
)

type stubTier struct {
	number int
	result *model.FetchResult
	err    error
	calls  int
}

func (s *stubTier) Name() string { return "stub" }
func (s *stubTier) Number() int  { return s.number }
func (s *stubTier) Fetch(_ context.Context, _ Request) (*model.FetchResult, error) {
	s.calls++
	return s.result, s.err
}

type memErrSink struct {
	errors []model.CrawlError
}

func (m *memErrSink) InsertCrawlError(_ context.Context, ce model.CrawlError) error {
	m.errors = append(m.errors, ce)
	return nil
}

type memCostSink struct {
	records []model.CostRecord
}

func (m *memCostSink) InsertCostRecord(_ context.Context, rec model.CostRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func newTestRouter(errs ErrorSink, tiers ...Tier) *Router {
	recorder := cost.NewRecorder(cost.NewCalculator(cost.DefaultRates()), &memCostSink{})
	return NewRouter(DefaultRouterConfig(), recorder, errs, tiers...)
}

func okResult(tier int) *model.FetchResult {
	return &model.FetchResult{
		URL:      "https://example.com/p",
		Content:  strings.Repeat("x", 1000),
		Status:   200,
		Success:  true,
		TierUsed: tier,
	}
}

func TestRouter_Tier1Success(t *testing.T) {
	t1 := &stubTier{number: 1, result: okResult(1)}
	t2 := &stubTier{number: 2}
	r := newTestRouter(nil, t1, t2)

	res, err := r.Fetch(context.Background(), Request{URL: "https://example.com/p"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.TierUsed)
	assert.Zero(t, t2.calls)
}

func TestRouter_EscalatesOn403(t *testing.T) {
	blocked := &model.FetchResult{URL: "u", Status: 403, TierUsed: 1}
	t1 := &stubTier{number: 1, result: blocked}
	t2 := &stubTier{number: 2, result: okResult(2)}
	sink := &memErrSink{}
	r := newTestRouter(sink, t1, t2)

	res, err := r.Fetch(context.Background(), Request{URL: "u"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TierUsed)

	require.Len(t, sink.errors, 1)
	assert.Equal(t, model.ErrBlocked, sink.errors[0].Kind)
	assert.Equal(t, 1, sink.errors[0].Tier)
}

func TestRouter_EscalatesOnShortBody(t *testing.T) {
	shell := &model.FetchResult{URL: "u", Status: 200, Content: "<html></html>", TierUsed: 1}
	t1 := &stubTier{number: 1, result: shell}
	t2 := &stubTier{number: 2, result: okResult(2)}
	r := newTestRouter(&memErrSink{}, t1, t2)

	res, err := r.Fetch(context.Background(), Request{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TierUsed)
}

func TestRouter_404DoesNotEscalate(t *testing.T) {
	notFound := &model.FetchResult{URL: "u", Status: 404, Content: strings.Repeat("x", 600), TierUsed: 1}
	t1 := &stubTier{number: 1, result: notFound}
	t2 := &stubTier{number: 2}
	r := newTestRouter(nil, t1, t2)

	res, err := r.Fetch(context.Background(), Request{URL: "u"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.TierUsed)
	assert.Zero(t, t2.calls)
}

func TestRouter_SourcePinsTier(t *testing.T) {
	t1 := &stubTier{number: 1, result: okResult(1)}
	t3 := &stubTier{number: 3, result: okResult(3)}
	r := newTestRouter(nil, t1, t3)

	src := &model.Source{ID: "s1", RequiresManagedProxy: true, Active: true}
	res, err := r.Fetch(context.Background(), Request{URL: "u", Source: src})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TierUsed)
	assert.Zero(t, t1.calls, "pinned source must skip tier 1")
}

func TestRouter_AllTiersFail(t *testing.T) {
	t1 := &stubTier{number: 1, err: eris.New("connection refused")}
	t2 := &stubTier{number: 2, err: eris.New("i/o timeout")}
	sink := &memErrSink{}
	r := newTestRouter(sink, t1, t2)

	res, err := r.Fetch(context.Background(), Request{URL: "u"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, sink.errors, 2)
	assert.Equal(t, model.ErrTimeout, res.ErrorKind)
}

func TestRouter_ProxyCostAttributed(t *testing.T) {
	t3 := &stubTier{number: 3, result: okResult(3)}
	costs := &memCostSink{}
	recorder := cost.NewRecorder(cost.NewCalculator(cost.DefaultRates()), costs)
	r := NewRouter(DefaultRouterConfig(), recorder, nil, t3)

	src := &model.Source{RequiresManagedProxy: true}
	res, err := r.Fetch(context.Background(), Request{URL: "u", Source: src, JobID: "job-9"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CostCents)
	require.NotEmpty(t, costs.records)
	assert.Equal(t, "job-9", costs.records[0].CrawlJobID)
}

func TestStartTier(t *testing.T) {
	assert.Equal(t, model.TierPlain, startTier(nil))
	assert.Equal(t, model.TierBrowser, startTier(&model.Source{RequiresJS: true}))
	assert.Equal(t, model.TierProxy, startTier(&model.Source{RequiresJS: true, RequiresManagedProxy: true}))
}
