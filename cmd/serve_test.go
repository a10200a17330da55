package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/config"
	"github.com/cellarium/catalog-cli/internal/frontier"
	"github.com/cellarium/catalog-cli/internal/health"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/store"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

// fakeStore stubs just the store methods the API handlers touch; the
// embedded interface panics on anything unexpected.
type fakeStore struct {
	store.Store
	products map[string]*model.Product
	sources  map[string]*model.Source
	jobs     map[string]*model.CrawlJob
	dueMarks []string
	pingErr  error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) CountProductsByStatus(context.Context) (map[model.ProductStatus]int, error) {
	return map[model.ProductStatus]int{model.StatusVerified: 2}, nil
}

func (f *fakeStore) ListProducts(_ context.Context, filter store.ProductFilter) ([]model.Product, error) {
	var out []model.Product
	for _, p := range f.products {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*model.Product, error) {
	return f.products[id], nil
}

func (f *fakeStore) ListAwards(context.Context, string) ([]model.Award, error)              { return nil, nil }
func (f *fakeStore) ListProvenance(context.Context, string) ([]model.FieldProvenance, error) { return nil, nil }

func (f *fakeStore) GetSourceBySlug(_ context.Context, slug string) (*model.Source, error) {
	return f.sources[slug], nil
}

func (f *fakeStore) MarkSourceDue(_ context.Context, id string) error {
	f.dueMarks = append(f.dueMarks, id)
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, id string) (*model.CrawlJob, error) {
	return f.jobs[id], nil
}

func (f *fakeStore) ListSources(_ context.Context, _ bool) ([]model.Source, error) {
	var out []model.Source
	for _, s := range f.sources {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) ErrorRateSince(_ context.Context, _ string, _ time.Time) (int, int, error) {
	return 4, 10, nil
}

func (f *fakeStore) SumCostSince(context.Context, time.Time) (int, error) { return 120, nil }

type fakeSearcher struct {
	queries []string
	results []serpapi.Result
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]serpapi.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}

func newTestServer(t *testing.T, fs *fakeStore, sr *fakeSearcher, limits serverLimits) *httptest.Server {
	t.Helper()
	fr := frontier.New(frontier.NewMemorySeen(time.Hour), 60)
	checker := health.NewChecker(fs, health.NewAlerter(""), config.MonitoringConfig{
		FailureRateThreshold: 0.25,
		LookbackWindowHours:  24,
	})
	srv := httptest.NewServer(buildServer(fs, fr, sr, checker, limits))
	t.Cleanup(srv.Close)
	return srv
}

func defaultLimits() serverLimits {
	return serverLimits{ExtractionPerHour: 50, CrawlTriggerPerHour: 10}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, &fakeSearcher{}, defaultLimits())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["frontier_depth"])
}

func TestGetProduct_NotFound(t *testing.T) {
	srv := newTestServer(t, &fakeStore{products: map[string]*model.Product{}}, &fakeSearcher{}, defaultLimits())

	resp, err := http.Get(srv.URL + "/api/products/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetProduct_IncludesAwardsAndProvenance(t *testing.T) {
	fs := &fakeStore{products: map[string]*model.Product{
		"p1": {ID: "p1", Name: "Lagavulin 16", ProductType: model.TypeWhiskey},
	}}
	srv := newTestServer(t, fs, &fakeSearcher{}, defaultLimits())

	resp, err := http.Get(srv.URL + "/api/products/p1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	product := body["product"].(map[string]any)
	assert.Equal(t, "Lagavulin 16", product["name"])
}

func TestEnqueueExtract_DedupsAndCaps(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, &fakeSearcher{}, defaultLimits())

	payload := `{"urls":["https://shop.example.com/a","https://shop.example.com/a","https://shop.example.com/b"]}`
	resp, err := http.Post(srv.URL+"/api/extract", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(2), body["enqueued"])
	assert.Equal(t, float64(1), body["duplicate"])

	// oversized batches are rejected outright
	urls := make([]string, extractBatchMax+1)
	for i := range urls {
		urls[i] = "https://shop.example.com/x"
	}
	big, _ := json.Marshal(map[string]any{"urls": urls})
	resp2, err := http.Post(srv.URL+"/api/extract", "application/json", strings.NewReader(string(big)))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestTriggerCrawl_MarksSourceDue(t *testing.T) {
	fs := &fakeStore{sources: map[string]*model.Source{
		"iwsc-results": {ID: "src-1", Slug: "iwsc-results"},
	}}
	srv := newTestServer(t, fs, &fakeSearcher{}, defaultLimits())

	resp, err := http.Post(srv.URL+"/api/crawl", "application/json",
		strings.NewReader(`{"source":"iwsc-results"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"src-1"}, fs.dueMarks)

	resp2, err := http.Post(srv.URL+"/api/crawl", "application/json",
		strings.NewReader(`{"source":"unknown"}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestTriggerCrawl_RateLimited(t *testing.T) {
	fs := &fakeStore{sources: map[string]*model.Source{
		"iwsc-results": {ID: "src-1", Slug: "iwsc-results"},
	}}
	srv := newTestServer(t, fs, &fakeSearcher{}, serverLimits{ExtractionPerHour: 50, CrawlTriggerPerHour: 2})

	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/crawl", "application/json",
			strings.NewReader(`{"source":"iwsc-results"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	resp, err := http.Post(srv.URL+"/api/crawl", "application/json",
		strings.NewReader(`{"source":"iwsc-results"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGetJob(t *testing.T) {
	fs := &fakeStore{jobs: map[string]*model.CrawlJob{
		"job-1": {ID: "job-1", SourceID: "src-1", Status: model.JobRunning, PagesCrawled: 12},
	}}
	srv := newTestServer(t, fs, &fakeSearcher{}, defaultLimits())

	resp, err := http.Get(srv.URL + "/api/jobs/job-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, "running", body["status"])
	job := body["job"].(map[string]any)
	assert.Equal(t, float64(12), job["pages_crawled"])

	resp2, err := http.Get(srv.URL + "/api/jobs/nope")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestListSources_CategoryFilter(t *testing.T) {
	fs := &fakeStore{sources: map[string]*model.Source{
		"iwsc-results": {ID: "src-1", Slug: "iwsc-results", Category: model.SourceCompetition},
		"whisky-shop":  {ID: "src-2", Slug: "whisky-shop", Category: model.SourceRetailer},
	}}
	srv := newTestServer(t, fs, &fakeSearcher{}, defaultLimits())

	resp, err := http.Get(srv.URL + "/api/sources?category=competition")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["count"])
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "iwsc-results", sources[0].(map[string]any)["slug"])
}

func TestSourceHealth_ReportsAlerts(t *testing.T) {
	fs := &fakeStore{sources: map[string]*model.Source{
		"iwsc-results": {ID: "src-1", Slug: "iwsc-results"},
	}}
	srv := newTestServer(t, fs, &fakeSearcher{}, defaultLimits())

	resp, err := http.Get(srv.URL + "/api/sources/health?lookback_hours=6")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	snap := body["snapshot"].(map[string]any)
	assert.Equal(t, float64(6), snap["lookback_hours"])
	rates := snap["source_rates"].([]any)
	require.Len(t, rates, 1)
	assert.Equal(t, 0.4, rates[0].(map[string]any)["rate"])

	// 4/10 failures is over the configured 25% threshold
	alerts := body["alerts"].([]any)
	require.Len(t, alerts, 1)
	assert.Equal(t, "src-1", alerts[0].(map[string]any)["source_id"])
}

func TestSearchExtract_EnqueuesResults(t *testing.T) {
	sr := &fakeSearcher{results: []serpapi.Result{
		{Link: "https://shop.example.com/lagavulin-16"},
		{Link: "https://shop.example.com/talisker-10"},
		{Link: "https://shop.example.com/lagavulin-16"}, // duplicate link
	}}
	srv := newTestServer(t, &fakeStore{}, sr, defaultLimits())

	resp, err := http.Post(srv.URL+"/api/extract/search", "application/json",
		strings.NewReader(`{"query":"lagavulin 16 review"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "lagavulin 16 review", body["query"])
	assert.Equal(t, float64(3), body["found"])
	assert.Equal(t, float64(2), body["enqueued"])
	assert.Equal(t, []string{"lagavulin 16 review"}, sr.queries)

	resp2, err := http.Post(srv.URL+"/api/extract/search", "application/json",
		strings.NewReader(`{"query":"  "}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
