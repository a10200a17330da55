package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

type fakeSearch struct {
	queries []string
	results []serpapi.Result
}

func (f *fakeSearch) Search(_ context.Context, query string, _ int) ([]serpapi.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}

type fakeFetch struct{ pages map[string]string }

func (f *fakeFetch) Fetch(_ context.Context, req fetch.Request) (*model.FetchResult, error) {
	content, ok := f.pages[req.URL]
	if !ok {
		return &model.FetchResult{URL: req.URL, Status: 404, Success: false}, nil
	}
	return &model.FetchResult{URL: req.URL, Content: content, Status: 200, Success: true}, nil
}

type fakeExtract struct{ byURL map[string]map[string]any }

func (f *fakeExtract) Extract(_ context.Context, _, pageURL string, _ model.ProductType, _ *model.Source) (*model.ExtractionResult, error) {
	fields, ok := f.byURL[pageURL]
	if !ok {
		return &model.ExtractionResult{Success: false, Error: "no_fields"}, nil
	}
	conf := map[string]float64{}
	for k := range fields {
		conf[k] = 0.9
	}
	return &model.ExtractionResult{Fields: fields, Confidences: conf, Success: true}, nil
}

type memVerifyStore struct {
	updated    *model.Product
	locked     []string
	provenance []model.FieldProvenance
}

func (m *memVerifyStore) UpdateProduct(_ context.Context, p *model.Product) error {
	m.updated = p
	return nil
}

func (m *memVerifyStore) InsertProvenance(_ context.Context, rows []model.FieldProvenance) error {
	m.provenance = append(m.provenance, rows...)
	return nil
}

func (m *memVerifyStore) ListProvenance(_ context.Context, productID string) ([]model.FieldProvenance, error) {
	var out []model.FieldProvenance
	for _, fp := range m.provenance {
		if fp.ProductID == productID {
			out = append(out, fp)
		}
	}
	return out, nil
}

func (m *memVerifyStore) WithProductLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	m.locked = append(m.locked, id)
	return fn(ctx)
}

func sparseProduct() *model.Product {
	return &model.Product{
		ID:          "prod-1",
		Name:        "Lagavulin 16",
		ProductType: model.TypeWhiskey,
		ABV:         43,
		SourceURL:   "https://shop.example.com/lagavulin-16",
		SourceCount: 1,
		Brand:       &model.Brand{Name: "Lagavulin"},
	}
}

func TestMissingCriticals(t *testing.T) {
	p := sparseProduct()
	missing := MissingCriticals(p)
	assert.Contains(t, missing, "palate")
	assert.Contains(t, missing, "nose")
	assert.Contains(t, missing, "finish")
	assert.Contains(t, missing, "abv")
	assert.Contains(t, missing, "palate_description")

	p.Tasting.PalateFlavors = []string{"peat", "smoke"}
	p.Tasting.NoseDescription = "maritime smoke"
	p.Tasting.FinishDescription = "long and drying"
	for _, f := range []string{"name", "abv", "country", "region", "palate_description"} {
		p.AddVerifiedField(f)
	}
	assert.Empty(t, MissingCriticals(p))
}

func TestVerifyProduct_AlreadyVerifiedSkipsSearch(t *testing.T) {
	p := sparseProduct()
	p.Tasting.PalateFlavors = []string{"peat"}
	p.Tasting.NoseDescription = "smoke"
	p.Tasting.FinishDescription = "long"
	for _, f := range []string{"name", "abv", "country", "region", "palate_description"} {
		p.AddVerifiedField(f)
	}
	p.SourceCount = 3

	search := &fakeSearch{}
	pipe := NewPipeline(&memVerifyStore{}, search, &fakeFetch{}, &fakeExtract{})
	res, err := pipe.VerifyProduct(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, search.queries)
	assert.Empty(t, res.SourcesUsed)
}

func TestVerifyProduct_MergesTwoSources(t *testing.T) {
	p := sparseProduct()
	search := &fakeSearch{results: []serpapi.Result{
		{Position: 1, Link: "https://reviews.example.com/lagavulin-16"},
		{Position: 2, Link: "https://notes.example.com/lagavulin-16"},
		{Position: 3, Link: "https://third.example.com/lagavulin-16"},
	}}
	ff := &fakeFetch{pages: map[string]string{
		"https://reviews.example.com/lagavulin-16": "<html>a</html>",
		"https://notes.example.com/lagavulin-16":   "<html>b</html>",
	}}
	fe := &fakeExtract{byURL: map[string]map[string]any{
		"https://reviews.example.com/lagavulin-16": {
			"abv":                43.0,
			"palate_description": "thick smoke and iodine",
		},
		"https://notes.example.com/lagavulin-16": {
			"nose_description": "maritime peat",
		},
	}}
	st := &memVerifyStore{}
	pipe := NewPipeline(st, search, ff, fe)

	res, err := pipe.VerifyProduct(context.Background(), p)
	require.NoError(t, err)

	// tasting strategy, capped at two sources
	require.NotEmpty(t, search.queries)
	assert.Contains(t, search.queries[0], "tasting notes review")
	require.Len(t, res.SourcesUsed, 2)

	assert.Equal(t, 3, p.SourceCount)
	assert.Equal(t, "thick smoke and iodine", p.Tasting.PalateDescription)
	assert.Equal(t, "maritime peat", p.Tasting.NoseDescription)
	// abv matched the existing value, so it is now two-source agreed
	assert.True(t, p.HasVerifiedField("abv"))
	assert.Empty(t, res.Conflicts)

	assert.Equal(t, []string{"prod-1"}, st.locked)
	require.NotNil(t, st.updated)
	require.NotEmpty(t, st.provenance)
	rawByField := map[string]string{}
	for _, fp := range st.provenance {
		rawByField[fp.FieldName] = fp.RawValue
	}
	assert.Equal(t, "thick smoke and iodine", rawByField["palate_description"])
	assert.Equal(t, "43", rawByField["abv"])
}

func TestVerifyProduct_RepeatRunAddsNothing(t *testing.T) {
	p := sparseProduct()
	search := &fakeSearch{results: []serpapi.Result{
		{Position: 1, Link: "https://reviews.example.com/lagavulin-16"},
		{Position: 2, Link: "https://notes.example.com/lagavulin-16"},
	}}
	ff := &fakeFetch{pages: map[string]string{
		"https://reviews.example.com/lagavulin-16": "<html>a</html>",
		"https://notes.example.com/lagavulin-16":   "<html>b</html>",
	}}
	fe := &fakeExtract{byURL: map[string]map[string]any{
		"https://reviews.example.com/lagavulin-16": {
			"palate_description": "thick smoke and iodine",
		},
		"https://notes.example.com/lagavulin-16": {
			"nose_description": "maritime peat",
		},
	}}
	st := &memVerifyStore{}
	pipe := NewPipeline(st, search, ff, fe)

	first, err := pipe.VerifyProduct(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, first.SourcesUsed, 2)
	require.Equal(t, 3, p.SourceCount)
	provCount := len(st.provenance)

	// Same search results again: every candidate already contributed, so
	// the second round must not re-fetch, re-count, or self-verify.
	second, err := pipe.VerifyProduct(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, second.SourcesUsed)
	assert.Equal(t, 3, p.SourceCount)
	assert.Len(t, st.provenance, provCount)
	assert.False(t, p.HasVerifiedField("palate_description"),
		"a single source re-read is not agreement")
}

func TestVerifyProduct_ConflictKeepsFirstValue(t *testing.T) {
	p := sparseProduct()
	search := &fakeSearch{results: []serpapi.Result{
		{Position: 1, Link: "https://reviews.example.com/r"},
	}}
	ff := &fakeFetch{pages: map[string]string{"https://reviews.example.com/r": "x"}}
	fe := &fakeExtract{byURL: map[string]map[string]any{
		"https://reviews.example.com/r": {"abv": 46.0},
	}}
	pipe := NewPipeline(&memVerifyStore{}, search, ff, fe)

	res, err := pipe.VerifyProduct(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "abv", res.Conflicts[0].Field)
	assert.Equal(t, 43.0, p.ABV, "first observation wins")
	assert.False(t, p.HasVerifiedField("abv"))
}

func TestVerifyProduct_SkipsOwnSourceURL(t *testing.T) {
	p := sparseProduct()
	search := &fakeSearch{results: []serpapi.Result{
		{Position: 1, Link: "https://shop.example.com/lagavulin-16"},
	}}
	pipe := NewPipeline(&memVerifyStore{}, search, &fakeFetch{}, &fakeExtract{})

	res, err := pipe.VerifyProduct(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, res.SourcesUsed, "the page the product came from is not a second source")
}

func TestVerifyProduct_PricingStrategyWhenTastingComplete(t *testing.T) {
	p := sparseProduct()
	p.Tasting.PalateFlavors = []string{"peat"}
	p.Tasting.NoseDescription = "smoke"
	p.Tasting.FinishDescription = "long"
	for _, f := range []string{"name", "abv", "country", "region", "palate_description"} {
		p.AddVerifiedField(f)
	}
	// still below the source target, and no price on record
	p.SourceCount = 2

	search := &fakeSearch{}
	pipe := NewPipeline(&memVerifyStore{}, search, &fakeFetch{}, &fakeExtract{})
	_, err := pipe.VerifyProduct(context.Background(), p)
	require.NoError(t, err)
	require.NotEmpty(t, search.queries)
	assert.Contains(t, search.queries[0], "buy price")
}
