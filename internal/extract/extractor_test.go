package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/pkg/aiextract"
)

type fakeAI struct {
	resp  *aiextract.ExtractResponse
	batch []aiextract.ExtractResponse
	err   error
	last  aiextract.ExtractRequest
}

func (f *fakeAI) Extract(_ context.Context, req aiextract.ExtractRequest) (*aiextract.ExtractResponse, error) {
	f.last = req
	return f.resp, f.err
}

func (f *fakeAI) ExtractBatch(_ context.Context, reqs []aiextract.ExtractRequest) ([]aiextract.ExtractResponse, error) {
	if len(reqs) > 0 {
		f.last = reqs[len(reqs)-1]
	}
	return f.batch, f.err
}

func TestExtract_UnsupportedType(t *testing.T) {
	e := New(&fakeAI{}, nil)

	res, err := e.Extract(context.Background(), "<html></html>", "https://example.com", model.ProductType("gin"), nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ErrUnsupportedType, res.Error)
}

func TestExtract_DropsInvalidValues(t *testing.T) {
	ai := &fakeAI{resp: &aiextract.ExtractResponse{
		Fields: map[string]any{
			"name":          "Lagavulin 16",
			"abv":           float64(143),  // impossible
			"volume_ml":     float64(-700), // negative
			"vintage_year":  float64(1492), // before 1800
			"bottling_year": float64(2008),
			"peat_level":    "heavy",
		},
		Confidences: map[string]float64{"name": 0.97, "bottling_year": 0.9, "peat_level": 0.88},
	}}
	e := New(ai, nil)

	res, err := e.Extract(context.Background(), "<html></html>", "https://shop.example.com/lagavulin-16", model.TypeWhiskey, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Lagavulin 16", res.Fields["name"])
	assert.Equal(t, 2008, res.Fields["bottling_year"])
	assert.Equal(t, "heavy", res.Fields["peat_level"])
	assert.NotContains(t, res.Fields, "abv")
	assert.NotContains(t, res.Fields, "volume_ml")
	assert.NotContains(t, res.Fields, "vintage_year")
}

func TestExtract_AIWinsOverDerivedMeta(t *testing.T) {
	page := `<html><head>
		<meta property="og:title" content="Taylor's 20 Year Old Tawny | Port Shop">
		<meta property="og:description" content="A fine aged tawny.">
		<meta property="og:image" content="https://cdn.example.com/taylors20.jpg">
	</head><body></body></html>`

	ai := &fakeAI{resp: &aiextract.ExtractResponse{
		Fields:      map[string]any{"name": "Taylor's 20 Year Old Tawny Port", "style": "tawny"},
		Confidences: map[string]float64{"name": 0.95, "style": 0.92},
	}}
	e := New(ai, nil)

	res, err := e.Extract(context.Background(), page, "https://portshop.example.com/t20", model.TypePortWine, nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	// AI name replaces the meta-derived one; derived-only fields survive.
	assert.Equal(t, "Taylor's 20 Year Old Tawny Port", res.Fields["name"])
	assert.Equal(t, 0.95, res.Confidences["name"])
	assert.Equal(t, "A fine aged tawny.", res.Fields["description"])
	assert.Equal(t, derivedConfidence, res.Confidences["description"])
	assert.Equal(t, "https://cdn.example.com/taylors20.jpg", res.Fields["image_url"])
}

func TestExtract_PassesTypeAndHints(t *testing.T) {
	ai := &fakeAI{resp: &aiextract.ExtractResponse{
		Fields:      map[string]any{"name": "X"},
		Confidences: map[string]float64{"name": 1},
	}}
	e := New(ai, nil)

	src := &model.Source{Category: model.SourceRetailer}
	_, err := e.Extract(context.Background(), "<html></html>", "https://example.com/x", model.TypeWhiskey, src)
	require.NoError(t, err)
	assert.Equal(t, "whiskey", ai.last.ProductType)
	assert.Equal(t, string(model.SourceRetailer), ai.last.Hints)
}

func TestExtract_ServiceError(t *testing.T) {
	ai := &fakeAI{resp: &aiextract.ExtractResponse{Error: "model_overloaded"}}
	e := New(ai, nil)

	res, err := e.Extract(context.Background(), "<html></html>", "https://example.com/x", model.TypeWhiskey, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "model_overloaded", res.Error)
}

func TestExtractBatch_MixedResults(t *testing.T) {
	ai := &fakeAI{batch: []aiextract.ExtractResponse{
		{Fields: map[string]any{"name": "A"}, Confidences: map[string]float64{"name": 0.9}},
		{Error: "unreadable"},
	}}
	e := New(ai, nil)

	results, err := e.ExtractBatch(context.Background(), []PageRequest{
		{URL: "https://example.com/a", Content: "<html></html>", Type: model.TypeWhiskey},
		{URL: "https://example.com/b", Content: "<html></html>", Type: model.TypeWhiskey},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "A", results[0].Fields["name"])
	assert.False(t, results[1].Success)
	assert.Equal(t, "unreadable", results[1].Error)
}

func TestCoerce_StringListFromAny(t *testing.T) {
	v, err := Coerce([]any{"vanilla", " oak ", ""}, KindStringList)
	require.NoError(t, err)
	assert.Equal(t, []string{"vanilla", "oak"}, v)
}

func TestCoerce_NumericStrings(t *testing.T) {
	v, err := Coerce("43.2%", KindFloat)
	require.NoError(t, err)
	assert.Equal(t, 43.2, v)

	n, err := Coerce("700", KindInt)
	require.NoError(t, err)
	assert.Equal(t, 700, n)
}

func TestApplyFields_RoutesToTastingAndDetails(t *testing.T) {
	p := &model.Product{ID: "p1", ProductType: model.TypeWhiskey}

	ApplyFields(p, map[string]any{
		"name":               "Ardbeg Uigeadail",
		"abv":                54.2,
		"palate_flavors":     []string{"smoke", "raisin"},
		"palate_description": "Deep peat and sherry sweetness",
		"whiskey_type":       "scotch_single_malt",
		"peated":             true,
	})

	assert.Equal(t, "Ardbeg Uigeadail", p.Name)
	assert.Equal(t, 54.2, p.ABV)
	assert.Equal(t, []string{"smoke", "raisin"}, p.Tasting.PalateFlavors)
	assert.True(t, p.Tasting.HasPalate())
	require.NotNil(t, p.Whiskey)
	assert.Equal(t, model.WhiskeyScotchSingle, p.Whiskey.WhiskeyType)
	assert.True(t, p.Whiskey.Peated)
	assert.Nil(t, p.Port)
}

func TestDeriveMeta_StripsSiteSuffix(t *testing.T) {
	page := `<html><head><title>Glenfiddich 18 | Whisky Shop</title></head></html>`
	out := DeriveMeta(page, "https://www.whiskyshop.com/glenfiddich-18")
	assert.Equal(t, "Glenfiddich 18", out["name"])
}
