package competition

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/awards"
	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/skeleton"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

const iwscPage = `<html><body>
<div class="result-card">
  <h3 class="result-card__title">Glenfiddich 18 Year Old</h3>
  <span class="result-card__medal">Gold</span>
  <p class="result-card__producer">Glenfiddich</p>
  <span class="result-card__category">Single Malt Scotch Whisky</span>
  <span class="result-card__score">95 points</span>
</div>
<div class="result-card">
  <h3 class="result-card__title">Acme Winery</h3>
  <span class="result-card__medal">Gold</span>
</div>
<div class="result-card">
  <h3 class="result-card__title">Graham's 20 Year Old Tawny Port</h3>
  <span class="result-card__medal">Silver</span>
  <span class="result-card__category">Fortified</span>
</div>
</body></html>`

func TestIWSCParser_PrimarySelectors(t *testing.T) {
	p := &iwscParser{}
	recs, err := p.Parse(iwscPage, 2024)
	require.NoError(t, err)
	require.Len(t, recs, 2, "winery row must be rejected")

	assert.Equal(t, "Glenfiddich 18 Year Old", recs[0].ProductName)
	assert.Equal(t, "Gold", recs[0].Medal)
	assert.Equal(t, "Glenfiddich", recs[0].Producer)
	assert.Equal(t, 95.0, recs[0].Score)
	assert.Equal(t, "iwsc", recs[0].Competition)
	assert.Equal(t, 2024, recs[0].Year)

	assert.Equal(t, "Graham's 20 Year Old Tawny Port", recs[1].ProductName)
}

func TestParser_FallsBackToGenericTable(t *testing.T) {
	page := `<html><body><table>
	<thead><tr><th>Product</th><th>Medal</th><th>Company</th><th>Class</th><th>Points</th></tr></thead>
	<tbody>
	<tr><td>Lagavulin 16</td><td>Double Gold</td><td>Lagavulin</td><td>Islay Single Malt</td><td>97</td></tr>
	<tr><td>Highland Distillers Ltd</td><td>Gold</td><td></td><td></td><td></td></tr>
	<tr><td>Warre's Otima 10 Tawny Port</td><td>Silver</td><td>Warre's</td><td>Port</td><td>91</td></tr>
	</tbody></table></body></html>`

	p := &sfwscParser{}
	recs, err := p.Parse(page, 2023)
	require.NoError(t, err)
	require.Len(t, recs, 2, "Ltd-suffixed row must be rejected")
	assert.Equal(t, "Lagavulin 16", recs[0].ProductName)
	assert.Equal(t, "Lagavulin", recs[0].Producer)
	assert.Equal(t, 97.0, recs[0].Score)
	assert.Equal(t, "Warre's Otima 10 Tawny Port", recs[1].ProductName)
}

func TestWWAParser_NamedAwardCategory(t *testing.T) {
	page := `<html><body>
	<div class="award-winner">
	  <h3 class="award-winner__category">World's Best Single Malt</h3>
	  <h4 class="award-winner__name">Hakushu 18 Year Old Whisky</h4>
	  <span class="award-winner__medal">Trophy</span>
	  <span class="award-winner__distillery">Suntory</span>
	</div>
	</body></html>`

	p := &wwaParser{}
	recs, err := p.Parse(page, 2024)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "World's Best Single Malt", recs[0].AwardCategory)
}

func TestValidProductName(t *testing.T) {
	assert.True(t, ValidProductName("Glenfiddich 18 Year Old"))
	assert.True(t, ValidProductName("Quinta do Noval Vintage Port"), "port names keep quinta-like tokens")
	assert.False(t, ValidProductName("Sunset Winery"))
	assert.False(t, ValidProductName("Chateau Margaux"))
	assert.False(t, ValidProductName("Fine Spirits Inc"))
	assert.False(t, ValidProductName("Old Cellars Ltd."))
	assert.False(t, ValidProductName("ab"))
}

func TestParseScore(t *testing.T) {
	assert.Equal(t, 95.0, parseScore("95 points"))
	assert.Equal(t, 92.5, parseScore("Score: 92.5"))
	assert.Equal(t, 0.0, parseScore("no score"))
	assert.Equal(t, 0.0, parseScore("350"))
}

func TestForSlug(t *testing.T) {
	for slug, comp := range map[string]string{
		"iwsc-results":      "iwsc",
		"sfwsc":             "sfwsc",
		"wwa-winners":       "wwa",
		"dwwa-fortified":    "dwwa",
	} {
		p, ok := ForSlug(slug)
		require.True(t, ok, slug)
		assert.Equal(t, comp, p.Competition())
	}
	_, ok := ForSlug("some-retailer")
	assert.False(t, ok)
}

// orchestrator fakes

type stubFetcher struct{ content string }

func (s *stubFetcher) Fetch(_ context.Context, req fetch.Request) (*model.FetchResult, error) {
	return &model.FetchResult{URL: req.URL, Content: s.content, Status: 200, Success: true, TierUsed: 1}, nil
}

type stubSearcher struct{ queries []string }

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]serpapi.Result, error) {
	s.queries = append(s.queries, query)
	return []serpapi.Result{
		{Position: 1, Link: fmt.Sprintf("https://shop.example.com/%d", len(s.queries))},
	}, nil
}

type stubFrontier struct{ urls []string }

func (s *stubFrontier) Enqueue(_ context.Context, u string, priority int, meta model.QueueMeta) (bool, error) {
	if priority != model.PriorityEnrichment {
		return false, fmt.Errorf("unexpected priority %d", priority)
	}
	if meta.SkeletonID == "" {
		return false, fmt.Errorf("missing skeleton id")
	}
	s.urls = append(s.urls, u)
	return true, nil
}

type orchStore struct {
	products []*model.Product
	awards   map[string]bool
}

func (m *orchStore) CreateProduct(_ context.Context, p *model.Product) error {
	p.ID = fmt.Sprintf("p%d", len(m.products)+1)
	m.products = append(m.products, p)
	return nil
}
func (m *orchStore) UpdateProduct(_ context.Context, _ *model.Product) error { return nil }
func (m *orchStore) GetProductByFingerprint(_ context.Context, fp string) (*model.Product, error) {
	for _, p := range m.products {
		if p.Fingerprint == fp {
			return p, nil
		}
	}
	return nil, nil
}
func (m *orchStore) FindProductsByName(_ context.Context, sub string, typ model.ProductType) ([]model.Product, error) {
	var out []model.Product
	for _, p := range m.products {
		if p.ProductType == typ && strings.Contains(strings.ToLower(p.Name), sub) {
			out = append(out, *p)
		}
	}
	return out, nil
}
func (m *orchStore) UpsertAward(_ context.Context, a *model.Award) (bool, error) {
	if m.awards == nil {
		m.awards = map[string]bool{}
	}
	key := a.ProductID + a.Competition + a.Medal
	if m.awards[key] {
		return false, nil
	}
	m.awards[key] = true
	return true, nil
}
func (m *orchStore) ListAwards(_ context.Context, _ string) ([]model.Award, error) { return nil, nil }

func TestOrchestrator_Run(t *testing.T) {
	st := &orchStore{}
	sk := skeleton.NewManager(st, awards.NewHandler(st))
	searcher := &stubSearcher{}
	fr := &stubFrontier{}
	o := NewOrchestrator(&stubFetcher{content: iwscPage}, sk, searcher, fr)

	src := &model.Source{
		Slug:    "iwsc-results",
		BaseURL: "https://iwsc.example.com/results/{year}",
	}
	sum, err := o.Run(context.Background(), src, 2024)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.RecordsParsed)
	assert.Equal(t, 2, sum.SkeletonsCreated)
	assert.Equal(t, 0, sum.ProductsMerged)
	// three searches per new skeleton, one hit each
	assert.Equal(t, 6, sum.URLsEnqueued)
	require.Len(t, searcher.queries, 6)
	assert.Contains(t, searcher.queries[0], "price buy online")
	assert.Contains(t, searcher.queries[1], "review tasting notes")
	assert.Contains(t, searcher.queries[2], "official site")
}
