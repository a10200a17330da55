package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/model"
)

const hubPage = `<html><body>
<ul class="brands">
  <li><a href="/brands/ardbeg">Ardbeg</a></li>
  <li><a href="https://www.lagavulin.com/">Lagavulin</a></li>
  <li><a href="/brands/next">Next</a></li>
  <li><a href="/brands/x">X</a></li>
  <li><a href="/brands/ardbeg">Ardbeg</a></li>
</ul>
<div class="pagination"><a href="/brands?page=2">2</a></div>
</body></html>`

func TestParser_GenericFallback(t *testing.T) {
	p := NewParser(nil)
	out, err := p.Parse(hubPage, "https://www.whiskyhub.com/brands")
	require.NoError(t, err)

	require.Len(t, out.Brands, 2, "nav text, short names, and dupes drop")

	ardbeg := out.Brands[0]
	assert.Equal(t, "Ardbeg", ardbeg.Name)
	assert.Equal(t, "https://www.whiskyhub.com/brands/ardbeg", ardbeg.HubURL)
	assert.Empty(t, ardbeg.ExternalURL)
	assert.Equal(t, "whiskyhub.com", ardbeg.HubDomain)

	lagavulin := out.Brands[1]
	assert.Equal(t, "Lagavulin", lagavulin.Name)
	assert.Equal(t, "https://www.lagavulin.com/", lagavulin.ExternalURL)

	require.Len(t, out.Pagination, 1)
	assert.Equal(t, "https://www.whiskyhub.com/brands?page=2", out.Pagination[0])
}

func TestParser_PerHubConfig(t *testing.T) {
	yamlCfg := []byte(`
hubs:
  - domain: portwarehouse.example
    brand_selector: "div.producer a.producer-link"
    external_attr: "data-website"
    pagination_selector: "nav.pages a"
`)
	configs, err := LoadConfigs(yamlCfg)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	page := `<html><body>
	<div class="producer"><a class="producer-link" href="/p/grahams" data-website="https://www.grahams-port.com">Graham's</a></div>
	<div class="producer"><a class="producer-link" href="/p/taylors">Taylor's</a></div>
	<nav class="pages"><a href="/producers?page=2">next page</a></nav>
	</body></html>`

	p := NewParser(configs)
	out, err := p.Parse(page, "https://portwarehouse.example/producers")
	require.NoError(t, err)
	require.Len(t, out.Brands, 2)
	assert.Equal(t, "https://www.grahams-port.com", out.Brands[0].ExternalURL)
	assert.Empty(t, out.Brands[1].ExternalURL)
	assert.Len(t, out.Pagination, 1)
}

type pagedFetcher struct {
	pages map[string]string
}

func (f *pagedFetcher) Fetch(_ context.Context, req fetch.Request) (*model.FetchResult, error) {
	content, ok := f.pages[req.URL]
	if !ok {
		return &model.FetchResult{URL: req.URL, Status: 404, Success: false}, nil
	}
	return &model.FetchResult{URL: req.URL, Content: content, Status: 200, Success: true}, nil
}

type memRegistrar struct {
	sources map[string]*model.Source
}

func (m *memRegistrar) UpsertSource(_ context.Context, s *model.Source) error {
	if m.sources == nil {
		m.sources = map[string]*model.Source{}
	}
	s.ID = "src-" + s.Slug
	m.sources[s.Slug] = s
	return nil
}

func (m *memRegistrar) GetSourceBySlug(_ context.Context, slug string) (*model.Source, error) {
	return m.sources[slug], nil
}

func TestOrchestrator_RegistersExternalBrands(t *testing.T) {
	producer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer producer.Close()

	page := strings.ReplaceAll(`<html><body><ul>
	<li><a href="PRODUCER">Ardbeg</a></li>
	<li><a href="/internal-only">Glen Internal</a></li>
	</ul></body></html>`, "PRODUCER", producer.URL)

	f := &pagedFetcher{pages: map[string]string{"https://hub.example.com/brands": page}}
	reg := &memRegistrar{}
	o := NewOrchestrator(f, NewParser(nil), reg, nil, 5)

	src := &model.Source{Slug: "hub-example", BaseURL: "https://hub.example.com/brands"}
	sum, err := o.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.PagesCrawled)
	assert.Equal(t, 2, sum.BrandsFound)
	assert.Equal(t, 1, sum.SourcesRegistered, "only the external-link brand registers without a finder")

	var registered *model.Source
	for _, s := range reg.sources {
		registered = s
	}
	require.NotNil(t, registered)
	assert.Equal(t, model.SourceProducer, registered.Category)
	assert.Equal(t, model.DiscoveredHub, registered.DiscoveredVia)
	assert.True(t, registered.Active)
}

func TestOrchestrator_PageCapStopsBFS(t *testing.T) {
	page := func(next string) string {
		return `<html><body><ul><li><a href="https://unreachable.invalid/">SomeBrand</a></li></ul>
		<div class="pagination"><a href="` + next + `">2</a></div></body></html>`
	}
	f := &pagedFetcher{pages: map[string]string{
		"https://hub.example.com/brands":   page("/brands?page=2"),
		"https://hub.example.com/brands?page=2": page("/brands?page=3"),
		"https://hub.example.com/brands?page=3": page("/brands?page=4"),
	}}
	o := NewOrchestrator(f, NewParser(nil), &memRegistrar{}, nil, 2)

	sum, err := o.Run(context.Background(), &model.Source{Slug: "h", BaseURL: "https://hub.example.com/brands"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.PagesCrawled)
}
