package fetch

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/pkg/proxyapi"
)

// ProxyTier fetches through the managed proxy service. Billed per request,
// so the router only reaches it when the free tiers are blocked.
type ProxyTier struct {
	client proxyapi.Client
}

// NewProxyTier creates the Tier 3 fetcher.
func NewProxyTier(client proxyapi.Client) *ProxyTier {
	return &ProxyTier{client: client}
}

func (t *ProxyTier) Name() string { return "managed_proxy" }
func (t *ProxyTier) Number() int  { return model.TierProxy }

func (t *ProxyTier) Fetch(ctx context.Context, fr Request) (*model.FetchResult, error) {
	render := fr.Source != nil && fr.Source.RequiresJS
	resp, err := t.client.Fetch(ctx, proxyapi.FetchRequest{
		URL:     fr.URL,
		Render:  render,
		Cookies: fr.AgeGateCookies(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "managed_proxy: fetch")
	}

	result := &model.FetchResult{
		URL:      fr.URL,
		Content:  resp.HTML,
		Status:   resp.Status,
		TierUsed: model.TierProxy,
	}

	fake := &http.Response{StatusCode: resp.Status, Header: http.Header{}}
	if blocked, blockType := DetectBlock(fake, []byte(resp.HTML)); blocked && blockType != BlockJSShell {
		result.ErrorKind = ClassifyError(nil, resp.Status, blockType)
		result.Error = "blocked: " + string(blockType)
		return result, nil
	}

	result.Success = resp.Status >= 200 && resp.Status < 400
	return result, nil
}
