package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/model"
)

// PlainTier fetches via net/http with a realistic user agent. Free, fast,
// and sufficient for most retailer and database pages.
type PlainTier struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewPlainTier creates the Tier 1 HTTP fetcher.
func NewPlainTier(userAgent string, timeout time.Duration, maxBody int64) *PlainTier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	return &PlainTier{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		userAgent: userAgent,
		maxBody:   maxBody,
	}
}

func (t *PlainTier) Name() string { return "plain_http" }
func (t *PlainTier) Number() int  { return model.TierPlain }

func (t *PlainTier) Fetch(ctx context.Context, fr Request) (*model.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fr.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "plain_http: create request")
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for name, val := range fr.AgeGateCookies() {
		req.AddCookie(&http.Cookie{Name: name, Value: val})
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "plain_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "plain_http: read body")
	}

	headers := map[string]string{}
	for _, h := range []string{"Content-Type", "Server", "Retry-After", "cf-ray"} {
		if v := resp.Header.Get(h); v != "" {
			headers[h] = v
		}
	}

	result := &model.FetchResult{
		URL:      fr.URL,
		Content:  string(body),
		Status:   resp.StatusCode,
		Headers:  headers,
		TierUsed: model.TierPlain,
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		result.ErrorKind = ClassifyError(nil, resp.StatusCode, blockType)
		result.Error = "blocked: " + string(blockType)
		return result, nil
	}

	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 400
	return result, nil
}
