package fetch

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/model"
)

// BrowserTier renders pages in a headless browser, executing JavaScript.
// Used when the plain tier got a JS shell or a source is marked requires_js.
type BrowserTier struct {
	mu        sync.Mutex
	pw        *playwright.Playwright
	browser   playwright.Browser
	userAgent string
	waitUntil playwright.WaitUntilState
	timeout   time.Duration
	sem       chan struct{}
}

// NewBrowserTier launches a headless Chromium instance. Call Close when done.
func NewBrowserTier(userAgent, waitUntil string, timeout time.Duration, maxContexts int) (*BrowserTier, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxContexts <= 0 {
		maxContexts = 4
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, eris.Wrap(err, "browser: start playwright")
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, eris.Wrap(err, "browser: launch chromium")
	}

	return &BrowserTier{
		pw:        pw,
		browser:   browser,
		userAgent: userAgent,
		waitUntil: waitState(waitUntil),
		timeout:   timeout,
		sem:       make(chan struct{}, maxContexts),
	}, nil
}

func waitState(s string) playwright.WaitUntilState {
	switch s {
	case "load":
		return *playwright.WaitUntilStateLoad
	case "domcontentloaded":
		return *playwright.WaitUntilStateDomcontentloaded
	default:
		return *playwright.WaitUntilStateNetworkidle
	}
}

func (t *BrowserTier) Name() string { return "headless_browser" }
func (t *BrowserTier) Number() int  { return model.TierBrowser }

// Close shuts down the browser and the playwright driver.
func (t *BrowserTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	if t.browser != nil {
		if err := t.browser.Close(); err != nil {
			firstErr = eris.Wrap(err, "browser: close")
		}
		t.browser = nil
	}
	if t.pw != nil {
		if err := t.pw.Stop(); err != nil && firstErr == nil {
			firstErr = eris.Wrap(err, "browser: stop playwright")
		}
		t.pw = nil
	}
	return firstErr
}

func (t *BrowserTier) Fetch(ctx context.Context, fr Request) (*model.FetchResult, error) {
	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	bctx, err := t.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(t.userAgent),
	})
	if err != nil {
		return nil, eris.Wrap(err, "browser: new context")
	}
	defer func() { _ = bctx.Close() }()

	if cookies := fr.AgeGateCookies(); len(cookies) > 0 {
		host := fr.Host()
		pwCookies := make([]playwright.OptionalCookie, 0, len(cookies))
		for name, val := range cookies {
			pwCookies = append(pwCookies, playwright.OptionalCookie{
				Name:   name,
				Value:  val,
				Domain: playwright.String("." + strings.TrimPrefix(host, "www.")),
				Path:   playwright.String("/"),
			})
		}
		if err := bctx.AddCookies(pwCookies); err != nil {
			return nil, eris.Wrap(err, "browser: add cookies")
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, eris.Wrap(err, "browser: new page")
	}

	resp, err := page.Goto(fr.URL, playwright.PageGotoOptions{
		WaitUntil: &t.waitUntil,
		Timeout:   playwright.Float(float64(t.timeout.Milliseconds())),
	})
	if err != nil {
		return nil, eris.Wrap(err, "browser: goto")
	}

	content, err := page.Content()
	if err != nil {
		return nil, eris.Wrap(err, "browser: page content")
	}

	status := http.StatusOK
	headers := map[string]string{}
	if resp != nil {
		status = resp.Status()
		if hdrs, err := resp.AllHeaders(); err == nil {
			for _, h := range []string{"content-type", "server", "retry-after", "cf-ray"} {
				if v, ok := hdrs[h]; ok {
					headers[h] = v
				}
			}
		}
	}

	result := &model.FetchResult{
		URL:      fr.URL,
		Content:  content,
		Status:   status,
		Headers:  headers,
		TierUsed: model.TierBrowser,
	}

	// Rendered content still goes through block detection; a captcha page
	// renders fine but carries no product data.
	fake := &http.Response{StatusCode: status, Header: http.Header{}}
	if blocked, blockType := DetectBlock(fake, []byte(content)); blocked && blockType != BlockJSShell {
		result.ErrorKind = ClassifyError(nil, status, blockType)
		result.Error = "blocked: " + string(blockType)
		return result, nil
	}

	result.Success = status >= 200 && status < 400
	return result, nil
}
