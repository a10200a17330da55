package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func respWith(status int, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{StatusCode: status, Header: h}
}

func TestDetectBlock_Cloudflare(t *testing.T) {
	resp := respWith(403, map[string]string{"cf-ray": "8a1b2c3d"})
	blocked, bt := DetectBlock(resp, []byte("Access denied"))
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_Captcha(t *testing.T) {
	resp := respWith(200, nil)
	blocked, bt := DetectBlock(resp, []byte(`<div class="g-recaptcha" data-sitekey="x"></div>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_JSShell(t *testing.T) {
	resp := respWith(200, nil)
	body := []byte(`<html><noscript>Please enable JavaScript</noscript><div id="root"></div></html>`)
	blocked, bt := DetectBlock(resp, body)
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, bt)
}

func TestDetectBlock_AgeGate(t *testing.T) {
	resp := respWith(200, nil)
	body := []byte(`<html><body><h1>Are you of legal drinking age?</h1><button>Yes</button><button>No</button></body></html>`)
	blocked, bt := DetectBlock(resp, body)
	assert.True(t, blocked)
	assert.Equal(t, BlockAgeGate, bt)
}

func TestDetectBlock_CleanPage(t *testing.T) {
	resp := respWith(200, nil)
	body := make([]byte, 0, 4000)
	body = append(body, []byte(`<html><head><title>Ardbeg 10 Year Old</title></head><body>`)...)
	for i := 0; i < 100; i++ {
		body = append(body, []byte(`<p>Single malt scotch whisky from Islay with notes of peat smoke and citrus.</p>`)...)
	}
	body = append(body, []byte(`</body></html>`)...)

	blocked, bt := DetectBlock(resp, body)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

func TestDetectBlock_AgeGateFooterMentionOnLargePage(t *testing.T) {
	// A full product page that merely mentions age verification in the
	// footer must not be treated as an interstitial.
	resp := respWith(200, nil)
	body := make([]byte, 0, 30000)
	for i := 0; i < 400; i++ {
		body = append(body, []byte(`<p>Tasting notes: honey, vanilla, oak spice and dried fruit.</p>`)...)
	}
	body = append(body, []byte(`<footer>Age verification required for purchase. Enter your details at checkout.</footer>`)...)

	blocked, _ := DetectBlock(resp, body)
	assert.False(t, blocked)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "age_gate", string(ClassifyError(nil, 200, BlockAgeGate)))
	assert.Equal(t, "blocked", string(ClassifyError(nil, 200, BlockCaptcha)))
	assert.Equal(t, "rate_limit", string(ClassifyError(nil, 429, BlockNone)))
	assert.Equal(t, "blocked", string(ClassifyError(nil, 403, BlockNone)))
}
