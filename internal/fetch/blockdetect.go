package fetch

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot or access barrier detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockAgeGate    BlockType = "age_gate"
)

// DetectBlock checks an HTTP response for signs of anti-bot protection or an
// age-verification interstitial.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	// Cloudflare: 403/503 with cf-* headers.
	if resp.StatusCode == 403 || resp.StatusCode == 503 {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Cloudflare challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	// Captcha markers.
	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") {
		return true, BlockCaptcha
	}

	// Age verification interstitials. Spirits retailers commonly serve a
	// small page asking for date of birth before any product content.
	if detectAgeGate(lower, len(body)) {
		return true, BlockAgeGate
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, "meta http-equiv=\"refresh\"") {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

func detectAgeGate(lower string, bodyLen int) bool {
	// Only treat as an interstitial when the page is small; a full product
	// page may legitimately mention age verification in its footer.
	if bodyLen > 20000 {
		return false
	}
	markers := []string{
		"are you of legal drinking age",
		"confirm your age",
		"verify your age",
		"age verification",
		"must be 18", "must be 21",
		"date of birth",
	}
	hits := 0
	for _, m := range markers {
		if strings.Contains(lower, m) {
			hits++
		}
	}
	return hits >= 1 && (strings.Contains(lower, "enter") || strings.Contains(lower, "yes") || hits >= 2)
}
