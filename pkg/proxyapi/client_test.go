package proxyapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_RawHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.URL.Query().Get("api_key"))
		assert.Equal(t, "https://example.com/p", r.URL.Query().Get("url"))
		assert.Equal(t, "true", r.URL.Query().Get("render_js"))
		_, _ = w.Write([]byte("<html><body>page</body></html>"))
	}))
	defer srv.Close()

	c := NewClient("key-1", WithBaseURL(srv.URL))
	resp, err := c.Fetch(context.Background(), FetchRequest{URL: "https://example.com/p", Render: true})
	require.NoError(t, err)
	assert.Equal(t, "<html><body>page</body></html>", resp.HTML)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestFetch_JSONEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"html": "<html>x</html>", "status": 200}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	resp, err := c.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "<html>x</html>", resp.HTML)
}

func TestFetch_Cookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("cookies"), "age_verified=true")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Fetch(context.Background(), FetchRequest{
		URL:     "https://example.com",
		Cookies: map[string]string{"age_verified": "true"},
	})
	require.NoError(t, err)
}

func TestFetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte("credits exhausted"))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
}
