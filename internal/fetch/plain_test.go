package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/model"
)

func TestPlainTier_Fetch(t *testing.T) {
	page := "<html><title>Taylor's Vintage 2017</title>" + strings.Repeat("<p>port</p>", 200) + "</html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	tier := NewPlainTier("Mozilla/5.0 (X11; Linux x86_64)", 5*time.Second, 1<<20)
	res, err := tier.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.TierPlain, res.TierUsed)
	assert.Contains(t, res.Content, "Taylor's Vintage 2017")
}

func TestPlainTier_SendsAgeGateCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("age_verified")
		require.NoError(t, err)
		assert.Equal(t, "true", c.Value)
		_, _ = w.Write([]byte(strings.Repeat("x", 600)))
	}))
	defer srv.Close()

	src := &model.Source{
		AgeGate: &model.AgeGate{
			Mechanism: "cookie",
			Cookies:   map[string]string{"age_verified": "true"},
		},
	}
	tier := NewPlainTier("test-agent", 5*time.Second, 1<<20)
	res, err := tier.Fetch(context.Background(), Request{URL: srv.URL, Source: src})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestPlainTier_DetectsBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<form class="h-captcha" data-sitekey="k"></form>`))
	}))
	defer srv.Close()

	tier := NewPlainTier("test-agent", 5*time.Second, 1<<20)
	res, err := tier.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrBlocked, res.ErrorKind)
}

func TestPlainTier_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 5000)))
	}))
	defer srv.Close()

	tier := NewPlainTier("test-agent", 5*time.Second, 1024)
	res, err := tier.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, res.Content, 1024)
}
