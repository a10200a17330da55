// Package aiextract provides a client for the extraction service that turns
// raw page content into structured product fields with confidences.
package aiextract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "http://localhost:8090"

// Client defines the extraction service operations.
type Client interface {
	// Extract sends page content and returns structured fields.
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)
	// ExtractBatch sends several pages in one call, preserving order.
	ExtractBatch(ctx context.Context, reqs []ExtractRequest) ([]ExtractResponse, error)
}

// ExtractRequest is one page submitted for extraction.
type ExtractRequest struct {
	URL         string `json:"url"`
	Content     string `json:"content"`
	ProductType string `json:"product_type,omitempty"`
	Hints       string `json:"hints,omitempty"`
}

// ExtractResponse holds the structured extraction output.
type ExtractResponse struct {
	Fields      map[string]any     `json:"fields"`
	Confidences map[string]float64 `json:"confidences"`
	Error       string             `json:"error,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default service URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an extraction service client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "aiextract: marshal request")
	}

	const maxAttempts = 3
	backoff := 2 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "aiextract: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "aiextract: execute request")
		} else {
			data, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return eris.Wrap(readErr, "aiextract: read response body")
			}
			switch {
			case resp.StatusCode == http.StatusOK:
				if err := json.Unmarshal(data, out); err != nil {
					return eris.Wrap(err, "aiextract: unmarshal response")
				}
				return nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = eris.Errorf("aiextract: status %d: %s", resp.StatusCode, string(data))
			default:
				return eris.Errorf("aiextract: status %d: %s", resp.StatusCode, string(data))
			}
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return lastErr
}

func (c *httpClient) Extract(ctx context.Context, er ExtractRequest) (*ExtractResponse, error) {
	var out ExtractResponse
	if err := c.post(ctx, "/v1/extract", er, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ExtractBatch(ctx context.Context, reqs []ExtractRequest) ([]ExtractResponse, error) {
	var out struct {
		Results []ExtractResponse `json:"results"`
	}
	payload := struct {
		Pages []ExtractRequest `json:"pages"`
	}{Pages: reqs}
	if err := c.post(ctx, "/v1/extract/batch", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Results) != len(reqs) {
		return nil, eris.Errorf("aiextract: expected %d results, got %d", len(reqs), len(out.Results))
	}
	return out.Results, nil
}
