// Package search provides the web-search capability used during opportunity
// analysis. Provider failures are downgraded to an empty result set so a
// flaky search never aborts the surrounding tool-use loop.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	serperURL      = "https://google.serper.dev/search"
	googleURL      = "https://www.googleapis.com/customsearch/v1"
	requestTimeout = 15 * time.Second
	resultCount    = 10
)

// Result is one ranked search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Client queries a web-search provider. Engine selects "serper" (default)
// or "google"; GoogleCX is the Custom Search engine id, required for the
// google engine only.
type Client struct {
	apiKey     string
	engine     string
	googleCX   string
	serperURL  string
	googleURL  string
	httpClient *http.Client
}

// NewClient creates a search client. An empty engine defaults to serper.
func NewClient(apiKey, engine, googleCX string) *Client {
	if engine != "google" {
		engine = "serper"
	}
	return &Client{
		apiKey:    apiKey,
		engine:    engine,
		googleCX:  googleCX,
		serperURL: serperURL,
		googleURL: googleURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Search runs the query against the configured provider. It never returns
// an error: a missing key yields a single explanatory placeholder result
// and provider failures yield an empty list.
func (c *Client) Search(ctx context.Context, query string) []Result {
	if c.apiKey == "" {
		return []Result{{
			Title:   "Search API Key Not Configured",
			Link:    "https://example.com",
			Snippet: "Web search is unavailable because no search API key is configured.",
		}}
	}

	var (
		results []Result
		err     error
	)
	if c.engine == "google" {
		results, err = c.googleSearch(ctx, query)
	} else {
		results, err = c.serperSearch(ctx, query)
	}
	if err != nil {
		slog.Warn("web search failed, returning empty results", "engine", c.engine, "error", err)
		return []Result{}
	}
	return results
}

func (c *Client) serperSearch(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(map[string]any{"q": query, "num": resultCount})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serperURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("serper status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var payload struct {
		Organic []Result `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if payload.Organic == nil {
		return []Result{}, nil
	}
	return payload.Organic, nil
}

func (c *Client) googleSearch(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.googleCX)
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.googleURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google search status %d", resp.StatusCode)
	}

	var payload struct {
		Items []Result `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if payload.Items == nil {
		return []Result{}, nil
	}
	return payload.Items, nil
}
