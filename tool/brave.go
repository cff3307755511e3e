package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// BraveSearch queries the Brave Search API and returns cited documents.
type BraveSearch struct {
	APIKey  string
	BaseURL string
	Count   int
	Country string
	Lang    string
	Cost    float64
	Timeout time.Duration

	client *http.Client
}

type BraveOption func(*BraveSearch)

// WithBraveBaseURL sets the base URL for the Brave Search API.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *BraveSearch) {
		b.BaseURL = baseURL
	}
}

// WithBraveCount sets the number of results to return (1-20).
func WithBraveCount(count int) BraveOption {
	return func(b *BraveSearch) {
		if count < 1 {
			count = 1
		}
		if count > 20 {
			count = 20
		}
		b.Count = count
	}
}

// WithBraveCountry sets the country code for search results (e.g., "US", "CN").
func WithBraveCountry(country string) BraveOption {
	return func(b *BraveSearch) {
		b.Country = country
	}
}

// WithBraveLang sets the language code for search results (e.g., "en", "zh").
func WithBraveLang(lang string) BraveOption {
	return func(b *BraveSearch) {
		b.Lang = lang
	}
}

// WithBraveCost sets the budget cost of one dispatch.
func WithBraveCost(cost float64) BraveOption {
	return func(b *BraveSearch) {
		b.Cost = cost
	}
}

// WithBraveTimeout sets the per-request timeout.
func WithBraveTimeout(timeout time.Duration) BraveOption {
	return func(b *BraveSearch) {
		b.Timeout = timeout
	}
}

// NewBraveSearch creates a new BraveSearch tool.
// If apiKey is empty, it tries to read from BRAVE_API_KEY environment variable.
func NewBraveSearch(apiKey string, opts ...BraveOption) (*BraveSearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("BRAVE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY not set")
	}

	b := &BraveSearch{
		APIKey:  apiKey,
		BaseURL: "https://api.search.brave.com/res/v1/web/search",
		Count:   10,
		Country: "US",
		Lang:    "en",
		Cost:    1.0,
		Timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.client = &http.Client{Timeout: b.Timeout}

	return b, nil
}

// Descriptor describes the tool to the orchestrator.
func (b *BraveSearch) Descriptor() Descriptor {
	return Descriptor{
		Name:            "web_search",
		Path:            "web_search",
		RequiresQueries: true,
		Cost:            b.Cost,
	}
}

// Invoke runs each query against the API and collects the results.
func (b *BraveSearch) Invoke(ctx context.Context, queries []string) (*Result, error) {
	var sb strings.Builder
	var docs []Document

	for _, query := range queries {
		queryDocs, err := b.search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("brave search %q: %w", query, err)
		}
		docs = append(docs, queryDocs...)
		for i, d := range queryDocs {
			sb.WriteString(fmt.Sprintf("%d. Title: %s\nURL: %s\nDescription: %s\n\n",
				i+1, d.Title, d.Link, d.Content))
		}
	}

	if sb.Len() == 0 {
		return &Result{Answer: "No results found"}, nil
	}

	return &Result{Answer: sb.String(), Documents: docs}, nil
}

func (b *BraveSearch) search(ctx context.Context, query string) ([]Document, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", b.Count))
	if b.Country != "" {
		params.Set("country", b.Country)
	}
	if b.Lang != "" {
		params.Set("search_lang", b.Lang)
	}

	reqURL := fmt.Sprintf("%s?%s", b.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave api returned status: %d", resp.StatusCode)
	}

	var result struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]Document, 0, len(result.Web.Results))
	for _, r := range result.Web.Results {
		docs = append(docs, Document{
			ID:      r.URL,
			Title:   r.Title,
			Link:    r.URL,
			Content: r.Description,
		})
	}
	return docs, nil
}
