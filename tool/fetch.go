package tool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// WebFetch retrieves URLs and extracts their readable text. Queries passed to
// Invoke are interpreted as URLs.
type WebFetch struct {
	MaxBodyLen int
	Timeout    time.Duration

	client *http.Client
}

// NewWebFetch creates a fetch tool. maxBodyLen caps the extracted text per
// page; zero means no cap.
func NewWebFetch(maxBodyLen int) *WebFetch {
	f := &WebFetch{
		MaxBodyLen: maxBodyLen,
		Timeout:    30 * time.Second,
	}
	f.client = &http.Client{Timeout: f.Timeout}
	return f
}

// Descriptor describes the tool to the orchestrator.
func (f *WebFetch) Descriptor() Descriptor {
	return Descriptor{
		Name:            "web_fetch",
		Path:            "web_fetch",
		RequiresQueries: true,
		Cost:            0.5,
	}
}

// Invoke fetches each URL and returns the extracted page texts as documents.
func (f *WebFetch) Invoke(ctx context.Context, queries []string) (*Result, error) {
	var sb strings.Builder
	var docs []Document

	for _, pageURL := range queries {
		title, text, err := f.Fetch(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
		}
		docs = append(docs, Document{
			ID:      pageURL,
			Title:   title,
			Link:    pageURL,
			Content: text,
		})
		sb.WriteString(fmt.Sprintf("# %s\n%s\n\n", title, text))
	}

	return &Result{Answer: sb.String(), Documents: docs}, nil
}

// Fetch retrieves one URL and returns its title and readable text.
func (f *WebFetch) Fetch(ctx context.Context, pageURL string) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("status code %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	title = strings.TrimSpace(doc.Find("title").First().Text())

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
	})

	text = condenseWhitespace(sb.String())
	if text == "" {
		return "", "", fmt.Errorf("no text content found")
	}
	if f.MaxBodyLen > 0 && len(text) > f.MaxBodyLen {
		text = text[:f.MaxBodyLen]
	}
	return title, text, nil
}

func condenseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
