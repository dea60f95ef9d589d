package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily searches the web through the Tavily search API.
type Tavily struct {
	apiKey string
	opts   clientOptions
}

// NewTavily creates a Tavily client.
func NewTavily(apiKey string, opts ...Option) *Tavily {
	return &Tavily{apiKey: apiKey, opts: buildOptions(tavilyEndpoint, opts)}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	Topic       string `json:"topic"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs a general-topic query and returns at most max results.
func (t *Tavily) Search(ctx context.Context, query string, max int) ([]WebResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:       query,
		Topic:       "general",
		SearchDepth: "basic",
		MaxResults:  max,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	body, err := do(ctx, t.opts.httpClient, "tavily", req)
	if err != nil {
		return nil, err
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	results := make([]WebResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if len(results) == max {
			break
		}
		results = append(results, WebResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Snippet: strings.TrimSpace(r.Content),
		})
	}
	return results, nil
}

var _ WebSearcher = (*Tavily)(nil)
