package search

import (
	"context"
	"fmt"
	"strings"
)

// WebResult is one hit from a web search.
type WebResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearcher queries a general web search service.
type WebSearcher interface {
	Search(ctx context.Context, query string, max int) ([]WebResult, error)
}

// NewWebSearcher returns the searcher for the named provider ("tavily" or "brave").
func NewWebSearcher(provider, apiKey string, opts ...Option) (WebSearcher, error) {
	switch strings.ToLower(provider) {
	case "tavily":
		return NewTavily(apiKey, opts...), nil
	case "brave":
		return NewBrave(apiKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown web search provider: %q", provider)
	}
}
