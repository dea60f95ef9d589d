package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/docqa/search"
)

// WebSearchToolName is the name the reasoning engine uses for web search.
const WebSearchToolName = "web_search"

// DefaultWebResults is the number of web results requested per search.
const DefaultWebResults = 5

const webDescription = "A search engine optimized for comprehensive, accurate, and trusted results. " +
	"Useful for when you need to answer questions about current events. Input should be a search query."

// WebSearchTool answers general questions from a web search service.
type WebSearchTool struct {
	searcher   search.WebSearcher
	maxResults int
}

// NewWebSearchTool wraps searcher. A non-positive maxResults selects DefaultWebResults.
func NewWebSearchTool(searcher search.WebSearcher, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = DefaultWebResults
	}
	return &WebSearchTool{searcher: searcher, maxResults: maxResults}
}

// Metadata implements Tool.
func (t *WebSearchTool) Metadata() Metadata {
	return Metadata{Name: WebSearchToolName, Description: webDescription, Kind: KindWebSearch}
}

// Invoke implements Tool.
func (t *WebSearchTool) Invoke(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Please provide a search query."
	}

	results, err := t.searcher.Search(ctx, query, t.maxResults)
	if err != nil {
		return fmt.Sprintf("Sorry, I couldn't perform the web search at the moment: %v", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No web results found for the query: '%s'.", query)
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
		fmt.Fprintf(&b, "   %s\n", r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

var _ Tool = (*WebSearchTool)(nil)
