package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave searches the web through the Brave Search API.
type Brave struct {
	apiKey string
	opts   clientOptions
}

// NewBrave creates a Brave Search client.
func NewBrave(apiKey string, opts ...Option) *Brave {
	return &Brave{apiKey: apiKey, opts: buildOptions(braveEndpoint, opts)}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns at most max web results.
func (b *Brave) Search(ctx context.Context, query string, max int) ([]WebResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", b.apiKey)
	req.Header.Set("Accept", "application/json")

	body, err := do(ctx, b.opts.httpClient, "brave", req)
	if err != nil {
		return nil, err
	}

	var decoded braveResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	results := make([]WebResult, 0, len(decoded.Web.Results))
	for _, r := range decoded.Web.Results {
		if len(results) == max {
			break
		}
		results = append(results, WebResult{
			Title:   stripBold(r.Title),
			URL:     r.URL,
			Snippet: stripBold(r.Description),
		})
	}
	return results, nil
}

// stripBold removes the <strong> highlighting Brave puts around query terms.
func stripBold(s string) string {
	r := strings.NewReplacer("<strong>", "", "</strong>", "", "<b>", "", "</b>", "")
	return strings.TrimSpace(r.Replace(s))
}

var _ WebSearcher = (*Brave)(nil)
