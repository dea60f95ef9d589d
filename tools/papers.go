package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/docqa/search"
)

// PaperSearchToolName is the name the reasoning engine uses for arXiv search.
const PaperSearchToolName = "ArxivSearch"

// Defaults for paper search output.
const (
	DefaultPaperResults  = 3
	DefaultAbstractChars = 400
)

const (
	paperDescription = "Use this tool to search for academic papers on Arxiv.org. " +
		"The input should be a specific search query, like a paper title or topic."
	paperUnavailable = "Sorry, I couldn't perform the Arxiv search at the moment. There might be an issue with the service."
)

// PaperSearchTool looks up academic papers on arXiv.
type PaperSearchTool struct {
	searcher      search.PaperSearcher
	maxResults    int
	abstractChars int
}

// NewPaperSearchTool wraps searcher. Non-positive limits select the defaults.
func NewPaperSearchTool(searcher search.PaperSearcher, maxResults, abstractChars int) *PaperSearchTool {
	if maxResults <= 0 {
		maxResults = DefaultPaperResults
	}
	if abstractChars <= 0 {
		abstractChars = DefaultAbstractChars
	}
	return &PaperSearchTool{searcher: searcher, maxResults: maxResults, abstractChars: abstractChars}
}

// Metadata implements Tool.
func (t *PaperSearchTool) Metadata() Metadata {
	return Metadata{Name: PaperSearchToolName, Description: paperDescription, Kind: KindPaperSearch}
}

// Invoke implements Tool.
func (t *PaperSearchTool) Invoke(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Please provide a search query."
	}

	papers, err := t.searcher.Search(ctx, query, t.maxResults)
	if err != nil {
		return paperUnavailable
	}
	if len(papers) == 0 {
		return fmt.Sprintf("No papers found on Arxiv for the query: '%s'.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are the top %d papers I found on Arxiv for '%s':\n\n", len(papers), query)
	for i, p := range papers {
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, p.Title)
		fmt.Fprintf(&b, "   - **Authors:** %s\n", strings.Join(p.Authors, ", "))
		if !p.Published.IsZero() {
			fmt.Fprintf(&b, "   - **Published:** %s\n", p.Published.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "   - **Abstract:** %s...\n", truncateRunes(p.Summary, t.abstractChars))
		fmt.Fprintf(&b, "   - **PDF Link:** %s\n\n", p.PDFURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ Tool = (*PaperSearchTool)(nil)
