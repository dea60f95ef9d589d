package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ArxivEndpoint is the public arXiv query API. It needs no credential.
const ArxivEndpoint = "http://export.arxiv.org/api/query"

// Paper is one arXiv entry.
type Paper struct {
	ID        string
	Title     string
	Authors   []string
	Summary   string
	Published time.Time
	PDFURL    string
}

// PaperSearcher queries a scholarly paper index.
type PaperSearcher interface {
	Search(ctx context.Context, query string, max int) ([]Paper, error)
}

// Arxiv searches arXiv through its Atom query API.
type Arxiv struct {
	opts clientOptions
}

// NewArxiv creates an arXiv client.
func NewArxiv(opts ...Option) *Arxiv {
	return &Arxiv{opts: buildOptions(ArxivEndpoint, opts)}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// Search returns at most max papers ordered by relevance.
func (a *Arxiv) Search(ctx context.Context, query string, max int) ([]Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(max))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.opts.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/atom+xml")

	body, err := do(ctx, a.opts.httpClient, "arxiv", req)
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if len(papers) == max {
			break
		}
		// The API reports errors as a single entry whose id is the error page.
		if strings.Contains(e.ID, "/api/errors") {
			return nil, fmt.Errorf("arxiv query rejected: %s", collapseSpace(e.Summary))
		}
		papers = append(papers, e.paper())
	}
	return papers, nil
}

func (e atomEntry) paper() Paper {
	p := Paper{
		ID:      strings.TrimSpace(e.ID),
		Title:   collapseSpace(e.Title),
		Summary: collapseSpace(e.Summary),
	}
	for _, author := range e.Authors {
		if name := collapseSpace(author.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.Published = t
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	if p.PDFURL == "" && strings.Contains(p.ID, "/abs/") {
		p.PDFURL = strings.Replace(p.ID, "/abs/", "/pdf/", 1)
	}
	return p
}

// collapseSpace joins the hard-wrapped lines arXiv puts in titles and abstracts.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ PaperSearcher = (*Arxiv)(nil)
