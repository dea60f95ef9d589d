package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))

		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "latest Go release", req.Query)
		assert.Equal(t, "general", req.Topic)
		assert.Equal(t, 2, req.MaxResults)

		_, _ = w.Write([]byte(`{"results":[
			{"title":"Go 1.24 is released","url":"https://go.dev/blog/go1.24","content":" Release notes ","score":0.9},
			{"title":"Second","url":"https://example.com/2","content":"two"},
			{"title":"Third","url":"https://example.com/3","content":"three"}
		]}`))
	}))
	defer srv.Close()

	client := NewTavily("tvly-key", WithEndpoint(srv.URL))
	results, err := client.Search(context.Background(), "  latest Go release ", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Go 1.24 is released", results[0].Title)
	assert.Equal(t, "https://go.dev/blog/go1.24", results[0].URL)
	assert.Equal(t, "Release notes", results[0].Snippet)
}

func TestTavilyStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewTavily("k", WithEndpoint(srv.URL)).Search(context.Background(), "q", 5)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "golang generics", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"<strong>Generics</strong> in Go","url":"https://go.dev/doc/tutorial/generics","description":"A <strong>tutorial</strong>"}
		]}}`))
	}))
	defer srv.Close()

	results, err := NewBrave("brave-key", WithEndpoint(srv.URL)).Search(context.Background(), "golang generics", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Generics in Go", results[0].Title)
	assert.Equal(t, "A tutorial", results[0].Snippet)
}

func TestEmptyQuery(t *testing.T) {
	_, err := NewBrave("k").Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = NewArxiv().Search(context.Background(), "", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNewWebSearcher(t *testing.T) {
	s, err := NewWebSearcher("Tavily", "k")
	require.NoError(t, err)
	assert.IsType(t, &Tavily{}, s)

	s, err = NewWebSearcher("brave", "k")
	require.NoError(t, err)
	assert.IsType(t, &Brave{}, s)

	_, err = NewWebSearcher("bing", "k")
	assert.Error(t, err)
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on complex
  recurrent or convolutional neural networks.</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <published>2018-10-11T00:50:01Z</published>
    <title>BERT</title>
    <summary>Pre-training of deep bidirectional transformers.</summary>
    <author><name>Jacob Devlin</name></author>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "all:transformer", q.Get("search_query"))
		assert.Equal(t, "3", q.Get("max_results"))
		assert.Equal(t, "relevance", q.Get("sortBy"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(arxivFeed))
	}))
	defer srv.Close()

	papers, err := NewArxiv(WithEndpoint(srv.URL)).Search(context.Background(), "transformer", 3)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	first := papers[0]
	assert.Equal(t, "Attention Is All You Need", first.Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, first.Authors)
	assert.Equal(t, "2017-06-12", first.Published.Format("2006-01-02"))
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", first.PDFURL)
	assert.Equal(t, "The dominant sequence transduction models are based on complex recurrent or convolutional neural networks.", first.Summary)

	// No pdf link in the feed: derived from the abstract URL.
	assert.Equal(t, "http://arxiv.org/pdf/1810.04805v2", papers[1].PDFURL)
}

func TestArxivNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><title>empty</title></feed>`))
	}))
	defer srv.Close()

	papers, err := NewArxiv(WithEndpoint(srv.URL)).Search(context.Background(), "zzqxv nonsense", 3)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestArxivMalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<feed><entry>`))
	}))
	defer srv.Close()

	_, err := NewArxiv(WithEndpoint(srv.URL)).Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestRequestHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewArxiv(WithEndpoint(srv.URL)).Search(ctx, "q", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
