package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/docqa/ingest"
	"github.com/richinex/docqa/storage"
)

// countingEmbedder wraps HashEmbedder and records how many texts it embedded.
type countingEmbedder struct {
	*HashEmbedder
	mu    sync.Mutex
	texts int
	calls int
	fail  error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.texts += len(texts)
	c.calls++
	fail := c.fail
	c.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return c.HashEmbedder.Embed(ctx, texts)
}

func (c *countingEmbedder) embedded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.texts
}

func chunk(source string, page int, text string) ingest.Chunk {
	return ingest.Chunk{ID: fmt.Sprintf("%s#%d", source, page), Source: source, Page: page, Text: text}
}

var corpus = []ingest.Chunk{
	chunk("phoenix.pdf", 1, "Project Phoenix launches on March 5 after the final security review."),
	chunk("phoenix.pdf", 2, "The Phoenix budget was approved by the steering committee."),
	chunk("handbook.txt", 0, "Employees accrue vacation days monthly and may carry over five days."),
}

func TestBuildEmptyReturnsNil(t *testing.T) {
	b := NewBuilder(NewHashEmbedder(64))
	ix, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, ix)
	assert.Equal(t, 0, ix.Len())
}

func TestSearchRanksRelevantChunk(t *testing.T) {
	b := NewBuilder(NewHashEmbedder(512))
	ix, err := b.Build(context.Background(), corpus)
	require.NoError(t, err)
	require.Equal(t, 3, ix.Len())

	hits, err := ix.Search(context.Background(), "When does Project Phoenix launch?", 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Chunk.Text, "March 5")
	assert.LessOrEqual(t, len(hits), 2)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}

	assert.Equal(t, []string{"phoenix.pdf", "handbook.txt"}, ix.Sources())
}

func TestSearchNoOverlap(t *testing.T) {
	ix, err := NewBuilder(NewHashEmbedder(4096)).Build(context.Background(), corpus[:1])
	require.NoError(t, err)

	hits, err := ix.Search(context.Background(), "zzqx", 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildMemoizesByContent(t *testing.T) {
	emb := &countingEmbedder{HashEmbedder: NewHashEmbedder(64)}
	b := NewBuilder(emb)
	ctx := context.Background()

	first, err := b.Build(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, 3, emb.embedded())

	// Same texts in a fresh slice: same index, no embedding.
	again := append([]ingest.Chunk(nil), corpus...)
	second, err := b.Build(ctx, again)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 3, emb.embedded())

	b.Invalidate()
	third, err := b.Build(ctx, corpus)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	// Vectors come from the cache after invalidation.
	assert.Equal(t, 3, emb.embedded())
}

func TestBuildReusesCachedChunkVectors(t *testing.T) {
	emb := &countingEmbedder{HashEmbedder: NewHashEmbedder(64)}
	b := NewBuilder(emb)
	ctx := context.Background()

	_, err := b.Build(ctx, corpus[:2])
	require.NoError(t, err)
	require.Equal(t, 2, emb.embedded())

	ix, err := b.Build(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, 3, emb.embedded(), "only the new chunk should be embedded")
}

func TestBuildDeduplicatesIdenticalTexts(t *testing.T) {
	emb := &countingEmbedder{HashEmbedder: NewHashEmbedder(64)}
	dup := []ingest.Chunk{
		chunk("a.txt", 0, "same text"),
		chunk("b.txt", 0, "same text"),
	}
	ix, err := NewBuilder(emb).Build(context.Background(), dup)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 1, emb.embedded())
}

func TestBuildBatchesConcurrently(t *testing.T) {
	emb := &countingEmbedder{HashEmbedder: NewHashEmbedder(32)}
	var chunks []ingest.Chunk
	for i := 0; i < 25; i++ {
		chunks = append(chunks, chunk("doc.txt", 0, fmt.Sprintf("chunk number %d", i)))
	}

	ix, err := NewBuilder(emb, WithBatchSize(10), WithConcurrency(2)).Build(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 25, ix.Len())
	assert.Equal(t, 3, emb.calls)
}

func TestBuildPropagatesEmbedError(t *testing.T) {
	emb := &countingEmbedder{HashEmbedder: NewHashEmbedder(32), fail: errors.New("quota exceeded")}
	_, err := NewBuilder(emb).Build(context.Background(), corpus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestBuildWithSqliteCache(t *testing.T) {
	cache, err := storage.NewSqliteCacheInMemory()
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, err = NewBuilder(NewHashEmbedder(64), WithCache(cache)).Build(ctx, corpus)
	require.NoError(t, err)

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A second builder sharing the cache embeds nothing.
	emb := &countingEmbedder{HashEmbedder: NewHashEmbedder(64)}
	_, err = NewBuilder(emb, WithCache(cache)).Build(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, 0, emb.embedded())
}

func TestChunkSetHashOrderSensitive(t *testing.T) {
	reversed := []ingest.Chunk{corpus[2], corpus[1], corpus[0]}
	assert.NotEqual(t, ChunkSetHash(corpus), ChunkSetHash(reversed))
	assert.Equal(t, ChunkSetHash(corpus), ChunkSetHash(append([]ingest.Chunk(nil), corpus...)))
}

func TestChunkSetHashIncludesProvenance(t *testing.T) {
	renamed := append([]ingest.Chunk(nil), corpus...)
	renamed[0].ID = "renamed.txt#0.0"
	renamed[0].Source = "renamed.txt"
	assert.NotEqual(t, ChunkSetHash(corpus), ChunkSetHash(renamed))
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	a, err := e.Embed(context.Background(), []string{"Hello, World!", "hello world"})
	require.NoError(t, err)
	assert.Equal(t, a[0], a[1], "case and punctuation are ignored")
	assert.InDelta(t, 1.0, cosineSimilarity(a[0], a[1]), 1e-6)
	assert.Equal(t, "hash-128", e.ModelID())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(nil, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		// Reply out of order to check index mapping.
		data := []map[string]any{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("sk-test", "", srv.URL)
	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(2), vecs[2][0])
	assert.Equal(t, DefaultOpenAIModel, e.ModelID())
}
