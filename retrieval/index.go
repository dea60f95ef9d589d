package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/richinex/docqa/ingest"
)

// Hit is one search result.
type Hit struct {
	Chunk ingest.Chunk
	Score float64
}

// Index is an immutable in-memory vector index over document chunks.
// It is safe for concurrent searches.
type Index struct {
	embedder Embedder
	chunks   []ingest.Chunk
	vectors  [][]float32
	hash     string
}

func newIndex(embedder Embedder, chunks []ingest.Chunk, vectors [][]float32, hash string) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, errors.New("chunk and vector counts differ")
	}
	return &Index{embedder: embedder, chunks: chunks, vectors: vectors, hash: hash}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.chunks)
}

// Hash identifies the chunk set the index was built from.
func (ix *Index) Hash() string {
	return ix.hash
}

// Sources returns the distinct chunk sources in first-seen order.
func (ix *Index) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range ix.chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			out = append(out, c.Source)
		}
	}
	return out
}

// Search returns up to k chunks ordered by descending cosine similarity.
// Chunks with no similarity to the query are omitted. Ties keep index order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if ix.Len() == 0 || k <= 0 {
		return nil, nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.New("embedder returned no query vector")
	}
	q := vecs[0]

	hits := make([]Hit, 0, len(ix.chunks))
	for i, v := range ix.vectors {
		score := cosineSimilarity(q, v)
		if score <= 0 || math.IsNaN(score) {
			continue
		}
		hits = append(hits, Hit{Chunk: ix.chunks[i], Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	length := min(len(a), len(b))
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
