// Package retrieval embeds document chunks and answers similarity queries.
//
// Information Hiding:
// - Embedding backend (OpenAI or local feature hashing)
// - Vector normalization and cosine scoring
// - Index memoization and embedding cache use
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder converts texts to vectors, one per input in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// ModelID names the vector space; vectors with different IDs are not comparable.
	ModelID() string
}

// DefaultOpenAIModel is the OpenAI embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder embeds through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder. An empty model selects DefaultOpenAIModel;
// an empty baseURL keeps the OpenAI endpoint.
func NewOpenAIEmbedder(apiKey, model, baseURL string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}
}

// ModelID returns the embedding model name.
func (e *OpenAIEmbedder) ModelID() string {
	return e.model
}

// Embed sends texts in a single request.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || len(d.Embedding) == 0 {
			return nil, errors.New("malformed embedding response")
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// HashEmbedder is a deterministic local embedder using signed feature hashing
// over word unigrams and bigrams. It needs no credential and suits small
// collections where lexical overlap is a good enough relevance signal.
type HashEmbedder struct {
	dims int
}

// DefaultDimensions is the HashEmbedder vector size used when none is configured.
const DefaultDimensions = 384

// NewHashEmbedder creates a hashing embedder with the given dimensionality.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// ModelID encodes the dimensionality so caches never mix sizes.
func (h *HashEmbedder) ModelID() string {
	return fmt.Sprintf("hash-%d", h.dims)
}

// Embed returns L2-normalized hashed feature vectors.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(v, tok, 1)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}
	normalize(v)
	return v
}

func (h *HashEmbedder) add(v []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

// tokenize lowercases text and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

var (
	_ Embedder = (*OpenAIEmbedder)(nil)
	_ Embedder = (*HashEmbedder)(nil)
)
