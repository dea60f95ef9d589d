package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/richinex/docqa/ingest"
	"github.com/richinex/docqa/storage"
)

// Builder defaults.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Builder turns chunk sets into indexes. Building the same chunk set twice
// returns the same *Index without re-embedding; individual chunk vectors are
// reused across different sets through the embedding cache.
type Builder struct {
	embedder    Embedder
	cache       storage.EmbeddingCache
	batchSize   int
	concurrency int
	logger      zerolog.Logger

	mu       sync.Mutex
	lastHash string
	last     *Index
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCache sets the embedding cache. The default is an in-memory cache.
func WithCache(c storage.EmbeddingCache) BuilderOption {
	return func(b *Builder) { b.cache = c }
}

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithConcurrency bounds concurrent embedding requests.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder around embedder.
func NewBuilder(embedder Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:    embedder,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cache == nil {
		b.cache = storage.NewInMemoryCache()
	}
	return b
}

// Build returns an index over chunks, or nil with no error when there are
// no chunks. Results are memoized by ChunkSetHash.
func (b *Builder) Build(ctx context.Context, chunks []ingest.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	hash := ChunkSetHash(chunks)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.last != nil && b.lastHash == hash {
		b.logger.Debug().Str("hash", hash[:12]).Msg("index reused")
		return b.last, nil
	}

	start := time.Now()
	vectors, cached, err := b.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	owned := make([]ingest.Chunk, len(chunks))
	copy(owned, chunks)
	ix, err := newIndex(b.embedder, owned, vectors, hash)
	if err != nil {
		return nil, err
	}

	b.lastHash, b.last = hash, ix
	b.logger.Info().
		Int("chunks", len(chunks)).
		Int("cached", cached).
		Str("model", b.embedder.ModelID()).
		Dur("duration", time.Since(start)).
		Msg("index built")
	return ix, nil
}

// Invalidate forgets the memoized index.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastHash, b.last = "", nil
}

// embedAll resolves every chunk vector from the cache or the embedder.
// It returns the vectors in chunk order and how many came from the cache.
func (b *Builder) embedAll(ctx context.Context, chunks []ingest.Chunk) ([][]float32, int, error) {
	model := b.embedder.ModelID()
	keys := make([]storage.Key, len(chunks))
	for i, c := range chunks {
		keys[i] = storage.KeyFor(model, c.Text)
	}

	found, err := b.cache.GetMany(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("read embedding cache: %w", err)
	}

	vectors := make([][]float32, len(chunks))
	var missing []int
	seen := make(map[storage.Key]bool)
	for i, k := range keys {
		if v, ok := found[k]; ok {
			vectors[i] = v
			continue
		}
		// Identical texts are embedded once.
		if !seen[k] {
			seen[k] = true
			missing = append(missing, i)
		}
	}
	cached := len(chunks) - len(missing)

	if len(missing) > 0 {
		fresh, err := b.embedMissing(ctx, chunks, missing)
		if err != nil {
			return nil, 0, err
		}

		entries := make(map[storage.Key][]float32, len(missing))
		for j, i := range missing {
			entries[keys[i]] = fresh[j]
		}
		if err := b.cache.PutMany(ctx, entries); err != nil {
			// The index is still usable; only the next build pays again.
			b.logger.Warn().Err(err).Msg("embedding cache write failed")
		}
		for i, k := range keys {
			if vectors[i] == nil {
				vectors[i] = entries[k]
			}
		}
	}
	return vectors, cached, nil
}

// embedMissing embeds the texts at positions idx in concurrent batches.
func (b *Builder) embedMissing(ctx context.Context, chunks []ingest.Chunk, idx []int) ([][]float32, error) {
	out := make([][]float32, len(idx))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(idx); start += b.batchSize {
		end := min(start+b.batchSize, len(idx))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, i := range idx[start:end] {
				texts = append(texts, chunks[i].Text)
			}
			vecs, err := b.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embed batch %d-%d: expected %d vectors, got %d", start, end, len(texts), len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ChunkSetHash identifies a chunk set by the sha256 of its ordered chunk
// IDs and texts. The same text under another source is a different set.
func ChunkSetHash(chunks []ingest.Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
		sum := sha256.Sum256([]byte(c.Text))
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
