// Package storage provides the embedding cache behind index builds.
//
// Information Hiding:
// - Key derivation from chunk text
// - Vector encoding for persistent backends
// - Backend choice (memory or SQLite) hidden behind EmbeddingCache

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Key identifies one cached embedding: the model that produced it and the
// hash of the embedded text. Vectors from different models never mix.
type Key struct {
	Model string
	Hash  string
}

// KeyFor derives the cache key for text embedded by model.
func KeyFor(model, text string) Key {
	return Key{Model: model, Hash: ContentHash(text)}
}

// ContentHash returns the hex sha256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// EmbeddingCache stores vectors by Key.
// Implementations are safe for concurrent use.
type EmbeddingCache interface {
	// GetMany returns the cached vectors for keys. Missing keys are absent from the map.
	GetMany(ctx context.Context, keys []Key) (map[Key][]float32, error)

	// PutMany stores vectors. Existing entries are overwritten.
	PutMany(ctx context.Context, entries map[Key][]float32) error

	// Len returns the number of cached vectors.
	Len(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
