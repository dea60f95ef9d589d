package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteMaxVars stays under SQLite's default bound-parameter limit.
const sqliteMaxVars = 900

// SqliteCache implements EmbeddingCache in a SQLite database file so that
// re-ingesting the same documents skips the embedding calls.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteCache struct {
	db *sql.DB
}

// OpenSqliteCache opens or creates a cache database at the given path.
// Creates parent directories if they don't exist.
func OpenSqliteCache(path string) (*SqliteCache, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqliteCache(db)
}

// NewSqliteCacheInMemory creates an in-memory cache database (useful for testing).
func NewSqliteCacheInMemory() (*SqliteCache, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSqliteCache(db)
}

func newSqliteCache(db *sql.DB) (*SqliteCache, error) {
	c := &SqliteCache{db: db}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *SqliteCache) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS embeddings (
			model TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			dims INTEGER NOT NULL,
			vector BLOB NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (model, content_hash)
		);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *SqliteCache) Close() error {
	return c.db.Close()
}

// GetMany returns the cached vectors for keys.
func (c *SqliteCache) GetMany(ctx context.Context, keys []Key) (map[Key][]float32, error) {
	found := make(map[Key][]float32, len(keys))

	// Group by model so each query binds one model and a batch of hashes.
	byModel := make(map[string][]string)
	for _, k := range keys {
		byModel[k.Model] = append(byModel[k.Model], k.Hash)
	}

	for model, hashes := range byModel {
		for start := 0; start < len(hashes); start += sqliteMaxVars {
			end := min(start+sqliteMaxVars, len(hashes))
			if err := c.getBatch(ctx, model, hashes[start:end], found); err != nil {
				return nil, err
			}
		}
	}
	return found, nil
}

func (c *SqliteCache) getBatch(ctx context.Context, model string, hashes []string, found map[Key][]float32) error {
	args := make([]any, 0, len(hashes)+1)
	args = append(args, model)
	for _, h := range hashes {
		args = append(args, h)
	}

	query := "SELECT content_hash, dims, vector FROM embeddings WHERE model = ? AND content_hash IN (" +
		strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",") + ")"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		var dims int
		var blob []byte
		if err := rows.Scan(&hash, &dims, &blob); err != nil {
			return fmt.Errorf("failed to scan embedding: %w", err)
		}
		vec, err := decodeVector(blob, dims)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", hash, err)
		}
		found[Key{Model: model, Hash: hash}] = vec
	}
	return rows.Err()
}

// PutMany stores vectors in one transaction.
func (c *SqliteCache) PutMany(ctx context.Context, entries map[Key][]float32) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO embeddings (model, content_hash, dims, vector) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for k, v := range entries {
		if _, err := stmt.ExecContext(ctx, k.Model, k.Hash, len(v), encodeVector(v)); err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Len returns the number of cached vectors.
func (c *SqliteCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dims int) ([]float32, error) {
	if len(buf) != 4*dims {
		return nil, errors.New("corrupt vector blob")
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

var _ EmbeddingCache = (*SqliteCache)(nil)
