// Package ingest turns uploaded files into retrievable text chunks.
//
// Information Hiding:
// - Format detection and text extraction per format
// - Recursive splitting into overlapping chunks
// - Concurrent per-file processing with isolated failures
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrUnsupported is returned for files no extractor can read.
var ErrUnsupported = errors.New("unsupported file format")

// ErrNoText is returned when a file yields no extractable text,
// for example a scanned PDF without a text layer.
var ErrNoText = errors.New("no extractable text")

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// Page is the text of one page. Number is 1-based for paged formats and 0
// for formats without pages.
type Page struct {
	Number int
	Text   string
}

// Chunk is a retrievable piece of a document with its provenance.
type Chunk struct {
	ID       string
	Text     string
	Source   string
	Page     int
	Index    int
	Checksum string
}

// Label renders the provenance as shown to the reasoning engine.
func (c Chunk) Label() string {
	if c.Page > 0 {
		return fmt.Sprintf("%s p.%d", c.Source, c.Page)
	}
	return c.Source
}

func newChunk(source string, page, index int, text string) Chunk {
	sum := sha256.Sum256([]byte(text))
	return Chunk{
		ID:       fmt.Sprintf("%s#%d.%d", source, page, index),
		Text:     text,
		Source:   source,
		Page:     page,
		Index:    index,
		Checksum: hex.EncodeToString(sum[:]),
	}
}

// Failure records why one file could not be ingested.
type Failure struct {
	Name string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Name, f.Err)
}

// Result is the outcome of ingesting a batch of files. Chunks keep the
// order of the input files.
type Result struct {
	Chunks   []Chunk
	Failures []Failure
	Files    int
}

// Succeeded returns the number of files that produced chunks.
func (r Result) Succeeded() int {
	return r.Files - len(r.Failures)
}
