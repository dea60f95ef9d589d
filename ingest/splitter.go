package ingest

import (
	"strings"
	"unicode/utf8"
)

// Default splitter settings.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text into chunks of at most ChunkSize characters,
// preferring the coarsest separator that keeps pieces under the limit, and
// carries up to ChunkOverlap characters of context between adjacent chunks.
// Lengths are counted in runes.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewRecursiveSplitter creates a splitter with the default separators.
// Non-positive sizes fall back to the defaults and the overlap is clamped
// below the chunk size.
func NewRecursiveSplitter(size, overlap int) RecursiveSplitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return RecursiveSplitter{ChunkSize: size, ChunkOverlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text in order. Empty input yields no chunks.
func (s RecursiveSplitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s RecursiveSplitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text; "" always matches.
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, separator)
	}

	var chunks, small []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if runeLen(p) < s.ChunkSize {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small, separator)...)
			small = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, p)
		} else {
			chunks = append(chunks, s.split(p, rest)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small, separator)...)
	}
	return chunks
}

// merge packs pieces into chunks, keeping a tail of up to ChunkOverlap
// characters from the previous chunk at the start of the next.
func (s RecursiveSplitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)

	var (
		chunks  []string
		current []string
		total   int
	)

	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		n := runeLen(p)
		if total+n+joinLen() > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				chunks = append(chunks, doc)
			}
			// Drop leading pieces until the tail fits the overlap and leaves room for p.
			for total > s.ChunkOverlap || (total > 0 && total+n+joinLen() > s.ChunkSize) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}

	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
