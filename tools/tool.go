// Package tools provides the source adapters the agent can consult.
//
// Information Hiding:
// - Search backends hidden behind the Tool interface
// - Failures converted to observations inside each adapter
// - Output formatting internalized per tool
package tools

import (
	"context"
	"fmt"
)

// Kind identifies which knowledge source a tool serves.
type Kind int

const (
	KindDocuments Kind = iota + 1
	KindWebSearch
	KindPaperSearch
)

// String returns the kind name used in logs and listings.
func (k Kind) String() string {
	switch k {
	case KindDocuments:
		return "documents"
	case KindWebSearch:
		return "web_search"
	case KindPaperSearch:
		return "paper_search"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindDocuments && k <= KindPaperSearch
}

// Metadata describes a tool to the reasoning engine.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
}

// String returns a string representation of the tool metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Tool is a named capability taking one query string.
//
// Invoke is total: it never panics on purpose and never returns an error.
// Failures are reported as a short natural-language observation.
type Tool interface {
	Metadata() Metadata
	Invoke(ctx context.Context, query string) string
}
