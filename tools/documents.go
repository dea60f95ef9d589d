package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/docqa/retrieval"
)

// DocumentToolName is the name the reasoning engine uses for the retriever.
const DocumentToolName = "document_retriever"

// DefaultTopK is the number of chunks returned per retrieval.
const DefaultTopK = 4

const (
	documentDescription = "Searches and returns relevant information from the uploaded PDF documents. " +
		"Use this for any questions specifically about the provided documents."
	noDocumentContent = "No relevant content found in the uploaded documents."
)

// ErrNoIndex is returned when a document tool is built without an index.
// A document tool exists only when there is something to retrieve from.
var ErrNoIndex = errors.New("document retriever requires a non-empty index")

// DocumentTool retrieves passages from the uploaded document index.
type DocumentTool struct {
	index *retrieval.Index
	topK  int
}

// NewDocumentTool wraps index. A non-positive topK selects DefaultTopK.
func NewDocumentTool(index *retrieval.Index, topK int) (*DocumentTool, error) {
	if index.Len() == 0 {
		return nil, ErrNoIndex
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &DocumentTool{index: index, topK: topK}, nil
}

// Metadata implements Tool.
func (t *DocumentTool) Metadata() Metadata {
	return Metadata{Name: DocumentToolName, Description: documentDescription, Kind: KindDocuments}
}

// Index returns the wrapped index.
func (t *DocumentTool) Index() *retrieval.Index {
	return t.index
}

// Invoke implements Tool.
func (t *DocumentTool) Invoke(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Please provide a search query."
	}

	hits, err := t.index.Search(ctx, query, t.topK)
	if err != nil {
		return fmt.Sprintf("Sorry, I couldn't search the uploaded documents: %v", err)
	}
	if len(hits) == 0 {
		return noDocumentContent
	}

	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		parts = append(parts, fmt.Sprintf("[%s]\n%s", hit.Chunk.Label(), hit.Chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}

var _ Tool = (*DocumentTool)(nil)
