package session

import (
	"fmt"
	"strings"

	"github.com/richinex/docqa/ingest"
)

// IngestReport describes the outcome of LoadDocuments.
type IngestReport struct {
	Files           int
	Chunks          int
	Failures        []ingest.Failure
	Sources         []string
	IndexHash       string
	RetrieverActive bool
}

// Succeeded returns the number of files that produced text.
func (r IngestReport) Succeeded() int {
	return r.Files - len(r.Failures)
}

// String renders the report for the user.
func (r IngestReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d of %d file(s) into %d chunk(s).", r.Succeeded(), r.Files, r.Chunks)
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  failed: %s", f.Error())
	}
	if r.RetrieverActive {
		b.WriteString("\nDocument retriever is active.")
	} else {
		b.WriteString("\nNo documents are available; answers will use web and paper search.")
	}
	return b.String()
}
