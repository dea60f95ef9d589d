package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
)

// Pipeline extracts and splits files. A failing file never stops the others.
type Pipeline struct {
	extractors  []Extractor
	splitter    RecursiveSplitter
	concurrency int
	logger      zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSplitter sets the chunk splitter.
func WithSplitter(s RecursiveSplitter) Option {
	return func(p *Pipeline) { p.splitter = s }
}

// WithExtractors replaces the default extractors.
func WithExtractors(ex ...Extractor) Option {
	return func(p *Pipeline) { p.extractors = ex }
}

// WithConcurrency bounds how many files are processed at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline with PDF and text support and the default splitter.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		extractors:  DefaultExtractors(),
		splitter:    NewRecursiveSplitter(DefaultChunkSize, DefaultChunkOverlap),
		concurrency: 4,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type fileOutcome struct {
	chunks []Chunk
	err    error
}

// Ingest processes files concurrently. Chunks come back in input order;
// each file that fails contributes a Failure instead.
func (p *Pipeline) Ingest(ctx context.Context, files []File) Result {
	start := time.Now()

	mapper := iter.Mapper[File, fileOutcome]{MaxGoroutines: p.concurrency}
	outcomes := mapper.Map(files, func(f *File) fileOutcome {
		if err := ctx.Err(); err != nil {
			return fileOutcome{err: err}
		}
		chunks, err := p.ingestFile(*f)
		return fileOutcome{chunks: chunks, err: err}
	})

	result := Result{Files: len(files)}
	for i, o := range outcomes {
		if o.err != nil {
			p.logger.Warn().Str("file", files[i].Name).Err(o.err).Msg("ingest failed")
			result.Failures = append(result.Failures, Failure{Name: files[i].Name, Err: o.err})
			continue
		}
		result.Chunks = append(result.Chunks, o.chunks...)
	}

	p.logger.Info().
		Int("files", len(files)).
		Int("failed", len(result.Failures)).
		Int("chunks", len(result.Chunks)).
		Dur("duration", time.Since(start)).
		Msg("ingest complete")
	return result
}

func (p *Pipeline) ingestFile(f File) ([]Chunk, error) {
	ex := p.extractorFor(f)
	if ex == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(f.Name))
	}

	pages, err := ex.Extract(f.Data)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(f.Name)
	var chunks []Chunk
	for _, page := range pages {
		for _, text := range p.splitter.Split(page.Text) {
			chunks = append(chunks, newChunk(source, page.Number, len(chunks), text))
		}
	}
	if len(chunks) == 0 {
		return nil, ErrNoText
	}
	return chunks, nil
}

func (p *Pipeline) extractorFor(f File) Extractor {
	for _, ex := range p.extractors {
		if ex.Supports(f.Name, f.Data) {
			return ex
		}
	}
	return nil
}

// ReadFiles loads paths from disk. Unreadable paths are reported as failures.
func ReadFiles(paths []string) ([]File, []Failure) {
	var files []File
	var failures []Failure
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, Failure{Name: path, Err: err})
			continue
		}
		files = append(files, File{Name: path, Data: data})
	}
	return files, failures
}
