// Package session holds one conversation: its ordered history and the tool
// set the next turn will use.
//
// Information Hiding:
// - History storage and copying hidden
// - Tool set swap and turn serialization hidden
// - Document ingestion and index rebuild coordination hidden
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/richinex/docqa/agent"
	"github.com/richinex/docqa/ingest"
	"github.com/richinex/docqa/llm"
	"github.com/richinex/docqa/model"
	"github.com/richinex/docqa/retrieval"
	"github.com/richinex/docqa/tools"
)

// FallbackAnswer replaces an empty loop output.
const FallbackAnswer = "Sorry, I encountered an error."

var (
	// ErrNoProvider is returned when a session is created without a reasoning engine.
	ErrNoProvider = errors.New("session requires a reasoning engine provider")
	// ErrEmptyQuestion is returned by Ask for blank input.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Session is a conversation with one user. Turns run one at a time; the
// tool set is replaced wholesale and never modified in place.
type Session struct {
	id        string
	provider  llm.Provider
	config    agent.Config
	agentOpts []agent.Option
	base      *tools.Set
	pipeline  *ingest.Pipeline
	builder   *retrieval.Builder
	topK      int
	executor  *tools.Executor
	logger    zerolog.Logger

	mu      sync.RWMutex
	history []model.Message
	tools   *tools.Set
	index   *retrieval.Index

	turn   sync.Mutex
	ingest sync.Mutex
}

// Option configures a Session.
type Option func(*Session)

// WithAgentOptions passes options to every agent the session builds.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(s *Session) { s.agentOpts = append(s.agentOpts, opts...) }
}

// WithPipeline sets the ingestion pipeline used by LoadDocuments.
func WithPipeline(p *ingest.Pipeline) Option {
	return func(s *Session) { s.pipeline = p }
}

// WithBuilder sets the index builder used by LoadDocuments.
func WithBuilder(b *retrieval.Builder) Option {
	return func(s *Session) { s.builder = b }
}

// WithTopK sets how many chunks the document retriever returns.
func WithTopK(k int) Option {
	return func(s *Session) { s.topK = k }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithID fixes the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New creates a session whose tools start as base. base holds the tools that
// do not depend on uploads; a nil base means no tools.
func New(provider llm.Provider, config agent.Config, base *tools.Set, opts ...Option) (*Session, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	if base == nil {
		empty, err := tools.NewSet()
		if err != nil {
			return nil, err
		}
		base = empty
	}
	if base.Has(tools.KindDocuments) {
		return nil, errors.New("base tool set must not contain a document retriever")
	}

	s := &Session{
		id:       uuid.NewString(),
		provider: provider,
		config:   config,
		base:     base,
		tools:    base,
		topK:     tools.DefaultTopK,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = ingest.NewPipeline(ingest.WithLogger(s.logger))
	}
	if s.builder == nil {
		s.builder = retrieval.NewBuilder(retrieval.NewHashEmbedder(retrieval.DefaultDimensions), retrieval.WithLogger(s.logger))
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	s.executor = tools.NewExecutor(config.ToolTimeout, s.logger)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Append adds a message to the end of the history.
func (s *Session) Append(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

// History returns a copy of the conversation so far.
func (s *Session) History() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the history. Tools and documents are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Tools returns the tool set the next turn will use.
func (s *Session) Tools() *tools.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tools
}

// ReplaceTools swaps the active tool set. A turn already running keeps the
// set it started with.
func (s *Session) ReplaceTools(set *tools.Set) {
	if set == nil {
		set = s.base
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = set
}

// Index returns the current document index, or nil.
func (s *Session) Index() *retrieval.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Ask runs one turn. Turns are serialized; history and tools are
// snapshotted when the turn starts, and the question and answer are
// appended in order when it ends.
func (s *Session) Ask(ctx context.Context, question string) (agent.Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return agent.Response{}, ErrEmptyQuestion
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	history := s.History()
	set := s.Tools()

	s.logger.Debug().Int("history", len(history)).Strs("tools", set.Names()).Msg("turn started")

	opts := append([]agent.Option{agent.WithExecutor(s.executor)}, s.agentOpts...)
	a := agent.New(s.config, s.provider, set, opts...)
	resp := a.Run(ctx, question, history)
	if strings.TrimSpace(resp.Output) == "" {
		resp.Output = FallbackAnswer
	}

	s.mu.Lock()
	s.history = append(s.history, model.UserMessage(question), model.AssistantMessage(resp.Output))
	s.mu.Unlock()

	s.logger.Info().
		Strs("tools_used", resp.ToolNames()).
		Str("stop", resp.StopReason.String()).
		Uint64("duration_ms", resp.Metadata.ExecutionTimeMs).
		Msg("turn complete")
	return resp, nil
}

// LoadDocuments replaces the session's documents with files. Files that
// cannot be read are reported and skipped. When no file yields text the
// session has no document retriever.
func (s *Session) LoadDocuments(ctx context.Context, files []ingest.File) (IngestReport, error) {
	s.ingest.Lock()
	defer s.ingest.Unlock()

	result := s.pipeline.Ingest(ctx, files)
	report := IngestReport{
		Files:    result.Files,
		Chunks:   len(result.Chunks),
		Failures: result.Failures,
	}

	index, err := s.builder.Build(ctx, result.Chunks)
	if err != nil {
		return report, fmt.Errorf("build document index: %w", err)
	}

	set := s.base
	if index.Len() > 0 {
		docs, err := tools.NewDocumentTool(index, s.topK)
		if err != nil {
			return report, err
		}
		if set, err = s.base.With(docs); err != nil {
			return report, err
		}
		report.RetrieverActive = true
		report.IndexHash = index.Hash()
		report.Sources = index.Sources()
	}

	s.mu.Lock()
	s.tools = set
	s.index = index
	s.mu.Unlock()

	s.logger.Info().
		Int("files", report.Files).
		Int("failed", len(report.Failures)).
		Int("chunks", report.Chunks).
		Bool("retriever", report.RetrieverActive).
		Msg("documents loaded")
	return report, nil
}

// ClearDocuments drops the document index and retriever.
func (s *Session) ClearDocuments() {
	s.ingest.Lock()
	defer s.ingest.Unlock()

	s.builder.Invalidate()
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
	s.ReplaceTools(nil)
	s.logger.Info().Msg("documents cleared")
}
