// Application wiring for CLI commands.
//
// Information Hiding:
// - Settings to component construction hidden
// - Credential checks hidden
// - Cache lifecycle hidden

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/richinex/docqa/agent"
	"github.com/richinex/docqa/config"
	"github.com/richinex/docqa/ingest"
	"github.com/richinex/docqa/llm"
	"github.com/richinex/docqa/logging"
	"github.com/richinex/docqa/retrieval"
	"github.com/richinex/docqa/search"
	"github.com/richinex/docqa/session"
	"github.com/richinex/docqa/storage"
	"github.com/richinex/docqa/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider   string
	MaxIter    int
	ConfigPath string
	Verbose    bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{}
}

// App is the assembled application for one CLI invocation.
type App struct {
	Settings config.Settings
	Logger   zerolog.Logger
	Warnings []string

	base     *tools.Set
	pipeline *ingest.Pipeline
	builder  *retrieval.Builder
	cache    storage.EmbeddingCache
}

// loadSettings reads configuration and applies command-line overrides.
func loadSettings(opts Options) (config.Settings, error) {
	settings, err := config.Load(opts.Provider, opts.ConfigPath)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.MaxIter > 0 {
		settings.Agent.MaxIterations = opts.MaxIter
	}
	if opts.Verbose {
		settings.Log.Level = "debug"
	}
	return settings, nil
}

// newApp builds everything that does not need the reasoning engine.
func newApp(settings config.Settings, logOut io.Writer) (*App, error) {
	logger := logging.New(logging.Options{
		Level:  settings.Log.Level,
		Pretty: settings.Log.Pretty,
		Writer: logOut,
	})

	app := &App{Settings: settings, Logger: logger}

	var err error
	app.base, app.Warnings, err = baseTools(settings)
	if err != nil {
		return nil, err
	}
	for _, w := range app.Warnings {
		logger.Warn().Msg(w)
	}

	app.pipeline = ingest.NewPipeline(
		ingest.WithSplitter(ingest.NewRecursiveSplitter(settings.Ingest.ChunkSize, settings.Ingest.ChunkOverlap)),
		ingest.WithConcurrency(settings.Ingest.Concurrency),
		ingest.WithLogger(logger),
	)

	embedder, err := newEmbedder(settings)
	if err != nil {
		return nil, err
	}

	app.cache, err = newCache(settings)
	if err != nil {
		return nil, err
	}

	app.builder = retrieval.NewBuilder(embedder,
		retrieval.WithCache(app.cache),
		retrieval.WithBatchSize(settings.Retrieval.BatchSize),
		retrieval.WithConcurrency(settings.Ingest.Concurrency),
		retrieval.WithLogger(logger),
	)
	return app, nil
}

// Close releases the embedding cache.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// AgentConfig converts settings into the loop configuration.
func (a *App) AgentConfig() (agent.Config, error) {
	policy, err := agent.ParseStoppingPolicy(a.Settings.Agent.EarlyStopping)
	if err != nil {
		return agent.Config{}, err
	}
	cfg := agent.DefaultConfig()
	cfg.MaxIterations = a.Settings.Agent.MaxIterations
	cfg.LLMTimeout = a.Settings.Agent.LLMTimeout
	cfg.ToolTimeout = a.Settings.Agent.ToolTimeout
	cfg.EarlyStopping = policy
	cfg.JSONMode = a.Settings.Agent.JSONMode
	return cfg, nil
}

// NewSession creates a conversation backed by provider.
func (a *App) NewSession(provider llm.Provider, agentOpts ...agent.Option) (*session.Session, error) {
	cfg, err := a.AgentConfig()
	if err != nil {
		return nil, err
	}
	agentOpts = append([]agent.Option{agent.WithLogger(a.Logger)}, agentOpts...)
	return session.New(provider, cfg, a.base,
		session.WithPipeline(a.pipeline),
		session.WithBuilder(a.builder),
		session.WithTopK(a.Settings.Retrieval.TopK),
		session.WithLogger(a.Logger),
		session.WithAgentOptions(agentOpts...),
	)
}

// createProvider builds the reasoning engine. A missing credential is a
// configuration error reported before any turn runs.
func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := settings.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

// baseTools builds the tools that do not depend on uploads. A missing web
// search credential drops the web tool with a warning; paper search needs none.
func baseTools(settings config.Settings) (*tools.Set, []string, error) {
	var warnings []string
	arxiv := search.NewArxiv(
		search.WithEndpoint(settings.Search.ArxivURL),
		search.WithTimeout(settings.Search.Timeout),
	)
	list := []tools.Tool{
		tools.NewPaperSearchTool(arxiv, settings.Search.PaperResults, settings.Search.AbstractChars),
	}

	key, err := settings.WebSearchKey()
	switch {
	case errors.Is(err, config.ErrMissingCredential):
		warnings = append(warnings, fmt.Sprintf("web search disabled: %v", err))
	case err != nil:
		return nil, nil, err
	default:
		web, err := search.NewWebSearcher(settings.Search.WebProvider, key, search.WithTimeout(settings.Search.Timeout))
		if err != nil {
			return nil, nil, err
		}
		list = append(list, tools.NewWebSearchTool(web, settings.Search.WebResults))
	}

	set, err := tools.NewSet(list...)
	if err != nil {
		return nil, nil, err
	}
	return set, warnings, nil
}

func newEmbedder(settings config.Settings) (retrieval.Embedder, error) {
	switch settings.Retrieval.Embedder {
	case "openai":
		key, err := settings.APIKeyFor("openai")
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		return retrieval.NewOpenAIEmbedder(key, settings.Retrieval.EmbeddingModel, ""), nil
	case "hash", "":
		return retrieval.NewHashEmbedder(settings.Retrieval.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %q", settings.Retrieval.Embedder)
	}
}

func newCache(settings config.Settings) (storage.EmbeddingCache, error) {
	if settings.Retrieval.CachePath == "" {
		return storage.NewInMemoryCache(), nil
	}
	cache, err := storage.OpenSqliteCache(settings.Retrieval.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	return cache, nil
}
