// Package config provides application settings.
//
// Settings are created via Load() which handles:
// - Defaults for every tunable policy constant
// - An optional config file (YAML, TOML or JSON)
// - Environment variables, which take precedence over the file
// - Provider-specific configuration lookup

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when a required API key is not configured.
var ErrMissingCredential = errors.New("missing credential")

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Search    SearchConfig    `mapstructure:"search"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Log       LogConfig       `mapstructure:"log"`

	// APIKeys maps a provider name to its credential.
	APIKeys map[string]string `mapstructure:"api_keys"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	MaxTokens   uint32  `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// AgentConfig holds agent loop configuration.
type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	LLMTimeout    time.Duration `mapstructure:"llm_timeout"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
	EarlyStopping string        `mapstructure:"early_stopping"` // "force" or "generate"
	JSONMode      bool          `mapstructure:"json_mode"`
}

// SearchConfig holds external search configuration.
type SearchConfig struct {
	WebProvider   string        `mapstructure:"web_provider"` // "tavily" or "brave"
	WebResults    int           `mapstructure:"web_results"`
	PaperResults  int           `mapstructure:"paper_results"`
	AbstractChars int           `mapstructure:"abstract_chars"`
	ArxivURL      string        `mapstructure:"arxiv_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TavilyAPIKey  string        `mapstructure:"tavily_api_key"`
	BraveAPIKey   string        `mapstructure:"brave_api_key"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	Concurrency  int `mapstructure:"concurrency"`
}

// RetrievalConfig holds embedding and index configuration.
type RetrievalConfig struct {
	Embedder       string `mapstructure:"embedder"` // "hash" or "openai"
	EmbeddingModel string `mapstructure:"embedding_model"`
	Dimensions     int    `mapstructure:"dimensions"`
	TopK           int    `mapstructure:"top_k"`
	BatchSize      int    `mapstructure:"batch_size"`
	CachePath      string `mapstructure:"cache_path"` // empty keeps the cache in memory
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o-mini", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
	"groq":      {"GROQ_MODEL", "llama-3.1-8b-instant", "GROQ_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
	"llama":  "groq",
}

// Web search providers and the variable holding their key.
var webSearchKeys = map[string]string{
	"tavily": "TAVILY_API_KEY",
	"brave":  "BRAVE_SEARCH_API_KEY",
}

// DefaultProvider is used when neither a flag nor LLM_PROVIDER names one.
const DefaultProvider = "groq"

// setting binds a config key to its default and environment variable.
type setting struct {
	key    string
	env    string
	defval any
}

var settingsTable = []setting{
	{"llm.provider", "LLM_PROVIDER", DefaultProvider},
	{"llm.model", "LLM_MODEL", ""},
	{"llm.max_tokens", "LLM_MAX_TOKENS", 2048},
	{"llm.temperature", "LLM_TEMPERATURE", 0.2},

	{"agent.max_iterations", "AGENT_MAX_ITERATIONS", 5},
	{"agent.llm_timeout", "AGENT_LLM_TIMEOUT", "60s"},
	{"agent.tool_timeout", "AGENT_TOOL_TIMEOUT", "30s"},
	{"agent.early_stopping", "AGENT_EARLY_STOPPING", "force"},
	{"agent.json_mode", "AGENT_JSON_MODE", false},

	{"search.web_provider", "WEB_SEARCH_PROVIDER", "tavily"},
	{"search.web_results", "WEB_SEARCH_RESULTS", 5},
	{"search.paper_results", "ARXIV_MAX_RESULTS", 3},
	{"search.abstract_chars", "ARXIV_ABSTRACT_CHARS", 400},
	{"search.arxiv_url", "ARXIV_API_URL", "http://export.arxiv.org/api/query"},
	{"search.timeout", "SEARCH_TIMEOUT", "20s"},
	{"search.tavily_api_key", "TAVILY_API_KEY", ""},
	{"search.brave_api_key", "BRAVE_SEARCH_API_KEY", ""},

	{"ingest.chunk_size", "INGEST_CHUNK_SIZE", 1000},
	{"ingest.chunk_overlap", "INGEST_CHUNK_OVERLAP", 200},
	{"ingest.concurrency", "INGEST_CONCURRENCY", 4},

	{"retrieval.embedder", "RETRIEVAL_EMBEDDER", "hash"},
	{"retrieval.embedding_model", "RETRIEVAL_EMBEDDING_MODEL", "text-embedding-3-small"},
	{"retrieval.dimensions", "RETRIEVAL_DIMENSIONS", 384},
	{"retrieval.top_k", "RETRIEVAL_TOP_K", 4},
	{"retrieval.batch_size", "RETRIEVAL_BATCH_SIZE", 64},
	{"retrieval.cache_path", "RETRIEVAL_CACHE_PATH", ""},

	{"log.level", "LOG_LEVEL", "warn"},
	{"log.pretty", "LOG_PRETTY", true},

	{"api_keys.openai", "OPENAI_API_KEY", ""},
	{"api_keys.anthropic", "ANTHROPIC_API_KEY", ""},
	{"api_keys.deepseek", "DEEPSEEK_API_KEY", ""},
	{"api_keys.gemini", "GEMINI_API_KEY", ""},
	{"api_keys.groq", "GROQ_API_KEY", ""},
}

// Load creates settings for the specified provider.
// Precedence, lowest first: defaults, the config file at path (optional),
// environment variables, then a non-empty provider argument.
// Returns an error if the provider is unknown, the file cannot be read,
// or any value is invalid.
func Load(provider, path string) (Settings, error) {
	v := viper.New()
	for _, s := range settingsTable {
		v.SetDefault(s.key, s.defval)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return Settings{}, fmt.Errorf("bind %s: %w", s.env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}

	if provider != "" {
		settings.LLM.Provider = provider
	}
	settings.LLM.Provider = normalizeProvider(settings.LLM.Provider)
	settings.Search.WebProvider = strings.ToLower(settings.Search.WebProvider)
	settings.Agent.EarlyStopping = strings.ToLower(settings.Agent.EarlyStopping)
	settings.Retrieval.Embedder = strings.ToLower(settings.Retrieval.Embedder)

	if settings.LLM.Model == "" {
		model, err := ModelFor(settings.LLM.Provider)
		if err != nil {
			return Settings{}, err
		}
		settings.LLM.Model = model
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks value ranges and enumerations.
func (s Settings) Validate() error {
	if _, err := getProviderInfo(s.LLM.Provider); err != nil {
		return err
	}

	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(s.LLM.Temperature >= 0 && s.LLM.Temperature <= 2, "llm.temperature must be within [0, 2], got %v", s.LLM.Temperature)
	check(s.LLM.MaxTokens > 0, "llm.max_tokens must be positive")

	check(s.Agent.MaxIterations >= 1, "agent.max_iterations must be at least 1, got %d", s.Agent.MaxIterations)
	check(s.Agent.LLMTimeout > 0, "agent.llm_timeout must be positive")
	check(s.Agent.ToolTimeout > 0, "agent.tool_timeout must be positive")
	check(s.Agent.EarlyStopping == "force" || s.Agent.EarlyStopping == "generate",
		"agent.early_stopping must be force or generate, got %q", s.Agent.EarlyStopping)

	_, knownWeb := webSearchKeys[s.Search.WebProvider]
	check(knownWeb, "search.web_provider must be tavily or brave, got %q", s.Search.WebProvider)
	check(s.Search.WebResults >= 1, "search.web_results must be at least 1")
	check(s.Search.PaperResults >= 1, "search.paper_results must be at least 1")
	check(s.Search.AbstractChars >= 1, "search.abstract_chars must be at least 1")
	check(s.Search.Timeout > 0, "search.timeout must be positive")

	check(s.Ingest.ChunkSize > 0, "ingest.chunk_size must be positive")
	check(s.Ingest.ChunkOverlap >= 0 && s.Ingest.ChunkOverlap < s.Ingest.ChunkSize,
		"ingest.chunk_overlap must be within [0, chunk_size), got %d", s.Ingest.ChunkOverlap)
	check(s.Ingest.Concurrency >= 1, "ingest.concurrency must be at least 1")

	check(s.Retrieval.Embedder == "hash" || s.Retrieval.Embedder == "openai",
		"retrieval.embedder must be hash or openai, got %q", s.Retrieval.Embedder)
	check(s.Retrieval.TopK >= 1, "retrieval.top_k must be at least 1")
	check(s.Retrieval.Dimensions >= 1, "retrieval.dimensions must be at least 1")
	check(s.Retrieval.BatchSize >= 1, "retrieval.batch_size must be at least 1")

	return errors.Join(errs...)
}

// WebSearchKey returns the API key for the configured web search provider.
func (s Settings) WebSearchKey() (string, error) {
	var key string
	switch s.Search.WebProvider {
	case "tavily":
		key = s.Search.TavilyAPIKey
	case "brave":
		key = s.Search.BraveAPIKey
	default:
		return "", fmt.Errorf("unknown web search provider: %q", s.Search.WebProvider)
	}
	if key == "" {
		return "", fmt.Errorf("%w: %s environment variable not set", ErrMissingCredential, webSearchKeys[s.Search.WebProvider])
	}
	return key, nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider, from the environment or
// the api_keys section of the config file.
func (s Settings) APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := s.APIKeys[provider]
	if key == "" {
		return "", fmt.Errorf("%w: %s environment variable not set", ErrMissingCredential, info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the sorted list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
