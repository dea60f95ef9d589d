// Agent configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden

package agent

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for the agent loop.
const (
	DefaultMaxIterations = 5
	DefaultLLMTimeout    = 60 * time.Second
	DefaultToolTimeout   = 30 * time.Second
)

// StoppingPolicy decides how a turn ends when the loop cannot finish normally.
type StoppingPolicy string

const (
	// StopForce returns a fixed step-limit message plus the last observation.
	StopForce StoppingPolicy = "force"
	// StopGenerate asks the reasoning engine once more for an answer without tools.
	StopGenerate StoppingPolicy = "generate"
)

// ParseStoppingPolicy converts a configuration string to a StoppingPolicy.
func ParseStoppingPolicy(s string) (StoppingPolicy, error) {
	switch StoppingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case StopForce, "":
		return StopForce, nil
	case StopGenerate:
		return StopGenerate, nil
	default:
		return "", fmt.Errorf("unknown early stopping policy: %q", s)
	}
}

// Config holds agent configuration.
type Config struct {
	// MaxIterations bounds the non-terminal iterations of one turn.
	MaxIterations int

	// LLMTimeout bounds each reasoning engine call.
	LLMTimeout time.Duration

	// ToolTimeout bounds each tool invocation.
	ToolTimeout time.Duration

	// EarlyStopping selects the forced answer policy.
	EarlyStopping StoppingPolicy

	// JSONMode asks the reasoning engine for JSON decisions instead of ReAct markers.
	JSONMode bool

	// SystemPrompt is prepended to the tool framing.
	SystemPrompt string
}

// DefaultConfig returns the reference loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		LLMTimeout:    DefaultLLMTimeout,
		ToolTimeout:   DefaultToolTimeout,
		EarlyStopping: StopForce,
		SystemPrompt:  defaultSystemPrompt,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = def.LLMTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = def.ToolTimeout
	}
	if c.EarlyStopping == "" {
		c.EarlyStopping = def.EarlyStopping
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = def.SystemPrompt
	}
	return c
}
