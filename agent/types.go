// Package agent provides the ReAct agent implementation.
//
// Contains all types used by agents for decisions, actions, and responses.
package agent

import (
	"time"

	"github.com/richinex/docqa/llm"
	"github.com/richinex/docqa/model"
)

// Decision is one parsed reasoning engine output: either an action or a
// final answer, never both.
type Decision struct {
	Thought     string
	Action      *Action
	FinalAnswer *string
}

// IsFinal reports whether the decision ends the turn.
func (d Decision) IsFinal() bool {
	return d.FinalAnswer != nil
}

// Action names one tool and the query to send it.
type Action struct {
	Tool  string
	Input string
}

// Step is an alias for model.Step for agent reasoning steps.
type Step = model.Step

// ToolCall is an alias for model.ToolCall for tool call metadata.
type ToolCall = model.ToolCall

// StopReason records how a turn ended.
type StopReason int

const (
	// StopAnswered means the reasoning engine produced a final answer.
	StopAnswered StopReason = iota
	// StopBudget means the iteration budget ran out.
	StopBudget
	// StopCancelled means the caller's context ended the turn.
	StopCancelled
)

// String returns a short label for logs.
func (r StopReason) String() string {
	switch r {
	case StopAnswered:
		return "answered"
	case StopBudget:
		return "budget"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Metadata contains metadata about agent execution.
type Metadata struct {
	ExecutionTimeMs uint64
	Iterations      int
	ToolCalls       []ToolCall
	TokenUsage      *llm.TokenUsage
	LLMCalls        int
	ParseErrors     int
}

// Response is the outcome of one turn. Output is never empty.
type Response struct {
	Output     string
	Steps      []Step
	Forced     bool
	StopReason StopReason
	Metadata   Metadata
}

// ToolNames returns the names of the tools invoked, in order.
func (r Response) ToolNames() []string {
	var names []string
	for _, s := range r.Steps {
		if s.Action != nil {
			names = append(names, *s.Action)
		}
	}
	return names
}

// run accumulates the state of one turn.
type run struct {
	start           time.Time
	steps           []Step
	toolCalls       []ToolCall
	usage           llm.TokenUsage
	llmCalls        int
	parseErrors     int
	iterations      int
	lastObservation string
}

func (r *run) response(output string, reason StopReason) Response {
	return Response{
		Output:     output,
		Steps:      r.steps,
		Forced:     reason != StopAnswered,
		StopReason: reason,
		Metadata: Metadata{
			ExecutionTimeMs: uint64(time.Since(r.start).Milliseconds()),
			Iterations:      r.iterations,
			ToolCalls:       r.toolCalls,
			TokenUsage:      &r.usage,
			LLMCalls:        r.llmCalls,
			ParseErrors:     r.parseErrors,
		},
	}
}
