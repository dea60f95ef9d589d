// Tool Executor with timeout handling.
//
// Information Hiding:
// - Per-call deadline enforcement hidden
// - Panic recovery hidden
// - Invocation metrics and logging hidden

package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/docqa/model"
)

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 30 * time.Second

const emptyResult = "(empty result)"

// Executor runs a tool once under a per-call timeout. Tools are never retried.
type Executor struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewExecutor creates an executor with the given timeout. A non-positive
// timeout selects DefaultToolTimeout.
func NewExecutor(timeout time.Duration, logger zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Executor{timeout: timeout, logger: logger}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultToolTimeout, zerolog.Nop())
}

// Timeout returns the per-call timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

type invokeResult struct {
	output string
	panic  any
}

// Invoke runs tool with query and always returns an observation. The tool
// runs in its own goroutine so that a tool ignoring its context cannot hold
// the caller past the deadline.
func (e *Executor) Invoke(ctx context.Context, tool Tool, query string) (string, model.ToolCall) {
	name := tool.Metadata().Name
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{panic: r}
			}
		}()
		done <- invokeResult{output: tool.Invoke(callCtx, query)}
	}()

	var output string
	timedOut := false
	select {
	case res := <-done:
		switch {
		case res.panic != nil:
			output = fmt.Sprintf("%s failed unexpectedly: %v", name, res.panic)
			e.logger.Error().Str("tool", name).Interface("panic", res.panic).Msg("tool panicked")
		case ctx.Err() != nil:
			output = fmt.Sprintf("%s was cancelled: %v", name, ctx.Err())
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			output = fmt.Sprintf("%s timed out after %s", name, e.timeout)
			timedOut = true
		default:
			output = res.output
		}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			output = fmt.Sprintf("%s was cancelled: %v", name, ctx.Err())
		} else {
			output = fmt.Sprintf("%s timed out after %s", name, e.timeout)
			timedOut = true
		}
	}

	if output == "" {
		output = emptyResult
	}

	call := model.ToolCall{
		Name:       name,
		InputSize:  len(query),
		OutputSize: len(output),
		DurationMs: uint64(time.Since(start).Milliseconds()),
		TimedOut:   timedOut,
	}

	e.logger.Debug().
		Str("tool", name).
		Int("input_bytes", call.InputSize).
		Int("output_bytes", call.OutputSize).
		Uint64("duration_ms", call.DurationMs).
		Bool("timed_out", timedOut).
		Msg("tool invoked")

	return output, call
}
