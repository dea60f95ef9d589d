// ReAct (Reason + Act) loop implementation.
//
// Information Hiding:
// - ReAct loop internals hidden
// - LLM communication hidden
// - Tool execution coordination hidden
// - Forced termination policies hidden

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/docqa/llm"
	"github.com/richinex/docqa/model"
	"github.com/richinex/docqa/tools"
)

// Agent answers one question at a time using the ReAct pattern.
// An Agent is bound to one tool set; build a new Agent when the set changes.
type Agent struct {
	config   Config
	provider llm.Provider
	tools    *tools.Set
	executor *tools.Executor
	logger   zerolog.Logger
	stream   io.Writer
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger used for step tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithStream echoes reasoning engine tokens to w as they arrive.
func WithStream(w io.Writer) Option {
	return func(a *Agent) { a.stream = w }
}

// WithExecutor shares an existing tool executor. Its timeout replaces
// Config.ToolTimeout.
func WithExecutor(e *tools.Executor) Option {
	return func(a *Agent) { a.executor = e }
}

// New creates an agent. A nil set behaves as an empty one.
func New(config Config, provider llm.Provider, set *tools.Set, opts ...Option) *Agent {
	a := &Agent{
		config:   config.withDefaults(),
		provider: provider,
		tools:    set,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.executor == nil {
		a.executor = tools.NewExecutor(a.config.ToolTimeout, a.logger)
	}
	a.config.ToolTimeout = a.executor.Timeout()
	return a
}

// Config returns the effective configuration.
func (a *Agent) Config() Config {
	return a.config
}

// Run answers question given the prior conversation. It always returns a
// response with a non-empty Output and performs at most MaxIterations tool
// invocations. Every non-terminal iteration consumes budget, including
// unparseable replies, unknown tool names and reasoning engine failures.
func (a *Agent) Run(ctx context.Context, question string, history []model.Message) Response {
	r := &run{start: time.Now()}
	var scratch []scratchEntry

	for iteration := 1; iteration <= a.config.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return a.cancelled(ctx, r)
		}
		r.iterations = iteration
		remaining := a.config.MaxIterations - iteration + 1

		text, err := a.think(ctx, a.messages(question, history, scratch, remaining), r)
		if err != nil {
			if ctx.Err() != nil {
				return a.cancelled(ctx, r)
			}
			observation := "reasoning engine unavailable: " + err.Error()
			a.logger.Warn().Int("iteration", iteration).Err(err).Msg("reasoning engine call failed")
			r.steps = append(r.steps, Step{Iteration: iteration, Observation: &observation})
			scratch = append(scratch, scratchEntry{observation: observation})
			continue
		}

		decision, err := ParseDecision(text)
		if err != nil {
			r.parseErrors++
			observation := a.parseCorrection(err)
			a.logger.Warn().Int("iteration", iteration).Err(err).Msg("unparseable decision")
			r.steps = append(r.steps, Step{Iteration: iteration, Thought: strings.TrimSpace(text), Observation: &observation})
			scratch = append(scratch, scratchEntry{assistant: text, observation: observation})
			continue
		}

		if decision.IsFinal() {
			answer := *decision.FinalAnswer
			a.logger.Debug().Int("iteration", iteration).Msg("final answer")
			r.steps = append(r.steps, Step{Iteration: iteration, Thought: decision.Thought, FinalAnswer: &answer})
			return r.response(answer, StopAnswered)
		}

		action := decision.Action
		tool, ok := a.tools.Lookup(action.Tool)
		if !ok {
			observation := a.unknownToolCorrection(action.Tool)
			a.logger.Warn().Int("iteration", iteration).Str("tool", action.Tool).Msg("unknown tool")
			r.steps = append(r.steps, Step{
				Iteration:   iteration,
				Thought:     decision.Thought,
				ActionInput: action.Input,
				Observation: &observation,
			})
			scratch = append(scratch, scratchEntry{assistant: a.render(decision), observation: observation})
			continue
		}

		observation, call := a.executor.Invoke(ctx, tool, action.Input)
		r.toolCalls = append(r.toolCalls, call)
		if !call.TimedOut && ctx.Err() == nil {
			r.lastObservation = observation
		}

		name := call.Name
		a.logger.Debug().
			Int("iteration", iteration).
			Str("tool", name).
			Int("observation_bytes", len(observation)).
			Msg("tool step")
		r.steps = append(r.steps, Step{
			Iteration:   iteration,
			Thought:     decision.Thought,
			Action:      &name,
			ActionInput: action.Input,
			Observation: &observation,
		})
		scratch = append(scratch, scratchEntry{assistant: a.render(decision), observation: observation})
	}

	return a.exhausted(ctx, question, history, scratch, r)
}

// exhausted ends a turn whose budget ran out, according to EarlyStopping.
func (a *Agent) exhausted(ctx context.Context, question string, history []model.Message, scratch []scratchEntry, r *run) Response {
	a.logger.Info().Int("iterations", r.iterations).Str("policy", string(a.config.EarlyStopping)).Msg("step limit reached")

	if a.config.EarlyStopping == StopGenerate && ctx.Err() == nil {
		msgs := append(a.messages(question, history, scratch, 0), llm.UserMessage(a.finalRequest()))
		text, err := a.think(ctx, msgs, r)
		if err == nil {
			decision, perr := ParseDecision(text)
			if perr == nil && decision.IsFinal() {
				answer := *decision.FinalAnswer
				r.steps = append(r.steps, Step{Iteration: r.iterations + 1, Thought: decision.Thought, FinalAnswer: &answer})
				return r.response(answer, StopBudget)
			}
			if perr != nil {
				r.parseErrors++
			}
			a.logger.Warn().Err(perr).Msg("generated final answer unusable, forcing")
		} else {
			a.logger.Warn().Err(err).Msg("final answer generation failed, forcing")
		}
		if ctx.Err() != nil {
			return a.cancelled(ctx, r)
		}
	}

	output := stepLimitMessage
	if r.lastObservation != "" {
		output += "\n\nHere is the most relevant information I found:\n" + r.lastObservation
	}
	r.steps = append(r.steps, Step{Iteration: r.iterations + 1, FinalAnswer: &output})
	return r.response(output, StopBudget)
}

// cancelled ends a turn whose context was cancelled.
func (a *Agent) cancelled(ctx context.Context, r *run) Response {
	output := fmt.Sprintf("The request was cancelled before I could finish (%v).", context.Cause(ctx))
	if r.lastObservation != "" {
		output += "\n\nHere is the most relevant information I found:\n" + r.lastObservation
	}
	a.logger.Info().Int("iterations", r.iterations).Msg("turn cancelled")
	r.steps = append(r.steps, Step{Iteration: r.iterations + 1, FinalAnswer: &output})
	return r.response(output, StopCancelled)
}

// think performs one reasoning engine round-trip under the LLM timeout.
func (a *Agent) think(ctx context.Context, messages []llm.ChatMessage, r *run) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.config.LLMTimeout)
	defer cancel()

	r.llmCalls++

	var (
		text  string
		usage *llm.TokenUsage
		err   error
	)
	switch {
	case a.stream != nil:
		text, usage, err = a.thinkWithStreaming(callCtx, messages)
	case a.config.JSONMode:
		var resp llm.LLMResponse
		resp, err = a.provider.ChatWithFormat(callCtx, messages, llm.NewJSONObjectFormat())
		text, usage = resp.Content, resp.Usage
	default:
		var resp llm.LLMResponse
		resp, err = a.provider.Chat(callCtx, messages)
		text, usage = resp.Content, resp.Usage
	}
	r.usage.Add(usage)

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("timed out after %s", a.config.LLMTimeout)
		}
		return "", err
	}
	return text, nil
}

// streamResult holds the result of a streaming call.
type streamResult struct {
	usage *llm.TokenUsage
	err   error
}

// thinkWithStreaming echoes tokens to the stream writer while collecting them.
func (a *Agent) thinkWithStreaming(ctx context.Context, messages []llm.ChatMessage) (string, *llm.TokenUsage, error) {
	chunks := make(chan string, 100)

	resultCh := make(chan streamResult, 1)
	go func() {
		defer close(chunks)
		usage, err := a.provider.StreamChat(ctx, messages, chunks)
		resultCh <- streamResult{usage: usage, err: err}
	}()

	var response strings.Builder
	for chunk := range chunks {
		_, _ = io.WriteString(a.stream, chunk)
		response.WriteString(chunk)
	}
	if response.Len() > 0 {
		_, _ = io.WriteString(a.stream, "\n")
	}

	result := <-resultCh
	if result.err != nil {
		return "", result.usage, result.err
	}
	return response.String(), result.usage, nil
}

// render writes a decision back in the grammar the reasoning engine was asked for.
func (a *Agent) render(d Decision) string {
	if a.config.JSONMode {
		msg := map[string]any{"thought": d.Thought}
		if d.Action != nil {
			msg["action"] = map[string]string{"tool": d.Action.Tool, "input": d.Action.Input}
		}
		if d.FinalAnswer != nil {
			msg["final_answer"] = *d.FinalAnswer
		}
		data, err := json.Marshal(msg)
		if err == nil {
			return string(data)
		}
	}

	var b strings.Builder
	if d.Thought != "" {
		fmt.Fprintf(&b, "Thought: %s\n", d.Thought)
	}
	if d.Action != nil {
		fmt.Fprintf(&b, "Action: %s\nAction Input: %s", d.Action.Tool, d.Action.Input)
	}
	if d.FinalAnswer != nil {
		fmt.Fprintf(&b, "Final Answer: %s", *d.FinalAnswer)
	}
	return strings.TrimSpace(b.String())
}
