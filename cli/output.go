package cli

import (
	"fmt"
	"io"

	"github.com/richinex/docqa/agent"
	"github.com/richinex/docqa/model"
	"github.com/richinex/docqa/tools"
)

const maxObservationLen = 400

func printResponse(out io.Writer, resp agent.Response, verbose bool) {
	if verbose {
		printAgentSteps(out, resp.Steps)
	}
	fmt.Fprintln(out, resp.Output)
	if verbose {
		printStats(out, resp.Metadata)
	}
}

func printAgentSteps(out io.Writer, steps []agent.Step) {
	fmt.Fprintln(out, "--- Steps ---")
	for _, step := range steps {
		fmt.Fprintf(out, "[%d] %s\n", step.Iteration, step.Thought)
		if step.IsToolStep() {
			fmt.Fprintf(out, "    Action: %s(%q)\n", *step.Action, step.ActionInput)
		}
		if step.Observation != nil {
			fmt.Fprintf(out, "    Observation: %s\n", truncateString(*step.Observation, maxObservationLen))
		}
		if step.IsFinal() {
			fmt.Fprintln(out, "    Final answer")
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "-------------")
	fmt.Fprintln(out)
}

func printStats(out io.Writer, meta agent.Metadata) {
	fmt.Fprintf(out, "\n(%d iteration(s), %d tool call(s), %d LLM call(s), %dms",
		meta.Iterations, len(meta.ToolCalls), meta.LLMCalls, meta.ExecutionTimeMs)
	if meta.TokenUsage != nil && meta.TokenUsage.TotalTokens > 0 {
		fmt.Fprintf(out, ", %d tokens", meta.TokenUsage.TotalTokens)
	}
	fmt.Fprintln(out, ")")
}

func printTools(out io.Writer, set *tools.Set) {
	fmt.Fprintln(out, "Available tools:")
	fmt.Fprintln(out)
	if set.Len() == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	for _, meta := range set.List() {
		fmt.Fprintf(out, "  %s\n", meta.Name)
		fmt.Fprintf(out, "    %s\n", meta.Description)
	}
}

func printHistory(out io.Writer, history []model.Message) {
	if len(history) == 0 {
		fmt.Fprintln(out, "(no messages yet)")
		return
	}
	for _, m := range history {
		fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
	}
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
