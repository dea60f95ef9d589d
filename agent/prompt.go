package agent

import (
	"fmt"
	"strings"

	"github.com/richinex/docqa/llm"
	"github.com/richinex/docqa/model"
)

const defaultSystemPrompt = `You are a helpful research assistant. You answer questions from uploaded documents, ` +
	`the web and academic papers on Arxiv. Use a tool when the question needs information you do not have; ` +
	`answer directly when it does not. Never invent sources or results a tool did not return. ` +
	`If a tool reports that nothing was found, say so plainly.`

const reactGrammar = `To use a tool, reply exactly in this format:

Thought: your reasoning about what to do next
Action: the tool name, exactly one of [%s]
Action Input: the query to send to the tool

When you can answer, or no tool is needed, reply exactly in this format:

Thought: your reasoning
Final Answer: your answer to the user

Never give an Action and a Final Answer in the same reply. Do not write Observation lines yourself.`

const jsonGrammar = `Reply with a single JSON object and nothing else.

To use a tool:
{"thought": "your reasoning", "action": {"tool": "one of [%s]", "input": "the query to send"}}

When you can answer, or no tool is needed:
{"thought": "your reasoning", "final_answer": "your answer to the user"}

Never include both "action" and "final_answer".`

const noToolsGrammar = `No tools are available. Reply exactly in this format:

Thought: your reasoning
Final Answer: your answer to the user`

const noToolsJSONGrammar = `No tools are available. Reply with a single JSON object and nothing else:
{"thought": "your reasoning", "final_answer": "your answer to the user"}`

const stepLimitMessage = "I could not complete this within my step limit."

// systemFraming describes the available tools and the output grammar.
func (a *Agent) systemFraming(remaining int) string {
	var b strings.Builder
	b.WriteString(a.config.SystemPrompt)
	b.WriteString("\n\n")

	if a.tools.Len() == 0 {
		if a.config.JSONMode {
			b.WriteString(noToolsJSONGrammar)
		} else {
			b.WriteString(noToolsGrammar)
		}
		return b.String()
	}

	b.WriteString("Available tools:\n")
	b.WriteString(a.tools.Describe())
	b.WriteString("\n\n")

	names := strings.Join(a.tools.Names(), ", ")
	if a.config.JSONMode {
		fmt.Fprintf(&b, jsonGrammar, names)
	} else {
		fmt.Fprintf(&b, reactGrammar, names)
	}

	fmt.Fprintf(&b, "\n\nYou have %d step(s) left before you must answer.", remaining)
	if remaining <= 1 {
		b.WriteString(" This is your last step: give your final answer now.")
	}
	return b.String()
}

// scratchEntry is one completed iteration shown back to the reasoning engine.
type scratchEntry struct {
	assistant   string
	observation string
}

// messages assembles the prompt for one THINKING step: framing, history,
// the question, then the scratchpad of this turn.
func (a *Agent) messages(question string, history []model.Message, scratch []scratchEntry, remaining int) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(history)+2*len(scratch)+2)
	msgs = append(msgs, llm.SystemMessage(a.systemFraming(remaining)))

	for _, m := range history {
		switch m.Role {
		case model.RoleUser:
			msgs = append(msgs, llm.UserMessage(m.Content))
		case model.RoleAssistant:
			msgs = append(msgs, llm.AssistantMessage(m.Content))
		}
	}

	msgs = append(msgs, llm.UserMessage("Question: "+question))

	for _, e := range scratch {
		if e.assistant != "" {
			msgs = append(msgs, llm.AssistantMessage(e.assistant))
		}
		msgs = append(msgs, llm.UserMessage("Observation: "+e.observation))
	}
	return msgs
}

// parseCorrection tells the reasoning engine how its reply failed to parse.
func (a *Agent) parseCorrection(err error) string {
	format := "Thought/Action/Action Input, or Thought/Final Answer"
	if a.config.JSONMode {
		format = `a JSON object with "thought" and either "action" or "final_answer"`
	}
	return fmt.Sprintf("Invalid format: %v. Reply using %s.", err, format)
}

// unknownToolCorrection lists the valid tool names after a mismatch.
func (a *Agent) unknownToolCorrection(name string) string {
	if a.tools.Len() == 0 {
		return fmt.Sprintf("%q is not a valid tool. No tools are available; give your Final Answer directly.", name)
	}
	return fmt.Sprintf("%q is not a valid tool. Valid tools are: %s.", name, strings.Join(a.tools.Names(), ", "))
}

// finalRequest asks for an answer without tools once the budget is spent.
func (a *Agent) finalRequest() string {
	if a.config.JSONMode {
		return `You have reached the step limit. Give your final answer now as {"thought": "...", "final_answer": "..."} without using any tools.`
	}
	return "You have reached the step limit. Give your Final Answer now without using any tools."
}
