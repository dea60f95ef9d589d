// Package model provides domain types shared across packages.
package model

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history.
// Order is significant: it defines the conversational context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Step represents a single iteration of the agent loop. Exactly one of
// three shapes applies: a tool step (Action and Observation), a corrective
// step (Observation only), or the final step of a turn (FinalAnswer only).
type Step struct {
	Iteration   int
	Thought     string
	Action      *string
	ActionInput string
	Observation *string
	FinalAnswer *string
}

// IsToolStep reports whether the step invoked a tool.
func (s Step) IsToolStep() bool {
	return s.Action != nil
}

// IsFinal reports whether the step ended the turn.
func (s Step) IsFinal() bool {
	return s.FinalAnswer != nil
}

// ToolCall contains metrics about a tool invocation.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	TimedOut   bool   `json:"timed_out"`
}
