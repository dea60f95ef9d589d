// Output grammar for reasoning engine responses.
//
// Information Hiding:
// - JSON decision decoding hidden
// - ReAct marker scanning hidden
// - Error classification for corrective observations

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsonutil "github.com/richinex/docqa/internal/json"
)

var (
	// ErrUnparseable is returned when a response matches neither grammar.
	ErrUnparseable = errors.New("response is not a valid decision")

	// ErrAmbiguousDecision is returned when a response carries both an action and a final answer.
	ErrAmbiguousDecision = fmt.Errorf("%w: both an action and a final answer were given", ErrUnparseable)
)

var (
	thoughtMarker     = regexp.MustCompile(`(?m)^[ \t]*Thought[ \t]*:`)
	actionMarker      = regexp.MustCompile(`(?m)^[ \t]*Action[ \t]*:[ \t]*(.*)$`)
	actionInputMarker = regexp.MustCompile(`(?m)^[ \t]*Action[ \t]+Input[ \t]*:`)
	observationMarker = regexp.MustCompile(`(?m)^[ \t]*Observation[ \t]*:`)
	finalAnswerMarker = regexp.MustCompile(`(?m)^[ \t]*Final[ \t]+Answer[ \t]*:`)
)

// ParseDecision parses a reasoning engine response.
//
// Two forms are accepted:
//  1. a JSON object {"thought", "action": {"tool", "input"}} or {"thought", "final_answer"}
//  2. ReAct markers: "Action:" with "Action Input:", or "Final Answer:"
//
// Anything else returns an error wrapping ErrUnparseable.
func ParseDecision(response string) (Decision, error) {
	if strings.TrimSpace(response) == "" {
		return Decision{}, fmt.Errorf("%w: empty response", ErrUnparseable)
	}

	if jsonutil.LooksLikeJSON(response) {
		return parseJSONDecision(response)
	}
	if actionMarker.MatchString(response) || finalAnswerMarker.MatchString(response) {
		return parseReAct(response)
	}
	if raw, err := jsonutil.ExtractJSON(response); err == nil && hasDecisionKeys(raw) {
		return parseJSONDecision(raw)
	}
	return Decision{}, ErrUnparseable
}

type jsonDecision struct {
	Thought     string          `json:"thought"`
	Action      json.RawMessage `json:"action"`
	FinalAnswer json.RawMessage `json:"final_answer"`
}

type jsonAction struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

func parseJSONDecision(response string) (Decision, error) {
	var raw jsonDecision
	if err := jsonutil.ExtractInto(response, &raw); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	hasAction := !isNull(raw.Action)
	hasFinal := !isNull(raw.FinalAnswer)

	switch {
	case hasAction && hasFinal:
		return Decision{}, ErrAmbiguousDecision
	case hasFinal:
		answer, err := finalAnswerText(raw.FinalAnswer)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Thought: raw.Thought, FinalAnswer: &answer}, nil
	case hasAction:
		var action jsonAction
		if err := json.Unmarshal(raw.Action, &action); err != nil {
			return Decision{}, fmt.Errorf("%w: action must be an object with tool and input", ErrUnparseable)
		}
		tool := strings.TrimSpace(action.Tool)
		if tool == "" {
			return Decision{}, fmt.Errorf("%w: action has no tool name", ErrUnparseable)
		}
		input, err := actionInputText(action.Input)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Thought: raw.Thought, Action: &Action{Tool: tool, Input: input}}, nil
	default:
		return Decision{}, fmt.Errorf("%w: neither an action nor a final answer was given", ErrUnparseable)
	}
}

// finalAnswerText accepts a string, or renders any other JSON value indented.
func finalAnswerText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: final answer is empty", ErrUnparseable)
		}
		return s, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return string(pretty), nil
}

// actionInputText accepts a string or an object with a string query field.
func actionInputText(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var obj struct {
		Query *string `json:"query"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Query != nil {
		return strings.TrimSpace(*obj.Query), nil
	}
	return "", fmt.Errorf("%w: action input must be a string or an object with a query field", ErrUnparseable)
}

func parseReAct(response string) (Decision, error) {
	// A model that keeps writing after its action invents the observation
	// and often an answer. Everything from that observation on is discarded.
	if loc := actionMarker.FindStringIndex(response); loc != nil {
		if obs := observationMarker.FindStringIndex(response[loc[1]:]); obs != nil {
			response = response[:loc[1]+obs[0]]
		}
	}

	finalLoc := finalAnswerMarker.FindStringIndex(response)
	actionLoc := actionMarker.FindStringSubmatchIndex(response)

	if finalLoc != nil && actionLoc != nil {
		return Decision{}, ErrAmbiguousDecision
	}

	if finalLoc != nil {
		thought := thoughtBefore(response, finalLoc[0])
		answer := strings.TrimSpace(response[finalLoc[1]:])
		if answer == "" {
			return Decision{}, fmt.Errorf("%w: final answer is empty", ErrUnparseable)
		}
		return Decision{Thought: thought, FinalAnswer: &answer}, nil
	}

	thought := thoughtBefore(response, actionLoc[0])
	tool := cleanToolName(response[actionLoc[2]:actionLoc[3]])
	if tool == "" {
		return Decision{}, fmt.Errorf("%w: action has no tool name", ErrUnparseable)
	}

	rest := response[actionLoc[1]:]
	inputLoc := actionInputMarker.FindStringIndex(rest)
	if inputLoc == nil {
		return Decision{}, fmt.Errorf("%w: action %q has no Action Input", ErrUnparseable, tool)
	}
	input := rest[inputLoc[1]:]

	return Decision{Thought: thought, Action: &Action{Tool: tool, Input: cleanInput(input)}}, nil
}

// thoughtBefore returns the reasoning text preceding the marker at end,
// with any leading "Thought:" marker removed.
func thoughtBefore(response string, end int) string {
	head := response[:end]
	if loc := thoughtMarker.FindStringIndex(head); loc != nil {
		head = head[loc[1]:]
	}
	return strings.TrimSpace(head)
}

func cleanToolName(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`*\"'")
}

func cleanInput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func hasDecisionKeys(raw string) bool {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return false
	}
	_, hasAction := keys["action"]
	_, hasFinal := keys["final_answer"]
	return hasAction || hasFinal
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
