// Package json extracts JSON objects from language model responses.
//
// Models often wrap the object they were asked for in prose or markdown
// fences. The helpers here find the object without guessing at its content.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoObject is returned when a response contains no JSON object.
var ErrNoObject = errors.New("no JSON object in response")

// ExtractJSON returns the first well-formed JSON object in response.
//
// It tries, in order:
// 1. the whole response after stripping markdown fences
// 2. each balanced {...} span, scanning left to right
//
// Braces inside JSON strings are honored by the scanner.
func ExtractJSON(response string) (string, error) {
	trimmed := stripMarkdownCodeBlocks(response)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	for start := strings.IndexByte(trimmed, '{'); start != -1; {
		end := matchBrace(trimmed, start)
		if end == -1 {
			break
		}
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		next := strings.IndexByte(trimmed[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}

	return "", fmt.Errorf("%w: %q", ErrNoObject, preview(response, 100))
}

// ExtractInto extracts the first JSON object from response and decodes it into v.
func ExtractInto(response string, v any) error {
	raw, err := ExtractJSON(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

// LooksLikeJSON reports whether the response appears to be an attempt at a JSON object.
func LooksLikeJSON(response string) bool {
	return strings.HasPrefix(stripMarkdownCodeBlocks(response), "{")
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripMarkdownCodeBlocks removes a surrounding ```json ... ``` or ``` ... ``` fence.
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
