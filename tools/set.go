// Tool set.
//
// Information Hiding:
// - Validation rules applied once at construction
// - Storage and lookup implementation hidden
// - Prompt rendering of tool descriptions

package tools

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDuplicateTool is returned when two tools share a name or a kind.
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrInvalidTool is returned for tools with missing metadata or an unknown kind.
	ErrInvalidTool = errors.New("invalid tool")
)

// Set is an immutable collection of tools. A new Set is built whenever the
// available sources change; an existing Set is never modified.
type Set struct {
	tools  []Tool
	byName map[string]Tool
	byKind map[Kind]Tool
}

// NewSet validates the tools and returns a Set holding them in the given order.
func NewSet(tools ...Tool) (*Set, error) {
	s := &Set{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]Tool, len(tools)),
		byKind: make(map[Kind]Tool, len(tools)),
	}

	for _, tool := range tools {
		if tool == nil {
			return nil, fmt.Errorf("%w: nil tool", ErrInvalidTool)
		}
		meta := tool.Metadata()
		if strings.TrimSpace(meta.Name) == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidTool)
		}
		if strings.TrimSpace(meta.Description) == "" {
			return nil, fmt.Errorf("%w: tool %q has no description", ErrInvalidTool, meta.Name)
		}
		if !meta.Kind.Valid() {
			return nil, fmt.Errorf("%w: tool %q has unknown %s", ErrInvalidTool, meta.Name, meta.Kind)
		}
		if _, exists := s.byName[meta.Name]; exists {
			return nil, fmt.Errorf("%w: name %q already used", ErrDuplicateTool, meta.Name)
		}
		if other, exists := s.byKind[meta.Kind]; exists {
			return nil, fmt.Errorf("%w: %q and %q both serve %s",
				ErrDuplicateTool, other.Metadata().Name, meta.Name, meta.Kind)
		}

		s.tools = append(s.tools, tool)
		s.byName[meta.Name] = tool
		s.byKind[meta.Kind] = tool
	}

	return s, nil
}

// Lookup returns the tool with exactly the given name.
func (s *Set) Lookup(name string) (Tool, bool) {
	if s == nil {
		return nil, false
	}
	tool, ok := s.byName[name]
	return tool, ok
}

// Has reports whether a tool of the given kind is present.
func (s *Set) Has(kind Kind) bool {
	if s == nil {
		return false
	}
	_, ok := s.byKind[kind]
	return ok
}

// Len returns the number of tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tools)
}

// Names returns all tool names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.tools))
	for _, tool := range s.tools {
		names = append(names, tool.Metadata().Name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all tools in insertion order.
func (s *Set) List() []Metadata {
	if s == nil {
		return nil
	}
	metadata := make([]Metadata, 0, len(s.tools))
	for _, tool := range s.tools {
		metadata = append(metadata, tool.Metadata())
	}
	return metadata
}

// With returns a new Set containing the current tools plus extra.
func (s *Set) With(extra ...Tool) (*Set, error) {
	var all []Tool
	if s != nil {
		all = append(all, s.tools...)
	}
	return NewSet(append(all, extra...)...)
}

// Describe returns a formatted description of all tools for LLM prompts.
func (s *Set) Describe() string {
	if s.Len() == 0 {
		return "(no tools available)"
	}
	descriptions := make([]string, 0, len(s.tools))
	for _, tool := range s.tools {
		meta := tool.Metadata()
		descriptions = append(descriptions, fmt.Sprintf("- %s: %s", meta.Name, meta.Description))
	}
	return strings.Join(descriptions, "\n")
}
