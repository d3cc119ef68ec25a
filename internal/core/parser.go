package core

import (
	"fmt"
	"strings"
)

// ModelSpec names a language model provider and, optionally, a model.
type ModelSpec struct {
	Provider string
	Model    string
}

// String formats the spec back into provider[/model] form.
func (m ModelSpec) String() string {
	if m.Model == "" {
		return m.Provider
	}
	return m.Provider + "/" + m.Model
}

// ParseModelSpec parses a model specification string.
// Format: provider[/model]
//
// Examples:
//   - "gemini" -> {Provider: "gemini", Model: ""}
//   - "gemini/gemini-2.5-flash" -> {Provider: "gemini", Model: "gemini-2.5-flash"}
//   - "cli/sonnet" -> {Provider: "cli", Model: "sonnet"}
func ParseModelSpec(spec string) (ModelSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ModelSpec{}, fmt.Errorf("model spec cannot be empty")
	}

	parts := strings.SplitN(spec, "/", 2)
	m := ModelSpec{Provider: strings.TrimSpace(parts[0])}
	if m.Provider == "" {
		return ModelSpec{}, fmt.Errorf("provider cannot be empty in spec: %s", spec)
	}
	if len(parts) == 2 {
		m.Model = strings.TrimSpace(parts[1])
	}

	return m, nil
}
