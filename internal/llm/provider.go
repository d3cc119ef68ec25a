// Package llm provides the language model abstraction used by the
// simulation engine.
//
// A Provider performs exactly one completion call. Retrying on rate limits is
// the job of RetryingClient, which is the only type the rest of the module
// talks to.
package llm

import (
	"context"
	"time"
)

// DefaultTimeout is the default timeout for a single completion call.
const DefaultTimeout = 2 * time.Minute

// Provider defines the interface for language model backends.
type Provider interface {
	// Name returns the provider's unique identifier (e.g., "gemini", "cli").
	Name() string

	// Available reports whether the backend can currently serve requests.
	Available() bool

	// Execute performs a single completion call.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Role is the author of a history message, relative to the agent being prompted.
type Role string

const (
	// RoleUser marks messages the agent received.
	RoleUser Role = "user"
	// RoleAssistant marks messages the agent itself wrote.
	RoleAssistant Role = "assistant"
)

// Message is one prior turn sent as conversation history.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request.
type Request struct {
	// System is the system prompt.
	System string

	// History is the ordered, already bounded list of prior turns.
	History []Message

	// Prompt is the final user instruction.
	Prompt string

	// Model overrides the provider's default model when set.
	Model string

	// Temperature is the sampling temperature. Backends that support it always
	// send it, so zero means greedy decoding.
	Temperature float64

	// MaxTokens caps the generated output. Zero leaves the backend default.
	MaxTokens int

	// JSON requests a JSON object response.
	JSON bool

	// Schema optionally describes the expected JSON object.
	Schema *Schema
}

// Schema is a minimal JSON schema used for structured completions.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// Schema types.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
)

// Response represents a provider's response with metadata.
type Response struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the model that produced the response.
	Model string `json:"model,omitempty"`

	// Provider is the name of the provider that generated the response.
	Provider string `json:"provider,omitempty"`

	// Metadata contains usage statistics.
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata contains usage statistics and additional response information.
type Metadata struct {
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	TotalTokens  int           `json:"total_tokens,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	StopReason   string        `json:"stop_reason,omitempty"`
}

// Config holds configuration for creating a provider.
type Config struct {
	// Name is the unique identifier for this provider.
	Name string

	// DisplayName is a human-friendly name. If empty, Name is used.
	DisplayName string

	// Command is the CLI executable name (CLI providers only).
	Command string

	// Args are default arguments passed to the CLI command.
	Args []string

	// ModelFlag is the CLI flag used to select a model. Default: "--model".
	ModelFlag string

	// APIKey authenticates API-backed providers.
	APIKey string

	// DefaultModel is used when Request.Model is empty.
	DefaultModel string

	// Models lists the models known to work with this provider.
	Models []string

	// Timeout bounds a single call. Default: DefaultTimeout.
	Timeout time.Duration
}
