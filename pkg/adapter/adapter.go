package adapter

import (
	"context"

	"github.com/resurrect-systems/resurrect/pkg/artifact"
)

// Adapter defines the interface for LLM provider adapters.
//
// Implementations make exactly one network call per Generate invocation.
// Retry policy, if any, belongs to the caller.
type Adapter interface {
	// Generate sends a system prompt plus a user prompt to the model and
	// returns the raw assistant text as an artifact. The caller-supplied
	// context carries the deadline for the call.
	Generate(ctx context.Context, model, system, prompt string) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response wraps an adapter output and optional usage data.
type Response struct {
	Artifact *artifact.Artifact
	Usage    *Usage
}
