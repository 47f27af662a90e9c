// Package llm provides interfaces for language model providers.
package llm

import (
	"context"
)

// GenerateRequest is the request for content generation
type GenerateRequest struct {
	// Prompt is the user prompt (required)
	Prompt string

	// SystemPrompt is an optional system prompt
	SystemPrompt string
}

// Provider is an interface for LLM providers
type Provider interface {
	// Generate produces a completion for the given request
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// IsConfigured returns true if the provider is properly configured
	IsConfigured() bool
}
