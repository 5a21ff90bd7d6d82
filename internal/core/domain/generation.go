package domain

import (
	"fmt"
	"strings"
)

// GenerationOptions threads caller policy into a provider call.
type GenerationOptions struct {
	TenantID       string
	ConversationID string
	Channel        Channel
	MaxTokens      int
	Temperature    float64
}

// GenerationResult is a successful provider response.
type GenerationResult struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

// ProviderFailure records one failed provider attempt during fallback.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Message  string `json:"message"`
}

// ProviderChainError aggregates every failure after the provider chain is
// exhausted. Unwraps to ErrProvidersExhausted.
type ProviderChainError struct {
	Failures []ProviderFailure
}

func (e *ProviderChainError) Error() string {
	if e == nil || len(e.Failures) == 0 {
		return "all providers failed: no provider was available"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s/%s: %s", f.Provider, f.Model, f.Message))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

func (e *ProviderChainError) Unwrap() error {
	return ErrProvidersExhausted
}

// UsageEvent is the asynchronous usage-tracking record emitted after a
// successful generation.
type UsageEvent struct {
	TenantID     string `json:"tenant_id"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	FeatureType  string `json:"feature_type"`
	Channel      string `json:"channel,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	CreatedAt    string `json:"created_at"`
}
