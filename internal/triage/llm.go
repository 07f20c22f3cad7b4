package triage

import "context"

// Provider is the interface for any LLM backend.
type Provider interface {
	Send(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// LLMRequest is a single-shot completion: one system prompt, one user prompt.
type LLMRequest struct {
	// Purpose names the oracle operation, e.g. "classify_intent". Providers
	// may use it for logging; tests route on it.
	Purpose     string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// LLMResponse is the provider's text output and token usage.
type LLMResponse struct {
	Text  string
	Model string
	Usage Usage
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
