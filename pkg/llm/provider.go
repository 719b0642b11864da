package llm

import "context"

// CompletionRequest encapsulates a single raw-prompt completion call.
// Behavioral probes are plain text continuations, so there is no chat
// structure here: one prompt in, one completion out.
type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse encapsulates the output from the backend.
type CompletionResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for interacting with completion backends.
type Provider interface {
	// Complete sends a completion request and returns the generated text.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
