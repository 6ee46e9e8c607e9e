package llm

import (
	"context"
	"fmt"
)

// Client is a single request/response text generation service.
type Client interface {
	// Complete sends prompt and returns the generated text.
	Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
}

// GenerationServiceError reports a failed generation call.
type GenerationServiceError struct {
	Provider string
	Err      error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// SystemPrompt frames every generation request.
const SystemPrompt = "You are an expert API tester. Generate test scenarios as a JSON array. " +
	"Please output raw JSON without any markdown formatting or extra text."
