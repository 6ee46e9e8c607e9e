package llm

import (
	"context"
	"fmt"

	"oas-testgen/internal/logger"
)

// NewClient creates a new LLM client based on the provider
func NewClient(ctx context.Context, config *Config, log *logger.Logger) (Client, error) {
	log = logger.OrNop(log)
	switch config.Provider {
	case "openai", "":
		log.Debug("LLM", "Creating OpenAI client for model %s", config.Model)
		return NewOpenAIClient(config), nil
	case "gemini":
		log.Debug("LLM", "Creating Gemini client for model %s", config.Model)
		return NewGeminiClient(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
