package llm

import (
	"time"

	"oas-testgen/internal/config"
)

// Config represents the configuration for LLM integration
type Config struct {
	// Provider specifies which LLM provider to use ("openai" or "gemini")
	Provider string

	// APIKey is the API key for the LLM provider
	APIKey string

	// Model specifies which model to use (e.g., "gpt-3.5-turbo")
	Model string

	// BaseURL overrides the provider endpoint, e.g. for a proxy
	BaseURL string

	// Timeout bounds a single generation call
	Timeout time.Duration
}

// NewDefaultConfig returns a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Provider: "openai",
		Model:    "gpt-3.5-turbo",
		Timeout:  60 * time.Second,
	}
}

// ConfigFrom maps the application configuration onto a client Config.
func ConfigFrom(c config.LLMConfig) *Config {
	return &Config{
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		Timeout:  time.Duration(c.Timeout) * time.Second,
	}
}
