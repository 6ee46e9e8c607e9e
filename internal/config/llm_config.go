package config

import (
	"os"
)

// LLMConfig holds configuration for LLM services
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // e.g., "openai", "gemini"
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`    // e.g., "gpt-3.5-turbo"
	BaseURL     string  `yaml:"base_url"` // Optional, for custom endpoints
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     int     `yaml:"timeout"`
	Concurrency int     `yaml:"concurrency"`
}

func (c *LLMConfig) applyEnv() {
	switch c.Provider {
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.APIKey == "" {
			c.APIKey = key
		}
	default:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.APIKey == "" {
			c.APIKey = key
		}
	}
}

func (c *LLMConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		switch c.Provider {
		case "gemini":
			c.Model = "gemini-2.0-flash"
		default:
			c.Model = "gpt-3.5-turbo"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}
