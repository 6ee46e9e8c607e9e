package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where LoadConfig looks when no path is given.
const DefaultPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	Environment Environment      `yaml:"environment"`
	Generation  GenerationConfig `yaml:"generation"`
	LLM         LLMConfig        `yaml:"llm"`
	Test        TestConfig       `yaml:"test"`
	Reporting   ReportingConfig  `yaml:"reporting"`
	Logging     LoggingConfig    `yaml:"logging"`
	Storage     StorageConfig    `yaml:"storage"`
	Database    DatabaseConfig   `yaml:"database"`
	Server      ServerConfig     `yaml:"server"`
}

// Environment holds environment-specific configuration
type Environment struct {
	BaseURL string     `yaml:"base_url"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds already-resolved credentials injected into every
// executed request.
type AuthConfig struct {
	Type     string `yaml:"type"` // bearer, apikey or basic
	Token    string `yaml:"token"`
	Header   string `yaml:"header"`   // apikey header name
	Username string `yaml:"username"` // basic auth user
}

// GenerationConfig controls how many cases each strategy plans.
type GenerationConfig struct {
	Strategy          string `yaml:"strategy"` // rules, llm or all
	Positive          int    `yaml:"positive"`
	Negative          int    `yaml:"negative"`
	Edge              int    `yaml:"edge"`
	UseDeclaredStatus bool   `yaml:"use_declared_status"`
}

// TestConfig holds test execution configuration
type TestConfig struct {
	Concurrent bool    `yaml:"concurrent"`
	MaxWorkers int     `yaml:"max_workers"`
	Timeout    int     `yaml:"timeout"`
	RateLimit  float64 `yaml:"rate_limit"`
	Fixtures   string  `yaml:"fixtures"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// StorageConfig holds the upload/download areas used by the API server.
type StorageConfig struct {
	UploadDir   string `yaml:"upload_dir"`
	DownloadDir string `yaml:"download_dir"`
}

// DatabaseConfig holds the connection used to resolve sql: fixture values.
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Addr          string   `yaml:"addr"`
	AllowedOrigin []string `yaml:"allowed_origins"`
}

// Enabled reports whether a database has been configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Type != ""
}

// LoadConfig loads the configuration from a YAML file and environment
// variables. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var config Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyEnv() {
	// Override auth token from environment variable if set
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		c.Environment.Auth.Token = token
	}
	if baseURL := os.Getenv("APITEST_BASE_URL"); baseURL != "" {
		c.Environment.BaseURL = baseURL
	}
	c.LLM.applyEnv()
}

func (c *Config) applyDefaults() {
	if c.Generation.Strategy == "" {
		c.Generation.Strategy = StrategyRules
	}
	if c.Generation.Positive == 0 && c.Generation.Negative == 0 && c.Generation.Edge == 0 {
		c.Generation.Positive = 3
		c.Generation.Negative = 3
		c.Generation.Edge = 3
	}
	if c.Test.MaxWorkers == 0 {
		c.Test.MaxWorkers = 5
	}
	if c.Test.Timeout == 0 {
		c.Test.Timeout = 30
	}
	if len(c.Reporting.Format) == 0 {
		c.Reporting.Format = []string{"json", "csv"}
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = filepath.Join("reports")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = filepath.Join("data", "in")
	}
	if c.Storage.DownloadDir == "" {
		c.Storage.DownloadDir = filepath.Join("data", "out")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":9081"
	}
	c.LLM.applyDefaults()
}

// Strategy names accepted by generation.strategy.
const (
	StrategyRules = "rules"
	StrategyLLM   = "llm"
	StrategyAll   = "all"
)

// Validate checks value ranges that defaults cannot repair.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Generation.Strategy) {
	case StrategyRules, StrategyLLM, StrategyAll:
	default:
		return fmt.Errorf("unknown generation strategy: %s", c.Generation.Strategy)
	}
	if c.Generation.Positive < 0 || c.Generation.Negative < 0 || c.Generation.Edge < 0 {
		return fmt.Errorf("generation counts must not be negative")
	}
	if c.Test.Timeout < 0 {
		return fmt.Errorf("test timeout must not be negative")
	}
	if c.Test.RateLimit < 0 {
		return fmt.Errorf("test rate_limit must not be negative")
	}
	switch strings.ToLower(c.Environment.Auth.Type) {
	case "", "bearer", "apikey", "basic":
	default:
		return fmt.Errorf("unsupported auth type: %s", c.Environment.Auth.Type)
	}
	return nil
}
