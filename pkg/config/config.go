package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Gemini        GeminiConfig        `yaml:"gemini"`
	Research      ResearchConfig      `yaml:"research"`
	Verification  VerificationConfig  `yaml:"verification"`
	Search        SearchConfig        `yaml:"search"`
	Broadcast     BroadcastConfig     `yaml:"broadcast"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GeminiConfig contains reasoning model configuration
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key,omitempty"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// ResearchConfig contains session workflow configuration
type ResearchConfig struct {
	MaxRecursionDepth  int    `yaml:"max_recursion_depth"`
	MaxSubQueries      int    `yaml:"max_sub_queries"`
	ExpansionFanOut    int    `yaml:"expansion_fan_out"`
	DefaultTimeRange   int    `yaml:"default_time_range_years"`
	AgentTimeout       string `yaml:"agent_timeout"`
	SessionTimeout     string `yaml:"session_timeout"`
	MaxActiveSessions  int    `yaml:"max_active_sessions"`
	FindingsPerAgent   int    `yaml:"findings_per_agent"`
	SourcesPerFinding  int    `yaml:"sources_per_finding"`
}

// VerificationConfig contains adversarial verification configuration
type VerificationConfig struct {
	Concurrency    int     `yaml:"concurrency"`
	LookupsPer     int     `yaml:"lookups_per_claim"`
	DisputedBand   float64 `yaml:"disputed_band"`
	ConfirmedBand  float64 `yaml:"confirmed_band"`
	LookupTimeout  string  `yaml:"lookup_timeout"`
}

// SearchConfig contains evidence search configuration
type SearchConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key,omitempty"`
	MaxResults int    `yaml:"max_results"`
	Timeout    string `yaml:"timeout"`
}

// BroadcastConfig contains status broadcaster configuration
type BroadcastConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// APIConfig contains API server configuration
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
}

// ObservabilityConfig contains observability configuration
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Provider     string  `yaml:"provider"` // "otlp"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Provider     string `yaml:"provider"` // "prometheus", "otlp"
	Port         int    `yaml:"port"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	PushInterval string `yaml:"push_interval,omitempty"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format   string `yaml:"format"` // "json", "text"
	Output   string `yaml:"output"` // "stdout", "file"
	FilePath string `yaml:"file_path,omitempty"`
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	config.overrideFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file or returns default config
func LoadOrDefault(path string) *Config {
	config, err := Load(path)
	if err != nil {
		config = Default()
		config.overrideFromEnv()
	}
	return config
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     "2m",
		},
		Research: ResearchConfig{
			MaxRecursionDepth: 2,
			MaxSubQueries:     24,
			ExpansionFanOut:   3,
			DefaultTimeRange:  5,
			AgentTimeout:      "3m",
			SessionTimeout:    "15m",
			MaxActiveSessions: 20,
			FindingsPerAgent:  4,
			SourcesPerFinding: 3,
		},
		Verification: VerificationConfig{
			Concurrency:   4,
			LookupsPer:    2,
			DisputedBand:  0.4,
			ConfirmedBand: 0.9,
			LookupTimeout: "30s",
		},
		Search: SearchConfig{
			Provider:   "serper",
			BaseURL:    "https://google.serper.dev",
			MaxResults: 5,
			Timeout:    "30s",
		},
		Broadcast: BroadcastConfig{
			SubscriberBuffer: 16,
		},
		API: APIConfig{
			Enabled: true,
			Port:    8080,
			Host:    "0.0.0.0",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      true,
				Provider:     "otlp",
				Endpoint:     "localhost:4317",
				SamplingRate: 1.0,
				Insecure:     true,
			},
			Metrics: MetricsConfig{
				Enabled:      true,
				Provider:     "prometheus",
				Port:         2223,
				PushInterval: "10s",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
	}
}

// applyDefaults applies default values to missing fields
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Gemini.Model == "" {
		c.Gemini.Model = defaults.Gemini.Model
	}
	if c.Gemini.Temperature == 0 {
		c.Gemini.Temperature = defaults.Gemini.Temperature
	}
	if c.Gemini.MaxTokens == 0 {
		c.Gemini.MaxTokens = defaults.Gemini.MaxTokens
	}
	if c.Gemini.Timeout == "" {
		c.Gemini.Timeout = defaults.Gemini.Timeout
	}

	if c.Research.MaxRecursionDepth == 0 {
		c.Research.MaxRecursionDepth = defaults.Research.MaxRecursionDepth
	}
	if c.Research.MaxSubQueries == 0 {
		c.Research.MaxSubQueries = defaults.Research.MaxSubQueries
	}
	if c.Research.ExpansionFanOut == 0 {
		c.Research.ExpansionFanOut = defaults.Research.ExpansionFanOut
	}
	if c.Research.DefaultTimeRange == 0 {
		c.Research.DefaultTimeRange = defaults.Research.DefaultTimeRange
	}
	if c.Research.AgentTimeout == "" {
		c.Research.AgentTimeout = defaults.Research.AgentTimeout
	}
	if c.Research.SessionTimeout == "" {
		c.Research.SessionTimeout = defaults.Research.SessionTimeout
	}
	if c.Research.MaxActiveSessions == 0 {
		c.Research.MaxActiveSessions = defaults.Research.MaxActiveSessions
	}
	if c.Research.FindingsPerAgent == 0 {
		c.Research.FindingsPerAgent = defaults.Research.FindingsPerAgent
	}
	if c.Research.SourcesPerFinding == 0 {
		c.Research.SourcesPerFinding = defaults.Research.SourcesPerFinding
	}

	if c.Verification.Concurrency == 0 {
		c.Verification.Concurrency = defaults.Verification.Concurrency
	}
	if c.Verification.LookupsPer == 0 {
		c.Verification.LookupsPer = defaults.Verification.LookupsPer
	}
	if c.Verification.DisputedBand == 0 {
		c.Verification.DisputedBand = defaults.Verification.DisputedBand
	}
	if c.Verification.ConfirmedBand == 0 {
		c.Verification.ConfirmedBand = defaults.Verification.ConfirmedBand
	}
	if c.Verification.LookupTimeout == "" {
		c.Verification.LookupTimeout = defaults.Verification.LookupTimeout
	}

	if c.Search.Provider == "" {
		c.Search.Provider = defaults.Search.Provider
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = defaults.Search.BaseURL
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = defaults.Search.MaxResults
	}
	if c.Search.Timeout == "" {
		c.Search.Timeout = defaults.Search.Timeout
	}

	if c.Broadcast.SubscriberBuffer == 0 {
		c.Broadcast.SubscriberBuffer = defaults.Broadcast.SubscriberBuffer
	}
}

// overrideFromEnv overrides configuration from environment variables
func (c *Config) overrideFromEnv() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.Gemini.Model = model
	}
	if key := os.Getenv("SERPER_API_KEY"); key != "" {
		c.Search.APIKey = key
	}

	if port := os.Getenv("API_PORT"); port != "" {
		_, err := fmt.Sscanf(port, "%d", &c.API.Port)
		if err != nil {
			log.Printf("Invalid API_PORT value: %s, using default: %d", port, c.API.Port)
		}
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Observability.Tracing.Endpoint = endpoint
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini model is required")
	}

	if c.Research.MaxRecursionDepth < 0 {
		return fmt.Errorf("research max_recursion_depth must not be negative")
	}
	if c.Research.ExpansionFanOut < 1 {
		return fmt.Errorf("research expansion_fan_out must be at least 1")
	}
	if c.Research.MaxSubQueries < 1 {
		return fmt.Errorf("research max_sub_queries must be at least 1")
	}

	if c.Verification.Concurrency < 1 {
		return fmt.Errorf("verification concurrency must be at least 1")
	}
	if c.Verification.DisputedBand < 0 || c.Verification.DisputedBand > 1 {
		return fmt.Errorf("verification disputed_band must be between 0 and 1")
	}
	if c.Verification.ConfirmedBand < 0 || c.Verification.ConfirmedBand > 1 {
		return fmt.Errorf("verification confirmed_band must be between 0 and 1")
	}
	if c.Verification.DisputedBand > c.Verification.ConfirmedBand {
		return fmt.Errorf("verification disputed_band must not exceed confirmed_band")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return fmt.Errorf("api port must be between 1 and 65535")
	}

	if _, err := time.ParseDuration(c.Research.AgentTimeout); err != nil {
		return fmt.Errorf("invalid agent timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Research.SessionTimeout); err != nil {
		return fmt.Errorf("invalid session timeout: %w", err)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDuration parses a duration string from config
func (c *Config) GetDuration(value string) (time.Duration, error) {
	return time.ParseDuration(value)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := os.Getenv("ENVIRONMENT")
	return strings.ToLower(env) == "production" || strings.ToLower(env) == "prod"
}
