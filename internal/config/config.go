// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads credence CLI configuration from a YAML file, a .env
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	credenceerrors "github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm/providers"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Output formats accepted by run.output.
var OutputFormats = []string{"text", "markdown", "json", "junit"}

// Config represents the complete credence configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	LLM     LLMConfig     `yaml:"llm"`
	Chatbot ChatbotConfig `yaml:"chatbot"`
	Run     RunConfig     `yaml:"run"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// LLMConfig configures the model used to generate user turns and judge
// replies.
type LLMConfig struct {
	// Provider is one of anthropic, openai or ollama.
	// Environment: CREDENCE_LLM_PROVIDER
	// Default: openai
	Provider string `yaml:"provider"`

	// Model is the provider model name.
	// Environment: CREDENCE_LLM_MODEL
	Model string `yaml:"model"`

	// APIKey authenticates with hosted providers. ${VAR} references are
	// expanded. When empty, ANTHROPIC_API_KEY or OPENAI_API_KEY is used.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint.
	// Environment: CREDENCE_LLM_BASE_URL
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single LLM request.
	// Default: 120s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries enables transport retries of failed provider requests.
	// Default: 0
	MaxRetries int `yaml:"max_retries"`

	// Temperature is passed to every request when set.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens caps response length when non-zero.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// RateLimit caps requests per second to the provider (0 = unlimited).
	RateLimit float64 `yaml:"rate_limit,omitempty"`
}

// ChatbotConfig configures the HTTP chatbot under test.
type ChatbotConfig struct {
	// Endpoint receives every user message.
	// Environment: CREDENCE_CHATBOT_ENDPOINT
	Endpoint string `yaml:"endpoint"`

	// Headers are sent with every request. ${VAR} references are expanded.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Timeout bounds a single chatbot request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// ReplyField locates the reply text in the response body: a dotted path
	// or a jq expression such as .choices[0].message.content.
	// Default: reply
	ReplyField string `yaml:"reply_field"`

	// MetadataField locates the metadata object, like ReplyField.
	// Default: metadata
	MetadataField string `yaml:"metadata_field"`

	// Actions maps external action names to URLs.
	Actions map[string]string `yaml:"actions,omitempty"`

	// RateLimit caps requests per second to the chatbot (0 = unlimited).
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// UserSimulatorPrompt replaces the default user simulator system prompt.
	UserSimulatorPrompt string `yaml:"user_simulator_prompt,omitempty"`
}

// RunConfig configures how suites are executed and reported.
type RunConfig struct {
	// Concurrency bounds how many conversations run at once.
	// Environment: CREDENCE_CONCURRENCY
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// Profile is the default user profile for generated turns.
	Profile string `yaml:"profile,omitempty"`

	// InitialContext seeds the Run Context of every run.
	InitialContext map[string]any `yaml:"initial_context,omitempty"`

	// Output is text, markdown, json or junit.
	// Environment: CREDENCE_OUTPUT
	// Default: text
	Output string `yaml:"output"`

	// OutputFile receives the report instead of stdout.
	OutputFile string `yaml:"output_file,omitempty"`

	// Color is auto, always or never.
	// Default: auto
	Color string `yaml:"color"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled turns on span export.
	// Environment: CREDENCE_TRACING_ENABLED
	Enabled bool `yaml:"enabled"`

	// Exporter is stdout, otlp or none.
	// Default: stdout
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP HTTP receiver host:port.
	// Environment: OTEL_EXPORTER_OTLP_ENDPOINT
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS to the receiver.
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with every export. ${VAR} references are expanded.
	Headers map[string]string `yaml:"headers,omitempty"`

	// SampleRate is the fraction of runs traced.
	// Default: 1.0
	SampleRate float64 `yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	// Enabled serves /metrics while the run is in progress.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address.
	// Environment: CREDENCE_METRICS_ADDR
	// Default: :9090
	Addr string `yaml:"addr"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Timeout:  120 * time.Second,
		},
		Chatbot: ChatbotConfig{
			Timeout:       30 * time.Second,
			ReplyField:    "reply",
			MetadataField: "metadata",
		},
		Run: RunConfig{
			Concurrency: 4,
			Output:      "text",
			Color:       "auto",
		},
		Tracing: TracingConfig{
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load loads configuration from an optional YAML file, then a .env file in
// the working directory, then environment variables. Later sources take
// precedence. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &credenceerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()

	if err := LoadDotEnv(".env"); err != nil {
		return nil, &credenceerrors.ConfigError{
			Key:    "dotenv",
			Reason: "failed to load .env",
			Cause:  err,
		}
	}
	cfg.loadFromEnv()
	cfg.expandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &credenceerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// applyDefaults fills in zero values left by a partial config file.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Chatbot.Timeout == 0 {
		c.Chatbot.Timeout = d.Chatbot.Timeout
	}
	if c.Chatbot.ReplyField == "" {
		c.Chatbot.ReplyField = d.Chatbot.ReplyField
	}
	if c.Chatbot.MetadataField == "" {
		c.Chatbot.MetadataField = d.Chatbot.MetadataField
	}
	if c.Run.Concurrency == 0 {
		c.Run.Concurrency = d.Run.Concurrency
	}
	if c.Run.Output == "" {
		c.Run.Output = d.Run.Output
	}
	if c.Run.Color == "" {
		c.Run.Color = d.Run.Color
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = d.Metrics.Addr
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv overrides configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || val == "true"
	}

	if val := os.Getenv("CREDENCE_LLM_PROVIDER"); val != "" {
		c.LLM.Provider = val
	}
	if val := os.Getenv("CREDENCE_LLM_MODEL"); val != "" {
		c.LLM.Model = val
	}
	if val := os.Getenv("CREDENCE_LLM_BASE_URL"); val != "" {
		c.LLM.BaseURL = val
	}
	if c.LLM.APIKey == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if val := os.Getenv("CREDENCE_CHATBOT_ENDPOINT"); val != "" {
		c.Chatbot.Endpoint = val
	}

	if val := os.Getenv("CREDENCE_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Run.Concurrency = n
		}
	}
	if val := os.Getenv("CREDENCE_OUTPUT"); val != "" {
		c.Run.Output = val
	}

	if val := os.Getenv("CREDENCE_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	if val := os.Getenv("CREDENCE_METRICS_ADDR"); val != "" {
		c.Metrics.Addr = val
	}
}

// expandEnv resolves ${VAR} references in secrets and headers so they can
// stay out of the config file.
func (c *Config) expandEnv() {
	c.LLM.APIKey = os.ExpandEnv(c.LLM.APIKey)
	for k, v := range c.Chatbot.Headers {
		c.Chatbot.Headers[k] = os.ExpandEnv(v)
	}
	for k, v := range c.Tracing.Headers {
		c.Tracing.Headers[k] = os.ExpandEnv(v)
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	validLevels := []string{"trace", "debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if !slices.Contains(providers.Names, strings.ToLower(c.LLM.Provider)) {
		errs = append(errs, fmt.Sprintf("llm.provider must be one of %v, got %q", providers.Names, c.LLM.Provider))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("llm.timeout must be positive, got %v", c.LLM.Timeout))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("llm.max_retries must be non-negative, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("llm.rate_limit must be non-negative, got %v", c.LLM.RateLimit))
	}

	if c.Chatbot.Endpoint != "" {
		if err := validateURL(c.Chatbot.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("chatbot.endpoint: %v", err))
		}
	}
	for name, target := range c.Chatbot.Actions {
		if err := validateURL(target); err != nil {
			errs = append(errs, fmt.Sprintf("chatbot.actions.%s: %v", name, err))
		}
	}
	if c.Chatbot.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("chatbot.timeout must be positive, got %v", c.Chatbot.Timeout))
	}

	if c.Run.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("run.concurrency must be at least 1, got %d", c.Run.Concurrency))
	}
	if !slices.Contains(OutputFormats, c.Run.Output) {
		errs = append(errs, fmt.Sprintf("run.output must be one of %v, got %q", OutputFormats, c.Run.Output))
	}
	if !slices.Contains([]string{"auto", "always", "never"}, c.Run.Color) {
		errs = append(errs, fmt.Sprintf("run.color must be one of [auto, always, never], got %q", c.Run.Color))
	}

	switch c.Tracing.Exporter {
	case "stdout", "none":
	case "otlp":
		if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
			errs = append(errs, "tracing.endpoint is required for the otlp exporter")
		}
	default:
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [stdout, otlp, none], got %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
