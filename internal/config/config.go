// Package config handles application configuration.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/llm"
)

// Provider types.
const (
	ProviderTypeGemini = "gemini"
	ProviderTypeCLI    = "cli"
	ProviderTypeMock   = "mock"
)

// Config represents the application configuration.
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Storage     StorageConfig    `yaml:"storage"`
	LLM         LLMConfig        `yaml:"llm"`
	Simulation  SimulationConfig `yaml:"simulation"`
	PersonasDir string           `yaml:"personas_dir,omitempty"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`

	// PollInterval is how often live streams re-read a running simulation.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LLMConfig selects and configures language model providers.
type LLMConfig struct {
	Provider  string                    `yaml:"provider"`
	Model     string                    `yaml:"model,omitempty"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds provider-specific settings.
type ProviderConfig struct {
	Type         string        `yaml:"type"`
	Command      string        `yaml:"command,omitempty"`
	Args         []string      `yaml:"args,omitempty"`
	ModelFlag    string        `yaml:"model_flag,omitempty"`
	APIKey       string        `yaml:"api_key,omitempty"`
	DefaultModel string        `yaml:"default_model,omitempty"`
	Models       []string      `yaml:"models,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	Latency      time.Duration `yaml:"latency,omitempty"`
	Enabled      bool          `yaml:"enabled"`
}

// SimulationConfig holds engine and worker pool settings.
type SimulationConfig struct {
	MaxTurns               int           `yaml:"max_turns"`
	RunTimeout             time.Duration `yaml:"run_timeout,omitempty"`
	Workers                int           `yaml:"workers"`
	QueueSize              int           `yaml:"queue_size"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	Retry                  RetryConfig   `yaml:"retry"`
}

// RetryConfig controls rate-limit retries of completion calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8182,
			PollInterval: time.Second,
		},
		Storage: StorageConfig{
			Path: defaultDBPath(),
		},
		LLM: LLMConfig{
			Provider: ProviderTypeGemini,
			Providers: map[string]ProviderConfig{
				"gemini": {
					Type:         ProviderTypeGemini,
					DefaultModel: llm.DefaultGeminiModel,
					Models:       []string{"gemini-2.5-flash", "gemini-2.5-pro"},
					Timeout:      2 * time.Minute,
					Enabled:      true,
				},
				"claude": {
					Type:      ProviderTypeCLI,
					Command:   "claude",
					Args:      []string{"--print"},
					ModelFlag: "--model",
					Models:    []string{"opus", "sonnet", "haiku"},
					Timeout:   5 * time.Minute,
					Enabled:   true,
				},
				"mock": {
					Type:    ProviderTypeMock,
					Latency: 300 * time.Millisecond,
					Enabled: true,
				},
			},
		},
		Simulation: SimulationConfig{
			MaxTurns:               core.DefaultMaxTurns,
			Workers:                4,
			QueueSize:              64,
			MaxConsecutiveFailures: 4,
			Retry: RetryConfig{
				MaxRetries: 3,
				BaseDelay:  2 * time.Second,
			},
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path, then applies .env and
// process environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	defaults := Default()
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	for name, p := range defaults.LLM.Providers {
		if _, exists := cfg.LLM.Providers[name]; !exists {
			cfg.LLM.Providers[name] = p
		}
	}

	env, err := Environment(".env")
	if err != nil {
		return nil, err
	}
	ApplyEnvOverrides(cfg, env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills zero values with defaults, clamps bounded settings and
// rejects configurations that cannot work.
func (c *Config) Validate() error {
	defaults := Default()

	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.PollInterval <= 0 {
		c.Server.PollInterval = defaults.Server.PollInterval
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaults.Storage.Path
	}
	c.Storage.Path = expandHome(c.Storage.Path)
	c.PersonasDir = expandHome(c.PersonasDir)

	s := &c.Simulation
	s.MaxTurns = core.ClampMaxTurns(s.MaxTurns)
	if s.RunTimeout < 0 {
		return fmt.Errorf("invalid run timeout: %s", s.RunTimeout)
	}
	if s.Workers <= 0 {
		s.Workers = defaults.Simulation.Workers
	}
	if s.QueueSize <= 0 {
		s.QueueSize = defaults.Simulation.QueueSize
	}
	if s.MaxConsecutiveFailures <= 0 {
		s.MaxConsecutiveFailures = defaults.Simulation.MaxConsecutiveFailures
	}
	if s.Retry.MaxRetries < 0 {
		return fmt.Errorf("invalid retry count: %d", s.Retry.MaxRetries)
	}
	if s.Retry.BaseDelay <= 0 {
		s.Retry.BaseDelay = defaults.Simulation.Retry.BaseDelay
	}

	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	p, ok := c.LLM.Providers[c.LLM.Provider]
	if !ok {
		return fmt.Errorf("llm provider %s not found in config", c.LLM.Provider)
	}
	if !p.Enabled {
		return fmt.Errorf("llm provider %s is disabled", c.LLM.Provider)
	}
	for name, p := range c.LLM.Providers {
		switch p.Type {
		case ProviderTypeGemini, ProviderTypeMock:
		case ProviderTypeCLI:
			if p.Command == "" {
				return fmt.Errorf("provider %s: command is required", name)
			}
		default:
			return fmt.Errorf("provider %s: unknown type %q", name, p.Type)
		}
	}

	return nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// RetryPolicy converts the retry settings for the completion client.
func (c *Config) RetryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxRetries: c.Simulation.Retry.MaxRetries,
		BaseDelay:  c.Simulation.Retry.BaseDelay,
	}
}

// ToLLMConfig converts a ProviderConfig to llm.Config.
func (p ProviderConfig) ToLLMConfig(name string) llm.Config {
	return llm.Config{
		Name:         name,
		Command:      p.Command,
		Args:         p.Args,
		ModelFlag:    p.ModelFlag,
		APIKey:       p.APIKey,
		DefaultModel: p.DefaultModel,
		Models:       p.Models,
		Timeout:      p.Timeout,
	}
}

// CreateProvider creates a provider instance from its configuration.
func (c *Config) CreateProvider(ctx context.Context, name string) (llm.Provider, error) {
	p, ok := c.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in config", name)
	}
	if !p.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	switch p.Type {
	case ProviderTypeGemini:
		return llm.NewGeminiProvider(ctx, p.ToLLMConfig(name))
	case ProviderTypeCLI:
		return llm.NewCLIProvider(p.ToLLMConfig(name)), nil
	case ProviderTypeMock:
		return llm.NewMockProvider(p.Latency), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown type %q", name, p.Type)
	}
}

// CreateRegistry creates a provider registry from this configuration.
// Providers that cannot be constructed are skipped unless they are the
// selected provider.
func (c *Config) CreateRegistry(ctx context.Context) (*llm.Registry, error) {
	registry := llm.NewRegistry()

	names := make([]string, 0, len(c.LLM.Providers))
	for name := range c.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !c.LLM.Providers[name].Enabled {
			continue
		}
		p, err := c.CreateProvider(ctx, name)
		if err != nil {
			if name == c.LLM.Provider {
				return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
			}
			slog.Warn("Skipping provider", "provider", name, "error", err)
			continue
		}
		registry.Register(p)
	}

	return registry, nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "handshake.yaml"
	}
	return filepath.Join(home, ".handshake", "config.yaml")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "handshake.db"
	}
	return filepath.Join(home, ".handshake", "handshake.db")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	return `# handshake configuration file
# Place this file at ~/.handshake/config.yaml

server:
  port: 8182
  poll_interval: 1s          # How often live streams refresh

storage:
  path: ~/.handshake/handshake.db

llm:
  provider: gemini           # Provider used for replies, thoughts and analysis
  model: ""                  # Empty = provider default
  providers:
    gemini:
      type: gemini
      api_key: ""            # Or set GEMINI_API_KEY
      default_model: gemini-2.5-flash
      timeout: 2m
      enabled: true
    claude:
      type: cli
      command: claude
      args: ["--print"]
      model_flag: --model
      timeout: 5m
      enabled: true
    mock:
      type: mock             # Scripted replies, no credentials needed
      latency: 300ms
      enabled: true

simulation:
  max_turns: 10              # Exchanges per run (A then B), at most 15
  run_timeout: 0s            # Wall-clock limit per run, 0 = none
  workers: 4                 # Concurrent runs
  queue_size: 64
  max_consecutive_failures: 4
  retry:
    max_retries: 3           # Retries on rate limits (delays 2s, 4s, 8s)
    base_delay: 2s

# Directory of persona YAML files served alongside stored personas
personas_dir: ""
`
}
