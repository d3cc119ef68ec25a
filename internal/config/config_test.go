package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/alienxp03/handshake/internal/core"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, core.DefaultMaxTurns, cfg.Simulation.MaxTurns)
	assert.Equal(t, 3, cfg.Simulation.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Simulation.Retry.BaseDelay)
}

func TestValidate(t *testing.T) {
	t.Run("ClampsAndDefaults", func(t *testing.T) {
		cfg := Default()
		cfg.Simulation.MaxTurns = 40
		cfg.Simulation.Workers = 0
		cfg.Simulation.Retry.BaseDelay = 0
		cfg.Server.Port = 0

		require.NoError(t, cfg.Validate())
		assert.Equal(t, core.MaxAllowedTurns, cfg.Simulation.MaxTurns)
		assert.Equal(t, 4, cfg.Simulation.Workers)
		assert.Equal(t, 2*time.Second, cfg.Simulation.Retry.BaseDelay)
		assert.Equal(t, 8182, cfg.Server.Port)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.Provider = "openai"
		assert.Error(t, cfg.Validate())
	})

	t.Run("DisabledProvider", func(t *testing.T) {
		cfg := Default()
		p := cfg.LLM.Providers["gemini"]
		p.Enabled = false
		cfg.LLM.Providers["gemini"] = p
		assert.Error(t, cfg.Validate())
	})

	t.Run("CLIWithoutCommand", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.Providers["local"] = ProviderConfig{Type: ProviderTypeCLI, Enabled: true}
		assert.Error(t, cfg.Validate())
	})

	t.Run("BadPort", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("ExpandsHome", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		cfg := Default()
		cfg.Storage.Path = "~/data/h.db"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, filepath.Join(home, "data", "h.db"), cfg.Storage.Path)
	})
}

func TestLoadFromAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 9001
llm:
  provider: mock
  providers:
    local:
      type: cli
      command: ollama
      args: [run, llama3]
      enabled: true
simulation:
  max_turns: 3
  run_timeout: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Simulation.MaxTurns)
	assert.Equal(t, 5*time.Minute, cfg.Simulation.RunTimeout)
	assert.Contains(t, cfg.LLM.Providers, "local")
	assert.Contains(t, cfg.LLM.Providers, "gemini")

	out := filepath.Join(dir, "nested", "saved.yaml")
	require.NoError(t, cfg.SaveTo(out))
	reloaded, err := LoadFrom(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Port, reloaded.Server.Port)
	assert.Equal(t, []string{"run", "llama3"}, reloaded.LLM.Providers["local"].Args)
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8182, cfg.Server.Port)
}

func TestLoadFromInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1"), 0644))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestGenerateExampleParses(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(GenerateExample()), &cfg))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Len(t, cfg.LLM.Providers, 3)
}

func TestCreateRegistry(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "mock"

	registry, err := cfg.CreateRegistry(context.Background())
	require.NoError(t, err)

	names := registry.Names()
	assert.Contains(t, names, "mock")
	assert.Contains(t, names, "claude")

	p, err := registry.Get("mock")
	require.NoError(t, err)
	assert.True(t, p.Available())
}

func TestCreateRegistrySelectedProviderFails(t *testing.T) {
	cfg := Default()
	p := cfg.LLM.Providers["gemini"]
	p.APIKey = ""
	cfg.LLM.Providers["gemini"] = p

	_, err := cfg.CreateRegistry(context.Background())
	assert.Error(t, err)
}
