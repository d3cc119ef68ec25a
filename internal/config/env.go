package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envKeys are the process environment variables consulted for overrides.
var envKeys = []string{
	"HANDSHAKE_PORT",
	"HANDSHAKE_DB",
	"HANDSHAKE_PROVIDER",
	"HANDSHAKE_MODEL",
	"HANDSHAKE_MAX_TURNS",
	"HANDSHAKE_RUN_TIMEOUT",
	"HANDSHAKE_WORKERS",
	"HANDSHAKE_PERSONAS_DIR",
	"GEMINI_API_KEY",
	"GOOGLE_API_KEY",
	"PROVIDER_TIMEOUT",
}

// LoadEnv reads a .env file and returns its key-value pairs.
func LoadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

// Environment merges a .env file (if present) with the process environment.
// Process variables win over the file.
func Environment(path string) (map[string]string, error) {
	env, err := LoadEnv(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = make(map[string]string)
	}

	for _, key := range envKeys {
		if val, ok := os.LookupEnv(key); ok {
			env[key] = val
		}
	}
	for _, kv := range os.Environ() {
		key, val, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "PROVIDER_") && strings.HasSuffix(key, "_ENABLED") {
			env[key] = val
		}
	}

	return env, nil
}

// ApplyEnvOverrides updates the configuration based on environment variables.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	if val, ok := env["HANDSHAKE_PORT"]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val, ok := env["HANDSHAKE_DB"]; ok && val != "" {
		cfg.Storage.Path = val
	}
	if val, ok := env["HANDSHAKE_PROVIDER"]; ok && val != "" {
		cfg.LLM.Provider = val
	}
	if val, ok := env["HANDSHAKE_MODEL"]; ok {
		cfg.LLM.Model = val
	}
	if val, ok := env["HANDSHAKE_MAX_TURNS"]; ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Simulation.MaxTurns = n
		}
	}
	if val, ok := env["HANDSHAKE_RUN_TIMEOUT"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Simulation.RunTimeout = d
		}
	}
	if val, ok := env["HANDSHAKE_WORKERS"]; ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Simulation.Workers = n
		}
	}
	if val, ok := env["HANDSHAKE_PERSONAS_DIR"]; ok {
		cfg.PersonasDir = val
	}

	apiKey := env["GEMINI_API_KEY"]
	if apiKey == "" {
		apiKey = env["GOOGLE_API_KEY"]
	}

	for name, p := range cfg.LLM.Providers {
		if p.Type == ProviderTypeGemini && p.APIKey == "" && apiKey != "" {
			p.APIKey = apiKey
		}

		envKey := fmt.Sprintf("PROVIDER_%s_ENABLED", strings.ToUpper(name))
		if val, ok := env[envKey]; ok {
			if enabled, err := strconv.ParseBool(val); err == nil {
				p.Enabled = enabled
			}
		}

		if val, ok := env["PROVIDER_TIMEOUT"]; ok {
			if d, ok := parseDuration(val); ok {
				p.Timeout = d
			}
		}

		cfg.LLM.Providers[name] = p
	}
}

// parseDuration accepts plain seconds or a Go duration string.
func parseDuration(val string) (time.Duration, bool) {
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}
