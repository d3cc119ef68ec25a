package handlers

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alienxp03/handshake/internal/llm"
)

const (
	providerHealthCacheFilename = "handshake-provider-health.json"
	providerHealthCacheTTL      = 30 * time.Minute
)

// providerHealthCache keeps successful health probes on disk so restarts do
// not re-probe every backend. Failed probes are never served from cache.
type providerHealthCache struct {
	mu     sync.Mutex
	path   string
	ttl    time.Duration
	now    func() time.Time
	loaded bool
	data   map[string]llm.HealthStatus
}

func newProviderHealthCache(path string, ttl time.Duration) *providerHealthCache {
	if ttl <= 0 {
		ttl = providerHealthCacheTTL
	}
	if path == "" {
		path = defaultProviderHealthCachePath()
	}
	return &providerHealthCache{
		path: path,
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]llm.HealthStatus),
	}
}

func defaultProviderHealthCachePath() string {
	return filepath.Join(os.TempDir(), providerHealthCacheFilename)
}

// GetFresh returns a cached healthy status younger than the TTL.
func (c *providerHealthCache) GetFresh(name string) (llm.HealthStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureLoaded()
	status, ok := c.data[name]
	if !ok || !status.Available || status.CheckedAt.IsZero() {
		return llm.HealthStatus{}, false
	}
	if c.now().Sub(status.CheckedAt) > c.ttl {
		return llm.HealthStatus{}, false
	}
	return status, true
}

func (c *providerHealthCache) Set(name string, status llm.HealthStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureLoaded()
	c.data[name] = status
	c.persist()
}

func (c *providerHealthCache) ensureLoaded() {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read provider health cache", "path", c.path, "error", err)
		}
		return
	}

	if err := json.Unmarshal(data, &c.data); err != nil {
		slog.Warn("Failed to parse provider health cache", "path", c.path, "error", err)
		c.data = make(map[string]llm.HealthStatus)
	}
}

func (c *providerHealthCache) persist() {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		slog.Warn("Failed to create provider health cache directory", "path", c.path, "error", err)
		return
	}

	payload, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode provider health cache", "path", c.path, "error", err)
		return
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		slog.Warn("Failed to write provider health cache", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		slog.Warn("Failed to replace provider health cache", "path", c.path, "error", err)
	}
}
