package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/pageindexer/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "app:\n  name: pageindexer\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Environment != "development" {
		t.Errorf("environment = %q, want development", cfg.App.Environment)
	}
	if cfg.Server.Port != config.DefaultServerPort {
		t.Errorf("server port = %d, want %d", cfg.Server.Port, config.DefaultServerPort)
	}
	if cfg.RateLimits.Google.PerDay != config.DefaultGooglePerDay {
		t.Errorf("google per_day = %d, want %d", cfg.RateLimits.Google.PerDay, config.DefaultGooglePerDay)
	}
	if cfg.AutoIndexing.SitemapRecheck != config.DefaultSitemapRecheck {
		t.Errorf("sitemap_recheck = %s, want %s", cfg.AutoIndexing.SitemapRecheck, config.DefaultSitemapRecheck)
	}
	if cfg.Engines.Google.Endpoint != config.DefaultGoogleEndpoint {
		t.Errorf("google endpoint = %q", cfg.Engines.Google.Endpoint)
	}
	if !cfg.Engines.IndexNow.Enabled {
		t.Error("indexnow should default to enabled")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	body := `
app:
  environment: production
server:
  port: 9090
  read_timeout: 5s
rate_limits:
  google:
    per_minute: 3
    per_day: 50
worker:
  count: 8
`
	cfg, err := config.Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Environment != "production" {
		t.Errorf("environment = %q", cfg.App.Environment)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %s", cfg.Server.ReadTimeout)
	}
	if cfg.RateLimits.Google.PerMinute != 3 || cfg.RateLimits.Google.PerDay != 50 {
		t.Errorf("google limits = %d/%d", cfg.RateLimits.Google.PerMinute, cfg.RateLimits.Google.PerDay)
	}
	if cfg.Worker.Count != 8 {
		t.Errorf("worker count = %d", cfg.Worker.Count)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PAGEINDEXER_DATABASE_HOST", "db.internal")
	t.Setenv("PAGEINDEXER_REDIS_ADDR", "redis.internal:6380")

	cfg, err := config.Load(writeConfig(t, "app:\n  name: pageindexer\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("database host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad environment", "app:\n  environment: qa\n"},
		{"bad port", "server:\n  port: 0\n"},
		{"zero google limit", "rate_limits:\n  google:\n    per_minute: 0\n"},
		{"zero worker count", "worker:\n  count: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEndpointMapFallsBackToDefaults(t *testing.T) {
	c := &config.IndexNowConfig{}
	m := c.EndpointMap()
	if _, ok := m["bing"]; !ok {
		t.Error("default endpoint map missing bing")
	}

	c.Endpoints = map[string]string{"bing": "https://example.com/indexnow"}
	m = c.EndpointMap()
	if len(m) != 1 || m["bing"] != "https://example.com/indexnow" {
		t.Errorf("configured endpoint map = %v", m)
	}
}
