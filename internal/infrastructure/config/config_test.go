package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	store, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s := store.Settings
	if s.Addr != ":8000" {
		t.Errorf("Addr = %q, want :8000", s.Addr)
	}
	if s.GeoDefault != "US" {
		t.Errorf("GeoDefault = %q, want US", s.GeoDefault)
	}
	if s.LimitDefault != 20 {
		t.Errorf("LimitDefault = %d, want 20", s.LimitDefault)
	}
	if s.Cache.TTL != 5*time.Minute || s.Cache.MaxSize != 500 {
		t.Errorf("Cache = %+v, want ttl 5m size 500", s.Cache)
	}
	if s.HTTP.Timeout != 15*time.Second || s.HTTP.MaxConnections != 100 || s.HTTP.MaxKeepaliveConnections != 20 {
		t.Errorf("HTTP = %+v", s.HTTP)
	}
	if s.HTTP.MaxBodyBytes != 10<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", s.HTTP.MaxBodyBytes, 10<<20)
	}
	if s.Retry.MaxAttempts != 3 || s.Retry.InitialDelay != 2*time.Second || s.Retry.MaxDelay != 10*time.Second {
		t.Errorf("Retry = %+v", s.Retry)
	}
	if s.RateLimit != "60/minute" {
		t.Errorf("RateLimit = %q", s.RateLimit)
	}
	if len(s.CORSAllowedOrigins) != 2 || s.CORSAllowedOrigins[0] != "http://localhost" || s.CORSAllowedOrigins[1] != "http://localhost:5678" {
		t.Errorf("CORSAllowedOrigins = %v", s.CORSAllowedOrigins)
	}
	if s.Log.Level != "info" || s.Log.Format != "json" {
		t.Errorf("Log = %+v", s.Log)
	}
	if s.History.File != "" || s.History.Keep != 50 {
		t.Errorf("History = %+v", s.History)
	}
	if s.Poll.Interval != 0 {
		t.Errorf("Poll.Interval = %v, want 0", s.Poll.Interval)
	}
	if s.Telemetry.Enabled {
		t.Error("telemetry should be disabled by default")
	}
	if len(s.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", s.Sources)
	}

	// Loading never writes a default file.
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Errorf("config file should not be created, stat err = %v", err)
	}
	if store.Path() != configPath {
		t.Errorf("Path() = %q, want %q", store.Path(), configPath)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `geo_default: gb
limit_default: 5
rate_limit: 10/second
cache:
  ttl: 30s
  max_size: 10
retry:
  max_attempts: 5
sources:
  - " hn=https://news.ycombinator.com/rss "
  - |
      a=https://example.com/a.xml
      b=https://example.com/{geo}.xml
log:
  level: DEBUG
  format: text
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	store, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s := store.Settings
	if s.GeoDefault != "GB" {
		t.Errorf("GeoDefault = %q, want GB", s.GeoDefault)
	}
	if s.LimitDefault != 5 {
		t.Errorf("LimitDefault = %d, want 5", s.LimitDefault)
	}
	if s.Cache.TTL != 30*time.Second || s.Cache.MaxSize != 10 {
		t.Errorf("Cache = %+v", s.Cache)
	}
	if s.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", s.Retry.MaxAttempts)
	}
	if s.Log.Level != "debug" || s.Log.Format != "text" {
		t.Errorf("Log = %+v", s.Log)
	}

	want := []string{
		"hn=https://news.ycombinator.com/rss",
		"a=https://example.com/a.xml",
		"b=https://example.com/{geo}.xml",
	}
	if len(s.Sources) != len(want) {
		t.Fatalf("Sources = %v, want %v", s.Sources, want)
	}
	for i := range want {
		if s.Sources[i] != want[i] {
			t.Fatalf("Sources[%d] = %q, want %q", i, s.Sources[i], want[i])
		}
	}

	registry, err := s.Registry()
	if err != nil {
		t.Fatalf("Registry failed: %v", err)
	}
	if got := len(registry.All()); got != 3 {
		t.Errorf("registry size = %d, want 3", got)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("GEO_DEFAULT", "de")
	t.Setenv("LIMIT_DEFAULT", "7")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("HISTORY_FILE", "/tmp/trendfeed.db")

	store, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s := store.Settings
	if s.GeoDefault != "DE" {
		t.Errorf("GeoDefault = %q, want DE", s.GeoDefault)
	}
	if s.LimitDefault != 7 {
		t.Errorf("LimitDefault = %d, want 7", s.LimitDefault)
	}
	if s.Cache.TTL != time.Minute {
		t.Errorf("Cache.TTL = %v, want 1m", s.Cache.TTL)
	}
	if s.History.File != "/tmp/trendfeed.db" {
		t.Errorf("History.File = %q", s.History.File)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(configPath, []byte("invalid_yaml: ["), 0600)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for corrupt config read, got nil")
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "limit above max", content: "limit_default: 51\n"},
		{name: "geo too long", content: "geo_default: USA\n"},
		{name: "bad rate limit", content: "rate_limit: lots\n"},
		{name: "zero cache size", content: "cache:\n  max_size: 0\n"},
		{name: "bad source spec", content: "sources:\n  - nourl\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0600); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := Load(configPath); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
