package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Port != 4251 {
		t.Errorf("expected default port 4251, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host localhost, got %s", cfg.Server.Host)
	}
	if cfg.Completion.Provider != "proxy" {
		t.Errorf("expected default completion provider proxy, got %s", cfg.Completion.Provider)
	}
	if cfg.Report.DateLayout != "1/2/2006" {
		t.Errorf("expected default date layout 1/2/2006, got %s", cfg.Report.DateLayout)
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("expected default session backend memory, got %s", cfg.Session.Backend)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	if issues := NewDefaultConfig().Validate(); len(issues) != 0 {
		t.Errorf("expected default config to validate, got %v", issues)
	}
}

func TestLoadFromFiles_NoFiles(t *testing.T) {
	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles with no files should not error: %v", err)
	}
	if cfg.Server.Port != 4251 {
		t.Errorf("expected default port 4251, got %d", cfg.Server.Port)
	}
}

func TestLoadFromFiles_ValidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "test.toml")

	content := `
environment = "dev"

[server]
port = 9090
host = "0.0.0.0"

[market_data]
url = "http://bars.internal:8080"
timeout = "5s"

[completion]
provider = "proxy"
url = "http://llm.internal:8081/"

[report]
date_layout = "2006-01-02"
timezone = "UTC"

[session]
backend = "badger"
ttl = "2h"

[storage.badger]
path = "/tmp/test-db"

[logging]
level = "debug"
`
	if err := os.WriteFile(tomlPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFiles(tomlPath)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if !cfg.IsDevMode() {
		t.Error("expected dev mode")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.MarketData.URL != "http://bars.internal:8080" {
		t.Errorf("expected market data url from file, got %s", cfg.MarketData.URL)
	}
	if cfg.MarketDataTimeout() != 5*time.Second {
		t.Errorf("expected 5s market data timeout, got %s", cfg.MarketDataTimeout())
	}
	if cfg.Completion.URL != "http://llm.internal:8081/" {
		t.Errorf("expected completion url from file, got %s", cfg.Completion.URL)
	}
	if cfg.Report.DateLayout != "2006-01-02" {
		t.Errorf("expected date layout 2006-01-02, got %s", cfg.Report.DateLayout)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC location, got %s", cfg.Location())
	}
	if cfg.SessionTTL() != 2*time.Hour {
		t.Errorf("expected 2h session ttl, got %s", cfg.SessionTTL())
	}
	if cfg.Storage.Badger.Path != "/tmp/test-db" {
		t.Errorf("expected badger path /tmp/test-db, got %s", cfg.Storage.Badger.Path)
	}
	// Untouched sections keep their defaults.
	if cfg.Report.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("expected default system prompt, got %q", cfg.Report.SystemPrompt)
	}
	if issues := cfg.Validate(); len(issues) != 0 {
		t.Errorf("expected loaded config to validate, got %v", issues)
	}
}

func TestLoadFromFiles_MultipleFiles(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	if err := os.WriteFile(base, []byte("[server]\nport = 3000\nhost = \"base-host\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	override := filepath.Join(dir, "override.toml")
	if err := os.WriteFile(override, []byte("[server]\nport = 4000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFiles(base, override)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("expected port 4000 from override, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "base-host" {
		t.Errorf("expected host base-host from base file, got %s", cfg.Server.Host)
	}
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/path.toml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadFromFiles_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "invalid.toml")

	if err := os.WriteFile(tomlPath, []byte("this is not valid {{toml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromFiles(tomlPath)
	if err == nil {
		t.Error("expected error for invalid TOML, got nil")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("DODGY_SERVER_PORT", "9999")
	t.Setenv("DODGY_SERVER_HOST", "env-host")
	t.Setenv("DODGY_MARKET_DATA_URL", "http://env-bars")
	t.Setenv("DODGY_COMPLETION_URL", "http://env-llm/")
	t.Setenv("DODGY_SESSION_BACKEND", "badger")
	t.Setenv("DODGY_BADGER_PATH", "/env/path")
	t.Setenv("DODGY_LOG_LEVEL", "error")

	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9999 {
		t.Errorf("expected env port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "env-host" {
		t.Errorf("expected env host env-host, got %s", cfg.Server.Host)
	}
	if cfg.MarketData.URL != "http://env-bars" {
		t.Errorf("expected env market data url, got %s", cfg.MarketData.URL)
	}
	if cfg.Completion.URL != "http://env-llm/" {
		t.Errorf("expected env completion url, got %s", cfg.Completion.URL)
	}
	if cfg.Session.Backend != "badger" {
		t.Errorf("expected env session backend badger, got %s", cfg.Session.Backend)
	}
	if cfg.Storage.Badger.Path != "/env/path" {
		t.Errorf("expected env badger path /env/path, got %s", cfg.Storage.Badger.Path)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected env log level error, got %s", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("DODGY_SERVER_PORT", "not-a-number")

	applyEnvOverrides(cfg)

	if cfg.Server.Port != 4251 {
		t.Errorf("expected default port 4251 for invalid env, got %d", cfg.Server.Port)
	}
}

func TestApplyEnvOverrides_ProviderKeys(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("DODGY_COMPLETION_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("GEMINI_API_KEY", "gemini-env")

	applyEnvOverrides(cfg)

	if cfg.Completion.APIKey != "sk-ant-env" {
		t.Errorf("expected anthropic key for claude provider, got %q", cfg.Completion.APIKey)
	}

	t.Setenv("DODGY_COMPLETION_API_KEY", "explicit")
	applyEnvOverrides(cfg)

	if cfg.Completion.APIKey != "explicit" {
		t.Errorf("expected explicit key to win, got %q", cfg.Completion.APIKey)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 7777, "flag-host")

	if cfg.Server.Port != 7777 {
		t.Errorf("expected flag port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "flag-host" {
		t.Errorf("expected flag host flag-host, got %s", cfg.Server.Host)
	}
}

func TestApplyFlagOverrides_ZeroPortNoOverride(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 0, "")

	if cfg.Server.Port != 4251 {
		t.Errorf("expected default port 4251, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host localhost, got %s", cfg.Server.Host)
	}
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad market data url", func(c *Config) { c.MarketData.URL = "not a url" }, "MarketData.URL"},
		{"missing proxy url", func(c *Config) { c.Completion.URL = "" }, "completion.url"},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "openai" }, "Completion.Provider"},
		{"claude without key", func(c *Config) { c.Completion.Provider = "claude" }, "completion.api_key"},
		{"bad timeout", func(c *Config) { c.MarketData.Timeout = "soon" }, "market_data.timeout"},
		{"bad timezone", func(c *Config) { c.Report.Timezone = "Mars/Olympus" }, "report.timezone"},
		{"badger without path", func(c *Config) { c.Session.Backend = "badger"; c.Storage.Badger.Path = "" }, "storage.badger.path"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Server.Port"},
		{"bad log output", func(c *Config) { c.Logging.Outputs = []string{"syslog"} }, "Logging.Outputs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			issues := cfg.Validate()
			found := false
			for _, issue := range issues {
				if strings.Contains(issue, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an issue mentioning %q, got %v", tt.want, issues)
			}
		})
	}
}

func TestDurations_FallBackOnGarbage(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.MarketData.Timeout = "nope"
	cfg.Completion.Timeout = "-1s"
	cfg.Session.TTL = ""

	if cfg.MarketDataTimeout() != 30*time.Second {
		t.Errorf("expected 30s fallback, got %s", cfg.MarketDataTimeout())
	}
	if cfg.CompletionTimeout() != 60*time.Second {
		t.Errorf("expected 60s fallback, got %s", cfg.CompletionTimeout())
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Errorf("expected 24h fallback, got %s", cfg.SessionTTL())
	}
}
