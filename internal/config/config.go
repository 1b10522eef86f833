package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string           `toml:"environment" validate:"omitempty,oneof=prod dev"`
	Server      ServerConfig     `toml:"server"`
	MarketData  MarketDataConfig `toml:"market_data"`
	Completion  CompletionConfig `toml:"completion"`
	Report      ReportConfig     `toml:"report"`
	Session     SessionConfig    `toml:"session"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

// MarketDataConfig points at the market-data proxy that returns daily price bars.
type MarketDataConfig struct {
	URL       string `toml:"url" validate:"required,url"`
	Timeout   string `toml:"timeout"`
	RateLimit int    `toml:"rate_limit" validate:"min=1"`
}

// CompletionConfig selects the language-model backend.
// Provider "proxy" posts the two-message conversation to URL and treats the
// decoded response body as the report. "claude" and "gemini" call the
// providers directly with APIKey.
type CompletionConfig struct {
	Provider  string `toml:"provider" validate:"oneof=proxy claude gemini"`
	URL       string `toml:"url" validate:"omitempty,url"`
	Timeout   string `toml:"timeout"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens" validate:"min=0"`
	APIKey    string `toml:"api_key"`
}

// ReportConfig controls prompt text and how price bars are rendered.
type ReportConfig struct {
	SystemPrompt  string `toml:"system_prompt" validate:"required"`
	HistoryPrompt string `toml:"history_prompt" validate:"required"`
	DateLayout    string `toml:"date_layout" validate:"required"`
	Timezone      string `toml:"timezone"`
}

// SessionConfig contains browser session settings.
type SessionConfig struct {
	Backend       string `toml:"backend" validate:"oneof=memory badger"`
	TTL           string `toml:"ttl"`
	MaxEntries    int    `toml:"max_entries" validate:"min=1"`
	SweepSchedule string `toml:"sweep_schedule"`
}

// StorageConfig contains storage layer settings.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig contains BadgerDB-specific settings.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Outputs    []string `toml:"outputs" validate:"dive,oneof=console file"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// IsDevMode returns true when the environment is "dev".
func (c *Config) IsDevMode() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "dev")
}

// BaseURL returns the externally reachable URL of the portal.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// MarketDataTimeout returns the parsed market-data timeout, falling back to 30s.
func (c *Config) MarketDataTimeout() time.Duration {
	return parseDurationOr(c.MarketData.Timeout, 30*time.Second)
}

// CompletionTimeout returns the parsed completion timeout, falling back to 60s.
func (c *Config) CompletionTimeout() time.Duration {
	return parseDurationOr(c.Completion.Timeout, 60*time.Second)
}

// SessionTTL returns the parsed session lifetime, falling back to 24h.
func (c *Config) SessionTTL() time.Duration {
	return parseDurationOr(c.Session.TTL, 24*time.Hour)
}

// Location returns the time zone used to render bar dates.
func (c *Config) Location() *time.Location {
	if c.Report.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks mandatory and well-formed settings and returns one
// human-readable issue per problem. An empty slice means the config is usable.
func (c *Config) Validate() []string {
	var issues []string

	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}

	durations := map[string]string{
		"market_data.timeout": c.MarketData.Timeout,
		"completion.timeout":  c.Completion.Timeout,
		"session.ttl":         c.Session.TTL,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			issues = append(issues, fmt.Sprintf("%s: invalid duration %q", name, value))
		}
	}

	if c.Report.Timezone != "" {
		if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
			issues = append(issues, fmt.Sprintf("report.timezone: unknown zone %q", c.Report.Timezone))
		}
	}

	if c.Completion.Provider == "proxy" && c.Completion.URL == "" {
		issues = append(issues, "completion.url: required for provider \"proxy\"")
	}
	if c.Completion.Provider != "proxy" && c.Completion.APIKey == "" {
		issues = append(issues, fmt.Sprintf("completion.api_key: required for provider %q", c.Completion.Provider))
	}

	if c.Session.Backend == "badger" && c.Storage.Badger.Path == "" {
		issues = append(issues, "storage.badger.path: required when session.backend is badger")
	}

	return issues
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies DODGY_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DODGY_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("DODGY_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DODGY_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if url := os.Getenv("DODGY_MARKET_DATA_URL"); url != "" {
		config.MarketData.URL = url
	}
	if provider := os.Getenv("DODGY_COMPLETION_PROVIDER"); provider != "" {
		config.Completion.Provider = provider
	}
	if url := os.Getenv("DODGY_COMPLETION_URL"); url != "" {
		config.Completion.URL = url
	}
	if model := os.Getenv("DODGY_COMPLETION_MODEL"); model != "" {
		config.Completion.Model = model
	}
	// Provider keys follow the SDK conventions; the explicit DODGY_ key wins.
	switch config.Completion.Provider {
	case "claude":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			config.Completion.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			config.Completion.APIKey = key
		}
	}
	if key := os.Getenv("DODGY_COMPLETION_API_KEY"); key != "" {
		config.Completion.APIKey = key
	}
	if backend := os.Getenv("DODGY_SESSION_BACKEND"); backend != "" {
		config.Session.Backend = backend
	}
	if badgerPath := os.Getenv("DODGY_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if tz := os.Getenv("DODGY_TIMEZONE"); tz != "" {
		config.Report.Timezone = tz
	}
	if level := os.Getenv("DODGY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
