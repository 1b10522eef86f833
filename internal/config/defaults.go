package config

// Prompt text sent with every report request. The history prompt seeds the
// session conversation and is never sent itself.
const (
	DefaultSystemPrompt  = "You are a knowledgeable stock market expert who provides actionable insights on stock trends and market data Consider text between ### as an example of the output you will provide."
	DefaultHistoryPrompt = "You are a knowledgeable stock market expert who provides actionable insights on stock trends and market data."
)

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Port: 4251,
			Host: "localhost",
		},
		MarketData: MarketDataConfig{
			URL:       "https://polygon-api-worker.my-ai-cloudflare-app.workers.dev",
			Timeout:   "30s",
			RateLimit: 5,
		},
		Completion: CompletionConfig{
			Provider: "proxy",
			URL:      "https://0d0cf740-my-ai-clouflare-app.my-ai-cloudflare-app.workers.dev/",
			Timeout:  "60s",
		},
		Report: ReportConfig{
			SystemPrompt:  DefaultSystemPrompt,
			HistoryPrompt: DefaultHistoryPrompt,
			DateLayout:    "1/2/2006",
		},
		Session: SessionConfig{
			Backend:       "memory",
			TTL:           "24h",
			MaxEntries:    1000,
			SweepSchedule: "@every 5m",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/sessions",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console"},
			FilePath:   "logs/dodgy-dave.log",
			MaxSizeMB:  1,
			MaxBackups: 10,
		},
	}
}
