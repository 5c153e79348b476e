package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	OneMap   OneMapConfig   `yaml:"onemap"`
	Request  RequestConfig  `yaml:"request"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Server   ServerConfig   `yaml:"server"`
	Flows    FlowsConfig    `yaml:"flows"`
	// Newsletters maps a centre-name fragment (matched case-insensitively)
	// to a pre-rendered PDF on disk, sent instead of a generated document.
	Newsletters map[string]string `yaml:"newsletters"`
}

// TelegramConfig holds chat transport settings.
type TelegramConfig struct {
	Token       string   `yaml:"token"` // falls back to TELEGRAM_BOT_TOKEN
	PollTimeout Duration `yaml:"poll_timeout"`
}

// OneMapConfig holds geocoding service settings.
type OneMapConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"` // falls back to ONEMAP_API_TOKEN
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LogSettings holds settings for a single logger channel.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path     string   `yaml:"path"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// ServerConfig holds settings for the ops HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// FlowsConfig holds conversation flow tunables.
type FlowsConfig struct {
	CategoryLimit    int      `yaml:"category_limit"`    // nearest centres per category
	CentreLimit      int      `yaml:"centre_limit"`      // centre selection list size
	ChunkLimit       int      `yaml:"chunk_limit"`       // max characters per outbound message
	DescriptionLimit int      `yaml:"description_limit"` // max characters of activity description
	SessionTTL       Duration `yaml:"session_ttl"`       // idle eviction for conversation state
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: Duration(30 * time.Second),
		},
		OneMap: OneMapConfig{
			Endpoint: "https://www.onemap.gov.sg/api/common/elastic/search",
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Log: LogConfig{
			Server:   LogSettings{Path: "logs/nearbybot.log", Level: "INFO"},
			Requests: LogSettings{Path: "logs/requests.log", Level: "INFO"},
		},
		DB: DBConfig{
			Path:     "data/nearbybot.db",
			CacheTTL: Duration(7 * 24 * time.Hour),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8093",
		},
		Flows: FlowsConfig{
			CategoryLimit:    3,
			CentreLimit:      5,
			ChunkLimit:       4000,
			DescriptionLimit: 700,
			SessionTTL:       Duration(30 * time.Minute),
		},
	}
}

// Load reads the config file at path, applying defaults for missing values and
// environment fallbacks for secrets. A missing file is not an error; defaults
// are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Secrets may come from the environment instead of the file.
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.OneMap.Token == "" {
		cfg.OneMap.Token = os.Getenv("ONEMAP_API_TOKEN")
	}

	if cfg.Flows.ChunkLimit <= 0 {
		cfg.Flows.ChunkLimit = 4000
	}
	if cfg.Flows.CategoryLimit <= 0 {
		cfg.Flows.CategoryLimit = 3
	}
	if cfg.Flows.CentreLimit <= 0 {
		cfg.Flows.CentreLimit = 5
	}

	return cfg, nil
}

// GenerateDefault writes a default config file to path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
