package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TONBRIDGE_SERVER_BASE_URL
const EnvPrefix = "tonbridge"

// ServerConfig holds the public HTTP surface settings.
type ServerConfig struct {
	Listen string `yaml:"listen" split_words:"true"`
	// BaseURL is the public address wallets return to and fetch the manifest from.
	BaseURL string `yaml:"base_url" split_words:"true"`
}

// ManifestConfig describes the app to wallets.
type ManifestConfig struct {
	URL     string `yaml:"url" split_words:"true"`
	Name    string `yaml:"name" split_words:"true"`
	IconURL string `yaml:"icon_url" split_words:"true"`
}

// ConnectorConfig points at the TON Connect sidecar.
type ConnectorConfig struct {
	URL string `yaml:"url" split_words:"true"`
	// InitInterval is the pause between readiness checks at startup.
	InitInterval time.Duration `yaml:"init_interval" split_words:"true"`
}

// BackendConfig points at the application backend.
type BackendConfig struct {
	URL string `yaml:"url" split_words:"true"`
}

// RedisConfig enables the shared registry and event stream when URL is set.
type RedisConfig struct {
	URL string `yaml:"url" split_words:"true"`
}

// AuthConfig tunes handshake lifetimes.
type AuthConfig struct {
	// PendingTTL expires issued links; 0 keeps them until used or replaced.
	PendingTTL time.Duration `yaml:"pending_ttl" split_words:"true"`
	ProofTTL   time.Duration `yaml:"proof_ttl" split_words:"true"`
	// SigningKeyFile is a PEM EC P-256 key; empty generates one per process.
	SigningKeyFile string `yaml:"signing_key_file" split_words:"true"`
}

// HTTPClientConfig applies to outbound calls.
type HTTPClientConfig struct {
	Timeout time.Duration `yaml:"timeout" split_words:"true"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Config aggregates the bridge configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" split_words:"true"`
	Manifest   ManifestConfig   `yaml:"manifest" split_words:"true"`
	Connector  ConnectorConfig  `yaml:"connector" split_words:"true"`
	Backend    BackendConfig    `yaml:"backend" split_words:"true"`
	Redis      RedisConfig      `yaml:"redis" split_words:"true"`
	Auth       AuthConfig       `yaml:"auth" split_words:"true"`
	HTTPClient HTTPClientConfig `yaml:"http_client" split_words:"true"`
	Logging    LoggingConfig    `yaml:"logging" split_words:"true"`
}

const (
	defaultListen       = ":3000"
	defaultManifestName = "NFT Rental Bot"
	defaultBackendURL   = "http://localhost:8000"
	defaultInitInterval = 5 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"
)

// Load reads configuration from an optional YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	if err := validateURL("server.base_url", cfg.Server.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = defaultListen
	}

	if err := validateURL("connector.url", cfg.Connector.URL); err != nil {
		return err
	}
	if cfg.Connector.InitInterval <= 0 {
		cfg.Connector.InitInterval = defaultInitInterval
	}

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaultBackendURL
	}
	if err := validateURL("backend.url", cfg.Backend.URL); err != nil {
		return err
	}

	if cfg.Manifest.URL == "" {
		cfg.Manifest.URL = cfg.Server.BaseURL
	}
	if cfg.Manifest.Name == "" {
		cfg.Manifest.Name = defaultManifestName
	}

	if cfg.Auth.PendingTTL < 0 {
		return fmt.Errorf("auth.pending_ttl must be >= 0")
	}
	if cfg.Auth.ProofTTL < 0 {
		return fmt.Errorf("auth.proof_ttl must be >= 0")
	}

	if cfg.HTTPClient.Timeout <= 0 {
		cfg.HTTPClient.Timeout = defaultHTTPTimeout
	}

	level := strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q; allowed: debug, info, warn, error", cfg.Logging.Level)
	}
	cfg.Logging.Level = level

	format := strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid logging.format %q; allowed: json, text", cfg.Logging.Format)
	}
	cfg.Logging.Format = format

	return nil
}

// ManifestURL is where wallets fetch the app manifest.
func (c *Config) ManifestURL() string {
	return c.Server.BaseURL + "/manifest.json"
}

func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", field, raw)
	}
	return nil
}
