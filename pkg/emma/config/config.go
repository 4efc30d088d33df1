package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	DefaultServer              = "http://localhost:4000"
	DefaultVerificationTimeout = "10m"
	DefaultRequestTimeout      = "30s"
	DefaultTokenStorage        = "file"
	DefaultOutputFormat        = "text"
)

type Config struct {
	Version  string   `json:"version" yaml:"version"`
	Server   Server   `json:"server" yaml:"server,omitempty"`
	Settings Settings `json:"settings" yaml:"settings,omitempty"`
}

type Server struct {
	URL                   string `json:"url,omitempty" yaml:"url,omitempty"`
	SubscriptionURL       string `json:"subscription-url,omitempty" yaml:"subscription-url,omitempty"`
	CAFile                string `json:"ca-file,omitempty" yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool   `json:"insecure-skip-tls-verify,omitempty" yaml:"insecure-skip-tls-verify,omitempty"`
}

type Settings struct {
	OutputFormat        string `json:"output-format,omitempty" yaml:"output-format,omitempty"`
	TokenStorage        string `json:"token-storage,omitempty" yaml:"token-storage,omitempty"`
	VerificationTimeout string `json:"verification-timeout,omitempty" yaml:"verification-timeout,omitempty"`
	RequestTimeout      string `json:"request-timeout,omitempty" yaml:"request-timeout,omitempty"`
	NoBrowser           bool   `json:"no-browser,omitempty" yaml:"no-browser,omitempty"`
	MetricsTextfile     string `json:"metrics-textfile,omitempty" yaml:"metrics-textfile,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Server: Server{
			URL: DefaultServer,
		},
		Settings: Settings{
			OutputFormat:        DefaultOutputFormat,
			TokenStorage:        DefaultTokenStorage,
			VerificationTimeout: DefaultVerificationTimeout,
			RequestTimeout:      DefaultRequestTimeout,
		},
	}
}

// Load reads the config at path. Fields left out of the file keep their
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) VerificationTimeout() (time.Duration, error) {
	return parseDuration("verification-timeout", c.Settings.VerificationTimeout, DefaultVerificationTimeout)
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	return parseDuration("request-timeout", c.Settings.RequestTimeout, DefaultRequestTimeout)
}

func parseDuration(field, value, fallback string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, value)
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	if c.Version != VersionV1 {
		return fmt.Errorf("unsupported config version %q", c.Version)
	}
	if err := validateURL("server url", c.Server.URL, "http", "https"); err != nil {
		return err
	}
	if c.Server.SubscriptionURL != "" {
		if err := validateURL("server subscription-url", c.Server.SubscriptionURL, "ws", "wss"); err != nil {
			return err
		}
	}
	switch c.Settings.TokenStorage {
	case "", "file", "keychain":
	default:
		return fmt.Errorf("unknown token-storage %q (expected file or keychain)", c.Settings.TokenStorage)
	}
	switch c.Settings.OutputFormat {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output-format %q (expected text, json or yaml)", c.Settings.OutputFormat)
	}
	if _, err := c.VerificationTimeout(); err != nil {
		return err
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: expected %s URL", field, raw, strings.Join(schemes, " or "))
}
