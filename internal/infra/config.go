package infra

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Secrets can be supplied
// through environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		BaseURL         string `yaml:"base_url"`
		TimeoutSec      int    `yaml:"timeout_sec"`
		PollIntervalSec int    `yaml:"poll_interval_sec"`
	} `yaml:"api"`

	Push struct {
		AppKey  string `yaml:"app_key"`
		Cluster string `yaml:"cluster"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		TLS     bool   `yaml:"tls"`
	} `yaml:"push"`

	Notifications struct {
		Sound   bool `yaml:"sound"`
		Desktop bool `yaml:"desktop"`
	} `yaml:"notifications"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" || (!hasPrefix(c.API.BaseURL, "http://") && !hasPrefix(c.API.BaseURL, "https://")) {
		return fmt.Errorf("invalid API base URL: %s", c.API.BaseURL)
	}
	if c.API.PollIntervalSec < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if c.Push.Port < 0 || c.Push.Port > 65535 {
		return fmt.Errorf("invalid push port: %d", c.Push.Port)
	}
	return nil
}

// PollInterval returns the configured status poll interval, defaulted.
func (c *Config) PollInterval() time.Duration {
	if c.API.PollIntervalSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.API.PollIntervalSec) * time.Second
}

// APITimeout returns the HTTP client timeout, defaulted.
func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSec) * time.Second
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces values with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if u := os.Getenv("PAYDASH_API_URL"); u != "" {
		cfg.API.BaseURL = u
	}
	if key := os.Getenv("PAYDASH_PUSH_KEY"); key != "" {
		cfg.Push.AppKey = key
	}
	if cluster := os.Getenv("PAYDASH_PUSH_CLUSTER"); cluster != "" {
		cfg.Push.Cluster = cluster
	}
	if level := os.Getenv("PAYDASH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
