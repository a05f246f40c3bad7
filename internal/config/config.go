package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned by Validate when the consumer key or
// secret is not configured.
var ErrMissingCredentials = errors.New("config: api key and secret are required")

// Config represents the client configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig holds the consumer credentials and upstream settings
type APIConfig struct {
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
	Server string `yaml:"server"` // host name, e.g. www.eviscape.com
	Format string `yaml:"format"` // xml or json
}

// HTTPConfig holds connection pool settings
type HTTPConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxConns int           `yaml:"max_conns"`
	Retries  int           `yaml:"retries"`

	// RateLimit caps API calls per minute, 0 = unlimited
	RateLimit int `yaml:"rate_limit"`
}

// StorageConfig holds token store settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultServer   = "www.eviscape.com"
	defaultFormat   = "xml"
	defaultTimeout  = 30 * time.Second
	defaultMaxConns = 10
	defaultRetries  = 3
	defaultDBPath   = "eviscape.db"
	defaultLevel    = "info"
)

// Load reads config from YAML file with graceful fallback
// Returns default config if file doesn't exist or is malformed
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	return &cfg, nil
}

// DefaultConfig returns a config built from defaults and the environment
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Key:    os.Getenv("EVISCAPE_API_KEY"),
			Secret: os.Getenv("EVISCAPE_API_SECRET"),
			Server: getEnv("EVISCAPE_SERVER", defaultServer),
			Format: getEnv("EVISCAPE_FORMAT", defaultFormat),
		},
		HTTP: HTTPConfig{
			Timeout:   getEnvDuration("EVISCAPE_TIMEOUT", defaultTimeout),
			MaxConns:  getEnvInt("EVISCAPE_MAX_CONNS", defaultMaxConns),
			Retries:   getEnvInt("EVISCAPE_RETRIES", defaultRetries),
			RateLimit: getEnvInt("EVISCAPE_RATE_LIMIT", 0),
		},
		Storage: StorageConfig{
			Path: getEnv("EVISCAPE_DB_PATH", defaultDBPath),
		},
		Log: LogConfig{
			Level: getEnv("EVISCAPE_LOG_LEVEL", defaultLevel),
		},
	}
}

// Validate reports whether the config can be used to talk to the API
func (c *Config) Validate() error {
	if c.API.Key == "" || c.API.Secret == "" {
		return ErrMissingCredentials
	}
	if c.API.Format != "xml" && c.API.Format != "json" {
		return fmt.Errorf("config: unsupported format %q (want xml or json)", c.API.Format)
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("config: retries must not be negative, got %d", c.HTTP.Retries)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative, got %d", c.HTTP.RateLimit)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EVISCAPE_API_KEY"); v != "" {
		c.API.Key = v
	}
	if v := os.Getenv("EVISCAPE_API_SECRET"); v != "" {
		c.API.Secret = v
	}
	if v := os.Getenv("EVISCAPE_SERVER"); v != "" {
		c.API.Server = v
	}
	if v := os.Getenv("EVISCAPE_FORMAT"); v != "" {
		c.API.Format = v
	}
	if v := os.Getenv("EVISCAPE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("EVISCAPE_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTP.MaxConns = n
		}
	}
	if v := os.Getenv("EVISCAPE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTP.Retries = n
		}
	}
	if v := os.Getenv("EVISCAPE_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTP.RateLimit = n
		}
	}
	if v := os.Getenv("EVISCAPE_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("EVISCAPE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.API.Server == "" {
		c.API.Server = defaultServer
	}
	if c.API.Format == "" {
		c.API.Format = defaultFormat
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = defaultTimeout
	}
	if c.HTTP.MaxConns == 0 {
		c.HTTP.MaxConns = defaultMaxConns
	}
	if c.HTTP.Retries == 0 {
		c.HTTP.Retries = defaultRetries
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultDBPath
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLevel
	}
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt gets environment variable as int or returns default
func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
