// Package config loads the ipintel configuration file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ipintel-client/pkg/batch"
	"github.com/Sternrassler/ipintel-client/pkg/client"
	"github.com/Sternrassler/ipintel-client/pkg/credential"
	"github.com/Sternrassler/ipintel-client/pkg/logging"
	"gopkg.in/yaml.v3"
)

// DefaultPassphraseEnv names the variable holding the credential store passphrase.
const DefaultPassphraseEnv = "IPINTEL_PASSPHRASE"

type Config struct {
	API         APIConfig         `yaml:"api"`
	Batch       BatchConfig       `yaml:"batch"`
	Log         LogConfig         `yaml:"log"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Cache       CacheConfig       `yaml:"cache"`
	Server      ServerConfig      `yaml:"server"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type BatchConfig struct {
	// MaxConcurrency of 0 means one worker per CPU.
	MaxConcurrency int           `yaml:"max_concurrency"`
	LookupTimeout  time.Duration `yaml:"lookup_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type CredentialsConfig struct {
	Path          string `yaml:"path"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// CacheConfig enables the Redis report cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads the YAML file at path, applies defaults and then environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromBytes loads configuration from bytes without applying environment
// overrides. This is intended for testing where env vars should not interfere.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = client.DefaultBaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = string(logging.LevelInfo)
	}
	if cfg.Credentials.Path == "" {
		if p, err := credential.DefaultStorePath(); err == nil {
			cfg.Credentials.Path = p
		}
	}
	if cfg.Credentials.PassphraseEnv == "" {
		cfg.Credentials.PassphraseEnv = DefaultPassphraseEnv
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8080"
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("IPINTEL_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("IPINTEL_MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IPINTEL_MAX_CONCURRENCY: %w", err)
		}
		cfg.Batch.MaxConcurrency = n
	}
	if v := os.Getenv("IPINTEL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("IPINTEL_CREDENTIALS_PATH"); v != "" {
		cfg.Credentials.Path = v
	}
	if v := os.Getenv("IPINTEL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("IPINTEL_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	return nil
}

func validateConfig(cfg *Config) error {
	var errs []error
	if cfg.API.Timeout < 0 {
		errs = append(errs, fmt.Errorf("api.timeout must not be negative"))
	}
	if cfg.Batch.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("batch.max_concurrency must not be negative"))
	}
	if cfg.Batch.LookupTimeout < 0 {
		errs = append(errs, fmt.Errorf("batch.lookup_timeout must not be negative"))
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative"))
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "disabled", "off", "none":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level %q", cfg.Log.Level))
	}
	return errors.Join(errs...)
}

// ClientConfig returns the API client configuration for apiKey.
func (c *Config) ClientConfig(apiKey string) client.Config {
	return client.Config{
		APIKey:  apiKey,
		BaseURL: c.API.BaseURL,
		Timeout: c.API.Timeout,
	}
}

// ExecutorConfig returns the batch executor configuration.
func (c *Config) ExecutorConfig() batch.Config {
	return batch.Config{
		MaxConcurrency: c.Batch.MaxConcurrency,
		LookupTimeout:  c.Batch.LookupTimeout,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Log.Level),
		Pretty: c.Log.Pretty,
		Output: os.Stderr,
	}
}

// Passphrase returns the credential store passphrase from the environment.
func (c *Config) Passphrase() string {
	return os.Getenv(c.Credentials.PassphraseEnv)
}

// FileStore returns the encrypted credential store described by the config.
func (c *Config) FileStore() *credential.FileStore {
	return credential.NewFileStore(filepath.Clean(c.Credentials.Path), c.Passphrase())
}

// CredentialProvider returns the key lookup order: flag, environment, then
// the encrypted store.
func (c *Config) CredentialProvider(flagKey string) credential.Provider {
	return credential.Chain{
		credential.Static(flagKey),
		credential.Env{},
		c.FileStore(),
	}
}
