package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	FragmentIdentityID    = "identityId"
	FragmentIdentityEmail = "identityEmail"
)

type Config struct {
	Provider           ProviderConfig `yaml:"provider"`
	CallbackURL        string         `yaml:"callback_url"`
	CompositeFragments []string       `yaml:"composite_fragments"`
	Host               HostConfig     `yaml:"host"`
	Cache              CacheConfig    `yaml:"cache"`
	Relay              RelayConfig    `yaml:"relay"`
	Logging            LoggingConfig  `yaml:"logging"`
}

type ProviderConfig struct {
	Type     string   `yaml:"type"`
	ClientID string   `yaml:"client_id"`
	BaseURL  string   `yaml:"base_url"`
	Issuer   string   `yaml:"issuer,omitempty"`
	Scopes   []string `yaml:"scopes,omitempty"`
}

type HostConfig struct {
	URL           string        `yaml:"url"`
	JoinPath      string        `yaml:"join_path"`
	PlayersPath   string        `yaml:"players_path"`
	Timeout       time.Duration `yaml:"timeout"`
	ReadyInterval time.Duration `yaml:"ready_interval"`
}

type CacheConfig struct {
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Redis  *RedisConfig  `yaml:"redis,omitempty"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
	KeyPrefix  string `yaml:"key_prefix"`
}

type RelayConfig struct {
	Listen   string        `yaml:"listen"`
	NonceTTL time.Duration `yaml:"nonce_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides lists the values operators usually keep out of the config file.
type envOverrides struct {
	ClientID      string `env:"DISCORD_JOIN_CLIENT_ID"`
	CallbackURL   string `env:"DISCORD_JOIN_CALLBACK_URL"`
	HostURL       string `env:"DISCORD_JOIN_HOST_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from raw YAML, applying defaults and environment
// overrides. The result is not validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to set defaults: %w", err)
	}

	if err := cfg.loadSecretsFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load secrets from environment: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() error {
	if c.Provider.Type == "" {
		c.Provider.Type = "discord"
	}
	if c.Provider.Type == "discord" && c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://discord.com"
	}
	if c.Provider.Type == "oidc" && len(c.Provider.Scopes) == 0 {
		c.Provider.Scopes = []string{"openid", "profile", "email"}
	}

	if c.CallbackURL == "" {
		c.CallbackURL = "http://127.0.0.1:30080/join"
	}
	// A nil list means the key was omitted; an explicit empty list keeps the
	// access key as the only fragment.
	if c.CompositeFragments == nil {
		c.CompositeFragments = []string{FragmentIdentityID, FragmentIdentityEmail}
	}

	if c.Host.URL == "" {
		c.Host.URL = "http://127.0.0.1:30000"
	}
	if c.Host.JoinPath == "" {
		c.Host.JoinPath = "/join"
	}
	if c.Host.PlayersPath == "" {
		c.Host.PlayersPath = "/players"
	}
	if c.Host.Timeout == 0 {
		c.Host.Timeout = 30 * time.Second
	}
	if c.Host.ReadyInterval == 0 {
		c.Host.ReadyInterval = 100 * time.Millisecond
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "sqlite"
	}
	if c.Cache.Type == "sqlite" {
		if c.Cache.SQLite == nil {
			c.Cache.SQLite = &SQLiteConfig{}
		}
		if c.Cache.SQLite.Path == "" {
			c.Cache.SQLite.Path = "discord-join.db"
		}
	}
	if c.Cache.Type == "redis" && c.Cache.Redis != nil {
		if c.Cache.Redis.PoolSize == 0 {
			c.Cache.Redis.PoolSize = 10
		}
		if c.Cache.Redis.MaxRetries == 0 {
			c.Cache.Redis.MaxRetries = 3
		}
		if c.Cache.Redis.KeyPrefix == "" {
			c.Cache.Redis.KeyPrefix = "discord-join:"
		}
	}

	if c.Relay.NonceTTL == 0 {
		c.Relay.NonceTTL = 10 * time.Minute
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	return nil
}

func (c *Config) loadSecretsFromEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if overrides.ClientID != "" {
		c.Provider.ClientID = overrides.ClientID
	}
	if overrides.CallbackURL != "" {
		c.CallbackURL = overrides.CallbackURL
	}
	if overrides.HostURL != "" {
		c.Host.URL = overrides.HostURL
	}

	if c.Cache.Type == "redis" && c.Cache.Redis != nil && overrides.RedisPassword != "" {
		c.Cache.Redis.Password = overrides.RedisPassword
	}

	return nil
}

const (
	RelayPath  = "/relay"
	HealthPath = "/health"
)

// CallbackPath is the path of the callback URL, "/" when it has none.
func (c *Config) CallbackPath() string {
	u, err := url.Parse(c.CallbackURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// RelayAddr is the address the callback relay listens on. It defaults to the
// host:port of the callback URL so the provider redirect lands on it.
func (c *Config) RelayAddr() (string, error) {
	if c.Relay.Listen != "" {
		return c.Relay.Listen, nil
	}

	u, err := url.Parse(c.CallbackURL)
	if err != nil {
		return "", fmt.Errorf("invalid callback_url: %w", err)
	}
	if u.Port() == "" {
		if u.Scheme == "https" {
			return u.Hostname() + ":443", nil
		}
		return u.Hostname() + ":80", nil
	}
	return u.Host, nil
}
