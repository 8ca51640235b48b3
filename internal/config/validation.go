package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return fmt.Errorf("provider config: %w", err)
	}

	if err := c.validateCallback(); err != nil {
		return fmt.Errorf("callback config: %w", err)
	}

	if err := c.validateFragments(); err != nil {
		return fmt.Errorf("composite_fragments: %w", err)
	}

	if err := c.validateHost(); err != nil {
		return fmt.Errorf("host config: %w", err)
	}

	if err := c.validateCache(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}

	switch c.Provider.Type {
	case "discord":
		if err := validateAbsoluteURL(c.Provider.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	case "oidc":
		if c.Provider.Issuer == "" {
			return fmt.Errorf("issuer is required for oidc providers")
		}
		if err := validateAbsoluteURL(c.Provider.Issuer); err != nil {
			return fmt.Errorf("invalid issuer: %w", err)
		}
		hasOpenID := false
		for _, scope := range c.Provider.Scopes {
			if scope == "openid" {
				hasOpenID = true
				break
			}
		}
		if !hasOpenID {
			return fmt.Errorf("'openid' scope is required for oidc providers")
		}
	default:
		return fmt.Errorf("invalid type: %s (must be discord or oidc)", c.Provider.Type)
	}

	return nil
}

func (c *Config) validateCallback() error {
	if err := validateAbsoluteURL(c.CallbackURL); err != nil {
		return fmt.Errorf("invalid callback_url: %w", err)
	}

	switch c.CallbackPath() {
	case RelayPath, HealthPath:
		return fmt.Errorf("callback_url path %s is reserved by the relay server", c.CallbackPath())
	}

	if c.Relay.NonceTTL < time.Second {
		return fmt.Errorf("relay nonce_ttl must be at least 1 second")
	}

	return nil
}

func (c *Config) validateFragments() error {
	seen := make(map[string]bool)
	for i, kind := range c.CompositeFragments {
		if kind != FragmentIdentityID && kind != FragmentIdentityEmail {
			return fmt.Errorf("fragment %d: unknown kind %q (must be %s or %s)", i, kind, FragmentIdentityID, FragmentIdentityEmail)
		}
		if seen[kind] {
			return fmt.Errorf("fragment %d: duplicate kind %q", i, kind)
		}
		seen[kind] = true
	}

	return nil
}

func (c *Config) validateHost() error {
	if err := validateAbsoluteURL(c.Host.URL); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if !strings.HasPrefix(c.Host.JoinPath, "/") {
		return fmt.Errorf("join_path must start with /")
	}
	if !strings.HasPrefix(c.Host.PlayersPath, "/") {
		return fmt.Errorf("players_path must start with /")
	}

	if c.Host.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Host.ReadyInterval <= 0 {
		return fmt.Errorf("ready_interval must be positive")
	}

	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Type {
	case "memory":
	case "sqlite":
		if c.Cache.SQLite == nil || c.Cache.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required when type is sqlite")
		}
	case "redis":
		if c.Cache.Redis == nil {
			return fmt.Errorf("redis config is required when type is redis")
		}
		if c.Cache.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("invalid type: %s (must be sqlite, memory or redis)", c.Cache.Type)
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

func validateAbsoluteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}

	return nil
}
