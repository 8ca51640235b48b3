package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("provider:\n  client_id: abc\n"))
	require.NoError(t, err)

	assert.Equal(t, "discord", cfg.Provider.Type)
	assert.Equal(t, "https://discord.com", cfg.Provider.BaseURL)
	assert.Equal(t, []string{FragmentIdentityID, FragmentIdentityEmail}, cfg.CompositeFragments)
	assert.Equal(t, "sqlite", cfg.Cache.Type)
	require.NotNil(t, cfg.Cache.SQLite)
	assert.Equal(t, "discord-join.db", cfg.Cache.SQLite.Path)
	assert.Equal(t, 100*time.Millisecond, cfg.Host.ReadyInterval)
	assert.Equal(t, 30*time.Second, cfg.Host.Timeout)
	assert.Equal(t, "/join", cfg.Host.JoinPath)
	assert.Equal(t, "/players", cfg.Host.PlayersPath)
	require.NoError(t, cfg.Validate())
}

func TestParse_OIDCDefaultScopes(t *testing.T) {
	cfg, err := Parse([]byte("provider:\n  type: oidc\n  client_id: abc\n  issuer: https://id.example.com\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.Provider.Scopes)
	assert.Empty(t, cfg.Provider.BaseURL)
	require.NoError(t, cfg.Validate())

	cfg, err = Parse([]byte("provider:\n  type: oidc\n  client_id: abc\n  issuer: https://id.example.com\n  scopes: [openid]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"openid"}, cfg.Provider.Scopes)
}

func TestParse_EmptyFragmentListIsKept(t *testing.T) {
	cfg, err := Parse([]byte("provider:\n  client_id: abc\ncomposite_fragments: []\n"))
	require.NoError(t, err)

	assert.NotNil(t, cfg.CompositeFragments)
	assert.Empty(t, cfg.CompositeFragments)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ReadsFileAndEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_JOIN_CLIENT_ID", "from-env")
	t.Setenv("DISCORD_JOIN_HOST_URL", "http://host.example:30000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider:
  client_id: from-file
callback_url: http://127.0.0.1:4000/join
composite_fragments: [identityEmail]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Provider.ClientID)
	assert.Equal(t, "http://host.example:30000", cfg.Host.URL)
	assert.Equal(t, "http://127.0.0.1:4000/join", cfg.CallbackURL)
	assert.Equal(t, []string{FragmentIdentityEmail}, cfg.CompositeFragments)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client id", func(c *Config) { c.Provider.ClientID = "" }},
		{"unknown provider", func(c *Config) { c.Provider.Type = "saml" }},
		{"relative callback", func(c *Config) { c.CallbackURL = "/join" }},
		{"reserved callback path", func(c *Config) { c.CallbackURL = "http://127.0.0.1:30080/relay" }},
		{"unknown fragment", func(c *Config) { c.CompositeFragments = []string{"identityName"} }},
		{"duplicate fragment", func(c *Config) {
			c.CompositeFragments = []string{FragmentIdentityID, FragmentIdentityID}
		}},
		{"oidc without issuer", func(c *Config) { c.Provider.Type = "oidc" }},
		{"oidc without openid scope", func(c *Config) {
			c.Provider.Type = "oidc"
			c.Provider.Issuer = "https://idp.example"
			c.Provider.Scopes = []string{"email"}
		}},
		{"redis without address", func(c *Config) {
			c.Cache.Type = "redis"
			c.Cache.Redis = &RedisConfig{}
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad join path", func(c *Config) { c.Host.JoinPath = "join" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse([]byte("provider:\n  client_id: abc\n"))
			require.NoError(t, err)

			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRelayAddr(t *testing.T) {
	cfg := &Config{CallbackURL: "http://127.0.0.1:30080/join"}
	addr, err := cfg.RelayAddr()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:30080", addr)

	cfg.CallbackURL = "http://localhost/join"
	addr, err = cfg.RelayAddr()
	require.NoError(t, err)
	assert.Equal(t, "localhost:80", addr)

	cfg.Relay.Listen = ":9999"
	addr, err = cfg.RelayAddr()
	require.NoError(t, err)
	assert.Equal(t, ":9999", addr)
}
