package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "@daily", cfg.Retention.Schedule)
	assert.Equal(t, 2*time.Second, cfg.Outbox.Interval)
	assert.Equal(t, 1024, cfg.Cache.UserLRUSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://audit@localhost/audit
retention:
  days: 90
  schedule: "0 3 * * *"
outbox:
  interval: 500ms
`), 0o600))
	t.Setenv("AUDITLOG_RETENTION_DAYS", "30")
	t.Setenv("AUDITLOG_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, "0 3 * * *", cfg.Retention.Schedule)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.Interval)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database:  DatabaseConfig{Driver: "sqlite", DSN: "a.db"},
			Retention: RetentionConfig{Days: 7, Schedule: "@daily"},
			Notify:    NotifyConfig{WebhookMinSeverity: "ERROR"},
		}
	}

	cases := map[string]func(*Config){
		"driver":       func(c *Config) { c.Database.Driver = "mysql" },
		"dsn":          func(c *Config) { c.Database.DSN = "" },
		"negative":     func(c *Config) { c.Retention.Days = -1 },
		"schedule":     func(c *Config) { c.Retention.Schedule = "every tuesday" },
		"severity":     func(c *Config) { c.Notify.WebhookMinSeverity = "LOUD" },
		"webhook auth": func(c *Config) { c.Notify.WebhookURL = "https://hooks.example" },
		"proxy":        func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/33"} },
	}
	require.NoError(t, base().Validate())
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestTrustedProxyPrefixes(t *testing.T) {
	t.Setenv("AUDITLOG_SERVER_TRUSTED_PROXIES", "10.1.2.3/8,192.0.2.7")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	prefixes, err := cfg.Server.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.7/32"),
	}, prefixes)

	_, err = ServerConfig{TrustedProxies: []string{"proxy.local"}}.TrustedProxyPrefixes()
	require.Error(t, err)
}
