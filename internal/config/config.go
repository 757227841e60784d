package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Retention RetentionConfig `mapstructure:"retention"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// TrustedProxies are CIDRs or single addresses allowed to set X-Forwarded-For.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`    // file path for sqlite
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`
}

// RetentionConfig drives the scheduled cleanup. Days of 0 disables it.
type RetentionConfig struct {
	Days     int    `mapstructure:"days"`
	Schedule string `mapstructure:"schedule"` // cron spec, e.g. "@daily"
}

type NotifyConfig struct {
	WebhookURL         string `mapstructure:"webhook_url"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	WebhookMinSeverity string `mapstructure:"webhook_min_severity"`
	RedisURL           string `mapstructure:"redis_url"`
	RedisStreamPrefix  string `mapstructure:"redis_stream_prefix"`
}

type OutboxConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	MaxRetry  int           `mapstructure:"max_retry"`
}

type CacheConfig struct {
	UserLRUSize int `mapstructure:"user_lru_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./auditlog.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "auditlog")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("retention.days", 0)
	v.SetDefault("retention.schedule", "@daily")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_secret", "")
	v.SetDefault("notify.webhook_min_severity", "ERROR")
	v.SetDefault("notify.redis_url", "")
	v.SetDefault("notify.redis_stream_prefix", "auditlog:")
	v.SetDefault("outbox.interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retry", 5)
	v.SetDefault("cache.user_lru_size", 1024)
}

// Load reads defaults, then the config file (path, or config.yaml in the
// working directory or /etc/auditlog/), then AUDITLOG_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/auditlog/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("AUDITLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.Retention.Days < 0 {
		return errors.New("retention.days must not be negative")
	}
	if c.Retention.Days > 0 {
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			return fmt.Errorf("retention.schedule: %w", err)
		}
	}
	if c.Notify.WebhookMinSeverity != "" {
		if _, err := domain.ParseSeverity(c.Notify.WebhookMinSeverity); err != nil {
			return fmt.Errorf("notify.webhook_min_severity: %w", err)
		}
	}
	if c.Notify.WebhookURL != "" && c.Notify.WebhookSecret == "" {
		return errors.New("notify.webhook_secret is required with notify.webhook_url")
	}
	return nil
}
