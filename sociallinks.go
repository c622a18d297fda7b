package sociallinks

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	"github.com/goliatone/go-social-links/core"
	sqlstore "github.com/goliatone/go-social-links/store/sql"
)

type (
	SocialAccountLink    = core.SocialAccountLink
	Platform             = core.Platform
	LinkAccountInput     = core.LinkAccountInput
	UnlinkRequest        = core.UnlinkRequest
	UnlinkResult         = core.UnlinkResult
	AccountFilter        = core.AccountFilter
	RefreshAllRequest    = core.RefreshAllRequest
	RefreshStats         = core.RefreshStats
	EngagementCheck      = core.EngagementCheck
	PlatformCapabilities = core.PlatformCapabilities
	DatabaseConfig       = sqlstore.DatabaseConfig
)

const (
	PlatformFacebook  = core.PlatformFacebook
	PlatformInstagram = core.PlatformInstagram
	PlatformTwitter   = core.PlatformTwitter
	PlatformTikTok    = core.PlatformTikTok
	PlatformYouTube   = core.PlatformYouTube
)

// SecurityConfig holds the active app key. RetiredKeys stay readable so
// credentials sealed before a rotation still open.
type SecurityConfig struct {
	AppKey      string       `koanf:"app_key" mapstructure:"app_key"`
	KeyID       string       `koanf:"key_id" mapstructure:"key_id"`
	KeyVersion  int          `koanf:"key_version" mapstructure:"key_version"`
	RetiredKeys []RetiredKey `koanf:"retired_keys" mapstructure:"retired_keys"`
}

type RetiredKey struct {
	AppKey     string    `koanf:"app_key" mapstructure:"app_key"`
	KeyID      string    `koanf:"key_id" mapstructure:"key_id"`
	KeyVersion int       `koanf:"key_version" mapstructure:"key_version"`
	NotAfter   time.Time `koanf:"not_after" mapstructure:"not_after"`
}

type CacheConfig struct {
	Enabled bool          `koanf:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

// Config is everything Setup needs to build a running link service.
// Platforms maps a platform name to an API base URL override.
type Config struct {
	Core      core.Config       `koanf:"core" mapstructure:"core"`
	Database  DatabaseConfig    `koanf:"database" mapstructure:"database"`
	Security  SecurityConfig    `koanf:"security" mapstructure:"security"`
	Cache     CacheConfig       `koanf:"cache" mapstructure:"cache"`
	Platforms map[string]string `koanf:"platforms" mapstructure:"platforms"`
}

func DefaultConfig() Config {
	return Config{
		Core: core.DefaultConfig(),
		Database: DatabaseConfig{
			Driver: sqlstore.DriverSQLite,
		},
		Security: SecurityConfig{
			KeyID:      "app-key",
			KeyVersion: 1,
		},
		Cache: CacheConfig{
			TTL: time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if err := c.Core.Validate(); err != nil {
		return err
	}
	switch c.Database.NormalizedDriver() {
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
	default:
		return fmt.Errorf("sociallinks: unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Security.AppKey) == "" {
		return fmt.Errorf("sociallinks: security.app_key is required")
	}
	if c.Security.KeyVersion < 0 {
		return fmt.Errorf("sociallinks: security.key_version must not be negative")
	}
	for i, retired := range c.Security.RetiredKeys {
		if strings.TrimSpace(retired.AppKey) == "" {
			return fmt.Errorf("sociallinks: security.retired_keys[%d].app_key is required", i)
		}
		if retired.KeyVersion >= c.Security.KeyVersion {
			return fmt.Errorf("sociallinks: security.retired_keys[%d].key_version must be below the active version", i)
		}
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("sociallinks: cache.ttl must be positive when the cache is enabled")
	}
	for name := range c.Platforms {
		if _, err := core.ParsePlatform(name); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig decodes a raw map, typically read from a file or environment by
// the host, over DefaultConfig and validates the result.
func LoadConfig(raw map[string]any) (Config, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(DefaultConfig()),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}
