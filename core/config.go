package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultHoursBeforeExpiry = 24
	DefaultRefreshWorkers    = 4
	DefaultManualPlaceholder = "manual_link_placeholder"
	DefaultManualIDPrefix    = "manual"
)

type RefreshConfig struct {
	HoursBeforeExpiry int           `koanf:"hours_before_expiry" mapstructure:"hours_before_expiry"`
	Workers           int           `koanf:"workers" mapstructure:"workers"`
	ItemTimeout       time.Duration `koanf:"item_timeout" mapstructure:"item_timeout"`
}

type ManualConfig struct {
	PlaceholderToken string `koanf:"placeholder_token" mapstructure:"placeholder_token"`
	IDPrefix         string `koanf:"id_prefix" mapstructure:"id_prefix"`
}

type TransportConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Refresh     RefreshConfig   `koanf:"refresh" mapstructure:"refresh"`
	Manual      ManualConfig    `koanf:"manual" mapstructure:"manual"`
	Transport   TransportConfig `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "sociallinks",
		Refresh: RefreshConfig{
			HoursBeforeExpiry: DefaultHoursBeforeExpiry,
			Workers:           DefaultRefreshWorkers,
			ItemTimeout:       30 * time.Second,
		},
		Manual: ManualConfig{
			PlaceholderToken: DefaultManualPlaceholder,
			IDPrefix:         DefaultManualIDPrefix,
		},
		Transport: TransportConfig{
			RequestTimeout: 15 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Refresh.HoursBeforeExpiry <= 0 {
		return fmt.Errorf("core: refresh.hours_before_expiry must be positive")
	}
	if c.Refresh.Workers <= 0 || c.Refresh.Workers > 64 {
		return fmt.Errorf("core: refresh.workers must be between 1 and 64")
	}
	if c.Refresh.ItemTimeout < 0 {
		return fmt.Errorf("core: refresh.item_timeout must not be negative")
	}
	if strings.TrimSpace(c.Manual.PlaceholderToken) == "" {
		return fmt.Errorf("core: manual.placeholder_token is required")
	}
	if strings.TrimSpace(c.Manual.IDPrefix) == "" {
		return fmt.Errorf("core: manual.id_prefix is required")
	}
	if c.Transport.RequestTimeout < 0 {
		return fmt.Errorf("core: transport.request_timeout must not be negative")
	}
	return nil
}
