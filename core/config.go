package core

import (
	"fmt"
	"strings"
	"time"
)

type TokenConfig struct {
	Issuer     string        `koanf:"issuer" mapstructure:"issuer"`
	SigningKey string        `koanf:"signing_key" mapstructure:"signing_key"`
	AccessTTL  time.Duration `koanf:"access_ttl" mapstructure:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl" mapstructure:"refresh_ttl"`
}

type SessionConfig struct {
	AccessCacheTTL  time.Duration `koanf:"access_cache_ttl" mapstructure:"access_cache_ttl"`
	RefreshCacheTTL time.Duration `koanf:"refresh_cache_ttl" mapstructure:"refresh_cache_ttl"`
}

type VerificationConfig struct {
	FlagTTL time.Duration `koanf:"flag_ttl" mapstructure:"flag_ttl"`
}

type SnapshotConfig struct {
	TTL time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type EnrichmentConfig struct {
	Endpoint string        `koanf:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Tokens       TokenConfig        `koanf:"tokens" mapstructure:"tokens"`
	Sessions     SessionConfig      `koanf:"sessions" mapstructure:"sessions"`
	Verification VerificationConfig `koanf:"verification" mapstructure:"verification"`
	Snapshots    SnapshotConfig     `koanf:"snapshots" mapstructure:"snapshots"`
	Enrichment   EnrichmentConfig   `koanf:"enrichment" mapstructure:"enrichment"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "identity",
		Tokens: TokenConfig{
			Issuer:     "identity",
			AccessTTL:  2 * time.Hour,
			RefreshTTL: 48 * time.Hour,
		},
		Sessions: SessionConfig{
			AccessCacheTTL:  2 * time.Hour,
			RefreshCacheTTL: 7 * 24 * time.Hour,
		},
		Verification: VerificationConfig{
			FlagTTL: 10 * time.Minute,
		},
		Snapshots: SnapshotConfig{
			TTL: 30 * time.Minute,
		},
		Enrichment: EnrichmentConfig{
			Timeout: 10 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Tokens.AccessTTL <= 0 {
		return fmt.Errorf("core: tokens.access_ttl must be positive")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return fmt.Errorf("core: tokens.refresh_ttl must be positive")
	}
	if c.Sessions.AccessCacheTTL <= 0 {
		return fmt.Errorf("core: sessions.access_cache_ttl must be positive")
	}
	if c.Sessions.RefreshCacheTTL <= 0 {
		return fmt.Errorf("core: sessions.refresh_cache_ttl must be positive")
	}
	if c.Verification.FlagTTL <= 0 {
		return fmt.Errorf("core: verification.flag_ttl must be positive")
	}
	if c.Snapshots.TTL <= 0 {
		return fmt.Errorf("core: snapshots.ttl must be positive")
	}
	if c.Enrichment.Timeout <= 0 {
		return fmt.Errorf("core: enrichment.timeout must be positive")
	}
	return nil
}
