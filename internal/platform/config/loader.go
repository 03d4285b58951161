package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the YAML file checked when no path is given.
const DefaultConfigFile = "portal.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load(yamlPath string) (*Config, error) {
	if yamlPath == "" {
		yamlPath = DefaultConfigFile
	}
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)

	if cfg.Session.SigningKey == "" && cfg.IsDev() {
		cfg.Session.SigningKey = DevSigningKey
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays non-empty PORTAL_* variables onto cfg.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "PORTAL_ADDR")
	setString(&cfg.Server.Environment, "PORTAL_ENV")
	setString(&cfg.Server.BaseDomain, "PORTAL_BASE_DOMAIN")
	setDuration(&cfg.Server.RequestTimeout, "PORTAL_REQUEST_TIMEOUT")
	setInt64(&cfg.Server.MaxBodyBytes, "PORTAL_MAX_BODY_BYTES")
	setList(&cfg.Server.TrustedProxies, "PORTAL_TRUSTED_PROXIES")

	setString(&cfg.Database.URL, "DATABASE_URL")
	setInt(&cfg.Database.MaxOpenConns, "PORTAL_DB_MAX_OPEN_CONNS")
	setInt(&cfg.Database.MaxIdleConns, "PORTAL_DB_MAX_IDLE_CONNS")

	setString(&cfg.Session.SigningKey, "PORTAL_SESSION_SIGNING_KEY")
	setString(&cfg.Session.Issuer, "PORTAL_SESSION_ISSUER")
	setString(&cfg.Session.Audience, "PORTAL_SESSION_AUDIENCE")
	setDuration(&cfg.Session.TTL, "PORTAL_SESSION_TTL")
	setString(&cfg.Session.CookieName, "PORTAL_SESSION_COOKIE")

	setString(&cfg.Tenant.FallbackSubdomain, "PORTAL_FALLBACK_SUBDOMAIN")
	setString(&cfg.Tenant.FallbackName, "PORTAL_FALLBACK_NAME")
	setInt(&cfg.Tenant.BreakerFailures, "PORTAL_TENANT_BREAKER_FAILURES")

	setInt64(&cfg.ViewCache.MaxCost, "PORTAL_VIEW_CACHE_MAX_COST")
	setDuration(&cfg.ViewCache.TTL, "PORTAL_VIEW_CACHE_TTL")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "PORTAL_NATS_SUBJECT")

	setString(&cfg.Log.Level, "PORTAL_LOG_LEVEL")
	setBool(&cfg.LocalMode, "PORTAL_LOCAL_MODE")
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Server.BaseDomain == "" {
		return errors.New("server.base_domain is required")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if cfg.Session.SigningKey == "" {
		return errors.New("session.signing_key is required outside dev")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if cfg.ViewCache.MaxCost <= 0 {
		return errors.New("view_cache.max_cost must be positive")
	}
	if cfg.ViewCache.TTL <= 0 {
		return errors.New("view_cache.ttl must be positive")
	}
	if cfg.Tenant.BreakerFailures < 1 {
		return errors.New("tenant.breaker_failures must be >= 1")
	}
	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses Server.TrustedProxies. Bare addresses are
// treated as single-host prefixes.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, raw := range c.Server.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.Split(v, ",")
	}
}
