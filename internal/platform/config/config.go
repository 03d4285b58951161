package config

import (
	"time"
)

// DevSigningKey signs session tokens when no key is configured in dev.
const DevSigningKey = "dev-secret-key-change-in-production"

// Config is the full portal configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Session   Session   `yaml:"session"`
	Tenant    Tenant    `yaml:"tenant"`
	ViewCache ViewCache `yaml:"view_cache"`
	NATS      NATS      `yaml:"nats"`
	Log       Log       `yaml:"log"`
	// LocalMode serves demo data and sample GeoJSON when the database is
	// absent or failing.
	LocalMode bool `yaml:"local_mode"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string        `yaml:"addr"`
	Environment    string        `yaml:"environment"`
	BaseDomain     string        `yaml:"base_domain"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
}

type Database struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// Session configures validation and minting of session tokens.
type Session struct {
	SigningKey string        `yaml:"signing_key"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookie_name"`
}

// Tenant names the fallback city served for unknown subdomains.
type Tenant struct {
	FallbackSubdomain string `yaml:"fallback_subdomain"`
	FallbackName      string `yaml:"fallback_name"`
	BreakerFailures   int    `yaml:"breaker_failures"`
}

type ViewCache struct {
	MaxCost int64         `yaml:"max_cost"`
	TTL     time.Duration `yaml:"ttl"`
}

// NATS is optional; an empty URL keeps invalidations process-local.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:           ":8080",
			Environment:    "dev",
			BaseDomain:     "portal.localhost",
			RequestTimeout: 15 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Database: Database{
			MaxOpenConns: 25,
			MaxIdleConns: 25,
		},
		Session: Session{
			Issuer:     "civicportal",
			Audience:   "civicportal",
			TTL:        8 * time.Hour,
			CookieName: "portal_session",
		},
		Tenant: Tenant{
			FallbackSubdomain: "www",
			FallbackName:      "Civic Portal",
			BreakerFailures:   5,
		},
		ViewCache: ViewCache{
			MaxCost: 10_000,
			TTL:     5 * time.Minute,
		},
		NATS: NATS{
			Subject: "portal.views.invalidate",
		},
		Log: Log{Level: "info"},
	}
}

// IsDev reports whether the server runs in the development environment.
func (c Config) IsDev() bool {
	return c.Server.Environment == "dev"
}
