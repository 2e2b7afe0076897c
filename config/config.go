// Package config loads service configuration from the environment once at startup.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/layer-3/walletgate/core"
)

// MinSecretLength mirrors the tokenizer's requirement so misconfiguration fails before wiring
const MinSecretLength = 32

// Config holds every setting the service needs
type Config struct {
	HTTPAddr string `env:"WALLETGATE_HTTP_ADDR" envDefault:":9000"`

	JWTSecret  string        `env:"WALLETGATE_JWT_SECRET"`
	SessionTTL time.Duration `env:"WALLETGATE_SESSION_TTL" envDefault:"168h"`
	NonceTTL   time.Duration `env:"WALLETGATE_NONCE_TTL"   envDefault:"10m"`

	Cookie CookieConfig

	AllowedDomains []string `env:"WALLETGATE_SIWE_DOMAINS" envSeparator:","`
	EthRPCURL      string   `env:"WALLETGATE_ETH_RPC_URL"`

	RedisURL string `env:"WALLETGATE_REDIS_URL"`
	DBPath   string `env:"WALLETGATE_DB_PATH"`

	RateLimit float64 `env:"WALLETGATE_RATE_LIMIT" envDefault:"5"`
	RateBurst int     `env:"WALLETGATE_RATE_BURST" envDefault:"10"`

	// Proxies allowed to set X-Forwarded-For, as IPs or CIDRs
	TrustedProxies []string `env:"WALLETGATE_TRUSTED_PROXIES" envSeparator:","`

	LogLevel  string `env:"WALLETGATE_LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"WALLETGATE_LOG_PRETTY" envDefault:"false"`
}

// CookieConfig controls the attributes of the cookies the service sets
type CookieConfig struct {
	Domain      string `env:"WALLETGATE_COOKIE_DOMAIN"`
	Secure      bool   `env:"WALLETGATE_COOKIE_SECURE" envDefault:"true"`
	BindingName string `env:"WALLETGATE_BINDING_COOKIE" envDefault:"siwe"`
	SessionName string `env:"WALLETGATE_SESSION_COOKIE" envDefault:"auth_token"`
}

// Load parses the environment and validates the result
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with
func (c Config) Validate() error {
	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("WALLETGATE_JWT_SECRET must be set to at least %d bytes: %w", MinSecretLength, core.ErrSigningKeyMisconfigured)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("WALLETGATE_SESSION_TTL must be positive")
	}
	if c.NonceTTL <= 0 {
		return fmt.Errorf("WALLETGATE_NONCE_TTL must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("WALLETGATE_RATE_LIMIT and WALLETGATE_RATE_BURST must be positive")
	}
	if c.Cookie.BindingName == "" || c.Cookie.SessionName == "" {
		return fmt.Errorf("cookie names must not be empty")
	}
	for _, proxy := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return fmt.Errorf("WALLETGATE_TRUSTED_PROXIES: %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}
