// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	TLS       TLSConfig       `yaml:"tls"`
	WebAuthn  WebAuthnConfig  `yaml:"webauthn"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Health    HealthConfig    `yaml:"health"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// RedactSensitive controls whether credential identifiers and user
	// handles are masked in log output. Enabled by default.
	RedactSensitive *bool `yaml:"redact_sensitive,omitempty"`
}

// TLSConfig controls TLS/SSL settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// WebAuthnConfig controls ceremony behavior. The relying party ID and
// origin are derived per request from the Host and Origin headers;
// only the display name and verification policies come from config.
type WebAuthnConfig struct {
	RPDisplayName string        `yaml:"rp_display_name"`
	ChallengeTTL  time.Duration `yaml:"challenge_ttl"`

	UserVerification      string `yaml:"user_verification"`
	ResidentKey           string `yaml:"resident_key"`
	AttestationPreference string `yaml:"attestation"`
	StrictCredentialMatch bool   `yaml:"strict_credential_match"`
	RejectCounterRollback bool   `yaml:"reject_counter_rollback"`
}

// SessionConfig controls the JWT session issuer
type SessionConfig struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	Audience  []string      `yaml:"audience"`
	ExpiresIn time.Duration `yaml:"expires_in"`

	// CookieSecure marks the session cookie Secure. Should be true
	// whenever the server terminates TLS or sits behind an HTTPS proxy.
	CookieSecure bool `yaml:"cookie_secure"`
}

// RateLimitConfig controls rate limiting
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// MetricsConfig controls metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls health check endpoints
type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	redact := true
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:           "info",
			Format:          "json",
			RedactSensitive: &redact,
		},
		WebAuthn: WebAuthnConfig{
			RPDisplayName:         "Passkey Server",
			ChallengeTTL:          5 * time.Minute,
			UserVerification:      "preferred",
			ResidentKey:           "preferred",
			AttestationPreference: "none",
		},
		Session: SessionConfig{
			Issuer:    "go-passkey",
			ExpiresIn: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 120,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. An empty path yields the defaults with overrides
// applied, so the server can start without a config file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Server settings
	if host, ok := os.LookupEnv("PASSKEY_HOST"); ok {
		cfg.Server.Host = host
	}
	if port := os.Getenv("PASSKEY_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				port, cfg.Server.Port, err)
		} else if p < 1 || p > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				port, cfg.Server.Port)
		} else {
			cfg.Server.Port = p
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// TLS
	if cert := os.Getenv("PASSKEY_TLS_CERT"); cert != "" {
		cfg.TLS.CertFile = cert
		cfg.TLS.Enabled = true
	}
	if key := os.Getenv("PASSKEY_TLS_KEY"); key != "" {
		cfg.TLS.KeyFile = key
		cfg.TLS.Enabled = true
	}

	// WebAuthn
	if name := os.Getenv("PASSKEY_RP_DISPLAY_NAME"); name != "" {
		cfg.WebAuthn.RPDisplayName = name
	}
	if ttl := os.Getenv("PASSKEY_CHALLENGE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			log.Printf("Warning: invalid PASSKEY_CHALLENGE_TTL value %q, using default %s",
				ttl, cfg.WebAuthn.ChallengeTTL)
		} else {
			cfg.WebAuthn.ChallengeTTL = d
		}
	}

	// Session
	if secret := os.Getenv("PASSKEY_SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}
	if issuer := os.Getenv("PASSKEY_SESSION_ISSUER"); issuer != "" {
		cfg.Session.Issuer = issuer
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate TLS settings
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	// Validate ceremony settings
	if c.WebAuthn.ChallengeTTL <= 0 {
		return fmt.Errorf("webauthn challenge_ttl must be positive")
	}
	validVerification := map[string]bool{
		"required": true, "preferred": true, "discouraged": true,
	}
	if c.WebAuthn.UserVerification != "" && !validVerification[c.WebAuthn.UserVerification] {
		return fmt.Errorf("invalid user_verification: %s", c.WebAuthn.UserVerification)
	}
	if c.WebAuthn.ResidentKey != "" && !validVerification[c.WebAuthn.ResidentKey] {
		return fmt.Errorf("invalid resident_key: %s", c.WebAuthn.ResidentKey)
	}

	// Validate session settings
	if c.Session.ExpiresIn <= 0 {
		return fmt.Errorf("session expires_in must be positive")
	}

	// Validate rate limit settings
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("ratelimit requests_per_min must be positive when enabled")
	}

	return nil
}

// RedactEnabled reports whether sensitive values should be masked in
// logs. Defaults to true when unset.
func (c *LoggingConfig) RedactEnabled() bool {
	if c.RedactSensitive == nil {
		return true
	}
	return *c.RedactSensitive
}
