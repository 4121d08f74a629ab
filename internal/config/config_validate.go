// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateOps,
		c.validateTransport,
		c.validateBackplane,
		c.validateDispatch,
		c.validateEventSource,
		c.validateAuth,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func validatePort(port int, envVar string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", envVar, port)
	}
	return nil
}

func (c *Config) validateServer() error {
	return validatePort(c.Server.Port, "PORT")
}

// validateOps validates the operational listener. It must not share the
// transport port.
func (c *Config) validateOps() error {
	if err := validatePort(c.Ops.Port, "OPS_PORT"); err != nil {
		return err
	}
	if c.Ops.Port == c.Server.Port {
		return fmt.Errorf("OPS_PORT must differ from PORT (both %d)", c.Ops.Port)
	}
	return c.validateRateLimits()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Ops.RateLimitDisabled {
		return nil
	}
	if c.Ops.RateLimitRequests < minRateLimitRequests || c.Ops.RateLimitRequests > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Ops.RateLimitWindow < minRateLimitWindow || c.Ops.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateTransport() error {
	t := c.Transport
	if t.PingInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL must be positive, got %v", t.PingInterval)
	}
	if t.PingTimeout <= 0 {
		return fmt.Errorf("PING_TIMEOUT must be positive, got %v", t.PingTimeout)
	}
	if t.WriteWait <= 0 {
		return fmt.Errorf("transport.write_wait must be positive, got %v", t.WriteWait)
	}
	if t.SendBuffer < 1 {
		return fmt.Errorf("SEND_BUFFER must be at least 1, got %d", t.SendBuffer)
	}
	if t.MaxMessageSize < 1 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must be at least 1, got %d", t.MaxMessageSize)
	}
	if t.InboundRate < 0 {
		return fmt.Errorf("INBOUND_RATE must not be negative")
	}
	if t.InboundRate > 0 && t.InboundBurst < 1 {
		return fmt.Errorf("INBOUND_BURST must be at least 1 when INBOUND_RATE is set")
	}
	for _, o := range t.AllowedOrigins {
		if o != "*" && !strings.Contains(o, "://") {
			return fmt.Errorf("ALLOWED_ORIGINS entry %q must be * or a scheme://host origin", o)
		}
	}
	return nil
}

func (c *Config) validateBackplane() error {
	b := c.Backplane
	if b.URL != "" {
		if err := validateBackplaneURL(b.URL); err != nil {
			return fmt.Errorf("BACKPLANE_URL is invalid: %w", err)
		}
	}
	if b.EmbeddedNATS {
		if err := validatePort(b.EmbeddedPort, "BACKPLANE_EMBEDDED_PORT"); err != nil {
			return err
		}
	}
	if b.SubjectPrefix == "" || strings.ContainsAny(b.SubjectPrefix, " *>") {
		return fmt.Errorf("BACKPLANE_SUBJECT must be a non-empty NATS subject without wildcards, got %q", b.SubjectPrefix)
	}
	if b.RedisPrefix == "" {
		return fmt.Errorf("BACKPLANE_REDIS_PREFIX must not be empty")
	}
	if b.BackoffInitial <= 0 || b.BackoffMax < b.BackoffInitial {
		return fmt.Errorf("backplane backoff must satisfy 0 < backoff_initial <= backoff_max")
	}
	if b.BreakerFailureThreshold < 1 {
		return fmt.Errorf("backplane.breaker_failure_threshold must be at least 1")
	}
	return nil
}

func (c *Config) validateDispatch() error {
	d := c.Dispatch
	if d.GeneralRoom == "" {
		return fmt.Errorf("GENERAL_ROOM must not be empty")
	}
	if d.SendTimeout <= 0 {
		return fmt.Errorf("DISPATCH_SEND_TIMEOUT must be positive, got %v", d.SendTimeout)
	}
	if d.MaxConcurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1, got %d", d.MaxConcurrency)
	}
	return nil
}

func (c *Config) validateEventSource() error {
	e := c.EventSource
	if !e.Enabled {
		return nil
	}
	if e.MinInterval <= 0 {
		return fmt.Errorf("EVENT_SOURCE_MIN_INTERVAL must be positive, got %v", e.MinInterval)
	}
	if e.MaxInterval < e.MinInterval {
		return fmt.Errorf("EVENT_SOURCE_MAX_INTERVAL (%v) must not be less than EVENT_SOURCE_MIN_INTERVAL (%v)",
			e.MaxInterval, e.MinInterval)
	}
	return nil
}

// minJWTSecretLength matches the HMAC-SHA256 key size.
const minJWTSecretLength = 32

func (c *Config) validateAuth() error {
	a := c.Auth
	if a.JWTSecret != "" {
		if len(a.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
		}
		if containsPlaceholder(a.JWTSecret) {
			return fmt.Errorf("JWT_SECRET contains a placeholder value, set a real secret")
		}
	}
	for i, h := range a.APIKeyHashes {
		if !strings.HasPrefix(h, "$2") {
			return fmt.Errorf("API_KEY_HASHES entry %d is not a bcrypt hash", i)
		}
	}
	if a.Required && a.JWTSecret == "" && !a.TrustClientUserID {
		return fmt.Errorf("AUTH_REQUIRED=true needs JWT_SECRET or TRUST_CLIENT_USER_ID=true, otherwise no connection can authenticate")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns indicate a secret copied from an example file.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
