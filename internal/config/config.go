// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all hub configuration. Values are layered by LoadWithKoanf:
// struct defaults, then an optional YAML file, then environment variables.
type Config struct {
	Instance    InstanceConfig    `koanf:"instance"`
	Server      ServerConfig      `koanf:"server"`
	Ops         OpsConfig         `koanf:"ops"`
	Transport   TransportConfig   `koanf:"transport"`
	Backplane   BackplaneConfig   `koanf:"backplane"`
	Dispatch    DispatchConfig    `koanf:"dispatch"`
	EventSource EventSourceConfig `koanf:"event_source"`
	Auth        AuthConfig        `koanf:"auth"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// InstanceConfig identifies this process among its peers.
type InstanceConfig struct {
	// ID overrides the generated server identity (SERVER_ID).
	ID string `koanf:"id"`

	// Revision is the deployment revision (K_REVISION on Cloud Run). Used as
	// the identity when ID is empty.
	Revision string `koanf:"revision"`
}

// ServerConfig is the persistent-transport listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// OpsConfig is the operational HTTP listener (/health, /metrics).
type OpsConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns host:port for net.Listen.
func (o OpsConfig) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// TransportConfig tunes the WebSocket transport.
type TransportConfig struct {
	// PingInterval is how often the server pings each connection.
	PingInterval time.Duration `koanf:"ping_interval"`

	// PingTimeout is the grace period after a missed ping. The read
	// deadline is PingInterval + PingTimeout.
	PingTimeout time.Duration `koanf:"ping_timeout"`

	WriteWait        time.Duration `koanf:"write_wait"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	SendBuffer       int           `koanf:"send_buffer"`
	ReadBufferSize   int           `koanf:"read_buffer_size"`
	WriteBufferSize  int           `koanf:"write_buffer_size"`

	// AllowedOrigins is the browser Origin allowlist. "*" allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// AllowEmptyOrigin admits non-browser clients that send no Origin header.
	AllowEmptyOrigin bool `koanf:"allow_empty_origin"`

	// InboundRate and InboundBurst bound client frames per second.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`

	// EmitErrorFrames sends error frames for malformed input instead of
	// dropping it silently.
	EmitErrorFrames bool `koanf:"emit_error_frames"`
}

// BackplaneConfig selects and tunes the cross-instance relay.
type BackplaneConfig struct {
	// URL selects the adapter by scheme: nats://, redis://, rediss://,
	// memory://. Empty runs single-instance.
	URL string `koanf:"url"`

	// Required makes a backplane open failure fatal at startup.
	Required bool `koanf:"required"`

	// EmbeddedNATS starts an in-process NATS server and, when URL is empty,
	// points the backplane at it.
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`

	SubjectPrefix  string        `koanf:"subject_prefix"`
	RedisPrefix    string        `koanf:"redis_prefix"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`

	BackoffInitial time.Duration `koanf:"backoff_initial"`
	BackoffMax     time.Duration `koanf:"backoff_max"`

	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// DispatchConfig tunes event fan-out.
type DispatchConfig struct {
	GeneralRoom      string        `koanf:"general_room"`
	SendTimeout      time.Duration `koanf:"send_timeout"`
	MaxConcurrency   int           `koanf:"max_concurrency"`
	ValidatePayloads bool          `koanf:"validate_payloads"`
}

// EventSourceConfig controls the synthetic event generator.
type EventSourceConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MinInterval time.Duration `koanf:"min_interval"`
	MaxInterval time.Duration `koanf:"max_interval"`
}

// AuthConfig configures handshake credential checks.
type AuthConfig struct {
	// Required rejects connections that resolve no user id.
	Required bool `koanf:"required"`

	// JWTSecret verifies HMAC-signed tokens. Empty disables token checks.
	JWTSecret string `koanf:"jwt_secret"`

	// APIKeyHashes are bcrypt hashes of accepted API keys. Empty accepts
	// any key.
	APIKeyHashes []string `koanf:"api_key_hashes"`

	// TrustClientUserID accepts the user_id the client sends.
	TrustClientUserID bool `koanf:"trust_client_user_id"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load reads configuration from defaults, an optional config file and the
// environment. See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf("")
}
