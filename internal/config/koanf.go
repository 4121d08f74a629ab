// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pinksync/config.yaml",
	"/etc/pinksync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the process environment before layering, if present.
const DotEnvFile = ".env"

// DefaultAllowedOrigins are the PinkSync front-ends plus local development.
var DefaultAllowedOrigins = []string{
	"https://pinksync.io",
	"https://deafauth.pinksync.io",
	"https://app.pinksync.io",
	"https://trust.pinksync.io",
	"https://docs.pinksync.io",
	"http://localhost:3000",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8765,
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Ops: OpsConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Transport: TransportConfig{
			PingInterval:     20 * time.Second,
			PingTimeout:      10 * time.Second,
			WriteWait:        10 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			MaxMessageSize:   512 * 1024,
			SendBuffer:       256,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			AllowedOrigins:   append([]string(nil), DefaultAllowedOrigins...),
			AllowEmptyOrigin: true,
			InboundRate:      20,
			InboundBurst:     40,
		},
		Backplane: BackplaneConfig{
			EmbeddedHost:            "127.0.0.1",
			EmbeddedPort:            4222,
			SubjectPrefix:           "pinksync.rooms",
			RedisPrefix:             "pinksync:rooms",
			PublishTimeout:          2 * time.Second,
			BackoffInitial:          500 * time.Millisecond,
			BackoffMax:              30 * time.Second,
			BreakerMaxRequests:      1,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 5,
		},
		Dispatch: DispatchConfig{
			GeneralRoom:    "pinksync_general",
			SendTimeout:    time.Second,
			MaxConcurrency: 64,
		},
		EventSource: EventSourceConfig{
			Enabled:     true,
			MinInterval: time.Second,
			MaxInterval: 5 * time.Second,
		},
		Auth: AuthConfig{
			TrustClientUserID: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers, each overriding the last:
//
//  1. Defaults: built-in values from defaultConfig
//  2. Config File: path, else CONFIG_PATH, else the first of DefaultConfigPaths
//  3. Environment Variables: the names listed in envMappings
//
// A .env file in the working directory is loaded into the environment
// first; variables already set in the process win over it.
func LoadWithKoanf(path string) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional unless named explicitly)
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile resolves the config file. An explicit path must exist;
// CONFIG_PATH and the default paths are skipped when missing.
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"transport.allowed_origins",
	"ops.cors_origins",
	"auth.api_key_hashes",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings; YAML lists are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config paths.
// REDIS_URL is the name the original deployment used; NATS_URL and
// BACKPLANE_URL are aliases for the same key.
var envMappings = map[string]string{
	"server_id":  "instance.id",
	"k_revision": "instance.revision",

	"port":                    "server.port",
	"host":                    "server.host",
	"server_read_timeout":     "server.read_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",

	"ops_port":            "ops.port",
	"ops_host":            "ops.host",
	"cors_origins":        "ops.cors_origins",
	"rate_limit_requests": "ops.rate_limit_requests",
	"rate_limit_window":   "ops.rate_limit_window",
	"disable_rate_limit":  "ops.rate_limit_disabled",

	"allowed_origins":    "transport.allowed_origins",
	"allow_empty_origin": "transport.allow_empty_origin",
	"ping_interval":      "transport.ping_interval",
	"ping_timeout":       "transport.ping_timeout",
	"max_message_size":   "transport.max_message_size",
	"send_buffer":        "transport.send_buffer",
	"inbound_rate":       "transport.inbound_rate",
	"inbound_burst":      "transport.inbound_burst",
	"emit_error_frames":  "transport.emit_error_frames",

	"backplane_url":           "backplane.url",
	"redis_url":               "backplane.url",
	"nats_url":                "backplane.url",
	"backplane_required":      "backplane.required",
	"backplane_embedded_nats": "backplane.embedded_nats",
	"backplane_embedded_port": "backplane.embedded_port",
	"backplane_subject":       "backplane.subject_prefix",
	"backplane_redis_prefix":  "backplane.redis_prefix",

	"general_room":            "dispatch.general_room",
	"dispatch_send_timeout":   "dispatch.send_timeout",
	"dispatch_concurrency":    "dispatch.max_concurrency",
	"validate_event_payloads": "dispatch.validate_payloads",

	"event_source_enabled":      "event_source.enabled",
	"event_source_min_interval": "event_source.min_interval",
	"event_source_max_interval": "event_source.max_interval",

	"jwt_secret":           "auth.jwt_secret",
	"api_key_hashes":       "auth.api_key_hashes",
	"auth_required":        "auth.required",
	"trust_client_user_id": "auth.trust_client_user_id",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so unrelated environment
// never leaks into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes. The
// caller is responsible for synchronizing access to a reloaded Config.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
