// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package config loads and validates hub configuration.

# Configuration Sources

Values are layered with koanf, each source overriding the previous one:

  - Built-in defaults (defaultConfig)
  - A YAML file: the --config flag, CONFIG_PATH, or config.yaml /
    /etc/pinksync/config.yaml
  - Environment variables, including a .env file in the working directory

Only the variables listed in envMappings are read. Comma-separated values
are split for list settings (ALLOWED_ORIGINS, CORS_ORIGINS, API_KEY_HASHES).

# Environment Variables

Instance:
  - SERVER_ID: Instance identity stamped on every event
  - K_REVISION: Deployment revision, used when SERVER_ID is unset

Transport (persistent connections):
  - PORT, HOST: Listener address (default: 0.0.0.0:8765)
  - ALLOWED_ORIGINS: Browser origin allowlist, "*" for any
  - PING_INTERVAL, PING_TIMEOUT: Heartbeat (default: 20s / 10s)

Operational HTTP:
  - OPS_PORT: /health and /metrics listener (default: 8080)
  - CORS_ORIGINS, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Backplane:
  - BACKPLANE_URL (aliases REDIS_URL, NATS_URL): nats://, redis://,
    rediss:// or memory://; unset runs single-instance
  - BACKPLANE_EMBEDDED_NATS: Start an in-process NATS server

Event source:
  - EVENT_SOURCE_ENABLED, EVENT_SOURCE_MIN_INTERVAL, EVENT_SOURCE_MAX_INTERVAL

Auth:
  - JWT_SECRET, API_KEY_HASHES, AUTH_REQUIRED, TRUST_CLIENT_USER_ID

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Validation

Validate returns the first problem found, naming the environment variable
that controls the offending setting.
*/
package config
