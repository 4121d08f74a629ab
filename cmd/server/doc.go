// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package main is the entry point for the PinkSync real-time hub.

The hub accepts WebSocket clients, groups them into rooms and fans typed
events out to room members. Several instances can share one audience
through a backplane (NATS, Redis or an in-process bus for tests).

# Application Architecture

	RootSupervisor ("pinksync-hub")
	├── BackplaneSupervisor ("backplane-layer")
	│   ├── embedded NATS (optional)
	│   └── backplane relay (when a backplane is configured)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── connection hub
	│   └── synthetic event source (optional)
	└── APISupervisor ("api-layer")
	    ├── transport HTTP (server.port): /ws and /
	    └── ops HTTP (ops.port): /health, /metrics, /metrics/prometheus

Startup order:

 1. Flags (--config, --hash-api-key)
 2. Configuration: .env, defaults, YAML file, environment (koanf v2)
 3. Logging (zerolog)
 4. Server identity
 5. Backplane: optional embedded NATS, then Open and a circuit breaker
 6. Hub, dispatcher and relay
 7. Credential validator and WebSocket handler
 8. Listeners, bound before the tree starts so bind errors are fatal
 9. Supervisor tree, until SIGINT or SIGTERM

# Configuration

See internal/config for every key. Common variables:

	PORT=8000                 transport listener
	OPS_PORT=8001             ops listener
	ALLOWED_ORIGINS=...       comma-separated browser origins
	BACKPLANE_URL=nats://...  or redis://..., memory://name
	BACKPLANE_EMBEDDED_NATS=true
	EVENT_SOURCE_ENABLED=false
	JWT_SECRET=...            enables token checks
	API_KEY_HASHES=...        bcrypt hashes, see --hash-api-key
	LOG_LEVEL=info

# Example Usage

Single instance with synthetic events:

	./pinksync-hub

Two instances sharing an embedded broker on the first:

	BACKPLANE_EMBEDDED_NATS=true BACKPLANE_EMBEDDED_PORT=4222 PORT=8000 OPS_PORT=8001 ./pinksync-hub
	BACKPLANE_URL=nats://127.0.0.1:4222 PORT=8010 OPS_PORT=8011 ./pinksync-hub

Generating an API key hash:

	./pinksync-hub --hash-api-key "$KEY"
*/
package main
