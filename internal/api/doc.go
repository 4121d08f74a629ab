// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package api builds the two HTTP routers the hub serves.

The ops router runs on its own listener (ops.port) and answers operational
checks:

	GET /health               liveness plus backplane status
	GET /metrics              connection count and active rooms as JSON
	GET /metrics/prometheus   Prometheus exposition

It carries request ids, Prometheus HTTP metrics, go-chi/cors and
go-chi/httprate limiting.

The transport router (server.port) mounts the WebSocket handler at /ws and
at / for legacy clients. It carries request ids and HTTP metrics only;
browsers reach it cross-origin, and origin policy is enforced by the
WebSocket handler itself.
*/
package api
