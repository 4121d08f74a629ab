// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

// Package services adapts the hub's long-running components to
// suture.Service so the supervisor tree can start, restart and stop them.
//
// Each adapter depends on a narrow interface rather than the concrete
// type, so the package imports neither hub nor backplane:
//
//   - HTTPServerService: *http.Server (ListenAndServe or a pre-bound listener)
//   - HubService, RelayService: anything with RunWithContext(ctx) error
//   - EmbeddedNATSService: a started in-process broker, stopped on shutdown
//
// The event source implements suture.Service itself and needs no adapter.
package services
