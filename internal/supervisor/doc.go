// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package supervisor provides process supervision for the hub using suture v4.

Long-running services are grouped into three child supervisors so a crash
in one layer restarts only that layer:

	RootSupervisor ("pinksync-hub")
	├── BackplaneSupervisor ("backplane-layer")
	│   ├── EmbeddedNATSService (if backplane.embedded_nats)
	│   └── RelayService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── HubService
	│   └── event source (if event_source.enabled)
	└── APISupervisor ("api-layer")
	    ├── HTTPServerService "transport-http"
	    └── HTTPServerService "ops-http"

Supervisor events (start, stop, failure, backoff) are logged through
sutureslog into the zerolog-backed slog logger from internal/logging.

Usage in main:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddBackplaneService(services.NewRelayService(relay))
	tree.AddMessagingService(services.NewHubService(h))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

Service adapters live in the services subpackage.
*/
package supervisor
