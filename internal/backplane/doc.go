// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package backplane relays dispatched events between hub instances.

Every dispatch is delivered locally first and then published once per
target room. Each instance runs a Relay subscribed to all rooms; it hands
messages from other instances to the dispatcher's local-only Deliver and
drops its own echoes by comparing the origin server id.

Implementations:

  - Noop: single-instance mode (no URL configured)
  - Watermill: any watermill publisher/subscriber; NewNATS (core NATS via
    watermill-nats) and NewInMemory (gochannel) build on it
  - Redis: go-redis pub/sub with a JSON envelope

Breaker adds a circuit breaker around Publish. EmbeddedServer runs an
in-process NATS server.

Delivery across instances is at-most-once. A relayed event is never
re-published, so there are no loops.
*/
package backplane
