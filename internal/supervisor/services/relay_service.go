// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package services

import (
	"context"
)

// RelayService wraps the backplane relay. The relay resubscribes with its
// own backoff, so a return before ctx ends is a real failure for suture to
// restart.
type RelayService struct {
	relay ContextRunner
	name  string
}

// NewRelayService creates a new relay service wrapper.
func NewRelayService(relay ContextRunner) *RelayService {
	return &RelayService{
		relay: relay,
		name:  "backplane-relay",
	}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	return s.relay.RunWithContext(ctx)
}

// String implements fmt.Stringer for logging.
func (s *RelayService) String() string {
	return s.name
}
