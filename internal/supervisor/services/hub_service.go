// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package services

import (
	"context"
)

// ContextRunner is satisfied by *hub.Hub and *backplane.Relay.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the connection hub as a supervised service.
//
// RunWithContext blocks until ctx ends and then disconnects every client
// with a shutdown reason, so this wrapper only delegates and names it.
type HubService struct {
	hub  ContextRunner
	name string
}

// NewHubService creates a new hub service wrapper.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{
		hub:  hub,
		name: "connection-hub",
	}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for logging.
func (s *HubService) String() string {
	return s.name
}
