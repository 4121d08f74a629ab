// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// ErrBrokerStopped is returned when the embedded broker exits on its own.
var ErrBrokerStopped = errors.New("embedded NATS server stopped unexpectedly")

// EmbeddedBroker matches *backplane.EmbeddedServer.
type EmbeddedBroker interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService owns the lifecycle of an embedded NATS server that
// main has already started, because the backplane must connect to it before
// the tree runs.
//
// Serve watches the server and shuts it down when ctx ends. An in-process
// server cannot be restarted in place, so a server that dies on its own is
// reported with suture.ErrDoNotRestart.
type EmbeddedNATSService struct {
	broker          EmbeddedBroker
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	name            string
}

// NewEmbeddedNATSService creates the service with a 5s liveness check and
// a 10s shutdown timeout.
func NewEmbeddedNATSService(broker EmbeddedBroker) *EmbeddedNATSService {
	return &EmbeddedNATSService{
		broker:          broker,
		checkInterval:   5 * time.Second,
		shutdownTimeout: 10 * time.Second,
		name:            "embedded-nats",
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.broker.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("embedded NATS shutdown failed: %w", err)
			}
			return ctx.Err()

		case <-ticker.C:
			if !s.broker.IsRunning() {
				return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, ErrBrokerStopped)
			}
		}
	}
}

// String implements fmt.Stringer for logging.
func (s *EmbeddedNATSService) String() string {
	return s.name
}
