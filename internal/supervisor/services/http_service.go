// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPServerService wraps an HTTP server as a supervised service.
//
// It translates http.Server's blocking serve call into suture's
// context-aware Serve:
//
//  1. Starts serving in a goroutine
//  2. Waits for either context cancellation or server error
//  3. On shutdown, calls Shutdown with a fresh timeout context
//
// Example usage:
//
//	ln, _ := net.Listen("tcp", cfg.Server.Addr())
//	svc := services.NewHTTPServerService(server, 10*time.Second).
//	    WithName("transport-http").
//	    WithListener(ln)
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	server          HTTPServer
	listener        net.Listener
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService creates a new HTTP server service wrapper.
//
// shutdownTimeout bounds the wait for in-flight requests during graceful
// shutdown. Hijacked WebSocket connections are not covered; the hub closes
// those itself.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// WithName sets the name suture logs for this service.
func (h *HTTPServerService) WithName(name string) *HTTPServerService {
	h.name = name
	return h
}

// WithListener serves on an already bound listener, so bind failures
// surface at startup instead of inside a restart loop.
func (h *HTTPServerService) WithListener(l net.Listener) *HTTPServerService {
	h.listener = l
	return h
}

// Serve implements suture.Service.
//
// Returns ctx.Err() on graceful shutdown, or an error if the server fails.
// http.ErrServerClosed is expected on shutdown and not reported.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", h.name, err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown failed: %w", h.name, err)
		}

		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) serve() error {
	if h.listener != nil {
		return h.server.Serve(h.listener)
	}
	return h.server.ListenAndServe()
}

// String implements fmt.Stringer for logging.
func (h *HTTPServerService) String() string {
	return h.name
}
