// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/pinksync-hub/internal/middleware"
)

// NewOpsRouter returns the router for the operational listener.
func NewOpsRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(mw.CORS())
	r.Use(mw.RateLimit())

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/health", h.Health)
	r.Get("/metrics", h.Metrics)
	r.Method(http.MethodGet, "/metrics/prometheus", promhttp.Handler())

	return r
}

// NewTransportRouter returns the router for the client listener. ws is
// mounted at /ws and, for legacy clients, at /.
func NewTransportRouter(ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

	r.Method(http.MethodGet, "/ws", ws)
	r.Method(http.MethodGet, "/", ws)

	return r
}
