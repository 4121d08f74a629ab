// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package middleware provides chi-compatible HTTP middleware shared by the
transport and ops routers.

  - RequestID: reuses an upstream X-Request-ID or generates a UUID, echoes
    it on the response and stores it in the request and logging contexts
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by the chi route pattern so path parameters do not explode cardinality

Both wrap any http.Handler:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The response writer wrapper preserves http.Hijacker, so the WebSocket
upgrade works behind PrometheusMetrics.
*/
package middleware
