// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/pinksync-hub/internal/metrics"
)

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/rooms/{room}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/rooms/{room}", "418")
	before := testutil.ToFloat64(counter)

	for _, room := range []string{"general", "user_1", "events_x"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/"+room, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("requests recorded under route pattern = %v, want 3", got)
	}
}

func TestPrometheusMetrics_StatusDefaults(t *testing.T) {
	tests := []struct {
		name    string
		upgrade bool
		want    string
	}{
		{"implicit ok", false, "200"},
		{"hijacked upgrade", true, "101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := PrometheusMetrics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, tt.want)
			before := testutil.ToFloat64(counter)

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("count for status %s = %v, want 1", tt.want, got)
			}
		})
	}
}

func TestPrometheusMetrics_ActiveGaugeSettles(t *testing.T) {
	before := testutil.ToFloat64(metrics.HTTPActiveRequests)
	var during float64
	handler := PrometheusMetrics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		during = testutil.ToFloat64(metrics.HTTPActiveRequests)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if during != before+1 {
		t.Errorf("in-flight during request = %v, want %v", during, before+1)
	}
	if after := testutil.ToFloat64(metrics.HTTPActiveRequests); after != before {
		t.Errorf("in-flight after request = %v, want %v", after, before)
	}
}
