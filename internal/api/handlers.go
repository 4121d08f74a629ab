// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/pinksync-hub/internal/metrics"
)

// HubStats is the read-only view of the hub the ops endpoints report.
type HubStats interface {
	ServerID() string
	ConnectionCount() int
	Rooms() []string
}

// BackplaneStatus reports the relay's adapter and circuit state.
type BackplaneStatus interface {
	Name() string
	State() string
}

// SubscriptionStatus reports whether the relay currently holds its
// backplane subscription.
type SubscriptionStatus interface {
	Subscribed() bool
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status           string          `json:"status"`
	ServerID         string          `json:"server_id"`
	ConnectedClients int             `json:"connected_clients"`
	Timestamp        time.Time       `json:"timestamp"`
	Backplane        BackplaneHealth `json:"backplane"`
}

// BackplaneHealth describes the cross-instance relay.
type BackplaneHealth struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Subscribed bool   `json:"subscribed"`
}

// MetricsResponse is the /metrics body.
type MetricsResponse struct {
	ServerID         string    `json:"server_id"`
	ConnectedClients int       `json:"connected_clients"`
	Rooms            []string  `json:"rooms"`
	Timestamp        time.Time `json:"timestamp"`
}

// Handler serves the ops endpoints.
type Handler struct {
	hub       HubStats
	backplane BackplaneStatus
	relay     SubscriptionStatus
	now       func() time.Time
}

// NewHandler creates the ops handler. backplane and relay may be nil in
// single-instance mode.
func NewHandler(hub HubStats, backplane BackplaneStatus, relay SubscriptionStatus) *Handler {
	return &Handler{
		hub:       hub,
		backplane: backplane,
		relay:     relay,
		now:       time.Now,
	}
}

// Health reports liveness. Status is healthy whenever the process answers;
// backplane state is reported alongside.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	bp := BackplaneHealth{Name: "none", State: "disabled"}
	if h.backplane != nil {
		bp.Name = h.backplane.Name()
		bp.State = h.backplane.State()
	}
	if h.relay != nil {
		bp.Subscribed = h.relay.Subscribed()
	}

	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:           "healthy",
		ServerID:         h.hub.ServerID(),
		ConnectedClients: h.hub.ConnectionCount(),
		Timestamp:        h.now().UTC(),
		Backplane:        bp,
	})
}

// Metrics reports the connection count and the active rooms. It also
// refreshes the rooms gauge.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	rooms := h.hub.Rooms()
	if rooms == nil {
		rooms = []string{}
	}
	metrics.SetRoomsActive(len(rooms))

	writeJSON(w, r, http.StatusOK, MetricsResponse{
		ServerID:         h.hub.ServerID(),
		ConnectedClients: h.hub.ConnectionCount(),
		Rooms:            rooms,
		Timestamp:        h.now().UTC(),
	})
}

// NotFound answers unknown ops paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "not found")
}

// MethodNotAllowed answers known paths with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
}
