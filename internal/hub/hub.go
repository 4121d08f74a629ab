// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

// Package hub owns the per-process connection and room state.
//
// A Hub is constructed once at startup and passed to the transport, the
// dispatcher and the backplane relay. It combines a Registry (who is
// connected) and a RoomManager (who listens to what) and guarantees that a
// connection's room memberships never outlive its registration.
package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

// DefaultGeneralRoom receives every event dispatched without explicit rooms.
const DefaultGeneralRoom = "pinksync_general"

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Disconnect reasons recorded in metrics and logs.
const (
	ReasonClientClosed    = "client_closed"
	ReasonReadError       = "read_error"
	ReasonWriteError      = "write_error"
	ReasonHeartbeat       = "heartbeat_timeout"
	ReasonDeliveryFailure = "delivery_failure"
	ReasonShutdown        = "server_shutdown"
)

// Config configures a Hub.
type Config struct {
	// ServerID is this instance's identity, stamped on every event.
	ServerID string

	// GeneralRoom defaults to DefaultGeneralRoom.
	GeneralRoom string

	// EvictionQueue bounds pending asynchronous disconnects. Default 256.
	EvictionQueue int
}

type eviction struct {
	id     string
	reason string
}

// Hub is the per-process owner of connection and room state.
type Hub struct {
	serverID    string
	generalRoom string

	registry *Registry
	rooms    *RoomManager

	// lifecycle serializes multi-step mutations (connect, join, disconnect)
	// so a membership can never be created for a connection mid-teardown.
	lifecycle sync.Mutex

	closed    atomic.Bool
	running   atomic.Bool
	evictions chan eviction
}

// New constructs a Hub.
func New(cfg Config) *Hub {
	if cfg.GeneralRoom == "" {
		cfg.GeneralRoom = DefaultGeneralRoom
	}
	if cfg.EvictionQueue <= 0 {
		cfg.EvictionQueue = 256
	}
	h := &Hub{
		serverID:    cfg.ServerID,
		generalRoom: cfg.GeneralRoom,
		registry:    NewRegistry(),
		rooms:       NewRoomManager(),
		evictions:   make(chan eviction, cfg.EvictionQueue),
	}
	h.rooms.SetObservers(h.roomCreated, h.roomRemoved)
	return h
}

func (h *Hub) roomCreated(room string) {
	metrics.SetRoomsActive(h.rooms.Count())
	logging.Debug().Str("room", room).Msg("room created")
}

func (h *Hub) roomRemoved(room string) {
	metrics.SetRoomsActive(h.rooms.Count())
	logging.Debug().Str("room", room).Msg("room removed")
}

// ServerID returns the instance identity.
func (h *Hub) ServerID() string { return h.serverID }

// GeneralRoom returns the broadcast room every connection joins.
func (h *Hub) GeneralRoom() string { return h.generalRoom }

// Closed reports whether shutdown has begun.
func (h *Hub) Closed() bool { return h.closed.Load() }

// DefaultRooms returns the rooms a new connection joins: the general room
// and, when userID is set, the per-user room.
func (h *Hub) DefaultRooms(userID string) []string {
	if userID == "" {
		return []string{h.generalRoom}
	}
	return []string{h.generalRoom, models.UserRoom(userID)}
}

// EventRooms returns the default dispatch targets for an event type.
func (h *Hub) EventRooms(t models.EventType) []string {
	return []string{t.Room(), h.generalRoom}
}

// Connect registers a connection and joins rooms in one step. Nothing is
// joined when registration fails.
func (h *Hub) Connect(meta Metadata, sender Sender, rooms ...string) error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	if meta.ServerID == "" {
		meta.ServerID = h.serverID
	}

	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	// Re-check under the lock: Shutdown may have raced us.
	if h.closed.Load() {
		return ErrHubClosed
	}
	if err := h.registry.Register(meta, sender); err != nil {
		return err
	}
	for _, room := range rooms {
		if err := h.rooms.Join(meta.ID, room); err != nil {
			h.rooms.LeaveAll(meta.ID)
			h.registry.Unregister(meta.ID)
			return fmt.Errorf("join %q: %w", room, err)
		}
	}

	metrics.RecordConnection("accepted")
	logging.Debug().
		Str("connection_id", meta.ID).
		Str("user_id", meta.UserID).
		Strs("rooms", rooms).
		Int("total_clients", h.registry.Count()).
		Msg("client connected")
	return nil
}

// Join adds a registered connection to room.
func (h *Hub) Join(id, room string) error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	if _, ok := h.registry.Lookup(id); !ok {
		return ErrConnectionNotFound
	}
	return h.rooms.Join(id, room)
}

// Leave removes id from room. Unknown connections and rooms are ignored.
func (h *Hub) Leave(id, room string) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	h.rooms.Leave(id, room)
}

// Disconnect leaves every room, unregisters and closes the connection's
// sender. It is idempotent and returns false if id was not registered.
func (h *Hub) Disconnect(id, reason string) bool {
	h.lifecycle.Lock()
	entry, ok := h.registry.remove(id)
	left := h.rooms.LeaveAll(id)
	h.lifecycle.Unlock()

	if !ok {
		return false
	}
	if entry.sender != nil {
		_ = entry.sender.Close()
	}

	metrics.RecordDisconnect(reason)
	logging.Debug().
		Str("connection_id", id).
		Str("reason", reason).
		Int("rooms_left", len(left)).
		Int("total_clients", h.registry.Count()).
		Msg("client disconnected")
	return true
}

// Evict schedules an asynchronous Disconnect. The dispatcher uses it so a
// failed send never blocks on teardown.
func (h *Hub) Evict(id, reason string) {
	if h.running.Load() {
		select {
		case h.evictions <- eviction{id: id, reason: reason}:
			return
		default:
		}
	}
	go h.Disconnect(id, reason)
}

// Lookup returns metadata for a live connection.
func (h *Hub) Lookup(id string) (Metadata, bool) { return h.registry.Lookup(id) }

// AttachAuth records post-handshake auth context.
func (h *Hub) AttachAuth(id, userID, apiKey string) bool {
	return h.registry.AttachAuth(id, userID, apiKey)
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int { return h.registry.Count() }

// Rooms returns the sorted names of non-empty rooms.
func (h *Hub) Rooms() []string { return h.rooms.Rooms() }

// RoomsOf returns the rooms id belongs to.
func (h *Hub) RoomsOf(id string) []string { return h.rooms.RoomsOf(id) }

// MembersOf returns a snapshot of room's members.
func (h *Hub) MembersOf(room string) []string { return h.rooms.MembersOf(room) }

type recipient struct {
	id     string
	sender Sender
}

// recipients resolves the deduplicated members of rooms, in room order
// then member ID order. Members already torn down are skipped.
func (h *Hub) recipients(rooms []string) []recipient {
	seen := make(map[string]struct{})
	out := make([]recipient, 0)
	for _, room := range rooms {
		for _, id := range h.rooms.MembersOf(room) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if s, ok := h.registry.sender(id); ok {
				out = append(out, recipient{id: id, sender: s})
			}
		}
	}
	return out
}

// RunWithContext processes eviction requests until ctx is canceled, then
// closes every live connection before returning.
//
// DETERMINISM: cancellation is checked before draining evictions so a
// shutdown is never delayed by a burst of delivery failures.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.shutdown(getShutdownReason(ctx))
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(getShutdownReason(ctx))
			return ctx.Err()
		case ev := <-h.evictions:
			h.Disconnect(ev.id, ev.reason)
		}
	}
}

// Shutdown marks the hub closed and disconnects every connection. It is
// called by RunWithContext on cancellation and may be called directly when
// the hub runs unsupervised.
func (h *Hub) Shutdown() {
	h.shutdown(ShutdownReasonContextCanceled)
}

func (h *Hub) shutdown(reason ShutdownReason) {
	h.lifecycle.Lock()
	h.closed.Store(true)
	h.lifecycle.Unlock()

	ids := h.registry.IDs()
	for _, id := range ids {
		h.Disconnect(id, ReasonShutdown)
	}
	// Evictions still queued refer to connections that are already gone.
drain:
	for {
		select {
		case <-h.evictions:
		default:
			break drain
		}
	}

	logging.Info().
		Str("component", "hub").
		Str("reason", string(reason)).
		Int("clients_closed", len(ids)).
		Msg("hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}
