// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package hub

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Sender is a connection's outbound path. Implementations must be safe for
// concurrent use; Close must be idempotent.
type Sender interface {
	// Send queues one serialized frame. It returns an error if the
	// connection is closed or ctx expires before the frame is accepted.
	Send(ctx context.Context, frame []byte) error

	// Close tears down the underlying transport.
	Close() error
}

// Metadata describes one live connection.
type Metadata struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	RemoteAddr  string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
	UserID      string    `json:"user_id,omitempty"`
	APIKey      string    `json:"-"`
	ServerID    string    `json:"server_id"`
}

type registryEntry struct {
	meta   Metadata
	sender Sender
}

// Registry tracks live connections by ID. All methods are safe for
// concurrent use and mutations are visible to Count as soon as they return.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*registryEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*registryEntry)}
}

// Register inserts a connection. It fails with ErrDuplicateConnection if
// the ID is already present.
func (r *Registry) Register(meta Metadata, sender Sender) error {
	if meta.ID == "" {
		return ErrInvalidConnectionID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[meta.ID]; exists {
		return ErrDuplicateConnection
	}
	r.conns[meta.ID] = &registryEntry{meta: meta, sender: sender}
	return nil
}

// Unregister removes a connection and returns its metadata. A second call
// for the same ID returns false; disconnect paths may race and that is not
// an error.
func (r *Registry) Unregister(id string) (Metadata, bool) {
	e, ok := r.remove(id)
	if !ok {
		return Metadata{}, false
	}
	return e.meta, true
}

func (r *Registry) remove(id string) (*registryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return e, ok
}

// Lookup returns the current metadata for id.
func (r *Registry) Lookup(id string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.meta, true
	}
	return Metadata{}, false
}

// AttachAuth records auth context resolved after the handshake. Empty
// arguments leave the existing values untouched.
func (r *Registry) AttachAuth(id, userID, apiKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	if userID != "" {
		e.meta.UserID = userID
	}
	if apiKey != "" {
		e.meta.APIKey = apiKey
	}
	return true
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IDs returns all live connection IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) sender(id string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.sender, true
	}
	return nil, false
}
