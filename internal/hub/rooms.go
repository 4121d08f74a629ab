// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package hub

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// MaxRoomNameLength bounds room names accepted from clients.
const MaxRoomNameLength = 256

// RoomManager maintains named membership sets. Rooms exist only while they
// have members: the first Join creates a room and the last Leave removes it.
type RoomManager struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]struct{} // room -> connection IDs
	memberships map[string]map[string]struct{} // connection ID -> rooms

	onCreate func(room string)
	onRemove func(room string)
}

// NewRoomManager returns an empty RoomManager.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:       make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
	}
}

// SetObservers registers callbacks for room creation and removal. They run
// after the manager's lock is released, once per affected room. Either may
// be nil. Call before the manager is shared.
func (m *RoomManager) SetObservers(onCreate, onRemove func(room string)) {
	m.onCreate = onCreate
	m.onRemove = onRemove
}

func (m *RoomManager) notify(fn func(string), rooms []string) {
	if fn == nil {
		return
	}
	for _, room := range rooms {
		fn(room)
	}
}

// ValidRoomName reports whether name may be used as a room.
func ValidRoomName(name string) bool {
	return name != "" && len(name) <= MaxRoomNameLength
}

// Join adds id to room. Joining twice is a no-op.
func (m *RoomManager) Join(id, room string) error {
	if id == "" {
		return ErrInvalidConnectionID
	}
	if !ValidRoomName(room) {
		return ErrInvalidRoom
	}

	m.mu.Lock()
	members, exists := m.rooms[room]
	if !exists {
		members = make(map[string]struct{})
		m.rooms[room] = members
	}
	members[id] = struct{}{}

	joined, ok := m.memberships[id]
	if !ok {
		joined = make(map[string]struct{})
		m.memberships[id] = joined
	}
	joined[room] = struct{}{}
	m.mu.Unlock()

	if !exists {
		m.notify(m.onCreate, []string{room})
	}
	return nil
}

// Leave removes id from room. Leaving a room the connection is not in is a
// no-op.
func (m *RoomManager) Leave(id, room string) {
	m.mu.Lock()
	removed := m.leaveLocked(id, room)
	m.mu.Unlock()

	if removed {
		m.notify(m.onRemove, []string{room})
	}
}

// leaveLocked reports whether room became empty and was removed.
func (m *RoomManager) leaveLocked(id, room string) bool {
	removed := false
	if members, ok := m.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(m.rooms, room)
			removed = true
		}
	}
	if joined, ok := m.memberships[id]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(m.memberships, id)
		}
	}
	return removed
}

// LeaveAll removes id from every room under a single lock and returns the
// rooms it left, sorted.
func (m *RoomManager) LeaveAll(id string) []string {
	m.mu.Lock()
	joined := m.memberships[id]
	left := make([]string, 0, len(joined))
	for room := range joined {
		left = append(left, room)
	}
	sort.Strings(left)
	var emptied []string
	for _, room := range left {
		if m.leaveLocked(id, room) {
			emptied = append(emptied, room)
		}
	}
	m.mu.Unlock()

	m.notify(m.onRemove, emptied)
	return left
}

// MembersOf returns a sorted snapshot of room's members. The slice is a
// copy; later joins and leaves do not affect it.
func (m *RoomManager) MembersOf(room string) []string {
	m.mu.RLock()
	members := lo.Keys(m.rooms[room])
	m.mu.RUnlock()
	sort.Strings(members)
	return members
}

// RoomsOf returns the sorted rooms id belongs to.
func (m *RoomManager) RoomsOf(id string) []string {
	m.mu.RLock()
	rooms := lo.Keys(m.memberships[id])
	m.mu.RUnlock()
	sort.Strings(rooms)
	return rooms
}

// Rooms returns the sorted names of all non-empty rooms.
func (m *RoomManager) Rooms() []string {
	m.mu.RLock()
	rooms := lo.Keys(m.rooms)
	m.mu.RUnlock()
	sort.Strings(rooms)
	return rooms
}

// Count returns the number of non-empty rooms.
func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
