// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package hub

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRoomManager_JoinIsIdempotent(t *testing.T) {
	t.Parallel()

	once := NewRoomManager()
	_ = once.Join("c1", "events_gesture_recognition")

	twice := NewRoomManager()
	_ = twice.Join("c1", "events_gesture_recognition")
	_ = twice.Join("c1", "events_gesture_recognition")

	if !reflect.DeepEqual(once.MembersOf("events_gesture_recognition"), twice.MembersOf("events_gesture_recognition")) {
		t.Errorf("membership differs: %v vs %v",
			once.MembersOf("events_gesture_recognition"), twice.MembersOf("events_gesture_recognition"))
	}
	if !reflect.DeepEqual(once.RoomsOf("c1"), twice.RoomsOf("c1")) {
		t.Errorf("rooms differ: %v vs %v", once.RoomsOf("c1"), twice.RoomsOf("c1"))
	}
}

func TestRoomManager_LeaveIsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewRoomManager()
	_ = m.Join("c1", "r")
	_ = m.Join("c2", "r")

	m.Leave("c1", "r")
	m.Leave("c1", "r")
	m.Leave("c1", "never-joined")
	m.Leave("unknown", "r")

	if got := m.MembersOf("r"); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Errorf("MembersOf = %v, want [c2]", got)
	}
}

func TestRoomManager_EmptyRoomsAreCollected(t *testing.T) {
	t.Parallel()

	m := NewRoomManager()
	_ = m.Join("c1", "user_u1")
	if m.Count() != 1 {
		t.Fatalf("Count = %d, want 1", m.Count())
	}
	m.Leave("c1", "user_u1")
	if m.Count() != 0 {
		t.Errorf("Count after last leave = %d, want 0", m.Count())
	}
	if rooms := m.Rooms(); len(rooms) != 0 {
		t.Errorf("Rooms = %v, want empty", rooms)
	}
	if rooms := m.RoomsOf("c1"); len(rooms) != 0 {
		t.Errorf("RoomsOf = %v, want empty", rooms)
	}
}

func TestRoomManager_LeaveAll(t *testing.T) {
	t.Parallel()

	m := NewRoomManager()
	for _, r := range []string{"pinksync_general", "user_u1", "events_trust_score_event"} {
		_ = m.Join("c1", r)
	}
	_ = m.Join("c2", "pinksync_general")

	left := m.LeaveAll("c1")
	want := []string{"events_trust_score_event", "pinksync_general", "user_u1"}
	if !reflect.DeepEqual(left, want) {
		t.Errorf("LeaveAll = %v, want %v", left, want)
	}
	if rooms := m.RoomsOf("c1"); len(rooms) != 0 {
		t.Errorf("c1 still in %v", rooms)
	}
	if got := m.Rooms(); !reflect.DeepEqual(got, []string{"pinksync_general"}) {
		t.Errorf("Rooms = %v", got)
	}
	if again := m.LeaveAll("c1"); len(again) != 0 {
		t.Errorf("second LeaveAll = %v, want empty", again)
	}
}

func TestRoomManager_MembersOfIsSnapshot(t *testing.T) {
	t.Parallel()

	m := NewRoomManager()
	_ = m.Join("c1", "r")
	snap := m.MembersOf("r")
	_ = m.Join("c2", "r")
	m.Leave("c1", "r")

	if !reflect.DeepEqual(snap, []string{"c1"}) {
		t.Errorf("snapshot changed: %v", snap)
	}
	if got := m.MembersOf("missing"); got == nil || len(got) != 0 {
		t.Errorf("MembersOf(missing) = %#v, want empty slice", got)
	}
}

func TestRoomManager_InvalidInput(t *testing.T) {
	t.Parallel()

	m := NewRoomManager()
	tests := []struct {
		name string
		id   string
		room string
		want error
	}{
		{"empty room", "c1", "", ErrInvalidRoom},
		{"oversized room", "c1", strings.Repeat("x", MaxRoomNameLength+1), ErrInvalidRoom},
		{"empty id", "", "r", ErrInvalidConnectionID},
	}
	for _, tt := range tests {
		if err := m.Join(tt.id, tt.room); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
	if m.Count() != 0 {
		t.Errorf("invalid joins created rooms: %v", m.Rooms())
	}
}

func TestRoomManager_Observers(t *testing.T) {
	t.Parallel()

	var created, removed []string
	m := NewRoomManager()
	m.SetObservers(
		func(room string) { created = append(created, room) },
		func(room string) { removed = append(removed, room) },
	)

	_ = m.Join("c1", "a")
	_ = m.Join("c2", "a")
	_ = m.Join("c1", "b")
	_ = m.Join("c1", "b")
	m.Leave("c2", "a")
	m.Leave("c2", "missing")
	m.LeaveAll("c1")

	if want := []string{"a", "b"}; !reflect.DeepEqual(created, want) {
		t.Errorf("created = %v, want %v", created, want)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}
}
