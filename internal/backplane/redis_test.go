// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"reflect"
	"testing"
)

func TestRedisEnvelope(t *testing.T) {
	frame := []byte(`{"type":"trust_score_event","timestamp":"2026-01-02T03:04:05.000000Z","new_score":80}`)

	rooms := []string{"events_trust_score_event", "pinksync_general"}
	data, err := encodeEnvelope(Message{Room: rooms[0], Rooms: rooms, Origin: "pinksync-1", Payload: frame})
	if err != nil {
		t.Fatalf("encodeEnvelope: %v", err)
	}
	msg, err := decodeEnvelope(data)
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if msg.Room != "events_trust_score_event" || msg.Origin != "pinksync-1" {
		t.Errorf("header = %q/%q", msg.Room, msg.Origin)
	}
	if !reflect.DeepEqual(msg.Targets(), rooms) {
		t.Errorf("targets = %v, want %v", msg.Targets(), rooms)
	}
	if string(msg.Payload) != string(frame) {
		t.Errorf("payload = %s, want frame verbatim", msg.Payload)
	}
}

func TestRedisEnvelope_Invalid(t *testing.T) {
	if _, err := encodeEnvelope(Message{Room: "r", Payload: []byte("not json")}); err == nil {
		t.Error("encode accepted a non-JSON payload")
	}

	tests := []struct {
		name string
		data string
	}{
		{"garbage", "}{"},
		{"missing room", `{"origin":"x","payload":{}}`},
		{"blank room", `{"room":"  ","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeEnvelope([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRedis_Channel(t *testing.T) {
	r := &Redis{prefix: "pinksync:rooms"}
	if got := r.channel("user_7"); got != "pinksync:rooms:user_7" {
		t.Errorf("channel = %q", got)
	}
}
