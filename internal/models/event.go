// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

// Package models defines the wire types pushed to and received from
// real-time clients.
//
// Every outbound frame is a flat JSON object with three header fields
// followed by the fields of a type-specific payload:
//
//	{
//	  "type": "gesture_recognition",
//	  "timestamp": "2026-03-01T12:00:00.000000Z",
//	  "server_id": "pinksync-4821",
//	  "gesture_id": "17",
//	  "confidence": 0.93,
//	  "language": "ASL",
//	  "duration_ms": 1450
//	}
//
// Payloads form a tagged union keyed by EventType. Known domain types have
// concrete structs; anything else travels as an ExtensionPayload.
package models

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// TimestampLayout is ISO-8601 UTC with fixed microsecond precision, so
// lexical order of two timestamps equals their chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp renders t in TimestampLayout (always with a Z suffix).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ErrMissingType is returned when decoding a frame without a type field.
var ErrMissingType = errors.New("event frame has no type")

// Payload is the type-specific body of an Event.
type Payload interface {
	EventType() EventType
}

// Event is one unit of pushed information. Timestamp and ServerID are set by
// the dispatcher (or the transport for control frames), never by producers.
type Event struct {
	Type      EventType
	Timestamp time.Time
	ServerID  string
	Payload   Payload
}

type eventHeader struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"`
	ServerID  string    `json:"server_id,omitempty"`
}

// MarshalJSON flattens the header and payload into one object. Header fields
// always win: payload keys named type, timestamp or server_id never reach
// the wire.
func (e Event) MarshalJSON() ([]byte, error) {
	header, err := json.Marshal(eventHeader{
		Type:      e.Type,
		Timestamp: FormatTimestamp(e.Timestamp),
		ServerID:  e.ServerID,
	})
	if err != nil {
		return nil, err
	}
	if e.Payload == nil {
		return header, nil
	}

	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("payload for %s is not a JSON object", e.Type)
	}
	if len(bytes.TrimSpace(body[1:len(body)-1])) == 0 {
		return header, nil
	}

	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header[:len(header)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// UnmarshalJSON decodes a flat frame, choosing the payload variant from the
// type field.
func (e *Event) UnmarshalJSON(data []byte) error {
	var h eventHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	if h.Type == "" {
		return ErrMissingType
	}
	ts, err := time.Parse(time.RFC3339Nano, h.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", h.Timestamp, err)
	}
	p, err := DecodePayload(h.Type, data)
	if err != nil {
		return err
	}

	e.Type = h.Type
	e.Timestamp = ts
	e.ServerID = h.ServerID
	e.Payload = p
	return nil
}

// NewEvent builds an Event whose Type matches the payload's discriminant.
func NewEvent(p Payload, ts time.Time, serverID string) Event {
	return Event{Type: p.EventType(), Timestamp: ts, ServerID: serverID, Payload: p}
}

// Encode marshals an Event into a wire frame.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire frame produced by Encode.
func Decode(frame []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(frame, &e)
	return e, err
}
