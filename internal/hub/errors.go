// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package hub

import "errors"

var (
	// ErrDuplicateConnection is returned when registering an ID that is
	// already live. Connection IDs are UUIDs, so this indicates a bug.
	ErrDuplicateConnection = errors.New("connection already registered")

	// ErrInvalidConnectionID is returned for an empty connection ID.
	ErrInvalidConnectionID = errors.New("connection id is empty")

	// ErrConnectionNotFound is returned by operations that require a live
	// connection, such as joining a room.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrInvalidRoom is returned for an empty or oversized room name.
	ErrInvalidRoom = errors.New("invalid room name")

	// ErrHubClosed is returned once shutdown has begun. It is the only error
	// that makes a dispatch fatal.
	ErrHubClosed = errors.New("hub is closed")

	// ErrInvalidPayload wraps a validation hook rejection.
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrNilPayload is returned when Dispatch is called without a payload.
	ErrNilPayload = errors.New("event payload is nil")
)
