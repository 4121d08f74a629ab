// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

// Package eventsource produces synthetic domain events at random intervals.
//
// It stands in for the upstream PinkSync services (trust scoring, gesture
// recognition, DeafAUTH, Fibonrose) until they dispatch real events, and is
// disabled with EVENT_SOURCE_ENABLED=false. Each event goes to the type's
// subscription room and the general room.
package eventsource
