// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package models defines the event envelope and the typed payloads the hub
carries.

Every frame on the wire is a flat JSON object:

	{"type": "gesture_recognition", "timestamp": "...", "server_id": "...", ...payload fields}

Event pairs a Payload with the dispatch timestamp and the originating
server id; its MarshalJSON flattens the payload fields into the envelope.
Decode reverses it using DecodePayload to pick the payload type.

Payload categories:

  - Domain events: TrustScorePayload, GestureRecognitionPayload,
    DeafAuthVerificationPayload, FibonroseFeedbackPayload
  - Extension events (api_request_log, user_activity): ExtensionPayload with
    free-form fields
  - Control frames: connection_established, subscription_confirmed, pong,
    connection_ack, error

Room naming helpers: EventType.Room gives "events_<type>", UserRoom gives
"user_<id>".
*/
package models
