// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

/*
Package websocket is the client-facing transport of the hub.

Handler performs the handshake (origin check, credential validation,
upgrade) and registers each connection with the hub under its default
rooms: the general room and, for authenticated users, user_<id>. A
rejected handshake answers 403 (origin) or 401 (credentials) and never
registers anything.

Each Client runs two goroutines:

  - readPump: reads inbound frames, enforces the per-connection rate limit
    and the heartbeat read deadline
  - writePump: drains the bounded send queue in FIFO order and pings every
    PingInterval

Inbound messages use the envelope {"type": "...", "data": {...}}:

	subscribe_to_events      {event_types: [...]}  -> subscription_confirmed
	unsubscribe_from_events  {event_types: [...]}  -> subscription_confirmed
	ping                     {timestamp?}          -> pong {latency}
	gesture_data             {gesture_id, sign_data} -> gesture_recognition dispatch
	connection_init          {client}              -> connection_ack
	authenticate             {api_key?, user_id?, token?} -> connection_ack, joins user_<id>

Malformed input is logged and dropped; the connection stays open. With
Config.EmitErrorFrames the client receives an error frame instead.

Lifecycle:

	Connecting -> Connected -> Disconnecting -> Closed
	Connecting -> Rejected

The write pump starts only once the hub accepts the registration, so
connection_established is never written to a rejected connection.

A missed heartbeat, a close frame, a read error or a write error all lead
to Hub.Disconnect, which leaves every room before the connection is
unregistered.
*/
package websocket
