// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/pinksync-hub/internal/hub"
)

// ErrConnectionClosed is returned by Send once the connection is closing.
var ErrConnectionClosed = errors.New("connection closed")

// State is the observable lifecycle state of a connection.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Client is one WebSocket connection. It implements hub.Sender: frames are
// queued on a bounded FIFO and written by a single write pump, so frames
// reach the socket in the order Send accepted them.
type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *hub.Hub
	handler *Handler
	cfg     Config
	logger  zerolog.Logger
	limiter *rate.Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
}

func newClient(id string, conn *websocket.Conn, h *Handler) *Client {
	c := &Client{
		id:      id,
		conn:    conn,
		hub:     h.hub,
		handler: h,
		cfg:     h.cfg,
		logger:  h.logger.With().Str("connection_id", id).Logger(),
		send:    make(chan []byte, h.cfg.SendBuffer),
		done:    make(chan struct{}),
	}
	if h.cfg.InboundRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.cfg.InboundRate), h.cfg.InboundBurst)
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// ID returns the connection id used by the hub.
func (c *Client) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Send queues frame for the write pump. It blocks while the queue is full
// until ctx expires or the connection closes.
func (c *Client) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the write pump, which sends a close frame and closes the
// socket. It never blocks and is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.transition(StateDisconnecting)
		close(c.done)
	})
	return nil
}

// transition moves forward through the lifecycle; it never goes back.
func (c *Client) transition(to State) {
	for {
		cur := c.state.Load()
		if State(cur) >= to {
			return
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

// disconnect tears the connection down through the hub. Only the first
// call reaches the hub; reason is recorded there.
func (c *Client) disconnect(reason string) {
	c.transition(StateDisconnecting)
	if !c.hub.Disconnect(c.id, reason) {
		// Already evicted or never registered.
		_ = c.Close()
	}
}

// refuse closes a connection that never started its pumps. Queued frames
// are discarded.
func (c *Client) refuse(code int) {
	c.state.Store(int32(StateRejected))
	c.closeOnce.Do(func() { close(c.done) })
	_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
	_ = c.conn.Close()
}

func (c *Client) readPump() {
	reason := hub.ReasonReadError
	defer func() { c.disconnect(reason) }()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	readWait := c.cfg.PingInterval + c.cfg.PingTimeout
	if err := c.conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			reason = readErrorReason(err)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		// Activity of any kind proves liveness.
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))

		if c.limiter != nil && !c.limiter.Allow() {
			c.reject(errRateLimited)
			continue
		}
		c.handleMessage(data)
	}
}

func readErrorReason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return hub.ReasonClientClosed
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return hub.ReasonHeartbeat
	}
	return hub.ReasonReadError
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.transition(StateClosed)
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("websocket write failed")
				go c.disconnect(hub.ReasonWriteError)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				go c.disconnect(hub.ReasonWriteError)
				return
			}

		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if c.hub.Closed() {
				msg = websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			}
			_ = c.write(websocket.CloseMessage, msg)
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// sendControl queues a reply addressed to this connection only.
func (c *Client) sendControl(frame []byte) {
	if frame == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteWait)
	defer cancel()
	if err := c.Send(ctx, frame); err != nil && !errors.Is(err, ErrConnectionClosed) {
		c.logger.Warn().Err(err).Msg("failed to queue control frame")
	}
}
