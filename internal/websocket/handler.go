// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/tomtom215/pinksync-hub/internal/auth"
	"github.com/tomtom215/pinksync-hub/internal/hub"
	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

// WelcomeMessage is sent in connection_established.
const WelcomeMessage = "Connected to PinkSync Real-time Engine"

// Features advertised in connection_established.
var Features = []string{"trust_scoring", "gesture_recognition", "deaf_auth", "fibonrose"}

// Dispatcher is the subset of *hub.Dispatcher the transport uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload models.Payload, rooms ...string) (hub.DispatchResult, error)
}

// Config holds transport settings. Zero values take the defaults noted.
type Config struct {
	PingInterval     time.Duration // 20s
	PingTimeout      time.Duration // 10s
	WriteWait        time.Duration // 10s
	HandshakeTimeout time.Duration // 10s
	MaxMessageSize   int64         // 512 KB
	SendBuffer       int           // 256
	ReadBufferSize   int           // 1024
	WriteBufferSize  int           // 1024

	// AllowedOrigins lists exact Origin values; "*" allows any.
	AllowedOrigins   []string
	AllowEmptyOrigin bool

	// InboundRate is messages per second per connection; 0 disables.
	InboundRate  float64
	InboundBurst int

	// EmitErrorFrames replies to malformed input with an error frame
	// instead of dropping it silently.
	EmitErrorFrames bool
}

func (c *Config) setDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 10 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 512 * 1024
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 1024
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = 1024
	}
	if c.InboundRate > 0 && c.InboundBurst <= 0 {
		c.InboundBurst = int(c.InboundRate) + 1
	}
}

// Handler upgrades HTTP requests to WebSocket connections registered with
// the hub.
type Handler struct {
	hub        *hub.Hub
	dispatcher Dispatcher
	validator  auth.Validator
	recognizer Recognizer
	cfg        Config
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewHandler returns a Handler. A nil recognizer uses RandomRecognizer.
func NewHandler(h *hub.Hub, d Dispatcher, v auth.Validator, r Recognizer, cfg Config) *Handler {
	cfg.setDefaults()
	if r == nil {
		r = NewRandomRecognizer(nil)
	}
	handler := &Handler{
		hub:        h,
		dispatcher: d,
		validator:  v,
		recognizer: r,
		cfg:        cfg,
		logger:     logging.WithComponent("websocket"),
	}
	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		HandshakeTimeout: cfg.HandshakeTimeout,
		// Origin is checked before Upgrade so rejections get a 403.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return handler
}

// ServeHTTP runs the handshake: origin check, credential validation,
// upgrade, registration and the welcome frame.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.hub.Closed() {
		metrics.RecordConnection("rejected_closed")
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if !h.originAllowed(origin) {
		metrics.RecordConnection("rejected_origin")
		h.logger.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected: origin not allowed")
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	creds := auth.FromRequest(r)
	userID, err := h.validator.Validate(r.Context(), creds)
	if err != nil {
		metrics.RecordConnection("rejected_auth")
		h.logger.Warn().Err(err).Str("remote_addr", remoteIP(r)).Msg("websocket connection rejected: authentication failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	meta := hub.Metadata{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now().UTC(),
		RemoteAddr:  remoteIP(r),
		UserAgent:   r.UserAgent(),
		UserID:      userID,
		APIKey:      creds.APIKey,
		ServerID:    h.hub.ServerID(),
	}
	client := newClient(meta.ID, conn, h)

	// The write pump is not running yet: the welcome is queued first and
	// is only written once registration succeeds.
	client.sendControl(h.control(models.ConnectionEstablishedPayload{
		Message:  WelcomeMessage,
		Features: Features,
	}))

	if err := h.hub.Connect(meta, client, h.hub.DefaultRooms(userID)...); err != nil {
		code := websocket.CloseInternalServerErr
		if errors.Is(err, hub.ErrHubClosed) {
			metrics.RecordConnection("rejected_closed")
			code = websocket.CloseGoingAway
		}
		h.logger.Warn().Err(err).Msg("websocket registration failed")
		client.refuse(code)
		return
	}
	go client.writePump()
	client.transition(StateConnected)

	h.logger.Info().
		Str("connection_id", meta.ID).
		Str("remote_addr", meta.RemoteAddr).
		Str("user_id", userID).
		Msg("client connected")

	go client.readPump()
}

func (h *Handler) originAllowed(origin string) bool {
	if origin == "" {
		return h.cfg.AllowEmptyOrigin
	}
	return lo.SomeBy(h.cfg.AllowedOrigins, func(allowed string) bool {
		return allowed == "*" || strings.EqualFold(allowed, origin)
	})
}

// control encodes a frame addressed to a single connection.
func (h *Handler) control(p models.Payload) []byte {
	frame, err := models.Encode(models.NewEvent(p, time.Now(), h.hub.ServerID()))
	if err != nil {
		// Control payloads are fixed structs; this is a programming error.
		h.logger.Error().Err(err).Str("type", string(p.EventType())).Msg("failed to encode control frame")
		return nil
	}
	return frame
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sanitizeLogValue escapes control characters in client-supplied values.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteString("\\x")
			b.WriteByte("0123456789abcdef"[r>>4])
			b.WriteByte("0123456789abcdef"[r&0xF])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
