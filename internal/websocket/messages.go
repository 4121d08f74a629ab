// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package websocket

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/tomtom215/pinksync-hub/internal/auth"
	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
	"github.com/tomtom215/pinksync-hub/internal/models"
	"github.com/tomtom215/pinksync-hub/internal/validation"
)

// Inbound message types.
const (
	MessageSubscribe      = "subscribe_to_events"
	MessageUnsubscribe    = "unsubscribe_from_events"
	MessagePing           = "ping"
	MessageGestureData    = "gesture_data"
	MessageConnectionInit = "connection_init"
	MessageAuthenticate   = "authenticate"
)

// Error frame codes.
const (
	CodeMalformed   = "MALFORMED_MESSAGE"
	CodeUnknownType = "UNKNOWN_MESSAGE_TYPE"
	CodeRateLimited = "RATE_LIMITED"
	CodeAuthFailed  = "AUTH_FAILED"
	CodeInternal    = "INTERNAL_ERROR"
)

// inboundFrame is the client envelope {"type": ..., "data": {...}}. Client
// and Timestamp accept the legacy flat forms of connection_init and ping.
type inboundFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Client    string          `json:"client"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type subscribeRequest struct {
	EventTypes []string `json:"event_types" validate:"required,min=1,max=64,dive,eventtype"`
}

// authenticateRequest carries the handshake credentials for clients that
// could not present them on the upgrade request.
type authenticateRequest struct {
	APIKey string `json:"api_key" validate:"max=256"`
	UserID string `json:"user_id" validate:"max=128"`
	Token  string `json:"token" validate:"max=8192"`
}

type pingRequest struct {
	Timestamp json.RawMessage `json:"timestamp"`
}

type gestureRequest struct {
	GestureID models.FlexibleID `json:"gesture_id" validate:"required,max=128"`
	SignData  string            `json:"sign_data" validate:"max=65536"`
}

// inboundError is a message the connection survives. It is logged and,
// when error frames are enabled, reported to the client.
type inboundError struct {
	code   string
	reason string // metrics label
	err    error
}

func (e *inboundError) Error() string { return e.err.Error() }

func (e *inboundError) Unwrap() error { return e.err }

var errRateLimited = &inboundError{code: CodeRateLimited, reason: "rate_limited", err: errors.New("inbound rate limit exceeded")}

func malformed(err error) *inboundError {
	return &inboundError{code: CodeMalformed, reason: "malformed", err: err}
}

// handleMessage decodes and routes one inbound frame.
func (c *Client) handleMessage(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.reject(malformed(fmt.Errorf("invalid JSON: %w", err)))
		return
	}
	if frame.Type == "" {
		c.reject(malformed(errors.New("message has no type")))
		return
	}

	var err error
	switch frame.Type {
	case MessageSubscribe:
		err = c.handleSubscribe(frame.Data)
	case MessageUnsubscribe:
		err = c.handleUnsubscribe(frame.Data)
	case MessagePing:
		err = c.handlePing(frame)
	case MessageGestureData:
		err = c.handleGesture(frame.Data)
	case MessageConnectionInit:
		err = c.handleConnectionInit(frame)
	case MessageAuthenticate:
		err = c.handleAuthenticate(frame.Data)
	default:
		err = &inboundError{
			code:   CodeUnknownType,
			reason: "unknown_type",
			err:    fmt.Errorf("unknown message type %q", sanitizeLogValue(truncate(frame.Type, 64))),
		}
	}
	if err != nil {
		c.reject(err)
		return
	}
	metrics.RecordMessageReceived(frame.Type)
}

// reject logs a dropped message and, if enabled, replies with an error frame.
func (c *Client) reject(err error) {
	var ie *inboundError
	var verr *validation.RequestValidationError
	payload := models.ErrorPayload{Code: CodeInternal, Message: err.Error()}

	switch {
	case errors.As(err, &verr):
		metrics.RecordMessageDropped("invalid")
		payload = verr.ToErrorPayload()
	case errors.As(err, &ie):
		metrics.RecordMessageDropped(ie.reason)
		payload.Code = ie.code
	default:
		metrics.RecordMessageDropped("error")
	}

	c.logger.Warn().Err(err).Msg("inbound message dropped")
	if c.cfg.EmitErrorFrames {
		c.sendControl(c.handler.control(payload))
	}
}

// decodeData unmarshals data into v and validates it.
func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return malformed(fmt.Errorf("invalid data: %w", err))
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return verr
	}
	return nil
}

func (c *Client) handleSubscribe(data json.RawMessage) error {
	var req subscribeRequest
	if err := decodeData(data, &req); err != nil {
		return err
	}
	for _, t := range req.EventTypes {
		if err := c.hub.Join(c.id, models.EventType(t).Room()); err != nil {
			return err
		}
	}
	c.logger.Debug().Strs("event_types", req.EventTypes).Msg("subscribed to events")
	c.sendControl(c.handler.control(models.SubscriptionConfirmedPayload{SubscribedEvents: req.EventTypes}))
	return nil
}

func (c *Client) handleUnsubscribe(data json.RawMessage) error {
	var req subscribeRequest
	if err := decodeData(data, &req); err != nil {
		return err
	}
	for _, t := range req.EventTypes {
		c.hub.Leave(c.id, models.EventType(t).Room())
	}
	c.sendControl(c.handler.control(models.SubscriptionConfirmedPayload{SubscribedEvents: c.subscribedEvents()}))
	return nil
}

// subscribedEvents lists the event types this connection is subscribed to.
func (c *Client) subscribedEvents() []string {
	return lo.FilterMap(c.hub.RoomsOf(c.id), func(room string, _ int) (string, bool) {
		if !strings.HasPrefix(room, models.EventRoomPrefix) {
			return "", false
		}
		return strings.TrimPrefix(room, models.EventRoomPrefix), true
	})
}

func (c *Client) handlePing(frame inboundFrame) error {
	var req pingRequest
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return malformed(fmt.Errorf("invalid ping data: %w", err))
		}
	}
	latency := req.Timestamp
	if len(latency) == 0 {
		latency = frame.Timestamp
	}
	if len(latency) == 0 {
		latency = json.RawMessage("null")
	}
	c.sendControl(c.handler.control(models.PongPayload{Latency: latency}))
	return nil
}

func (c *Client) handleGesture(data json.RawMessage) error {
	var req gestureRequest
	if err := decodeData(data, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(logging.ContextWithConnectionID(context.Background(), c.id), c.cfg.WriteWait)
	defer cancel()

	sign, confidence := c.handler.recognizer.Recognize(ctx, req.SignData)
	meta, _ := c.hub.Lookup(c.id)

	payload := models.GestureRecognitionPayload{
		UserID:         meta.UserID,
		GestureID:      req.GestureID,
		Confidence:     clamp01(confidence),
		RecognizedSign: sign,
		Status:         "processed",
	}
	res, err := c.handler.dispatcher.Dispatch(ctx, payload, models.EventGestureRecognition.Room())
	if err != nil {
		return fmt.Errorf("dispatch gesture: %w", err)
	}
	c.logger.Debug().
		Str("gesture_id", string(req.GestureID)).
		Int("recipients", res.Recipients).
		Msg("processed gesture")
	return nil
}

func (c *Client) handleConnectionInit(frame inboundFrame) error {
	client := frame.Client
	if client == "" && len(frame.Data) > 0 {
		var data struct {
			Client string `json:"client"`
		}
		_ = json.Unmarshal(frame.Data, &data)
		client = data.Client
	}
	if client == "" {
		client = "unknown"
	}
	c.sendControl(c.handler.control(models.ConnectionAckPayload{
		Message: "Welcome " + truncate(client, 128),
	}))
	return nil
}

// handleAuthenticate resolves credentials sent after the handshake and
// attaches the identity to the connection, joining its personal room. An
// identity already bound to the connection cannot be replaced.
func (c *Client) handleAuthenticate(data json.RawMessage) error {
	var req authenticateRequest
	if err := decodeData(data, &req); err != nil {
		return err
	}
	creds := auth.Credentials{
		APIKey: strings.TrimSpace(req.APIKey),
		UserID: strings.TrimSpace(req.UserID),
		Token:  strings.TrimSpace(req.Token),
	}
	if creds.Empty() {
		return malformed(errors.New("authenticate carries no credentials"))
	}

	ctx, cancel := context.WithTimeout(logging.ContextWithConnectionID(context.Background(), c.id), c.cfg.WriteWait)
	defer cancel()

	userID, err := c.handler.validator.Validate(ctx, creds)
	if err != nil {
		var ae *auth.AuthError
		reason := "credentials rejected"
		if errors.As(err, &ae) {
			reason = ae.Reason
		}
		c.logger.Debug().Err(err).Msg("post-handshake authentication rejected")
		return authFailed(reason)
	}
	if userID == "" {
		return authFailed("credentials resolved no identity")
	}

	meta, ok := c.hub.Lookup(c.id)
	if !ok {
		return ErrConnectionClosed
	}
	if meta.UserID != "" && meta.UserID != userID {
		return authFailed("connection already authenticated")
	}
	if !c.hub.AttachAuth(c.id, userID, creds.APIKey) {
		return ErrConnectionClosed
	}
	if err := c.hub.Join(c.id, models.UserRoom(userID)); err != nil {
		return err
	}

	c.logger.Info().Str("user_id", userID).Msg("client authenticated")
	c.sendControl(c.handler.control(models.ConnectionAckPayload{
		Message: "Authenticated as " + userID,
	}))
	return nil
}

func authFailed(reason string) *inboundError {
	return &inboundError{code: CodeAuthFailed, reason: "auth_failed", err: errors.New("authentication failed: " + reason)}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
