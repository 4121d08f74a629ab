// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package models

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// EventType discriminates payload variants.
type EventType string

// Domain event types produced by upstream services and the synthetic source.
const (
	EventTrustScore           EventType = "trust_score_event"
	EventGestureRecognition   EventType = "gesture_recognition"
	EventDeafAuthVerification EventType = "deaf_auth_verification"
	EventFibonroseFeedback    EventType = "fibonrose_feedback"
	EventAPIRequestLog        EventType = "api_request_log"
	EventUserActivity         EventType = "user_activity"
)

// Control frame types sent directly to a single connection.
const (
	EventConnectionEstablished EventType = "connection_established"
	EventSubscriptionConfirmed EventType = "subscription_confirmed"
	EventPong                  EventType = "pong"
	EventConnectionAck         EventType = "connection_ack"
	EventError                 EventType = "error"
)

// DomainEventTypes lists the types the synthetic event source draws from.
var DomainEventTypes = []EventType{
	EventTrustScore,
	EventGestureRecognition,
	EventDeafAuthVerification,
	EventFibonroseFeedback,
	EventAPIRequestLog,
	EventUserActivity,
}

// EventRoomPrefix prefixes per-type subscription rooms.
const EventRoomPrefix = "events_"

// UserRoomPrefix prefixes per-user rooms.
const UserRoomPrefix = "user_"

// Room returns the subscription room for t, e.g. events_trust_score_event.
func (t EventType) Room() string {
	return EventRoomPrefix + string(t)
}

// UserRoom returns the per-user room for userID.
func UserRoom(userID string) string {
	return UserRoomPrefix + userID
}

// TrustReason explains a trust score change.
type TrustReason string

const (
	ReasonInterpreterRating TrustReason = "interpreter_rating"
	ReasonCommunityFeedback TrustReason = "community_feedback"
	ReasonVerification      TrustReason = "verification"
)

// SignLanguage identifies the sign language of a recognized gesture.
type SignLanguage string

const (
	LanguageASL SignLanguage = "ASL"
	LanguageBSL SignLanguage = "BSL"
	LanguageLSF SignLanguage = "LSF"
)

// AuthMethod is the factor used in a DeafAUTH verification.
type AuthMethod string

const (
	AuthMethodGesture   AuthMethod = "gesture"
	AuthMethodBiometric AuthMethod = "biometric"
	AuthMethodToken     AuthMethod = "token"
)

// FeedbackCategory classifies Fibonrose feedback.
type FeedbackCategory string

const (
	CategoryInterpreter   FeedbackCategory = "interpreter"
	CategoryService       FeedbackCategory = "service"
	CategoryAccessibility FeedbackCategory = "accessibility"
)

// TrustScorePayload reports a change in a user's trust score.
// NewScore bounds (0-100) are the producer's contract; the dispatcher only
// checks them when the validation hook is enabled.
type TrustScorePayload struct {
	UserID      string      `json:"user_id,omitempty"`
	ScoreChange int         `json:"score_change"`
	NewScore    int         `json:"new_score" validate:"gte=0,lte=100"`
	Reason      TrustReason `json:"reason" validate:"required,oneof=interpreter_rating community_feedback verification"`
}

func (TrustScorePayload) EventType() EventType { return EventTrustScore }

// GestureRecognitionPayload carries one recognized gesture. Producers clamp
// Confidence to [0,1].
type GestureRecognitionPayload struct {
	UserID         string       `json:"user_id,omitempty"`
	GestureID      FlexibleID   `json:"gesture_id" validate:"required"`
	Confidence     float64      `json:"confidence" validate:"gte=0,lte=1"`
	Language       SignLanguage `json:"language,omitempty" validate:"omitempty,oneof=ASL BSL LSF"`
	DurationMs     int          `json:"duration_ms,omitempty" validate:"gte=0"`
	RecognizedSign string       `json:"recognized_sign,omitempty"`
	Status         string       `json:"status,omitempty"`
}

func (GestureRecognitionPayload) EventType() EventType { return EventGestureRecognition }

// DeafAuthVerificationPayload reports the outcome of a DeafAUTH attempt.
type DeafAuthVerificationPayload struct {
	UserID       string     `json:"user_id,omitempty"`
	Method       AuthMethod `json:"method" validate:"required,oneof=gesture biometric token"`
	Success      bool       `json:"success"`
	AttemptCount int        `json:"attempt_count" validate:"gte=1"`
}

func (DeafAuthVerificationPayload) EventType() EventType { return EventDeafAuthVerification }

// FibonroseFeedbackPayload is a single rating submitted to Fibonrose.
type FibonroseFeedbackPayload struct {
	UserID       string           `json:"user_id,omitempty"`
	Rating       int              `json:"rating" validate:"min=1,max=5"`
	Category     FeedbackCategory `json:"category" validate:"required,oneof=interpreter service accessibility"`
	FeedbackText string           `json:"feedback_text" validate:"max=4096"`
}

func (FibonroseFeedbackPayload) EventType() EventType { return EventFibonroseFeedback }

// ExtensionPayload is the free-form variant used for audit-style fan-out
// (api_request_log, user_activity) and for any type without a struct.
type ExtensionPayload struct {
	Type   EventType              `validate:"required"`
	Fields map[string]interface{} `validate:"-"`
}

func (p ExtensionPayload) EventType() EventType { return p.Type }

// MarshalJSON emits Fields only, minus reserved header keys.
func (p ExtensionPayload) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		if isReservedKey(k) {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func isReservedKey(k string) bool {
	return k == "type" || k == "timestamp" || k == "server_id"
}

// ConnectionEstablishedPayload greets a newly registered connection.
type ConnectionEstablishedPayload struct {
	Message  string   `json:"message"`
	Features []string `json:"features"`
}

func (ConnectionEstablishedPayload) EventType() EventType { return EventConnectionEstablished }

// SubscriptionConfirmedPayload acknowledges subscribe/unsubscribe requests.
type SubscriptionConfirmedPayload struct {
	SubscribedEvents []string `json:"subscribed_events"`
}

func (SubscriptionConfirmedPayload) EventType() EventType { return EventSubscriptionConfirmed }

// PongPayload answers a ping. Latency echoes the client's timestamp verbatim
// (JSON null when the ping carried none).
type PongPayload struct {
	Latency json.RawMessage `json:"latency"`
}

func (PongPayload) EventType() EventType { return EventPong }

// ConnectionAckPayload answers the legacy connection_init message.
type ConnectionAckPayload struct {
	Message string `json:"message"`
}

func (ConnectionAckPayload) EventType() EventType { return EventConnectionAck }

// ErrorPayload is only sent when error frames are enabled; by default
// malformed input is dropped silently.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorPayload) EventType() EventType { return EventError }

// DecodePayload decodes raw (a flat frame or a bare payload object) into the
// variant registered for t. Unknown types become an ExtensionPayload.
func DecodePayload(t EventType, raw []byte) (Payload, error) {
	switch t {
	case EventTrustScore:
		return decodeAs[TrustScorePayload](raw)
	case EventGestureRecognition:
		return decodeAs[GestureRecognitionPayload](raw)
	case EventDeafAuthVerification:
		return decodeAs[DeafAuthVerificationPayload](raw)
	case EventFibonroseFeedback:
		return decodeAs[FibonroseFeedbackPayload](raw)
	case EventConnectionEstablished:
		return decodeAs[ConnectionEstablishedPayload](raw)
	case EventSubscriptionConfirmed:
		return decodeAs[SubscriptionConfirmedPayload](raw)
	case EventPong:
		return decodeAs[PongPayload](raw)
	case EventConnectionAck:
		return decodeAs[ConnectionAckPayload](raw)
	case EventError:
		return decodeAs[ErrorPayload](raw)
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k := range fields {
		if isReservedKey(k) {
			delete(fields, k)
		}
	}
	return ExtensionPayload{Type: t, Fields: fields}, nil
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// FlexibleID is an identifier clients may send as a JSON string or number.
// It always marshals as a string.
type FlexibleID string

// UnmarshalJSON accepts "17", 17 and null.
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = FlexibleID(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("id %s is neither a string nor a number", s)
	}
	*f = FlexibleID(s)
	return nil
}
