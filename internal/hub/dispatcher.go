// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

// Dispatcher defaults.
const (
	DefaultSendTimeout    = time.Second
	DefaultMaxConcurrency = 64
)

// Publisher relays a serialized event to other instances. The backplane
// adapters implement it; a nil Publisher means single-instance mode.
// rooms is the full target list of one dispatch; it is published once so
// receiving instances can deduplicate across rooms.
type Publisher interface {
	Publish(ctx context.Context, rooms []string, frame []byte) error
}

// ValidationHook inspects a payload before it is stamped and sent. A non-nil
// error aborts the dispatch with ErrInvalidPayload.
type ValidationHook func(models.Payload) error

// DispatchResult reports the outcome of one dispatch. Partial delivery
// failure is reported here, never as an error.
type DispatchResult struct {
	EventType  models.EventType
	Rooms      []string
	Recipients int
	Delivered  int
	Failed     int

	// Relayed is true when the event was published to the backplane.
	Relayed bool
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// SendTimeout bounds each per-recipient send. Default 1s.
	SendTimeout time.Duration

	// MaxConcurrency bounds concurrent sends within one dispatch. Default 64.
	MaxConcurrency int

	// Publisher relays events across instances. Optional.
	Publisher Publisher

	// Validate is an optional producer-side schema check.
	Validate ValidationHook

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Dispatcher stamps events and fans them out to room members.
type Dispatcher struct {
	hub            *Hub
	sendTimeout    time.Duration
	maxConcurrency int
	publisher      Publisher
	validate       ValidationHook
	now            func() time.Time

	// order is held from stamping until every send is queued, so all
	// recipients see this dispatcher's events in timestamp order.
	order  sync.Mutex
	lastTS time.Time
}

// NewDispatcher returns a Dispatcher bound to h.
func NewDispatcher(h *Hub, cfg DispatcherConfig) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		hub:            h,
		sendTimeout:    cfg.SendTimeout,
		maxConcurrency: cfg.MaxConcurrency,
		publisher:      cfg.Publisher,
		validate:       cfg.Validate,
		now:            cfg.Now,
	}
}

// Hub returns the hub this dispatcher delivers through.
func (d *Dispatcher) Hub() *Hub { return d.hub }

// Dispatch stamps payload with a timestamp and this instance's ID, sends it
// to every member of the target rooms and then relays it to the backplane.
// With no rooms the targets are the event type's room and the general room.
//
// A connection in several target rooms receives the event once. Dispatches
// are serialized from stamping to enqueue: concurrent callers reach every
// recipient in timestamp order. The backplane publish happens outside that
// section.
func (d *Dispatcher) Dispatch(ctx context.Context, payload models.Payload, rooms ...string) (DispatchResult, error) {
	if payload == nil {
		return DispatchResult{}, ErrNilPayload
	}
	eventType := payload.EventType()
	result := DispatchResult{EventType: eventType}

	if d.hub.Closed() {
		return result, ErrHubClosed
	}
	if d.validate != nil {
		if err := d.validate(payload); err != nil {
			return result, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, eventType, err)
		}
	}

	if len(rooms) == 0 {
		rooms = d.hub.EventRooms(eventType)
	}
	rooms = lo.Uniq(lo.Filter(rooms, func(r string, _ int) bool { return ValidRoomName(r) }))
	result.Rooms = rooms

	frame, err := d.stampAndFanOut(ctx, payload, rooms, &result)
	if err != nil {
		return result, fmt.Errorf("encode %s: %w", eventType, err)
	}

	result.Relayed = d.relay(ctx, rooms, frame)

	logging.Ctx(ctx).Debug().
		Str("event_type", string(eventType)).
		Strs("rooms", rooms).
		Int("recipients", result.Recipients).
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Bool("relayed", result.Relayed).
		Msg("event dispatched")
	return result, nil
}

func (d *Dispatcher) stampAndFanOut(ctx context.Context, payload models.Payload, rooms []string, result *DispatchResult) ([]byte, error) {
	d.order.Lock()
	defer d.order.Unlock()

	frame, err := models.Encode(models.NewEvent(payload, d.nextTimestamp(), d.hub.ServerID()))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	d.fanOut(ctx, rooms, frame, result)
	metrics.RecordDispatch(string(payload.EventType()), "local", result.Delivered, result.Failed, time.Since(start))
	return frame, nil
}

// Deliver sends an already-serialized frame to the local members of rooms,
// once per connection however many of the rooms it is in. The backplane
// relay uses it for events that originated on another instance; it never
// publishes back to the backplane.
func (d *Dispatcher) Deliver(ctx context.Context, rooms []string, frame []byte) DispatchResult {
	rooms = lo.Uniq(lo.Filter(rooms, func(r string, _ int) bool { return ValidRoomName(r) }))
	result := DispatchResult{Rooms: rooms}
	if d.hub.Closed() || len(rooms) == 0 {
		return result
	}

	d.order.Lock()
	defer d.order.Unlock()

	start := time.Now()
	d.fanOut(ctx, rooms, frame, &result)
	metrics.RecordDispatch("relayed", "backplane", result.Delivered, result.Failed, time.Since(start))
	return result
}

// fanOut sends frame to every recipient concurrently, bounded by
// maxConcurrency. A failed send is counted and the connection is evicted
// asynchronously; other recipients are unaffected.
func (d *Dispatcher) fanOut(ctx context.Context, rooms []string, frame []byte, result *DispatchResult) {
	targets := d.hub.recipients(rooms)
	result.Recipients = len(targets)
	if len(targets) == 0 {
		return
	}

	var delivered, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)

	for _, rc := range targets {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			if err := rc.sender.Send(sendCtx, frame); err != nil {
				failed.Add(1)
				logging.Debug().Err(err).Str("connection_id", rc.id).Msg("delivery failed, evicting connection")
				d.hub.Evict(rc.id, ReasonDeliveryFailure)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result.Delivered = int(delivered.Load())
	result.Failed = int(failed.Load())
}

// relay publishes frame once with every target room. Failures degrade to
// single-instance delivery and are only logged.
func (d *Dispatcher) relay(ctx context.Context, rooms []string, frame []byte) bool {
	if d.publisher == nil || len(rooms) == 0 {
		return false
	}
	if err := d.publisher.Publish(ctx, rooms, frame); err != nil {
		logging.Warn().Err(err).Strs("rooms", rooms).Msg("backplane publish failed, delivering locally only")
		return false
	}
	return true
}

// nextTimestamp returns max(now, last) truncated to the wire precision, so
// timestamps never go backwards on one instance even if the wall clock does.
// The caller holds d.order.
func (d *Dispatcher) nextTimestamp() time.Time {
	now := d.now().UTC().Truncate(time.Microsecond)
	if now.Before(d.lastTS) {
		now = d.lastTS
	}
	d.lastTS = now
	return now
}
