// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
)

var (
	// ErrBackplaneUnavailable is returned when the bus cannot accept a
	// publish, including while the circuit breaker is open.
	ErrBackplaneUnavailable = errors.New("backplane unavailable")

	// ErrUnsupportedScheme is returned by Open for an unknown URL scheme.
	ErrUnsupportedScheme = errors.New("unsupported backplane scheme")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("backplane closed")
)

// AllRooms subscribes to every room. It is never a valid room name.
const AllRooms = ""

// Metadata keys carried with every relayed message.
const (
	MetadataRoom   = "pinksync_room"
	MetadataRooms  = "pinksync_rooms"
	MetadataOrigin = "pinksync_origin"
)

// Message is one relayed event: the rooms it targets, the instance that
// produced it and the serialized event frame. Room picks the topic or
// channel; Rooms, when set, is the complete target list of the dispatch.
type Message struct {
	Room    string
	Rooms   []string
	Origin  string
	Payload []byte
}

// Targets returns every room msg is addressed to.
func (m Message) Targets() []string {
	if len(m.Rooms) > 0 {
		return m.Rooms
	}
	if m.Room == "" {
		return nil
	}
	return []string{m.Room}
}

// matches reports whether a subscription for room should see msg.
func (m Message) matches(room string) bool {
	if room == AllRooms {
		return len(m.Targets()) > 0
	}
	return lo.Contains(m.Targets(), room)
}

// Backplane relays messages between hub instances. Delivery is
// at-most-once; a subscriber only sees messages published after it
// subscribed.
type Backplane interface {
	// Publish sends msg to every subscriber of msg.Room, including this
	// instance's own subscribers.
	Publish(ctx context.Context, msg Message) error

	// Subscribe returns a channel of messages targeting room, or every
	// message with AllRooms. The channel is closed when ctx is canceled,
	// the backplane is closed, or the underlying subscription is lost.
	Subscribe(ctx context.Context, room string) (<-chan Message, error)

	// Name identifies the implementation in logs, metrics and /health.
	Name() string

	Close() error
}

// Publisher stamps this instance as the origin of every message and bounds
// each publish with a timeout. It satisfies hub.Publisher.
type Publisher struct {
	bp      Backplane
	origin  string
	timeout time.Duration
}

// NewPublisher returns a Publisher for bp. A zero timeout means the
// caller's context alone bounds publishes.
func NewPublisher(bp Backplane, origin string, timeout time.Duration) *Publisher {
	return &Publisher{bp: bp, origin: origin, timeout: timeout}
}

// Publish relays frame once, addressed to every room in rooms. The first
// room picks the topic.
func (p *Publisher) Publish(ctx context.Context, rooms []string, frame []byte) error {
	if len(rooms) == 0 {
		return nil
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	msg := Message{Room: rooms[0], Rooms: rooms, Origin: p.origin, Payload: frame}
	if err := p.bp.Publish(ctx, msg); err != nil {
		return fmt.Errorf("%s publish %v: %w", p.bp.Name(), rooms, err)
	}
	return nil
}

// Noop is the single-instance backplane. Publishes go nowhere and
// subscriptions never deliver.
type Noop struct{}

// Publish discards msg.
func (Noop) Publish(context.Context, Message) error { return nil }

// Subscribe returns a channel that is closed when ctx is canceled.
func (Noop) Subscribe(ctx context.Context, _ string) (<-chan Message, error) {
	ch := make(chan Message)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (Noop) Name() string { return "none" }

func (Noop) Close() error { return nil }
