// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
)

// TopicStrategy maps rooms onto watermill topics.
type TopicStrategy interface {
	// Topic is where a message for room is published.
	Topic(room string) string

	// SubscribeTopic is what a subscriber for room (or AllRooms) listens on.
	SubscribeTopic(room string) string
}

// NATSTopics publishes each message on the subject of its first room under
// Prefix. Subscriptions always use the Prefix.> wildcard and filter on the
// room list in metadata, since one message may target several rooms.
type NATSTopics struct {
	Prefix string
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

// Topic returns Prefix.<room>, with subject-reserved characters replaced.
// Distinct rooms may share a subject after replacement; subscribers
// re-check the rooms carried in metadata.
func (s NATSTopics) Topic(room string) string {
	return s.Prefix + "." + subjectReplacer.Replace(room)
}

func (s NATSTopics) SubscribeTopic(string) string {
	return s.Prefix + ".>"
}

// SingleTopic publishes every room to one topic and filters on the
// subscriber side. Used with the in-process gochannel, which has no
// wildcard subscriptions.
type SingleTopic struct {
	Name string
}

func (s SingleTopic) Topic(string) string { return s.Name }

func (s SingleTopic) SubscribeTopic(string) string { return s.Name }

// Watermill adapts any watermill publisher/subscriber pair to Backplane.
type Watermill struct {
	name       string
	publisher  message.Publisher
	subscriber message.Subscriber
	topics     TopicStrategy
	closeBus   bool

	mu     sync.Mutex
	closed bool
	subs   map[int]context.CancelFunc
	nextID int
	wg     sync.WaitGroup
}

// WatermillConfig configures NewWatermill.
type WatermillConfig struct {
	// Name identifies the backend ("nats", "memory").
	Name string

	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topics     TopicStrategy

	// CloseBus closes Publisher and Subscriber on Close. Leave false when
	// the bus is shared with other backplanes.
	CloseBus bool
}

// NewWatermill returns a Backplane over a watermill publisher/subscriber.
func NewWatermill(cfg WatermillConfig) (*Watermill, error) {
	if cfg.Publisher == nil || cfg.Subscriber == nil {
		return nil, errors.New("watermill backplane needs a publisher and a subscriber")
	}
	if cfg.Topics == nil {
		cfg.Topics = SingleTopic{Name: "pinksync.rooms"}
	}
	if cfg.Name == "" {
		cfg.Name = "watermill"
	}
	return &Watermill{
		name:       cfg.Name,
		publisher:  cfg.Publisher,
		subscriber: cfg.Subscriber,
		topics:     cfg.Topics,
		closeBus:   cfg.CloseBus,
		subs:       make(map[int]context.CancelFunc),
	}, nil
}

// NewInMemory returns a Backplane over a watermill gochannel. Backplanes
// built on the same pubsub see each other's messages; a nil pubsub gets a
// private one that is closed with the backplane.
func NewInMemory(pubsub *gochannel.GoChannel) *Watermill {
	own := pubsub == nil
	if own {
		pubsub = NewGoChannel()
	}
	w, _ := NewWatermill(WatermillConfig{
		Name:       "memory",
		Publisher:  pubsub,
		Subscriber: pubsub,
		Topics:     SingleTopic{Name: "pinksync.rooms"},
		CloseBus:   own,
	})
	return w
}

// NewGoChannel returns a non-persistent gochannel pub/sub logging through
// zerolog.
func NewGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		logging.NewWatermillLogger("backplane.memory"),
	)
}

func (w *Watermill) Name() string { return w.name }

// Publish sends msg with its rooms and origin in metadata.
func (w *Watermill) Publish(ctx context.Context, msg Message) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}

	rooms, err := json.Marshal(msg.Targets())
	if err != nil {
		return fmt.Errorf("encode rooms: %w", err)
	}
	wm := message.NewMessage(uuid.NewString(), msg.Payload)
	wm.Metadata.Set(MetadataRoom, msg.Room)
	wm.Metadata.Set(MetadataRooms, string(rooms))
	wm.Metadata.Set(MetadataOrigin, msg.Origin)
	wm.SetContext(ctx)

	if err := w.publisher.Publish(w.topics.Topic(msg.Room), wm); err != nil {
		metrics.RecordBackplanePublish(w.name, "error")
		return fmt.Errorf("%w: %w", ErrBackplaneUnavailable, err)
	}
	metrics.RecordBackplanePublish(w.name, "ok")
	return nil
}

// Subscribe delivers messages for room (or AllRooms). Every watermill
// message is acked as soon as it is copied out.
func (w *Watermill) Subscribe(ctx context.Context, room string) (<-chan Message, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	subCtx, cancel := context.WithCancel(ctx)
	id := w.nextID
	w.nextID++
	w.subs[id] = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	in, err := w.subscriber.Subscribe(subCtx, w.topics.SubscribeTopic(room))
	if err != nil {
		w.release(id)
		w.wg.Done()
		return nil, fmt.Errorf("%w: subscribe: %w", ErrBackplaneUnavailable, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer w.wg.Done()
		defer w.release(id)
		defer close(out)
		w.forward(subCtx, room, in, out)
	}()
	return out, nil
}

func (w *Watermill) forward(ctx context.Context, room string, in <-chan *message.Message, out chan<- Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case wm, ok := <-in:
			if !ok {
				return
			}
			msg := Message{
				Room:    wm.Metadata.Get(MetadataRoom),
				Origin:  wm.Metadata.Get(MetadataOrigin),
				Payload: wm.Payload,
			}
			if raw := wm.Metadata.Get(MetadataRooms); raw != "" {
				if err := json.Unmarshal([]byte(raw), &msg.Rooms); err != nil {
					logging.Warn().Err(err).Str("backend", w.name).Msg("dropping backplane message with malformed room list")
					wm.Ack()
					continue
				}
			}
			wm.Ack()

			if !msg.matches(room) {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Watermill) release(id int) {
	w.mu.Lock()
	cancel, ok := w.subs[id]
	delete(w.subs, id)
	w.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close ends every subscription and, if owned, the underlying bus.
func (w *Watermill) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cancels := make([]context.CancelFunc, 0, len(w.subs))
	for _, c := range w.subs {
		cancels = append(cancels, c)
	}
	w.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	w.wg.Wait()

	if !w.closeBus {
		return nil
	}
	return errors.Join(w.publisher.Close(), w.subscriber.Close())
}
