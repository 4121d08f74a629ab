// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/pinksync-hub/internal/hub"
	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type recordingSender struct {
	mu     sync.Mutex
	frames []models.Event
}

func (s *recordingSender) Send(_ context.Context, frame []byte) error {
	ev, err := models.Decode(frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSender) Close() error { return nil }

func (s *recordingSender) events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.frames...)
}

// node is one hub instance wired to a backplane the way cmd/server does it.
type node struct {
	hub        *hub.Hub
	dispatcher *hub.Dispatcher
	relay      *Relay
}

func newNode(t *testing.T, ctx context.Context, serverID string, bp Backplane) *node {
	t.Helper()
	h := hub.New(hub.Config{ServerID: serverID})
	d := hub.NewDispatcher(h, hub.DispatcherConfig{
		Publisher: NewPublisher(bp, serverID, time.Second),
	})
	r := NewRelay(bp, d, RelayConfig{Origin: serverID, BackoffInitial: 10 * time.Millisecond, BackoffMax: 50 * time.Millisecond})

	go func() { _ = h.RunWithContext(ctx) }()
	go func() { _ = r.RunWithContext(ctx) }()

	waitFor(t, 5*time.Second, r.Subscribed, serverID+" relay subscribed")
	return &node{hub: h, dispatcher: d, relay: r}
}

func (n *node) connect(t *testing.T, id string, rooms ...string) *recordingSender {
	t.Helper()
	s := &recordingSender{}
	if err := n.hub.Connect(hub.Metadata{ID: id, ConnectedAt: time.Now()}, s, rooms...); err != nil {
		t.Fatalf("Connect(%s): %v", id, err)
	}
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

// fakeBackplane fails Publish while failPublish is set and Subscribe for
// the first failSubscribes calls.
type fakeBackplane struct {
	mu             sync.Mutex
	failPublish    error
	publishes      int
	failSubscribes int
	subscribes     int
	subs           []chan Message
}

func (f *fakeBackplane) Publish(context.Context, Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes++
	return f.failPublish
}

func (f *fakeBackplane) Subscribe(ctx context.Context, _ string) (<-chan Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribes <= f.failSubscribes {
		return nil, ErrBackplaneUnavailable
	}
	ch := make(chan Message, 8)
	f.subs = append(f.subs, ch)
	return ch, nil
}

// dropSubscriptions closes every open subscription channel.
func (f *fakeBackplane) dropSubscriptions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

func (f *fakeBackplane) counts() (publishes, subscribes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publishes, f.subscribes
}

func (f *fakeBackplane) Name() string { return "fake" }

func (f *fakeBackplane) Close() error { return nil }
