// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/tomtom215/pinksync-hub/internal/hub"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

// crossInstanceDelivery runs the two-instance scenario: a dispatch on A
// reaches room members on A locally and on B through the backplane, each
// exactly once, stamped with A's server id.
func crossInstanceDelivery(t *testing.T, bpA, bpB Backplane) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newNode(t, ctx, "pinksync-1111", bpA)
	b := newNode(t, ctx, "pinksync-2222", bpB)

	local := a.connect(t, "a-client", "events_gesture_recognition")
	remote := b.connect(t, "b-client", "events_gesture_recognition")
	other := b.connect(t, "b-other", "events_trust_score_event")

	// Subscriptions on a network bus settle asynchronously.
	time.Sleep(100 * time.Millisecond)

	res, err := a.dispatcher.Dispatch(ctx, models.GestureRecognitionPayload{
		GestureID:  "17",
		Confidence: 0.9,
		Language:   models.LanguageASL,
	}, "events_gesture_recognition")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.Relayed {
		t.Error("expected dispatch to be relayed")
	}

	waitFor(t, 5*time.Second, func() bool { return len(remote.events()) == 1 }, "remote delivery")
	// Give a duplicate or an echo time to show up.
	time.Sleep(150 * time.Millisecond)

	if n := len(local.events()); n != 1 {
		t.Errorf("local client got %d events, want 1", n)
	}
	if n := len(remote.events()); n != 1 {
		t.Errorf("remote client got %d events, want 1", n)
	}
	if n := len(other.events()); n != 0 {
		t.Errorf("non-member got %d events, want 0", n)
	}

	ev := remote.events()[0]
	if ev.ServerID != "pinksync-1111" {
		t.Errorf("server_id = %q, want originating instance pinksync-1111", ev.ServerID)
	}
	if ev.Type != models.EventGestureRecognition {
		t.Errorf("type = %q", ev.Type)
	}
	if !ev.Timestamp.Equal(local.events()[0].Timestamp) {
		t.Errorf("relayed timestamp %v differs from local %v", ev.Timestamp, local.events()[0].Timestamp)
	}
}

func TestCrossInstance_InMemory(t *testing.T) {
	bus := NewGoChannel()
	defer bus.Close()

	bpA := NewInMemory(bus)
	bpB := NewInMemory(bus)
	defer bpA.Close()
	defer bpB.Close()

	crossInstanceDelivery(t, bpA, bpB)
}

// A dispatch to the default rooms reaches a remote member of both rooms
// once, the same as a local member.
func TestCrossInstance_DefaultRoomsDeliverOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewGoChannel()
	defer bus.Close()
	bpA := NewInMemory(bus)
	bpB := NewInMemory(bus)
	defer bpA.Close()
	defer bpB.Close()

	a := newNode(t, ctx, "pinksync-1111", bpA)
	b := newNode(t, ctx, "pinksync-2222", bpB)

	rooms := a.hub.EventRooms(models.EventTrustScore)
	local := a.connect(t, "a1", rooms...)
	remote := b.connect(t, "b1", rooms...)

	if _, err := a.dispatcher.Dispatch(ctx, models.TrustScorePayload{
		UserID:   "user_1",
		NewScore: 80,
		Reason:   models.ReasonVerification,
	}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return len(remote.events()) >= 1 }, "remote delivery")
	time.Sleep(150 * time.Millisecond)

	if n := len(local.events()); n != 1 {
		t.Errorf("local member got %d events, want 1", n)
	}
	if n := len(remote.events()); n != 1 {
		t.Errorf("remote member got %d events, want 1", n)
	}
}

func TestCrossInstance_EmbeddedNATS(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}

	srv, err := NewEmbeddedServer(EmbeddedConfig{Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	bpA, err := NewNATS(NATSConfig{URL: srv.ClientURL(), SubjectPrefix: "test.rooms"})
	if err != nil {
		t.Fatalf("NewNATS A: %v", err)
	}
	defer bpA.Close()
	bpB, err := NewNATS(NATSConfig{URL: srv.ClientURL(), SubjectPrefix: "test.rooms"})
	if err != nil {
		t.Fatalf("NewNATS B: %v", err)
	}
	defer bpB.Close()

	crossInstanceDelivery(t, bpA, bpB)
}

func TestRelay_SkipsOwnEcho(t *testing.T) {
	bp := &fakeBackplane{}
	h := hub.New(hub.Config{ServerID: "self"})
	d := hub.NewDispatcher(h, hub.DispatcherConfig{})
	s := &recordingSender{}
	if err := h.Connect(hub.Metadata{ID: "c1"}, s, "room"); err != nil {
		t.Fatal(err)
	}

	r := NewRelay(bp, d, RelayConfig{Origin: "self"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunWithContext(ctx) }()
	waitFor(t, time.Second, r.Subscribed, "subscribed")

	frame, _ := models.Encode(models.NewEvent(models.PongPayload{Latency: []byte("null")}, time.Now(), "self"))
	bp.mu.Lock()
	bp.subs[0] <- Message{Room: "room", Origin: "self", Payload: frame}
	bp.subs[0] <- Message{Room: "room", Origin: "peer", Payload: frame}
	bp.mu.Unlock()

	waitFor(t, time.Second, func() bool { return len(s.events()) == 1 }, "peer message delivered")
	time.Sleep(50 * time.Millisecond)
	if n := len(s.events()); n != 1 {
		t.Errorf("got %d deliveries, want 1 (echo must be skipped)", n)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("RunWithContext returned %v, want context.Canceled", err)
	}
}

func TestRelay_ResubscribesWithBackoff(t *testing.T) {
	bp := &fakeBackplane{failSubscribes: 2}
	d := hub.NewDispatcher(hub.New(hub.Config{ServerID: "self"}), hub.DispatcherConfig{})
	r := NewRelay(bp, d, RelayConfig{Origin: "self", BackoffInitial: time.Millisecond, BackoffMax: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.RunWithContext(ctx) }()

	waitFor(t, 2*time.Second, r.Subscribed, "subscribed after failures")
	if _, subs := bp.counts(); subs != 3 {
		t.Errorf("subscribe attempts = %d, want 3", subs)
	}

	// A lost subscription is re-established.
	bp.dropSubscriptions()
	waitFor(t, 2*time.Second, func() bool {
		_, subs := bp.counts()
		return subs == 4 && r.Subscribed()
	}, "resubscribed after drop")
}

func TestRelay_BackoffSettings(t *testing.T) {
	r := NewRelay(Noop{}, nil, RelayConfig{})
	b := r.newBackoff()
	if b.InitialInterval != 500*time.Millisecond || b.MaxInterval != 30*time.Second {
		t.Errorf("intervals = %v/%v, want 500ms/30s", b.InitialInterval, b.MaxInterval)
	}
	if b.Multiplier != 2 || b.RandomizationFactor != 0.5 || b.MaxElapsedTime != 0 {
		t.Errorf("unexpected backoff %+v", b)
	}
}

func TestCrossInstance_NATSStartsAfterHubs(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	url := fmt.Sprintf("nats://127.0.0.1:%d", port)

	// Nothing listens yet: both adapters open and keep retrying.
	cfg := NATSConfig{URL: url, SubjectPrefix: "test.late", ReconnectWait: 50 * time.Millisecond}
	bpA, err := NewNATS(cfg)
	if err != nil {
		t.Fatalf("NewNATS A with server down: %v", err)
	}
	defer bpA.Close()
	bpB, err := NewNATS(cfg)
	if err != nil {
		t.Fatalf("NewNATS B with server down: %v", err)
	}
	defer bpB.Close()

	srv, err := NewEmbeddedServer(EmbeddedConfig{Port: port})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	// Let both clients finish their first connect.
	waitFor(t, 5*time.Second, func() bool { return srv.server.NumClients() >= 4 }, "clients connected")

	crossInstanceDelivery(t, bpA, bpB)
}

func TestNewNATS_FailFast(t *testing.T) {
	_, err := NewNATS(NATSConfig{URL: "nats://127.0.0.1:1", FailFast: true})
	if err == nil {
		t.Fatal("expected an error for an unreachable server")
	}
}
