// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package websocket

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/tomtom215/pinksync-hub/internal/hub"
)

func detachedClient(t *testing.T, sendBuffer int) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.SendBuffer = sendBuffer
	h := NewHandler(hub.New(hub.Config{ServerID: testServerID}), nil, trustingValidator(t), nil, cfg)
	return newClient("c1", nil, h)
}

func TestClient_SendQueue(t *testing.T) {
	c := detachedClient(t, 2)

	for i := 0; i < 2; i++ {
		if err := c.Send(context.Background(), []byte(`{}`)); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Send(ctx, []byte(`{}`)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send on full queue = %v, want DeadlineExceeded", err)
	}

	if got := string(<-c.send); got != `{}` {
		t.Errorf("queued frame = %s", got)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	c := detachedClient(t, 4)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := c.Send(context.Background(), []byte(`{}`)); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send after Close = %v, want ErrConnectionClosed", err)
	}
	if c.State() != StateDisconnecting {
		t.Errorf("state = %s, want disconnecting", c.State())
	}
}

func TestClient_StateOnlyMovesForward(t *testing.T) {
	c := detachedClient(t, 1)
	if c.State() != StateConnecting {
		t.Fatalf("initial state = %s", c.State())
	}

	steps := []struct {
		to   State
		want State
	}{
		{StateConnected, StateConnected},
		{StateClosed, StateClosed},
		{StateConnected, StateClosed},
		{StateDisconnecting, StateClosed},
	}
	for _, s := range steps {
		c.transition(s.to)
		if c.State() != s.want {
			t.Errorf("after transition(%s) state = %s, want %s", s.to, c.State(), s.want)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateConnecting:    "connecting",
		StateConnected:     "connected",
		StateDisconnecting: "disconnecting",
		StateClosed:        "closed",
		StateRejected:      "rejected",
		State(42):          "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.InboundRate = 20
	cfg.setDefaults()

	if cfg.PingInterval != 20*time.Second || cfg.PingTimeout != 10*time.Second {
		t.Errorf("heartbeat = %v/%v", cfg.PingInterval, cfg.PingTimeout)
	}
	if cfg.SendBuffer != 256 || cfg.MaxMessageSize != 512*1024 {
		t.Errorf("buffers = %d/%d", cfg.SendBuffer, cfg.MaxMessageSize)
	}
	if cfg.InboundBurst != 21 {
		t.Errorf("burst = %d", cfg.InboundBurst)
	}
}

func TestRandomRecognizer(t *testing.T) {
	r := NewRandomRecognizer(rand.New(rand.NewSource(7)))

	for i := 0; i < 500; i++ {
		sign, conf := r.Recognize(context.Background(), "thank-you")
		if sign != "thank-you" {
			t.Fatalf("sign = %q", sign)
		}
		if conf < 0.7 || conf > 1.0 || conf != math.Round(conf*100)/100 {
			t.Fatalf("confidence = %v", conf)
		}
	}
	if sign, _ := r.Recognize(context.Background(), ""); sign != "unknown" {
		t.Errorf("empty sign data = %q, want unknown", sign)
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.42, 0.42},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := clamp01(tt.in); got != tt.want {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://app.pinksync.io", "https://app.pinksync.io"},
		{"evil\r\nInjected: yes", "evil\\x0d\\x0aInjected: yes"},
		{"del\x7f", "del\\x7f"},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
