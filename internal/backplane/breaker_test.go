// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("connection refused")
	fake := &fakeBackplane{failPublish: boom}
	b := NewBreaker(fake, BreakerConfig{MaxRequests: 1, Timeout: time.Hour, FailureThreshold: 3})

	if b.State() != "closed" {
		t.Fatalf("initial state = %q", b.State())
	}
	for i := 0; i < 3; i++ {
		if err := b.Publish(context.Background(), Message{Room: "r"}); !errors.Is(err, boom) {
			t.Fatalf("publish %d: err = %v, want underlying error", i, err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("state after failures = %q, want open", b.State())
	}

	err := b.Publish(context.Background(), Message{Room: "r"})
	if !errors.Is(err, ErrBackplaneUnavailable) {
		t.Errorf("open breaker err = %v, want ErrBackplaneUnavailable", err)
	}
	if pubs, _ := fake.counts(); pubs != 3 {
		t.Errorf("underlying publishes = %d, want 3 (open breaker must not call through)", pubs)
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	fake := &fakeBackplane{failPublish: errors.New("down")}
	b := NewBreaker(fake, BreakerConfig{MaxRequests: 1, Timeout: 20 * time.Millisecond, FailureThreshold: 1})

	_ = b.Publish(context.Background(), Message{Room: "r"})
	if b.State() != "open" {
		t.Fatalf("state = %q, want open", b.State())
	}

	fake.mu.Lock()
	fake.failPublish = nil
	fake.mu.Unlock()

	waitFor(t, time.Second, func() bool { return b.State() == "half-open" }, "half-open")
	if err := b.Publish(context.Background(), Message{Room: "r"}); err != nil {
		t.Fatalf("half-open publish: %v", err)
	}
	if b.State() != "closed" {
		t.Errorf("state after successful half-open publish = %q, want closed", b.State())
	}
}

func TestBreaker_PassesThrough(t *testing.T) {
	fake := &fakeBackplane{}
	b := NewBreaker(fake, BreakerConfig{})
	if b.Name() != "fake" {
		t.Errorf("Name() = %q", b.Name())
	}
	ch, err := b.Subscribe(context.Background(), AllRooms)
	if err != nil || ch == nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, subs := fake.counts(); subs != 1 {
		t.Errorf("subscribes = %d", subs)
	}
}
