// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package hub

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var errSocketClosed = errors.New("use of closed network connection")

// fakeSender records frames. err forces every Send to fail; block makes
// Send wait until ctx expires.
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	block  bool
	closes atomic.Int32
}

func (f *fakeSender) Send(ctx context.Context, frame []byte) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSender) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *fakeSender) received() []models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Event, 0, len(f.frames))
	for _, fr := range f.frames {
		ev, err := models.Decode(fr)
		if err != nil {
			panic(err)
		}
		out = append(out, ev)
	}
	return out
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func connect(t *testing.T, h *Hub, id string, rooms ...string) *fakeSender {
	t.Helper()
	s := &fakeSender{}
	if err := h.Connect(Metadata{ID: id, ConnectedAt: time.Now()}, s, rooms...); err != nil {
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

func trustPayload() models.TrustScorePayload {
	return models.TrustScorePayload{UserID: "user_7", ScoreChange: 2, NewScore: 88, Reason: models.ReasonVerification}
}
