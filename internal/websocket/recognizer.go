// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package websocket

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Recognizer turns client sign data into a recognized sign and a
// confidence in [0, 1].
type Recognizer interface {
	Recognize(ctx context.Context, signData string) (sign string, confidence float64)
}

// RandomRecognizer is a placeholder until a gesture model is wired in. It
// echoes the sign data (or "unknown") with a confidence drawn uniformly
// from [0.7, 1.0].
type RandomRecognizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomRecognizer returns a RandomRecognizer. Nil seeds from the clock.
func NewRandomRecognizer(rnd *rand.Rand) *RandomRecognizer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // G404: placeholder confidence, not security
	}
	return &RandomRecognizer{rnd: rnd}
}

func (r *RandomRecognizer) Recognize(_ context.Context, signData string) (string, float64) {
	r.mu.Lock()
	f := r.rnd.Float64()
	r.mu.Unlock()

	if signData == "" {
		signData = "unknown"
	}
	return signData, math.Round((0.7+0.3*f)*100) / 100
}
