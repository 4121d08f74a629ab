// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/pinksync-hub/internal/hub"
	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
)

// Deliverer hands a relayed frame to local members of its rooms, once per
// connection. Satisfied by *hub.Dispatcher.
type Deliverer interface {
	Deliver(ctx context.Context, rooms []string, frame []byte) hub.DispatchResult
}

// RelayConfig configures a Relay.
type RelayConfig struct {
	// Origin is this instance's server id; messages carrying it are echoes
	// of local dispatches and are skipped.
	Origin string

	// BackoffInitial and BackoffMax bound resubscription delays.
	// Defaults 500ms and 30s.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Relay feeds events published by other instances into local delivery.
type Relay struct {
	bp        Backplane
	deliverer Deliverer
	cfg       RelayConfig
	logger    zerolog.Logger

	subscribed atomic.Bool
}

// NewRelay returns a Relay from bp to d.
func NewRelay(bp Backplane, d Deliverer, cfg RelayConfig) *Relay {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = 30 * time.Second
	}
	return &Relay{
		bp:        bp,
		deliverer: d,
		cfg:       cfg,
		logger:    logging.WithComponent("relay").With().Str("backend", bp.Name()).Logger(),
	}
}

// Subscribed reports whether the relay currently holds a live subscription.
func (r *Relay) Subscribed() bool { return r.subscribed.Load() }

func (r *Relay) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BackoffInitial
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = r.cfg.BackoffMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// RunWithContext subscribes to every room and delivers until ctx is
// canceled. A failed or lost subscription is retried with exponential
// backoff; the backoff resets after each successful subscribe.
func (r *Relay) RunWithContext(ctx context.Context) error {
	b := r.newBackoff()

	for {
		msgs, err := r.bp.Subscribe(ctx, AllRooms)
		if err == nil {
			b.Reset()
			r.subscribed.Store(true)
			r.logger.Info().Msg("backplane subscription established")
			r.consume(ctx, msgs)
			r.subscribed.Store(false)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		metrics.RecordBackplaneResubscribe(r.bp.Name())
		ev := r.logger.Warn().Dur("retry_in", wait)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("backplane subscription lost, resubscribing")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Relay) consume(ctx context.Context, msgs <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Relay) handle(ctx context.Context, msg Message) {
	name := r.bp.Name()
	if msg.Origin == r.cfg.Origin {
		metrics.RecordBackplaneReceive(name, "echo")
		return
	}
	res := r.deliverer.Deliver(ctx, msg.Targets(), msg.Payload)
	metrics.RecordBackplaneReceive(name, "delivered")
	r.logger.Trace().
		Strs("rooms", msg.Targets()).
		Str("origin", msg.Origin).
		Int("recipients", res.Recipients).
		Msg("relayed event delivered")
}
