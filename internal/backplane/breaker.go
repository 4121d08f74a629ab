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

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
)

// BreakerConfig configures the publish circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// Breaker wraps a Backplane's Publish in a circuit breaker so a dead bus
// costs one fast failure per dispatch instead of a timeout. Subscribe and
// Close pass through.
type Breaker struct {
	Backplane
	cb *gobreaker.CircuitBreaker[interface{}]
}

// NewBreaker wraps bp.
func NewBreaker(bp Backplane, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	name := "backplane_" + bp.Name()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), stateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("backplane circuit breaker state changed")
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return &Breaker{Backplane: bp, cb: gobreaker.NewCircuitBreaker[interface{}](settings)}
}

// Publish fails fast with ErrBackplaneUnavailable while the breaker is open.
func (b *Breaker) Publish(ctx context.Context, msg Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.Backplane.Publish(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordBackplanePublish(b.Name(), "rejected")
		return fmt.Errorf("%w: %w", ErrBackplaneUnavailable, err)
	}
	return err
}

// State returns the breaker state for health reporting.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
