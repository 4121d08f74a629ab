// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package eventsource

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/pinksync-hub/internal/hub"
	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

// Dispatcher is the subset of *hub.Dispatcher the generator needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload models.Payload, rooms ...string) (hub.DispatchResult, error)
}

// Config configures a Generator.
type Config struct {
	// MinInterval and MaxInterval bound the uniform delay between events.
	// Defaults 1s and 5s.
	MinInterval time.Duration
	MaxInterval time.Duration

	// Rand is the randomness source. Nil seeds one from the clock.
	Rand *rand.Rand
}

// Generator dispatches one random domain event per interval. It
// implements suture.Service.
type Generator struct {
	dispatcher Dispatcher
	cfg        Config
	rnd        *rand.Rand
	logger     zerolog.Logger
}

// New returns a Generator dispatching through d.
func New(d Dispatcher, cfg Config) *Generator {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = max(5*time.Second, cfg.MinInterval)
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // G404: math/rand is fine for synthetic events
	}
	return &Generator{
		dispatcher: d,
		cfg:        cfg,
		rnd:        rnd,
		logger:     logging.WithComponent("eventsource"),
	}
}

// Serve implements suture.Service. It returns ctx.Err() on cancellation;
// failed iterations are logged and do not end the loop.
func (g *Generator) Serve(ctx context.Context) error {
	g.logger.Info().
		Dur("min_interval", g.cfg.MinInterval).
		Dur("max_interval", g.cfg.MaxInterval).
		Msg("synthetic event source started")

	for {
		timer := time.NewTimer(g.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := g.emit(ctx); err != nil {
			if errors.Is(err, hub.ErrHubClosed) {
				<-ctx.Done()
				return ctx.Err()
			}
			g.logger.Error().Err(err).Msg("synthetic event failed")
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (g *Generator) String() string {
	return "event-source"
}

// emit dispatches one event, converting a panic into an error.
func (g *Generator) emit(ctx context.Context) (err error) {
	payload := g.Next()
	eventType := payload.EventType()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic dispatching %s: %v", eventType, r)
		}
		metrics.RecordSyntheticEvent(string(eventType), err)
	}()

	res, err := g.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", eventType, err)
	}
	g.logger.Debug().
		Str("event_type", string(eventType)).
		Int("recipients", res.Recipients).
		Msg("generated event")
	return nil
}

func (g *Generator) nextDelay() time.Duration {
	span := g.cfg.MaxInterval - g.cfg.MinInterval
	if span <= 0 {
		return g.cfg.MinInterval
	}
	return g.cfg.MinInterval + time.Duration(g.rnd.Int63n(int64(span)+1))
}

// Next builds a random payload of a random domain type.
func (g *Generator) Next() models.Payload {
	return g.payloadFor(models.DomainEventTypes[g.rnd.Intn(len(models.DomainEventTypes))])
}

var (
	trustReasons = []models.TrustReason{models.ReasonInterpreterRating, models.ReasonCommunityFeedback, models.ReasonVerification}
	languages    = []models.SignLanguage{models.LanguageASL, models.LanguageBSL, models.LanguageLSF}
	authMethods  = []models.AuthMethod{models.AuthMethodGesture, models.AuthMethodBiometric, models.AuthMethodToken}
	categories   = []models.FeedbackCategory{models.CategoryInterpreter, models.CategoryService, models.CategoryAccessibility}

	endpoints  = []string{"/api/v1/trust", "/api/v1/gestures", "/api/v1/deafauth/verify", "/api/v1/fibonrose/feedback"}
	methods    = []string{"GET", "POST"}
	statuses   = []int{200, 201, 400, 401, 500}
	activities = []string{"login", "logout", "profile_update", "interpreter_requested", "video_call_started"}
)

func pick[T any](r *rand.Rand, from []T) T {
	return from[r.Intn(len(from))]
}

// between returns a uniform int in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.Intn(hi-lo+1)
}

func (g *Generator) payloadFor(t models.EventType) models.Payload {
	userID := "user_" + strconv.Itoa(g.between(1, 1000))

	switch t {
	case models.EventTrustScore:
		return models.TrustScorePayload{
			UserID:      userID,
			ScoreChange: g.between(-5, 5),
			NewScore:    g.between(60, 100),
			Reason:      pick(g.rnd, trustReasons),
		}
	case models.EventGestureRecognition:
		return models.GestureRecognitionPayload{
			UserID:     userID,
			GestureID:  models.FlexibleID(strconv.Itoa(g.between(1, 50))),
			Confidence: round2(0.7 + 0.3*g.rnd.Float64()),
			Language:   pick(g.rnd, languages),
			DurationMs: g.between(500, 3000),
		}
	case models.EventDeafAuthVerification:
		return models.DeafAuthVerificationPayload{
			UserID:       userID,
			Method:       pick(g.rnd, authMethods),
			Success:      g.rnd.Intn(2) == 1,
			AttemptCount: g.between(1, 3),
		}
	case models.EventFibonroseFeedback:
		return models.FibonroseFeedbackPayload{
			UserID:       userID,
			Rating:       g.between(1, 5),
			Category:     pick(g.rnd, categories),
			FeedbackText: "Sample feedback text",
		}
	case models.EventAPIRequestLog:
		return models.ExtensionPayload{Type: t, Fields: map[string]interface{}{
			"user_id":     userID,
			"endpoint":    pick(g.rnd, endpoints),
			"method":      pick(g.rnd, methods),
			"status":      pick(g.rnd, statuses),
			"duration_ms": g.between(5, 500),
		}}
	default:
		return models.ExtensionPayload{Type: t, Fields: map[string]interface{}{
			"user_id": userID,
			"action":  pick(g.rnd, activities),
		}}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
