// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tomtom215/pinksync-hub/internal/backplane"
	"github.com/tomtom215/pinksync-hub/internal/config"
	"github.com/tomtom215/pinksync-hub/internal/logging"
)

// backplaneSetup is the opened backplane. backplane is the breaker-wrapped
// adapter, or nil in single-instance mode.
type backplaneSetup struct {
	backplane backplane.Backplane
	breaker   *backplane.Breaker
	embedded  *backplane.EmbeddedServer
}

func (s *backplaneSetup) enabled() bool { return s.backplane != nil }

// close releases the adapter. The embedded server is stopped by its
// supervisor service.
func (s *backplaneSetup) close() {
	if s.backplane == nil {
		return
	}
	if err := s.backplane.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing backplane")
	}
}

// openBackplane starts the embedded broker if asked and opens the
// configured adapter. An unreachable bus is opened anyway and connected in
// the background; with Required set it is fatal instead. A URL that cannot
// be opened at all falls back to single-instance mode unless required.
func openBackplane(ctx context.Context, cfg config.BackplaneConfig) (*backplaneSetup, error) {
	setup := &backplaneSetup{}
	target := cfg.URL

	if cfg.EmbeddedNATS {
		srv, err := backplane.NewEmbeddedServer(backplane.EmbeddedConfig{
			Host: cfg.EmbeddedHost,
			Port: cfg.EmbeddedPort,
		})
		if err != nil {
			if cfg.Required {
				return nil, fmt.Errorf("start embedded NATS: %w", err)
			}
			logging.Warn().Err(err).Msg("Embedded NATS failed to start")
		} else {
			setup.embedded = srv
			logging.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")
			if target == "" {
				target = srv.ClientURL()
			}
		}
	}

	if target == "" {
		logging.Info().Msg("No backplane configured, running single-instance")
		return setup, nil
	}

	raw, err := backplane.Open(ctx, backplane.OpenConfig{
		URL:           target,
		SubjectPrefix: cfg.SubjectPrefix,
		RedisPrefix:   cfg.RedisPrefix,
		FailFast:      cfg.Required,
	})
	if err != nil {
		if cfg.Required {
			setup.shutdownEmbedded()
			return nil, fmt.Errorf("open backplane %s: %w", redactURL(target), err)
		}
		logging.Warn().Err(err).Str("url", redactURL(target)).
			Msg("Backplane unavailable, running single-instance")
		return setup, nil
	}

	setup.breaker = backplane.NewBreaker(raw, backplane.BreakerConfig{
		MaxRequests:      cfg.BreakerMaxRequests,
		Interval:         cfg.BreakerInterval,
		Timeout:          cfg.BreakerTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
	})
	setup.backplane = setup.breaker
	logging.Info().Str("backplane", raw.Name()).Str("url", redactURL(target)).Msg("Backplane connected")
	return setup, nil
}

func (s *backplaneSetup) shutdownEmbedded() {
	if s.embedded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.embedded.Shutdown(ctx)
	s.embedded = nil
}

// redactURL hides credentials in backplane URLs before logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}
