// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/pinksync-hub/internal/logging"
)

// NATSConfig configures the NATS backplane.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Name          string

	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration

	// FailFast returns an error when the server is unreachable instead of
	// retrying the first connect in the background.
	FailFast bool
}

func (c *NATSConfig) setDefaults() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "pinksync.rooms"
	}
	if c.Name == "" {
		c.Name = "pinksync-hub"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
}

// NewNATS returns a Backplane over core NATS (no JetStream): every
// instance receives every room's subject, nothing is persisted.
func NewNATS(cfg NATSConfig) (*Watermill, error) {
	cfg.setDefaults()
	logger := logging.NewWatermillLogger("backplane.nats")

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, "publisher", logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: create NATS publisher: %w", ErrBackplaneUnavailable, err)
	}

	// No queue group: fan-out to every instance is the point.
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		AckWaitTimeout:   cfg.CloseTimeout,
		NatsOptions:      natsOptions(cfg, "subscriber", logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("%w: create NATS subscriber: %w", ErrBackplaneUnavailable, err)
	}

	return NewWatermill(WatermillConfig{
		Name:       "nats",
		Publisher:  pub,
		Subscriber: sub,
		Topics:     NATSTopics{Prefix: cfg.SubjectPrefix},
		CloseBus:   true,
	})
}

// natsOptions returns connection options with reconnection handling.
func natsOptions(cfg NATSConfig, role string, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(cfg.Name + "-" + role),
		natsgo.RetryOnFailedConnect(!cfg.FailFast),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"role": role,
				"url":  nc.ConnectedUrl(),
			})
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{"role": role}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	}
}
