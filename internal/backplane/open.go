// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// OpenConfig selects and configures a backplane.
type OpenConfig struct {
	// URL picks the implementation by scheme. Empty means Noop.
	URL string

	SubjectPrefix string
	RedisPrefix   string

	// FailFast makes Open fail when the bus is unreachable. Otherwise the
	// adapter is returned disconnected and connects in the background.
	FailFast bool
}

// Open returns the Backplane for cfg.URL:
//
//	""                  Noop (single instance)
//	nats://, tls://     core NATS through watermill
//	redis://, rediss:// Redis pub/sub
//	memory://<name>     in-process gochannel shared by every Open of <name>
func Open(ctx context.Context, cfg OpenConfig) (Backplane, error) {
	if cfg.URL == "" {
		return Noop{}, nil
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse backplane url: %w", err)
	}

	switch u.Scheme {
	case "nats", "tls":
		bp, err := NewNATS(NATSConfig{URL: cfg.URL, SubjectPrefix: cfg.SubjectPrefix, FailFast: cfg.FailFast})
		if err != nil {
			return nil, err
		}
		return bp, nil
	case "redis", "rediss":
		bp, err := NewRedis(ctx, RedisConfig{URL: cfg.URL, Prefix: cfg.RedisPrefix, FailFast: cfg.FailFast})
		if err != nil {
			return nil, err
		}
		return bp, nil
	case "memory":
		return NewInMemory(sharedGoChannel(u.Host)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

var (
	memoryBusesMu sync.Mutex
	memoryBuses   = map[string]*gochannel.GoChannel{}
)

// sharedGoChannel returns the process-wide gochannel for name, creating it
// on first use.
func sharedGoChannel(name string) *gochannel.GoChannel {
	memoryBusesMu.Lock()
	defer memoryBusesMu.Unlock()
	if bus, ok := memoryBuses[name]; ok {
		return bus
	}
	bus := NewGoChannel()
	memoryBuses[name] = bus
	return bus
}
