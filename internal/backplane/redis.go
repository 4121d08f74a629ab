// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package backplane

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/metrics"
)

// redisEnvelope is the wire format on Redis channels. Payload is the event
// frame, embedded verbatim.
type redisEnvelope struct {
	Room    string          `json:"room"`
	Rooms   []string        `json:"rooms,omitempty"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Redis is a Backplane over Redis pub/sub. A message is published on
// <prefix>:<first room>; every subscription pattern-subscribes to
// <prefix>:* and filters on the envelope's room list.
type Redis struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	closed bool
	subs   map[*redis.PubSub]struct{}
	wg     sync.WaitGroup
}

// RedisConfig configures NewRedis.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL understood by redis.ParseURL.
	URL    string
	Prefix string

	// FailFast returns an error when the first ping fails. Otherwise the
	// client connects lazily and the relay retries its subscription.
	FailFast bool
}

// NewRedis creates the client and pings the server once.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cfg.FailFast {
			_ = client.Close()
			return nil, fmt.Errorf("%w: redis ping: %w", ErrBackplaneUnavailable, err)
		}
		logging.Warn().Err(err).Str("addr", opts.Addr).Msg("redis unreachable, connecting in the background")
	}
	return newRedisWithClient(client, cfg.Prefix), nil
}

func newRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "pinksync:rooms"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) channel(room string) string {
	return r.prefix + ":" + room
}

// Publish sends msg wrapped in an envelope.
func (r *Redis) Publish(ctx context.Context, msg Message) error {
	if r.isClosed() {
		return ErrClosed
	}
	body, err := encodeEnvelope(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel(msg.Room), body).Err(); err != nil {
		metrics.RecordBackplanePublish("redis", "error")
		return fmt.Errorf("%w: %w", ErrBackplaneUnavailable, err)
	}
	metrics.RecordBackplanePublish("redis", "ok")
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning so
// no message published afterwards is missed.
func (r *Redis) Subscribe(ctx context.Context, room string) (<-chan Message, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	ps := r.client.PSubscribe(ctx, r.prefix+":*")
	r.subs[ps] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	if _, err := ps.Receive(ctx); err != nil {
		r.drop(ps)
		r.wg.Done()
		return nil, fmt.Errorf("%w: redis subscribe: %w", ErrBackplaneUnavailable, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer r.wg.Done()
		defer r.drop(ps)
		defer close(out)

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				msg, err := decodeEnvelope([]byte(m.Payload))
				if err != nil {
					metrics.RecordBackplaneReceive("redis", "malformed")
					logging.Warn().Err(err).Str("channel", m.Channel).Msg("dropping malformed backplane message")
					continue
				}
				if !msg.matches(room) {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) drop(ps *redis.PubSub) {
	r.mu.Lock()
	_, ok := r.subs[ps]
	delete(r.subs, ps)
	r.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close ends every subscription and the client.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*redis.PubSub, 0, len(r.subs))
	for ps := range r.subs {
		subs = append(subs, ps)
	}
	r.mu.Unlock()

	// Closing a PubSub closes its Channel, which ends the forwarder.
	for _, ps := range subs {
		r.drop(ps)
	}
	r.wg.Wait()
	return r.client.Close()
}

func encodeEnvelope(msg Message) ([]byte, error) {
	if !json.Valid(msg.Payload) {
		return nil, fmt.Errorf("backplane payload for %q is not a JSON frame", msg.Room)
	}
	return json.Marshal(redisEnvelope{Room: msg.Room, Rooms: msg.Rooms, Origin: msg.Origin, Payload: msg.Payload})
}

func decodeEnvelope(data []byte) (Message, error) {
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(env.Room) == "" {
		return Message{}, fmt.Errorf("envelope has no room")
	}
	return Message{Room: env.Room, Rooms: env.Rooms, Origin: env.Origin, Payload: []byte(env.Payload)}, nil
}
