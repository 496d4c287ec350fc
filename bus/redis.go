package bus

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arloliu/credshare/types"
)

// Redis is a bus on one Redis pub/sub channel.
//
// The caller owns the client lifecycle. Close releases this bus's pub/sub
// connections only.
type Redis struct {
	client  goredis.UniversalClient
	channel string
	codec   Codec
	logger  types.Logger

	mu     sync.Mutex
	subs   []*redisSubscription
	closed bool
}

var _ types.Bus = (*Redis)(nil)

// NewRedis creates a bus publishing on channel.
//
// Parameters:
//   - client: Redis client (single node, sentinel or cluster)
//   - channel: Session channel name (see hash.Subject)
//   - codec: Wire codec; nil selects JSON
//   - logger: Logger for dropped frames
func NewRedis(client goredis.UniversalClient, channel string, codec Codec, logger types.Logger) *Redis {
	if codec == nil {
		codec = JSONCodec{}
	}

	return &Redis{client: client, channel: channel, codec: codec, logger: logger}
}

// Publish encodes and publishes msg.
func (b *Redis) Publish(ctx context.Context, msg types.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return types.ErrBusClosed
	}

	data, err := b.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Kind, err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Kind, err)
	}

	return nil
}

// Subscribe registers handler on the session channel.
//
// It returns after Redis confirmed the subscription, so a publish issued
// right after Subscribe reaches this subscriber.
func (b *Redis) Subscribe(handler func(types.Message)) (types.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, types.ErrBusClosed
	}

	ctx := context.Background()
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for m := range ps.Channel() {
			msg, err := b.codec.Decode([]byte(m.Payload))
			if err != nil {
				b.logger.Warn("dropping undecodable bus message", "channel", m.Channel, "error", err)
				continue
			}
			handler(msg)
		}
	}()

	b.subs = append(b.subs, sub)

	return sub, nil
}

// Close closes every pub/sub connection opened by the bus.
func (b *Redis) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}

	return nil
}

type redisSubscription struct {
	ps   *goredis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})

	return s.err
}
