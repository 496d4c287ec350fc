package claimstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arloliu/credshare/internal/logging"
	"github.com/arloliu/credshare/types"
)

// clearScript deletes KEYS[1] only when it names ARGV[1], then announces the
// deletion on ARGV[2] with an empty payload.
var clearScript = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return 0
end
local ok, c = pcall(cjson.decode, v)
if ok and type(c) == 'table' and c.peerId ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('PUBLISH', ARGV[2], '')
return 1
`)

// Redis is a claim store on a Redis string key.
//
// Changes are announced on a companion pub/sub channel ("<key>:events"):
// Set publishes the encoded claim and Clear publishes an empty payload.
// The caller owns the client lifecycle.
type Redis struct {
	client  goredis.UniversalClient
	key     string
	channel string
	ttl     time.Duration
	logger  types.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*redisWatch]struct{}
}

var _ types.ClaimStore = (*Redis)(nil)

// NewRedis creates a store bound to key.
//
// Parameters:
//   - client: Redis client (single node, sentinel or cluster)
//   - key: Claim key (see hash.ClaimKey)
//   - ttl: Expiry applied on every Set; 0 disables expiry
//   - logger: Logger for malformed events (nil discards)
func NewRedis(client goredis.UniversalClient, key string, ttl time.Duration, logger types.Logger) *Redis {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Redis{
		client:  client,
		key:     key,
		channel: key + ":events",
		ttl:     ttl,
		logger:  logger,
		subs:    make(map[*redisWatch]struct{}),
	}
}

func (s *Redis) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Get implements types.ClaimStore.
func (s *Redis) Get(ctx context.Context) (types.Claim, bool, error) {
	if s.isClosed() {
		return types.Claim{}, false, types.ErrStoreClosed
	}

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return types.Claim{}, false, nil
		}

		return types.Claim{}, false, fmt.Errorf("failed to read claim: %w", err)
	}

	claim, err := decodeClaim(data)
	if err != nil {
		return types.Claim{}, false, err
	}

	return claim, true, nil
}

// Set implements types.ClaimStore.
func (s *Redis) Set(ctx context.Context, claim types.Claim) error {
	if s.isClosed() {
		return types.ErrStoreClosed
	}

	data, err := encodeClaim(claim)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key, data, s.ttl)
		pipe.Publish(ctx, s.channel, data)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write claim: %w", err)
	}

	return nil
}

// Clear implements types.ClaimStore.
func (s *Redis) Clear(ctx context.Context, peerID string) error {
	if s.isClosed() {
		return types.ErrStoreClosed
	}

	err := clearScript.Run(ctx, s.client, []string{s.key}, peerID, s.channel).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to clear claim: %w", err)
	}

	return nil
}

// Watch implements types.ClaimStore.
//
// It returns after Redis confirmed the subscription.
func (s *Redis) Watch(ctx context.Context, handler func(types.ClaimEvent)) (types.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, types.ErrStoreClosed
	}

	ps := s.client.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to watch claim: %w", err)
	}

	w := &redisWatch{store: s, ps: ps, done: make(chan struct{})}
	stop := context.AfterFunc(ctx, func() { _ = w.Unsubscribe() })
	s.subs[w] = struct{}{}

	go func() {
		defer close(w.done)
		defer stop()
		for m := range ps.Channel() {
			if m.Payload == "" {
				handler(types.ClaimEvent{Deleted: true})
				continue
			}

			claim, err := decodeClaim([]byte(m.Payload))
			if err != nil {
				s.logger.Warn("ignoring malformed claim event", "channel", m.Channel, "error", err)
				continue
			}
			handler(types.ClaimEvent{Claim: claim})
		}
	}()

	return w, nil
}

// Close implements types.ClaimStore.
func (s *Redis) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watches := make([]*redisWatch, 0, len(s.subs))
	for w := range s.subs {
		watches = append(watches, w)
	}
	s.mu.Unlock()

	var errs []error
	for _, w := range watches {
		if err := w.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Redis) removeWatch(w *redisWatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, w)
}

type redisWatch struct {
	store *Redis
	ps    *goredis.PubSub
	done  chan struct{}

	once sync.Once
	err  error
}

func (w *redisWatch) Unsubscribe() error {
	w.once.Do(func() {
		w.err = w.ps.Close()
		<-w.done
		w.store.removeWatch(w)
	})

	return w.err
}
