package claimstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/credshare/internal/kvutil"
	"github.com/arloliu/credshare/internal/logging"
	"github.com/arloliu/credshare/types"
)

// DefaultBucket is the JetStream KV bucket used by OpenNATSKV when none is given.
const DefaultBucket = "credshare-claims"

// NATSKV is a claim store on a JetStream KeyValue bucket.
//
// The bucket may be shared by many sessions; each session uses its own key.
// The caller owns the NATS connection; Close stops this store's watchers only.
type NATSKV struct {
	kv     jetstream.KeyValue
	key    string
	logger types.Logger

	mu       sync.Mutex
	closed   bool
	watchers map[*natsWatch]struct{}
}

var _ types.ClaimStore = (*NATSKV)(nil)

// OpenNATSKV creates or opens bucket and binds a store to key.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context
//   - bucket: Bucket name (empty selects DefaultBucket)
//   - key: Claim key (see hash.ClaimKey)
//   - ttl: Bucket-level entry TTL; 0 keeps entries until cleared
//   - logger: Logger for watch errors (nil discards)
//
// Returns:
//   - *NATSKV: The store
//   - error: Bucket creation failure
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	store, err := claimstore.OpenNATSKV(ctx, js, "", hash.ClaimKey(sessionID), time.Minute, logger)
func OpenNATSKV(
	ctx context.Context,
	js jetstream.JetStream,
	bucket string,
	key string,
	ttl time.Duration,
	logger types.Logger,
) (*NATSKV, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "credshare leader claims",
		History:     1,
		TTL:         ttl,
	}, 3)
	if err != nil {
		return nil, err
	}

	return NewNATSKV(kv, key, logger), nil
}

// NewNATSKV binds a store to key inside an existing bucket.
func NewNATSKV(kv jetstream.KeyValue, key string, logger types.Logger) *NATSKV {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &NATSKV{
		kv:       kv,
		key:      key,
		logger:   logger,
		watchers: make(map[*natsWatch]struct{}),
	}
}

func (s *NATSKV) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Get implements types.ClaimStore.
func (s *NATSKV) Get(ctx context.Context) (types.Claim, bool, error) {
	claim, _, ok, err := s.get(ctx)
	return claim, ok, err
}

func (s *NATSKV) get(ctx context.Context) (types.Claim, uint64, bool, error) {
	if s.isClosed() {
		return types.Claim{}, 0, false, types.ErrStoreClosed
	}

	entry, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return types.Claim{}, 0, false, nil
		}

		return types.Claim{}, 0, false, fmt.Errorf("failed to read claim: %w", err)
	}

	claim, err := decodeClaim(entry.Value())
	if err != nil {
		return types.Claim{}, 0, false, err
	}

	return claim, entry.Revision(), true, nil
}

// Set implements types.ClaimStore.
func (s *NATSKV) Set(ctx context.Context, claim types.Claim) error {
	if s.isClosed() {
		return types.ErrStoreClosed
	}

	data, err := encodeClaim(claim)
	if err != nil {
		return err
	}

	if _, err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to write claim: %w", err)
	}

	return nil
}

// Clear implements types.ClaimStore.
//
// The delete is conditioned on the revision that was read, so a claim
// written by another peer in between is left alone.
func (s *NATSKV) Clear(ctx context.Context, peerID string) error {
	claim, rev, ok, err := s.get(ctx)
	if err != nil {
		return err
	}
	if !ok || claim.PeerID != peerID {
		return nil
	}

	if err := s.kv.Delete(ctx, s.key, jetstream.LastRevision(rev)); err != nil {
		// Lost the race to a newer write; only fail if the claim is still ours.
		current, _, stillThere, getErr := s.get(ctx)
		if getErr == nil && (!stillThere || current.PeerID != peerID) {
			return nil
		}

		return fmt.Errorf("failed to clear claim: %w", err)
	}

	return nil
}

// Watch implements types.ClaimStore.
//
// Only changes after Watch returns are delivered. Handlers run on a
// dedicated goroutine per watch.
func (s *NATSKV) Watch(ctx context.Context, handler func(types.ClaimEvent)) (types.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, types.ErrStoreClosed
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := s.kv.Watch(watchCtx, s.key, jetstream.UpdatesOnly())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch claim: %w", err)
	}

	w := &natsWatch{
		store:   s,
		watcher: watcher,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.watchers[w] = struct{}{}

	go w.run(handler)

	return w, nil
}

// Close implements types.ClaimStore.
func (s *NATSKV) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watches := make([]*natsWatch, 0, len(s.watchers))
	for w := range s.watchers {
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

func (s *NATSKV) removeWatch(w *natsWatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watchers, w)
}

type natsWatch struct {
	store   *NATSKV
	watcher jetstream.KeyWatcher
	cancel  context.CancelFunc
	done    chan struct{}

	once sync.Once
	err  error
}

func (w *natsWatch) run(handler func(types.ClaimEvent)) {
	updates := w.watcher.Updates()
	for {
		select {
		case <-w.done:
			return
		case entry, ok := <-updates:
			if !ok {
				return
			}
			if entry == nil {
				continue
			}

			switch entry.Operation() {
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				handler(types.ClaimEvent{Deleted: true})
			default:
				claim, err := decodeClaim(entry.Value())
				if err != nil {
					w.store.logger.Warn("ignoring malformed claim", "key", entry.Key(), "error", err)
					continue
				}
				handler(types.ClaimEvent{Claim: claim})
			}
		}
	}
}

func (w *natsWatch) Unsubscribe() error {
	w.once.Do(func() {
		close(w.done)
		w.err = w.watcher.Stop()
		w.cancel()
		w.store.removeWatch(w)
	})

	return w.err
}
