package claimstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/arloliu/credshare/types"
)

// claimsBucket is the bbolt bucket holding claim records.
var claimsBucket = []byte("claims")

// Bolt is a claim store persisted in a bbolt file.
//
// bbolt holds an exclusive file lock, so one process owns the file at a
// time; share one *Bolt between the peers of that process. The claim
// survives process restarts, which lets a restarted process see that a
// recent leader existed.
//
// Bolt is safe for concurrent use. Reads run in View transactions; writes
// are serialized with their change notifications so watchers observe
// changes in commit order.
type Bolt struct {
	db    *bbolt.DB
	key   []byte
	owned bool

	writeMu  sync.Mutex
	closed   atomic.Bool
	watchers *watchers
}

var _ types.ClaimStore = (*Bolt)(nil)

// OpenBolt opens (or creates) the bbolt file at path and binds the store to key.
//
// Parameters:
//   - path: Database file path
//   - key: Claim key (see hash.ClaimKey)
//   - timeout: How long to wait for the file lock (0 waits forever)
//
// Returns:
//   - *Bolt: The store; Close closes the database
//   - error: Open or bucket creation failure
func OpenBolt(path, key string, timeout time.Duration) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	b, err := NewBolt(db, key)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.owned = true

	return b, nil
}

// NewBolt binds a store to key inside an already open database.
// The caller keeps ownership of db.
func NewBolt(db *bbolt.DB, key string) (*Bolt, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(claimsBucket); err != nil {
			return fmt.Errorf("failed to create claims bucket: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Bolt{db: db, key: []byte(key), watchers: newWatchers()}, nil
}

// Get implements types.ClaimStore.
func (b *Bolt) Get(_ context.Context) (types.Claim, bool, error) {
	if b.closed.Load() {
		return types.Claim{}, false, types.ErrStoreClosed
	}

	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(claimsBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(b.key); v != nil {
			// Values are only valid inside the transaction.
			data = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return types.Claim{}, false, fmt.Errorf("failed to read claim: %w", err)
	}
	if data == nil {
		return types.Claim{}, false, nil
	}

	claim, err := decodeClaim(data)
	if err != nil {
		return types.Claim{}, false, err
	}

	return claim, true, nil
}

// Set implements types.ClaimStore.
func (b *Bolt) Set(_ context.Context, claim types.Claim) error {
	data, err := encodeClaim(claim)
	if err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.closed.Load() {
		return types.ErrStoreClosed
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(claimsBucket).Put(b.key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write claim: %w", err)
	}

	b.watchers.notify(types.ClaimEvent{Claim: claim})

	return nil
}

// Clear implements types.ClaimStore.
func (b *Bolt) Clear(_ context.Context, peerID string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.closed.Load() {
		return types.ErrStoreClosed
	}

	deleted := false
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(claimsBucket)
		v := bucket.Get(b.key)
		if v == nil {
			return nil
		}

		current, err := decodeClaim(v)
		if err == nil && current.PeerID != peerID {
			return nil
		}

		deleted = true

		return bucket.Delete(b.key)
	})
	if err != nil {
		return fmt.Errorf("failed to clear claim: %w", err)
	}

	if deleted {
		b.watchers.notify(types.ClaimEvent{Deleted: true})
	}

	return nil
}

// Watch implements types.ClaimStore.
func (b *Bolt) Watch(ctx context.Context, handler func(types.ClaimEvent)) (types.Subscription, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.closed.Load() {
		return nil, types.ErrStoreClosed
	}

	return b.watchers.add(ctx, handler), nil
}

// Close drops all watchers and closes the database if OpenBolt opened it.
func (b *Bolt) Close() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.watchers.clear()

	if b.owned {
		return b.db.Close()
	}

	return nil
}
