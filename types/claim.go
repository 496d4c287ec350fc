package types

import (
	"context"
	"time"
)

// Claim is the advisory leadership record held in a ClaimStore.
//
// A claim is never a lock: the slot is last-writer-wins and peers only use
// it as a tie-break when the bus leaves the election ambiguous.
type Claim struct {
	PeerID    string    `json:"peerId"`
	ClaimedAt time.Time `json:"claimedAt"`
}

// Fresh reports whether the claim is younger than window at now.
func (c Claim) Fresh(now time.Time, window time.Duration) bool {
	if c.PeerID == "" {
		return false
	}

	return now.Sub(c.ClaimedAt) < window
}

// ClaimEvent describes a change of the claim slot.
type ClaimEvent struct {
	// Claim is the new slot content. Empty when Deleted is true.
	Claim Claim

	// Deleted is true when the slot was cleared.
	Deleted bool
}

// Subscription is a handle for an active bus subscription or claim watch.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe() error
}

// ClaimStore is a single-slot key/value record shared by all peers of a
// session, with change notifications.
//
// Implementations are bound to one key at construction time.
type ClaimStore interface {
	// Get returns the current claim. The bool is false when the slot is empty.
	Get(ctx context.Context) (Claim, bool, error)

	// Set overwrites the slot with claim.
	Set(ctx context.Context, claim Claim) error

	// Clear empties the slot if, and only if, it currently holds peerID's claim.
	Clear(ctx context.Context, peerID string) error

	// Watch delivers every subsequent change of the slot to handler.
	Watch(ctx context.Context, handler func(ClaimEvent)) (Subscription, error)

	// Close releases resources owned by the store.
	Close() error
}
