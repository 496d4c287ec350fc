package claimstore

import (
	"context"
	"sync"

	"github.com/arloliu/credshare/types"
)

// Memory is an in-process claim store.
//
// Share one *Memory between all peers of a simulated session.
type Memory struct {
	mu       sync.Mutex
	claim    types.Claim
	has      bool
	failure  error
	closed   bool
	watchers *watchers
}

var _ types.ClaimStore = (*Memory)(nil)

// NewMemory creates an empty in-process claim store.
func NewMemory() *Memory {
	return &Memory{watchers: newWatchers()}
}

// SetFailure makes every subsequent Get, Set and Clear return err.
// Pass nil to restore normal operation.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failure = err
}

func (m *Memory) check() error {
	if m.closed {
		return types.ErrStoreClosed
	}

	return m.failure
}

// Get implements types.ClaimStore.
func (m *Memory) Get(_ context.Context) (types.Claim, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(); err != nil {
		return types.Claim{}, false, err
	}

	return m.claim, m.has, nil
}

// Set implements types.ClaimStore.
func (m *Memory) Set(_ context.Context, claim types.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(); err != nil {
		return err
	}

	m.claim = claim
	m.has = true
	m.watchers.notify(types.ClaimEvent{Claim: claim})

	return nil
}

// Clear implements types.ClaimStore.
func (m *Memory) Clear(_ context.Context, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(); err != nil {
		return err
	}
	if !m.has || m.claim.PeerID != peerID {
		return nil
	}

	m.claim = types.Claim{}
	m.has = false
	m.watchers.notify(types.ClaimEvent{Deleted: true})

	return nil
}

// Watch implements types.ClaimStore.
func (m *Memory) Watch(ctx context.Context, handler func(types.ClaimEvent)) (types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, types.ErrStoreClosed
	}

	return m.watchers.add(ctx, handler), nil
}

// Close implements types.ClaimStore.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.watchers.clear()

	return nil
}
