package election

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/credshare/types"
)

// ErrInvalidTransition is returned for role changes the protocol forbids.
var ErrInvalidTransition = errors.New("invalid role transition")

// validTransitions lists the allowed target roles for each role.
var validTransitions = map[types.Role][]types.Role{
	types.RoleIdle:      {types.RoleCandidate, types.RoleFollower},
	types.RoleCandidate: {types.RoleLeader, types.RoleFollower, types.RoleIdle},
	types.RoleLeader:    {types.RoleCandidate, types.RoleFollower, types.RoleIdle},
	types.RoleFollower:  {types.RoleCandidate, types.RoleIdle},
}

// CanTransition reports whether from → to is a legal role change.
func CanTransition(from, to types.Role) bool {
	for _, r := range validTransitions[from] {
		if r == to {
			return true
		}
	}

	return false
}

// StateMachine tracks the role of one peer.
//
// Transition is expected to be called from a single goroutine (the
// coordinator loop); Role and Subscribe are safe from any goroutine.
type StateMachine struct {
	current   atomic.Int32 // types.Role
	mu        sync.Mutex
	enteredAt time.Time

	logger  types.Logger
	metrics types.ElectionMetrics

	subscribers      *xsync.Map[uint64, *subscriber]
	nextSubscriberID atomic.Uint64
}

// NewStateMachine creates a state machine starting in RoleIdle.
//
// Parameters:
//   - logger: Logger for role transitions
//   - metrics: Metrics collector for election operations
//
// Returns:
//   - *StateMachine: A new state machine instance
func NewStateMachine(logger types.Logger, metrics types.ElectionMetrics) *StateMachine {
	sm := &StateMachine{
		enteredAt:   time.Now(),
		logger:      logger,
		metrics:     metrics,
		subscribers: xsync.NewMap[uint64, *subscriber](),
	}
	sm.current.Store(int32(types.RoleIdle))

	return sm
}

// Role returns the current role.
func (sm *StateMachine) Role() types.Role {
	return types.Role(sm.current.Load())
}

// Transition moves to role to.
//
// Returns:
//   - types.Role: The previous role
//   - error: ErrInvalidTransition (wrapped) if the change is not allowed
func (sm *StateMachine) Transition(to types.Role) (types.Role, error) {
	sm.mu.Lock()
	from := types.Role(sm.current.Load())
	if !CanTransition(from, to) {
		sm.mu.Unlock()
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := time.Now()
	spent := now.Sub(sm.enteredAt)
	sm.enteredAt = now
	sm.current.Store(int32(to))
	sm.mu.Unlock()

	sm.logger.Debug("role transition", "from", from.String(), "to", to.String(), "previous_duration", spent)
	sm.metrics.RecordRoleTransition(from, to, spent.Seconds())
	sm.emit(to)

	return from, nil
}

// Subscribe returns a channel that receives role updates.
//
// The channel is buffered and receives the current role immediately.
// A slow subscriber misses intermediate roles but always sees the latest one.
//
// Returns:
//   - <-chan types.Role: Channel that receives role updates
//   - func(): Unsubscribe function to clean up resources
func (sm *StateMachine) Subscribe() (<-chan types.Role, func()) {
	id := sm.nextSubscriberID.Add(1)

	sub := &subscriber{ch: make(chan types.Role, 8)}
	sm.subscribers.Store(id, sub)
	sub.trySend(sm.Role())

	return sub.ch, func() {
		if s, ok := sm.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}
}

// Close closes every subscriber channel.
func (sm *StateMachine) Close() {
	sm.subscribers.Range(func(id uint64, sub *subscriber) bool {
		sm.subscribers.Delete(id)
		sub.close()

		return true
	})
}

func (sm *StateMachine) emit(role types.Role) {
	sm.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		sub.trySend(role)
		return true
	})
}

// subscriber wraps a role channel that may be closed concurrently with sends.
type subscriber struct {
	ch     chan types.Role
	mu     sync.Mutex
	closed bool
}

func (s *subscriber) trySend(role types.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- role:
	default:
		// Full: drop the oldest pending role so the latest one is delivered.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- role:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
