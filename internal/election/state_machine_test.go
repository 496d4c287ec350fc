package election

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/internal/logging"
	"github.com/arloliu/credshare/internal/metrics"
	"github.com/arloliu/credshare/types"
)

func newTestStateMachine() *StateMachine {
	return NewStateMachine(logging.NewNop(), metrics.NewNop())
}

func TestStateMachine_InitialRole(t *testing.T) {
	sm := newTestStateMachine()
	require.Equal(t, types.RoleIdle, sm.Role())
}

func TestStateMachine_ValidPaths(t *testing.T) {
	sm := newTestStateMachine()

	path := []types.Role{
		types.RoleCandidate,
		types.RoleLeader,
		types.RoleCandidate, // re-validation
		types.RoleFollower,
		types.RoleCandidate,
		types.RoleIdle,
		types.RoleFollower, // announce adopted while idle
		types.RoleIdle,
	}

	prev := types.RoleIdle
	for _, to := range path {
		from, err := sm.Transition(to)
		require.NoError(t, err, "%s -> %s", prev, to)
		require.Equal(t, prev, from)
		prev = to
	}
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from, to types.Role
	}{
		{types.RoleIdle, types.RoleLeader},
		{types.RoleIdle, types.RoleIdle},
		{types.RoleFollower, types.RoleLeader},
		{types.RoleFollower, types.RoleFollower},
		{types.RoleCandidate, types.RoleCandidate},
		{types.RoleLeader, types.RoleLeader},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			require.False(t, CanTransition(tt.from, tt.to))
		})
	}

	sm := newTestStateMachine()
	from, err := sm.Transition(types.RoleLeader)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, types.RoleIdle, from)
	require.Equal(t, types.RoleIdle, sm.Role())
}

func TestStateMachine_Subscribe(t *testing.T) {
	sm := newTestStateMachine()

	ch, unsubscribe := sm.Subscribe()
	defer unsubscribe()

	require.Equal(t, types.RoleIdle, <-ch)

	_, err := sm.Transition(types.RoleCandidate)
	require.NoError(t, err)
	_, err = sm.Transition(types.RoleLeader)
	require.NoError(t, err)

	require.Equal(t, types.RoleCandidate, <-ch)
	require.Equal(t, types.RoleLeader, <-ch)
}

func TestStateMachine_SlowSubscriberSeesLatest(t *testing.T) {
	sm := newTestStateMachine()
	ch, unsubscribe := sm.Subscribe()
	defer unsubscribe()

	for range 20 {
		_, err := sm.Transition(types.RoleCandidate)
		require.NoError(t, err)
		_, err = sm.Transition(types.RoleIdle)
		require.NoError(t, err)
	}
	_, err := sm.Transition(types.RoleCandidate)
	require.NoError(t, err)

	var last types.Role
	for len(ch) > 0 {
		last = <-ch
	}
	require.Equal(t, types.RoleCandidate, last)
}

func TestStateMachine_UnsubscribeAndClose(t *testing.T) {
	sm := newTestStateMachine()

	ch1, unsubscribe := sm.Subscribe()
	ch2, _ := sm.Subscribe()
	<-ch1
	<-ch2

	unsubscribe()
	unsubscribe()
	_, open := <-ch1
	require.False(t, open)

	sm.Close()
	_, open = <-ch2
	require.False(t, open)

	// Transitions after close must not panic.
	_, err := sm.Transition(types.RoleCandidate)
	require.NoError(t, err)
}

func TestStateMachine_ConcurrentReaders(t *testing.T) {
	sm := newTestStateMachine()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 1000 {
				_ = sm.Role()
			}
		})
	}

	for range 100 {
		_, _ = sm.Transition(types.RoleCandidate)
		_, _ = sm.Transition(types.RoleIdle)
	}
	wg.Wait()
}
