package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/internal/logging"
	"github.com/arloliu/credshare/types"
)

func TestNewNop(t *testing.T) {
	h := NewNop()
	ctx := context.Background()

	require.NoError(t, h.OnRoleChanged(ctx, types.RoleIdle, types.RoleLeader))
	require.NoError(t, h.OnCredentialChanged(ctx, types.Credential{}))
	require.NoError(t, h.OnError(ctx, errors.New("boom")))
}

func TestFill_KeepsProvidedCallbacks(t *testing.T) {
	called := false
	h := Fill(&types.Hooks{
		OnError: func(context.Context, error) error {
			called = true
			return nil
		},
	})

	require.NotNil(t, h.OnRoleChanged)
	require.NotNil(t, h.OnCredentialChanged)
	require.NoError(t, h.OnError(context.Background(), errors.New("x")))
	require.True(t, called)
}

func TestRunner_Async(t *testing.T) {
	roles := make(chan types.Role, 1)
	creds := make(chan types.Credential, 1)

	r := NewRunner(&types.Hooks{
		OnRoleChanged: func(_ context.Context, _, to types.Role) error {
			roles <- to
			return errors.New("ignored")
		},
		OnCredentialChanged: func(_ context.Context, c types.Credential) error {
			creds <- c
			return nil
		},
	}, logging.NewNop())

	r.RoleChanged(context.Background(), types.RoleCandidate, types.RoleLeader)
	r.CredentialChanged(context.Background(), types.Credential{Value: "v"})
	r.Error(context.Background(), errors.New("nil hook is skipped"))

	select {
	case to := <-roles:
		require.Equal(t, types.RoleLeader, to)
	case <-time.After(time.Second):
		t.Fatal("role hook not called")
	}

	select {
	case c := <-creds:
		require.Equal(t, "v", c.Value)
	case <-time.After(time.Second):
		t.Fatal("credential hook not called")
	}
}

func TestRunner_PreservesOrder(t *testing.T) {
	const n = 50

	var (
		mu   sync.Mutex
		seen []types.Role
	)
	r := NewRunner(&types.Hooks{
		OnRoleChanged: func(_ context.Context, _, to types.Role) error {
			time.Sleep(time.Millisecond)
			mu.Lock()
			seen = append(seen, to)
			mu.Unlock()

			return nil
		},
	}, logging.NewNop())

	want := make([]types.Role, 0, n)
	for i := range n {
		to := types.RoleCandidate
		if i%2 == 1 {
			to = types.RoleLeader
		}
		want = append(want, to)
		r.RoleChanged(context.Background(), types.RoleIdle, to)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, want, seen)
}

func TestRunner_CloseDrainsAndDropsLater(t *testing.T) {
	var calls atomic.Int64
	r := NewRunner(&types.Hooks{
		OnCredentialChanged: func(context.Context, types.Credential) error {
			time.Sleep(10 * time.Millisecond)
			calls.Add(1)

			return nil
		},
	}, logging.NewNop())

	for range 3 {
		r.CredentialChanged(context.Background(), types.Credential{Value: "v"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
	require.Equal(t, int64(3), calls.Load())

	r.CredentialChanged(context.Background(), types.Credential{Value: "late"})
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int64(3), calls.Load())
}

func TestRunner_CloseUnused(t *testing.T) {
	r := NewRunner(nil, logging.NewNop())
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))
}

func TestRunner_CloseHonorsContext(t *testing.T) {
	release := make(chan struct{})
	r := NewRunner(&types.Hooks{
		OnError: func(context.Context, error) error {
			<-release
			return nil
		},
	}, logging.NewNop())
	defer close(release)

	r.Error(context.Background(), errors.New("stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
}
