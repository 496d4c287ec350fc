package peerid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		id := New()
		require.True(t, Valid(id), id)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestNew_TimeOrdered(t *testing.T) {
	a := New()
	time.Sleep(2 * time.Millisecond)
	b := New()

	require.Less(t, a, b)
}

func TestValid(t *testing.T) {
	require.False(t, Valid(""))
	require.False(t, Valid("peer-"))
	require.False(t, Valid("worker-0"))
}
