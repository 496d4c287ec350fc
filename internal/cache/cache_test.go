package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/internal/clock"
	"github.com/arloliu/credshare/types"
)

func TestCache_Empty(t *testing.T) {
	c := New(clock.Real{})

	_, err := c.Get()
	require.ErrorIs(t, err, types.ErrNoCredential)
	require.False(t, c.FreshFor(0))
	require.False(t, c.Clear())
}

func TestCache_NeverReturnsExpired(t *testing.T) {
	clk := clock.NewAdjustable()
	c := New(clk)

	require.True(t, c.Store(types.Credential{Value: "v1", IssuedAt: clk.Now(), TTL: time.Minute}))

	got, err := c.Get()
	require.NoError(t, err)
	require.Equal(t, "v1", got.Value)
	require.True(t, c.FreshFor(30*time.Second))

	clk.Advance(59 * time.Second)
	require.False(t, c.FreshFor(30*time.Second))
	_, err = c.Get()
	require.NoError(t, err)

	clk.Advance(time.Second)
	got, err = c.Get()
	require.ErrorIs(t, err, types.ErrCredentialExpired)
	require.True(t, got.IsZero(), "expired value must not leak")
}

func TestCache_IgnoresOlder(t *testing.T) {
	now := time.Now()
	c := New(clock.Real{})

	require.True(t, c.Store(types.Credential{Value: "new", IssuedAt: now, TTL: time.Hour}))
	require.False(t, c.Store(types.Credential{Value: "old", IssuedAt: now.Add(-time.Minute), TTL: time.Hour}))

	got, err := c.Get()
	require.NoError(t, err)
	require.Equal(t, "new", got.Value)
}

func TestCache_Clear(t *testing.T) {
	c := New(clock.Real{})
	c.Store(types.Credential{Value: "v", IssuedAt: time.Now(), TTL: time.Hour})

	require.True(t, c.Clear())
	_, err := c.Get()
	require.ErrorIs(t, err, types.ErrNoCredential)
}
