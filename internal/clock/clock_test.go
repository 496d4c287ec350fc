package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdjustable_Advance(t *testing.T) {
	c := NewAdjustable()

	before := c.Now()
	c.Advance(2 * time.Hour)
	after := c.Now()

	require.Equal(t, 2*time.Hour, c.Offset())
	require.GreaterOrEqual(t, after.Sub(before), 2*time.Hour)
	require.Less(t, after.Sub(before), 2*time.Hour+time.Second)
}

func TestAdjustable_Flows(t *testing.T) {
	c := NewAdjustable()

	a := c.Now()
	time.Sleep(5 * time.Millisecond)
	require.True(t, c.Now().After(a))
}

func TestReal_Now(t *testing.T) {
	require.WithinDuration(t, time.Now(), Real{}.Now(), time.Second)
}
