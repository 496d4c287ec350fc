package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/internal/clock"
	"github.com/arloliu/credshare/internal/metrics"
)

func nextEvent(t *testing.T, m *Monitor, kind EventKind) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
		}
	}
}

func TestMonitor_StartStop(t *testing.T) {
	m := New(clock.Real{}, 10*time.Millisecond, 30*time.Millisecond, metrics.NewNop())

	require.ErrorIs(t, m.Stop(), ErrNotStarted)
	require.NoError(t, m.Start())
	require.True(t, m.IsStarted())
	require.ErrorIs(t, m.Start(), ErrAlreadyStarted)
	require.NoError(t, m.Stop())
	require.False(t, m.IsStarted())

	// Restart after stop.
	require.NoError(t, m.Start())
	require.NoError(t, m.Stop())
}

func TestMonitor_Ticks(t *testing.T) {
	m := New(clock.Real{}, 10*time.Millisecond, time.Second, metrics.NewNop())
	require.NoError(t, m.Start())
	defer func() { _ = m.Stop() }()

	nextEvent(t, m, EventTick)
}

func TestMonitor_DetectsSuspend(t *testing.T) {
	clk := clock.NewAdjustable()
	m := New(clk, 20*time.Millisecond, time.Second, metrics.NewNop())
	require.NoError(t, m.Start())
	defer func() { _ = m.Stop() }()

	nextEvent(t, m, EventTick)
	clk.Advance(90 * time.Minute)

	ev := nextEvent(t, m, EventSuspended)
	require.GreaterOrEqual(t, ev.Gap, 90*time.Minute)
}

func TestMonitor_Visibility(t *testing.T) {
	clk := clock.NewAdjustable()
	m := New(clk, time.Hour, 3*time.Hour, metrics.NewNop())
	require.NoError(t, m.Start())
	defer func() { _ = m.Stop() }()

	m.SetVisible(true) // already visible: no event
	m.SetVisible(false)
	nextEvent(t, m, EventHidden)
	require.False(t, m.Visible())

	clk.Advance(2 * time.Hour)
	m.SetVisible(true)
	ev := nextEvent(t, m, EventVisible)
	require.GreaterOrEqual(t, ev.Inactive, 2*time.Hour)
	require.True(t, m.Visible())
	require.WithinDuration(t, clk.Now(), m.LastActive(), time.Second)
}

func TestMonitor_TouchDoesNotEmit(t *testing.T) {
	clk := clock.NewAdjustable()
	m := New(clk, time.Hour, 3*time.Hour, metrics.NewNop())

	before := m.LastActive()
	clk.Advance(time.Minute)
	m.Touch()

	require.True(t, m.LastActive().After(before))
	require.Empty(t, m.Events())
}

func TestMonitor_VisibilityWhenStoppedNeverBlocks(t *testing.T) {
	m := New(clock.Real{}, time.Hour, 3*time.Hour, metrics.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			m.SetVisible(false)
			m.SetVisible(true)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetVisible blocked on a stopped monitor")
	}
}
