package liveness

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/credshare/types"
)

// Common errors for monitor operations.
var (
	ErrNotStarted     = errors.New("monitor not started")
	ErrAlreadyStarted = errors.New("monitor already started")
)

// EventKind identifies a liveness event.
type EventKind int

const (
	// EventTick is a regular heartbeat.
	EventTick EventKind = iota + 1

	// EventHidden reports the peer became hidden.
	EventHidden

	// EventVisible reports the peer became visible again.
	EventVisible

	// EventSuspended reports a heartbeat gap consistent with process suspension.
	EventSuspended
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventHidden:
		return "hidden"
	case EventVisible:
		return "visible"
	case EventSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Event is a liveness observation.
type Event struct {
	Kind EventKind
	At   time.Time

	// Inactive is set for EventVisible: time since the last activity signal.
	Inactive time.Duration

	// Gap is set for EventSuspended: wall-clock time between two beats.
	Gap time.Duration
}

// Monitor tracks visibility and activity and runs the heartbeat ticker.
type Monitor struct {
	clock     types.Clock
	interval  time.Duration
	threshold time.Duration
	metrics   types.LivenessMetrics

	events     chan Event
	lastActive atomic.Int64 // unix nanos
	visible    atomic.Bool

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a monitor. The peer starts visible and active.
//
// Parameters:
//   - clock: Wall clock used for activity timestamps and gap measurement
//   - interval: Heartbeat interval (typically 5s)
//   - threshold: Minimum beat-to-beat gap treated as suspension (typically 3x interval)
//   - metrics: Liveness metrics sink
//
// Returns:
//   - *Monitor: New monitor instance, not yet started
func New(clock types.Clock, interval, threshold time.Duration, metrics types.LivenessMetrics) *Monitor {
	m := &Monitor{
		clock:     clock,
		interval:  interval,
		threshold: threshold,
		metrics:   metrics,
		events:    make(chan Event, 16),
	}
	m.visible.Store(true)
	m.lastActive.Store(clock.Now().UnixNano())

	return m
}

// Events returns the channel events are delivered on.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Start begins the heartbeat loop.
//
// Returns:
//   - error: ErrAlreadyStarted if already running
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	m.started = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.beatLoop(m.stopCh, m.doneCh)

	return nil
}

// Stop halts the heartbeat loop and blocks until it exits.
//
// Returns:
//   - error: ErrNotStarted if not running
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}

	close(m.stopCh)
	m.started = false
	done := m.doneCh
	m.mu.Unlock()

	<-done

	return nil
}

// IsStarted returns whether the heartbeat loop is running.
func (m *Monitor) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started
}

// Touch records user activity. It never emits an event.
func (m *Monitor) Touch() {
	m.lastActive.Store(m.clock.Now().UnixNano())
}

// LastActive returns the time of the last recorded activity.
func (m *Monitor) LastActive() time.Time {
	return time.Unix(0, m.lastActive.Load())
}

// Visible reports the last visibility passed to SetVisible.
func (m *Monitor) Visible() bool {
	return m.visible.Load()
}

// SetVisible records a visibility change and emits EventHidden or
// EventVisible. Repeating the current visibility is a no-op.
//
// Going hidden stamps lastActive; coming back computes the inactivity
// since that stamp and then marks the user active again.
func (m *Monitor) SetVisible(visible bool) {
	if m.visible.Swap(visible) == visible {
		return
	}

	now := m.clock.Now()
	if !visible {
		m.lastActive.Store(now.UnixNano())
		m.emit(Event{Kind: EventHidden, At: now})

		return
	}

	inactive := now.Sub(m.LastActive())
	m.lastActive.Store(now.UnixNano())
	m.emit(Event{Kind: EventVisible, At: now, Inactive: inactive})
}

func (m *Monitor) beatLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Round(0) strips the monotonic reading: the monotonic clock stops while
	// a machine sleeps, the wall clock does not.
	lastBeat := m.clock.Now().Round(0)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			now := m.clock.Now().Round(0)
			gap := now.Sub(lastBeat)
			lastBeat = now

			if gap >= m.threshold {
				m.metrics.RecordSuspendDetected(gap.Seconds())
				m.emitOrStop(Event{Kind: EventSuspended, At: now, Gap: gap}, stopCh)

				continue
			}

			// Ticks are periodic; dropping one when the consumer lags is harmless.
			select {
			case m.events <- Event{Kind: EventTick, At: now}:
			default:
			}
		}
	}
}

// emit delivers a visibility event. While the heartbeat loop runs it waits
// for buffer space; when stopped (after logout or shutdown) it never blocks.
func (m *Monitor) emit(ev Event) {
	m.mu.Lock()
	stopCh := m.stopCh
	started := m.started
	m.mu.Unlock()

	if !started {
		select {
		case m.events <- ev:
		default:
		}

		return
	}

	m.emitOrStop(ev, stopCh)
}

func (m *Monitor) emitOrStop(ev Event, stopCh chan struct{}) {
	select {
	case m.events <- ev:
	case <-stopCh:
	}
}
