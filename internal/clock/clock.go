// Package clock provides wall-clock sources for the coordinator.
//
// Real reads the system clock. Adjustable follows the system clock plus an
// offset that tests move forward to simulate system sleep or long inactivity
// without actually waiting.
package clock

import (
	"sync"
	"time"

	"github.com/arloliu/credshare/types"
)

// Real is the system wall clock.
type Real struct{}

var _ types.Clock = Real{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Adjustable is the system clock shifted by a mutable offset.
//
// Time keeps flowing between calls; Advance makes it jump, the way a laptop
// clock appears to jump after resuming from sleep. Readings never carry a
// monotonic component so jumps are visible to Sub and Before.
type Adjustable struct {
	mu     sync.RWMutex
	offset time.Duration
}

var _ types.Clock = (*Adjustable)(nil)

// NewAdjustable creates an Adjustable clock with zero offset.
func NewAdjustable() *Adjustable {
	return &Adjustable{}
}

// Now returns the shifted wall-clock time.
func (a *Adjustable) Now() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return time.Now().Round(0).Add(a.offset)
}

// Advance moves the clock forward by d.
func (a *Adjustable) Advance(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.offset += d
}

// Offset returns the accumulated offset.
func (a *Adjustable) Offset() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.offset
}
