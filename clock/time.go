// Package clock implements the Time/Clock/RNG module described in
// spec 4.12: two time keepers (real and simulation), named periodic
// triggers, and two deterministically-seeded RNG streams.
package clock

import (
	"sync"

	"github.com/lbastigk/nebulite/document/scope"
)

// Time holds spec 4.12's two keepers: RealTime is a monotonic wall
// clock delta; SimulationTime advances by RealTime's delta (or by a
// fixed delta once set), frozen to zero delta while any time lock is
// held.
type Time struct {
	mu sync.Mutex

	realT, realDT float64
	simT, simDT   float64

	fixedDelta float64
	hasFixed   bool
	locks      int

	frameCount uint64
}

// New creates a Time at t=0.
func New() *Time { return &Time{} }

// Tick advances both keepers by realDeltaSeconds, the frame's
// measured wall-clock delta.
func (t *Time) Tick(realDeltaSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.realDT = realDeltaSeconds
	t.realT += realDeltaSeconds
	t.frameCount++

	if t.locks > 0 {
		t.simDT = 0
		return
	}
	if t.hasFixed {
		t.simDT = t.fixedDelta
	} else {
		t.simDT = realDeltaSeconds
	}
	t.simT += t.simDT
}

// SetFixedDeltaTime pins SimulationTime's per-tick advance to dt
// seconds regardless of the real delta; dt <= 0 reverts to tracking
// RealTime's delta.
func (t *Time) SetFixedDeltaTime(dt float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fixedDelta = dt
	t.hasFixed = dt > 0
}

// Lock acquires a time lock: SimulationTime stops advancing (delta
// reported as zero) until every lock acquired is released.
func (t *Time) Lock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locks++
}

// Unlock releases one previously acquired time lock.
func (t *Time) Unlock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks > 0 {
		t.locks--
	}
}

// MasterUnlock clears every held time lock at once (the `time
// master-unlock` command, spec 6), regardless of how many Lock calls
// are outstanding.
func (t *Time) MasterUnlock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locks = 0
}

// Locked reports whether any time lock is currently held.
func (t *Time) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locks > 0
}

// FrameCount returns the number of Tick calls so far.
func (t *Time) FrameCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frameCount
}

// WriteTo exposes both keepers plus frameCount into v's store, at the
// key set spec 4.12 names: runtime.t/dt/t_ms/dt_ms, time.t/dt/t_ms/dt_ms,
// frameCount.
func (t *Time) WriteTo(v *scope.View) {
	t.mu.Lock()
	realT, realDT := t.realT, t.realDT
	simT, simDT := t.simT, t.simDT
	frames := t.frameCount
	t.mu.Unlock()

	scope.Set(v, "runtime.t", realT)
	scope.Set(v, "runtime.dt", realDT)
	scope.Set(v, "runtime.t_ms", realT*1000)
	scope.Set(v, "runtime.dt_ms", realDT*1000)
	scope.Set(v, "time.t", simT)
	scope.Set(v, "time.dt", simDT)
	scope.Set(v, "time.t_ms", simT*1000)
	scope.Set(v, "time.dt_ms", simDT*1000)
	scope.Set(v, "frameCount", frames)
}
