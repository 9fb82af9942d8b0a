package clock

import (
	"math"
	"sync"

	"github.com/lbastigk/nebulite/document/scope"
)

// trigger is one named periodic clock keyed by an interval in
// milliseconds (spec 4.12).
type trigger struct {
	intervalMs  float64
	lastTrigger float64
}

// Clocks holds every named periodic trigger registered for a Domain
// (spec 4.12).
type Clocks struct {
	mu       sync.Mutex
	triggers map[string]*trigger
}

// NewClocks creates an empty Clocks set.
func NewClocks() *Clocks {
	return &Clocks{triggers: make(map[string]*trigger)}
}

// Add registers (or replaces) a named clock firing every intervalMs.
func (c *Clocks) Add(name string, intervalMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers[name] = &trigger{intervalMs: intervalMs}
}

// Remove drops a named clock.
func (c *Clocks) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.triggers, name)
}

// Tick evaluates every registered clock against nowMs, writing 1.0 or
// 0.0 into v's "clock.<name>" cell (spec 4.12). A fired clock's
// lastTrigger advances by the maximal whole number of intervals that
// have elapsed, so a clock never drifts even across a long frame
// stall.
func (c *Clocks) Tick(nowMs float64, v *scope.View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, tr := range c.triggers {
		fired := 0.0
		if tr.intervalMs > 0 {
			elapsed := nowMs - tr.lastTrigger
			if elapsed >= tr.intervalMs {
				whole := math.Floor(elapsed / tr.intervalMs)
				tr.lastTrigger += whole * tr.intervalMs
				fired = 1.0
			}
		}
		scope.Set(v, "clock."+name, fired)
	}
}
