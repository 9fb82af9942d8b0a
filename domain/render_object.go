package domain

import (
	"math"

	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/internal/errs"
	"github.com/lbastigk/nebulite/invoke"
	"github.com/lbastigk/nebulite/ruleset"
)

// RenderObject is the per-entity Domain specialization an entity file
// describes: a spawnable object with position/layer/sprite/text
// fields, a list of Rulesets compiled from its `invokes` array, and
// the topics it listens to via `invokeSubscriptions`. It composes
// *Domain rather than wrapping it through an extra layer of
// indirection.
type RenderObject struct {
	*Domain

	ID            uint32
	Rulesets      []*ruleset.Ruleset
	Subscriptions []string

	deleteFlag bool
}

// NewRenderObject wraps a Domain as a spawnable entity with id.
func NewRenderObject(id uint32, d *Domain) *RenderObject {
	return &RenderObject{Domain: d, ID: id}
}

// Bind wires every compiled ruleset's expressions against this
// object's view and global, recomputing each one's EstimatedCost
// (spec 4.6).
func (r *RenderObject) Bind(global *scope.View) {
	for _, rs := range r.Rulesets {
		rs.Bind(r.View(), global)
	}
}

// EstimatedCost sums every ruleset's cost, the unit the tile batcher
// uses to bound a batch (spec 4.6/4.10).
func (r *RenderObject) EstimatedCost() uint64 {
	var total uint64
	for _, rs := range r.Rulesets {
		total += rs.EstimatedCost
	}
	return total
}

// MarkDelete flags the object for removal on the next tile-container
// sweep (spec 4.10's deleteFromScene).
func (r *RenderObject) MarkDelete() { r.deleteFlag = true }

// ShouldDelete reports whether MarkDelete was called.
func (r *RenderObject) ShouldDelete() bool { return r.deleteFlag }

// TileCoord computes this object's tile coordinate from its posX/posY
// store fields (spec 4.10: "floor(x / res_x), floor(y / res_y)").
func (r *RenderObject) TileCoord(resX, resY float64) (int, int) {
	x := document.Get(r.View().Doc(), "posX", 0.0)
	y := document.Get(r.View().Doc(), "posY", 0.0)
	return int(math.Floor(x / resX)), int(math.Floor(y / resY))
}

// Step runs one frame's worth of this object's local rulesets,
// modules, and rule-engine registration (spec 2's per-frame control
// flow: "each entity evaluates its local rulesets then broadcasts its
// global rulesets and registers itself as a listener for the
// subscribed topics").
//
// Open Question resolution: a local ruleset (spec 3.5: "applies only
// to its owner") is applied with other set to the object's own view,
// since a local ruleset has no real counterpart - see DESIGN.md.
func (r *RenderObject) Step(engine *invoke.Engine, global *scope.View, resources *doccache.Cache, dispatcher ruleset.Dispatcher, globalQueue ruleset.GlobalQueue) *errs.Error {
	self := r.View()

	var first *errs.Error
	for _, rs := range r.Rulesets {
		if rs.Local() {
			rs.Apply(self, self, global, resources, dispatcher, globalQueue)
			continue
		}
		engine.Broadcast(rs.Topic, r.ID, rs.Index, rs)
	}

	for _, topic := range r.Subscriptions {
		engine.Listen(topic, r.ID, self, resources)
	}

	if err := r.Domain.Update(); err.IsCritical() && first == nil {
		first = err
	}
	return first
}
