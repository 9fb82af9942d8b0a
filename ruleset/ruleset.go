// Package ruleset implements the Ruleset described in spec 3.5/4.6: a
// compiled rule — either a JSON ruleset of assignments and function
// calls, or a call into the static ruleset registry — bound against a
// Self/Global pair and evaluated per frame against an Other.
package ruleset

import (
	"math"

	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/expression"
)

const (
	perAssignmentCost = 1
	perCallCost       = 1
)

// StaticFunc is a compiled function registered under a name in the
// static ruleset registry (spec 3.5/4.6).
type StaticFunc func(self, other, global *scope.View)

// Dispatcher routes a rendered function-tree call string to the
// appropriate domain's function tree (spec 4.6). Self and Other calls
// dispatch inline.
type Dispatcher interface {
	Dispatch(call string, self, other *scope.View)
}

// GlobalQueue enqueues a rendered call for the global script task
// queue (spec 4.6, 4.11).
type GlobalQueue interface {
	Enqueue(call string, self, other *scope.View)
}

// Ruleset is the compiled, owner-bound unit from spec 3.5: either a
// JSON ruleset (Assignments/Calls* populated) or a static ruleset
// (Static populated).
type Ruleset struct {
	OwnerID uint32
	Index   int
	Topic   string // empty = local; non-empty = broadcast topic

	conditionSrc string
	Condition    *expression.Expression

	Assignments []*Assignment
	CallsSelf   []*expression.Expression
	CallsOther  []*expression.Expression
	CallsGlobal []*expression.Expression

	Static StaticFunc

	EstimatedCost uint64
}

// Local reports whether this ruleset applies only to its owner (spec
// 3.5).
func (r *Ruleset) Local() bool { return r.Topic == "" }

// Bind wires every compiled expression against (self, global), and
// recomputes EstimatedCost from the now-registered variable counts
// (spec 4.6).
func (r *Ruleset) Bind(self, global *scope.View) {
	if r.Static != nil {
		return
	}
	if r.Condition != nil {
		r.Condition.Bind(self, global)
	}
	for _, a := range r.Assignments {
		a.bind(self, global)
	}
	for _, c := range r.CallsSelf {
		c.Bind(self, global)
	}
	for _, c := range r.CallsOther {
		c.Bind(self, global)
	}
	for _, c := range r.CallsGlobal {
		c.Bind(self, global)
	}
	r.EstimatedCost = r.computeCost()
}

func (r *Ruleset) computeCost() uint64 {
	var cost uint64
	if r.Condition != nil {
		cost += uint64(r.Condition.VarCount())
	}
	for _, a := range r.Assignments {
		cost += uint64(a.varCount()) + perAssignmentCost
	}
	for _, lists := range [][]*expression.Expression{r.CallsSelf, r.CallsOther, r.CallsGlobal} {
		for _, c := range lists {
			cost += uint64(c.VarCount()) + perCallCost
		}
	}
	return cost
}

// conditionTrue evaluates logicalArg.evalAsDouble(other) per spec
// 4.6: true iff not-NaN and |result| > epsilon, with a short-circuit
// when the parsed condition is literally "1".
func (r *Ruleset) conditionTrue(other *scope.View, resources *doccache.Cache) bool {
	if r.conditionSrc == "1" {
		return true
	}
	if r.Condition == nil {
		return true
	}
	v, ok := r.Condition.EvalAsDouble(other, resources)
	if !ok {
		return false
	}
	return !math.IsNaN(v) && math.Abs(v) > expression.Epsilon
}

// EvaluateCondition runs logicalArg.evalAsDouble(other) without
// applying any assignment or call — the Pair Engine's Listen phase
// uses this to decide a listener pair's initial `active` flag (spec
// 4.7) ahead of the frame's Apply pass.
func (r *Ruleset) EvaluateCondition(other *scope.View, resources *doccache.Cache) bool {
	if r.Static != nil {
		return true
	}
	return r.conditionTrue(other, resources)
}

// Apply runs the ruleset's effect: a static ruleset calls its
// registered function directly; a JSON ruleset evaluates its
// condition, runs every assignment, then dispatches each function
// call list (spec 4.6's "Apply").
func (r *Ruleset) Apply(self, other, global *scope.View, resources *doccache.Cache, dispatcher Dispatcher, globalQueue GlobalQueue) {
	if r.Static != nil {
		r.Static(self, other, global)
		return
	}
	if !r.conditionTrue(other, resources) {
		return
	}
	for _, a := range r.Assignments {
		a.apply(self, other, global, resources)
	}
	for _, c := range r.CallsSelf {
		if dispatcher != nil {
			dispatcher.Dispatch(c.Eval(other, resources), self, self)
		}
	}
	for _, c := range r.CallsOther {
		if dispatcher != nil {
			dispatcher.Dispatch(c.Eval(other, resources), self, other)
		}
	}
	for _, c := range r.CallsGlobal {
		if globalQueue != nil {
			globalQueue.Enqueue(c.Eval(other, resources), self, other)
		}
	}
}
