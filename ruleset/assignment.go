package ruleset

import (
	"fmt"

	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/expression"
)

// Target is which document an Assignment's left-hand side writes into
// (spec 3.4).
type Target int

const (
	TargetSelf Target = iota
	TargetOther
	TargetGlobal
)

func (t Target) String() string {
	switch t {
	case TargetSelf:
		return "self"
	case TargetOther:
		return "other"
	case TargetGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Op is an Assignment's write operator (spec 3.4).
type Op int

const (
	OpSet Op = iota
	OpAdd
	OpMultiply
	OpConcat
)

// Assignment is the compiled `(target_type, target_key_expr, op,
// value_expr, resolved_target_ptr?)` tuple from spec 3.4.
type Assignment struct {
	Target Target
	Op     Op

	KeyExpr   *expression.Expression
	ValueExpr *expression.Expression

	// resolvedPtr is non-nil exactly when Target is Self or Global, Op
	// is numeric, and KeyExpr turned out to be a single static Text
	// component — the "resolved_target_ptr is set at compile time"
	// fast path (spec 3.4).
	resolvedPtr *float64
}

func newAssignment(target Target, op Op, keySrc, valueSrc string) (*Assignment, error) {
	keyExpr, err := expression.Parse(keySrc)
	if err != nil {
		return nil, fmt.Errorf("ruleset: assignment key %q: %w", keySrc, err)
	}
	valueExpr, err := expression.Parse(valueSrc)
	if err != nil {
		return nil, fmt.Errorf("ruleset: assignment value %q: %w", valueSrc, err)
	}
	return &Assignment{Target: target, Op: op, KeyExpr: keyExpr, ValueExpr: valueExpr}, nil
}

// staticKey reports the literal key string iff KeyExpr compiled down
// to a single unparameterized Text component (no {…}/$(...) pieces),
// the condition spec 3.4 requires for a resolved target pointer.
func (a *Assignment) staticKey() (string, bool) {
	return a.KeyExpr.Source(), !containsTemplate(a.KeyExpr.Source())
}

func containsTemplate(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '$' {
			return true
		}
	}
	return false
}

// bind wires KeyExpr/ValueExpr against (self, global) and, for a
// numeric op targeting Self or Global with a static key, resolves the
// target pointer once (spec 3.4's lambda optimisation, spec 4.6's
// "Lambda-optimise assignments").
func (a *Assignment) bind(self, global *scope.View) {
	a.KeyExpr.Bind(self, global)
	a.ValueExpr.Bind(self, global)

	if a.Op == OpConcat {
		return
	}
	key, isStatic := a.staticKey()
	if !isStatic {
		return
	}
	switch a.Target {
	case TargetSelf:
		full, err := self.Resolve(key)
		if err == nil {
			a.resolvedPtr = self.Doc().GetStableDoublePointer(full)
		}
	case TargetGlobal:
		full, err := global.Resolve(key)
		if err == nil {
			a.resolvedPtr = global.Doc().GetStableDoublePointer(full)
		}
	}
}

// apply evaluates value_expr (and, unless resolved, key_expr) against
// (self, other) and writes the result per spec 4.5.
func (a *Assignment) apply(self, other, global *scope.View, resources *doccache.Cache) {
	if a.resolvedPtr != nil {
		v, ok := a.ValueExpr.EvalAsDouble(other, resources)
		if !ok {
			return
		}
		switch a.Op {
		case OpSet:
			*a.resolvedPtr = v
		case OpAdd:
			*a.resolvedPtr += v
		case OpMultiply:
			*a.resolvedPtr *= v
		}
		return
	}

	target := a.targetView(self, other, global)
	if target == nil {
		return
	}
	key := a.KeyExpr.Eval(other, resources)

	if a.Op == OpConcat {
		full, err := target.Resolve(key)
		if err != nil {
			return
		}
		target.Doc().SetConcat(full, a.ValueExpr.Eval(other, resources))
		return
	}

	v, ok := a.ValueExpr.EvalAsDouble(other, resources)
	if !ok {
		return
	}
	full, err := target.Resolve(key)
	if err != nil {
		return
	}
	switch a.Op {
	case OpSet:
		scope.Set(target, key, v)
	case OpAdd:
		target.Doc().SetAdd(full, v)
	case OpMultiply:
		target.Doc().SetMultiply(full, v)
	}
}

func (a *Assignment) targetView(self, other, global *scope.View) *scope.View {
	switch a.Target {
	case TargetSelf:
		return self
	case TargetOther:
		return other
	case TargetGlobal:
		return global
	default:
		return nil
	}
}

// varCount is the sum this Assignment contributes to a Ruleset's cost
// estimate (spec 4.6).
func (a *Assignment) varCount() int {
	return a.KeyExpr.VarCount() + a.ValueExpr.VarCount()
}
