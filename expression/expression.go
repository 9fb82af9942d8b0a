// Package expression implements the Expression component described in
// spec 3.3/4.3: a parsed sequence of Text/Variable/Eval components
// backed by an arithmetic compiler, bound against Self/Other/Global
// Scoped Views and the Document Cache.
package expression

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lbastigk/nebulite/doccache"
	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
)

// Epsilon is the tolerance evalAsBool uses against |result| (spec
// 4.3).
const Epsilon = 1e-9

var nextExpressionID uint64

// Expression is a parsed, compiled template: Text/Variable/Eval
// components plus the remanent/non-remanent variable bookkeeping from
// spec 3.3.
type Expression struct {
	id         uint64
	source     string
	components []Component

	selfVars     []*varBinding // Self context, remanent once Bound
	globalVars   []*varBinding // Global context, remanent once Bound
	otherVars    []*varBinding // Other context, always non-remanent
	resourceVars []*varBinding // Resource context, always non-remanent

	bound bool

	// otherPointerCache implements spec 4.3's "Other-cache
	// optimisation": per distinct Other document, the ordered list of
	// that document's stable pointers matching otherVars, built once.
	otherPointerCache map[*document.Document][]*float64
}

// varBinding pairs a registered variable's VirtualDouble with the key
// it reads, regardless of whether it came from a standalone Variable
// component or a nested Eval temporary.
type varBinding struct {
	key string
	vd  *VirtualDouble
}

// Parse compiles source into an Expression. A malformed Eval body
// yields a component that always evaluates to NaN rather than an
// error (spec 4.3's "Compile errors"); only a structurally unmatched
// brace/paren or unknown variable context fails outright, since those
// can't even be split into components.
func Parse(source string) (*Expression, error) {
	comps, err := splitComponents(source)
	if err != nil {
		return nil, err
	}

	nextExpressionID++
	e := &Expression{
		id:                nextExpressionID,
		source:            source,
		components:        comps,
		otherPointerCache: make(map[*document.Document][]*float64),
	}

	for i := range e.components {
		c := &e.components[i]
		switch c.kind {
		case kindVariable:
			e.registerVar(c.ref, c.vd)
		case kindEval:
			for _, nv := range c.nestedVars {
				e.registerVar(nv.ref, nv.vd)
			}
		}
	}
	return e, nil
}

func (e *Expression) registerVar(ref varRef, vd *VirtualDouble) {
	b := &varBinding{key: ref.key, vd: vd}
	switch ref.ctx {
	case ContextSelf:
		e.selfVars = append(e.selfVars, b)
	case ContextGlobal:
		e.globalVars = append(e.globalVars, b)
	case ContextOther:
		e.otherVars = append(e.otherVars, b)
	case ContextResource:
		e.resourceVars = append(e.resourceVars, b)
	}
}

// Bind resolves every Self and Global variable to its host document's
// stable double pointer (spec 4.3: "For remanent contexts ... ptr()
// is the host store's stable pointer"), turning those VirtualDoubles
// remanent in place. Other and Resource variables stay internally
// buffered; Bind only needs to run once per Expression, even though
// it may later be evaluated against many different Other documents.
func (e *Expression) Bind(self, global *scope.View) {
	for _, b := range e.selfVars {
		full, _ := self.Resolve(b.key)
		ptr := self.Doc().GetStableDoublePointer(full)
		*b.vd = *NewExternalVirtualDouble(ptr)
	}
	for _, b := range e.globalVars {
		full, _ := global.Resolve(b.key)
		ptr := global.Doc().GetStableDoublePointer(full)
		*b.vd = *NewExternalVirtualDouble(ptr)
	}
	e.bound = true
}

// refreshOther updates every Other-context VirtualDouble from other's
// current values, using the per-(expression, Other-document) pointer
// list cache described in spec 4.3.
func (e *Expression) refreshOther(other *scope.View) {
	if len(e.otherVars) == 0 {
		return
	}
	doc := other.Doc()
	ptrs, ok := e.otherPointerCache[doc]
	if !ok {
		ptrs = make([]*float64, len(e.otherVars))
		for i, b := range e.otherVars {
			full, _ := other.Resolve(b.key)
			ptrs[i] = doc.GetStableDoublePointer(full)
		}
		e.otherPointerCache[doc] = ptrs
	}
	for i, b := range e.otherVars {
		b.vd.Set(*ptrs[i])
	}
}

// refreshResources updates every Resource-context VirtualDouble by
// looking its path|subkey up in the Document Cache.
func (e *Expression) refreshResources(resources *doccache.Cache) {
	if len(e.resourceVars) == 0 || resources == nil {
		return
	}
	for _, b := range e.resourceVars {
		path, subkey, found := strings.Cut(b.key, "|")
		if !found {
			continue
		}
		v := doccache.Get(resources, path, subkey, 0.0)
		b.vd.Set(v)
	}
}

// Eval renders the Expression against other and resources,
// concatenating every component's textual result (spec 4.3: "eval(other)
// -> string").
func (e *Expression) Eval(other *scope.View, resources *doccache.Cache) string {
	e.refreshOther(other)
	e.refreshResources(resources)

	var out strings.Builder
	for i := range e.components {
		c := &e.components[i]
		switch c.kind {
		case kindText:
			out.WriteString(c.text)
		case kindVariable:
			out.WriteString(strconv.FormatFloat(*c.vd.Ptr(), 'g', -1, 64))
		case kindEval:
			out.WriteString(formatResult(c.compiled.eval(), c.format))
		}
	}
	return out.String()
}

// EvalAsDouble is defined iff the Expression is a single Eval
// component (spec 4.3); it returns the raw arithmetic result without
// string rendering. A formatted component such as "$i(...)" is
// accepted too, and its format spec is not applied.
func (e *Expression) EvalAsDouble(other *scope.View, resources *doccache.Cache) (float64, bool) {
	if len(e.components) != 1 || e.components[0].kind != kindEval {
		return 0, false
	}
	e.refreshOther(other)
	e.refreshResources(resources)
	return e.components[0].compiled.eval(), true
}

// EvalAsBool parses and evaluates s transiently, returning |result| >
// Epsilon and not NaN (spec 4.3).
func EvalAsBool(s string) bool {
	expr, err := Parse(s)
	if err != nil {
		return false
	}
	self := scope.New(document.New())
	expr.Bind(self, self)
	v, ok := expr.EvalAsDouble(self, nil)
	if !ok {
		// Fall back to a full eval()+parse-as-double for multi-component
		// boolean expressions (e.g. a bare Variable or mixed template).
		rendered := expr.Eval(self, nil)
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(rendered), 64)
		if perr != nil {
			return false
		}
		v = parsed
	}
	if math.IsNaN(v) {
		return false
	}
	return math.Abs(v) > Epsilon
}

// formatResult renders an Eval's double result per spec 3.3's format
// spec: zero/space padding, precision, and the i/f integer-or-double
// suffix.
func formatResult(v float64, f FormatSpec) string {
	if f.Integer {
		return padNumeric(strconv.FormatInt(int64(math.Trunc(v)), 10), f)
	}
	precision := 6
	if f.HasPrecision {
		precision = f.Precision
	}
	return padNumeric(strconv.FormatFloat(v, 'f', precision, 64), f)
}

func padNumeric(s string, f FormatSpec) string {
	if f.Width <= len(s) {
		return s
	}
	padLen := f.Width - len(s)
	if f.ZeroPad {
		neg := strings.HasPrefix(s, "-")
		digits := s
		sign := ""
		if neg {
			sign = "-"
			digits = s[1:]
		}
		return sign + strings.Repeat("0", padLen) + digits
	}
	return strings.Repeat(" ", padLen) + s
}

// ID returns the Expression's process-unique identifier, used as the
// Other-cache optimisation's key space (spec 4.3).
func (e *Expression) ID() uint64 { return e.id }

// Bound reports whether Bind has run.
func (e *Expression) Bound() bool { return e.bound }

// VarCount returns the total number of registered variables across
// every context, the unit the Ruleset cost estimate sums over (spec
// 4.6: "sum of compiled-expression variable counts").
func (e *Expression) VarCount() int {
	return len(e.selfVars) + len(e.globalVars) + len(e.otherVars) + len(e.resourceVars)
}

// Source returns the original, unparsed template text. Ruleset uses
// this for the "condition is literally \"1\"" short-circuit (spec
// 4.6).
func (e *Expression) Source() string { return e.source }

func (e *Expression) String() string {
	return fmt.Sprintf("Expression#%d(%q)", e.id, e.source)
}
