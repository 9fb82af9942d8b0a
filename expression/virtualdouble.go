package expression

// VirtualDouble is the double-typed binding the arithmetic engine
// reads from (spec 4.3, GLOSSARY). It is either externally stable —
// ptr() aliases a Document's own cache pointer — or internally
// buffered, an owned cell the evaluator refreshes before each eval.
// Never both, and never shared between expressions (spec's "Cyclic
// ownership" note on arena allocation; Go's GC makes the arena
// unnecessary, but the never-shared rule is kept).
type VirtualDouble struct {
	external *float64
	internal float64
}

// NewExternalVirtualDouble wraps an already-stable pointer (a Self or
// static-key Global binding).
func NewExternalVirtualDouble(ptr *float64) *VirtualDouble {
	return &VirtualDouble{external: ptr}
}

// NewInternalVirtualDouble creates an owned, refreshable cell (an
// Other or Resource binding).
func NewInternalVirtualDouble() *VirtualDouble {
	return &VirtualDouble{}
}

// Ptr returns the address the compiled arithmetic reads through.
func (vd *VirtualDouble) Ptr() *float64 {
	if vd.external != nil {
		return vd.external
	}
	return &vd.internal
}

// Set writes v through this binding: directly into the external
// pointer if remanent, or into the owned internal cell otherwise.
func (vd *VirtualDouble) Set(v float64) {
	if vd.external != nil {
		*vd.external = v
		return
	}
	vd.internal = v
}

// Remanent reports whether this binding is pointer-stable (wraps an
// external Document pointer) rather than an internally buffered cell
// refreshed on every eval.
func (vd *VirtualDouble) Remanent() bool {
	return vd.external != nil
}
