package document

// EntryState is a CacheEntry's position in the synchronisation state
// machine described in spec 3.1/4.1.
type EntryState int

const (
	// StateClean means the semantic value and the tree agree and the
	// pointer has not been written to since the last sync.
	StateClean EntryState = iota
	// StateDirty means the pointer (or a set_add/set_multiply/
	// set_concat call) changed the value and flush() has not yet run.
	StateDirty
	// StateDerived marks an entry produced by the transformation
	// pipeline (4.1) rather than a direct tree read.
	StateDerived
	// StateDeleted marks an entry invalidated by a structural write
	// to an ancestor key (I-4); its pointer still exists but no
	// longer corresponds to anything live in the tree.
	StateDeleted
	// StateMalformed marks an entry that could never resolve to a
	// value (bad key syntax, failed transform); per I-5 its pointer
	// reads a stable zero and it never synchronises.
	StateMalformed
)

// CacheEntry is the per-key bookkeeping record backing a stable double
// pointer. Once allocated, ptr is never reassigned to a new backing
// array — Go's non-moving garbage collector keeps that pointer stable
// for the entry's lifetime, so no arena or pinning trick is needed.
type CacheEntry struct {
	value      Value
	ptr        *float64
	lastDouble float64
	state      EntryState
}

func newCacheEntry(v Value) *CacheEntry {
	d := v.AsDouble()
	p := new(float64)
	*p = d
	return &CacheEntry{
		value:      v,
		ptr:        p,
		lastDouble: d,
		state:      StateClean,
	}
}

// syncFromPointer implements the cache-update protocol step 1: if the
// pointer's value has drifted from the last observed double (I-2),
// the semantic value is promoted to Dirty and resynchronised.
func (e *CacheEntry) syncFromPointer(epsilon float64) {
	if e.state == StateMalformed || e.state == StateDeleted {
		return
	}
	cur := *e.ptr
	diff := cur - e.lastDouble
	if diff < 0 {
		diff = -diff
	}
	if diff > epsilon {
		e.state = StateDirty
		e.lastDouble = cur
		// Strings never round-trip through the double pointer; only
		// numeric/bool entries resynchronise their semantic value.
		switch e.value.Kind {
		case KindString:
			// left as-is: the pointer for a string entry is a stable
			// zero channel, not a live binding (4.1).
		default:
			e.value = Value{Kind: e.value.Kind, Num: cur}
		}
	}
}

func (e *CacheEntry) setValue(v Value) {
	e.value = v
	d := v.AsDouble()
	*e.ptr = d
	e.lastDouble = d
	e.state = StateDirty
}

func (e *CacheEntry) markMalformed() {
	*e.ptr = 0
	e.lastDouble = 0
	e.value = Null
	e.state = StateMalformed
}
