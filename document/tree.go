package document

import (
	"encoding/json"
	"strconv"
	"strings"
)

// traverseRead walks segs against root and returns the leaf/subtree
// found there, or ok=false if any segment along the way is missing.
func traverseRead(root any, segs []segment) (any, bool) {
	cur := root
	for _, s := range segs {
		switch s.kind {
		case segMember:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := m[s.name]
			if !ok {
				return nil, false
			}
			cur = v
		case segIndex:
			arr, ok := cur.([]any)
			if !ok {
				return nil, false
			}
			if s.idx < 0 || s.idx >= len(arr) {
				return nil, false
			}
			cur = arr[s.idx]
		}
	}
	return cur, true
}

// traverseWrite walks segs against *root, auto-vivifying missing
// objects/arrays (sized large enough to hold the requested index)
// along the way, and sets the final segment to value. Each recursive
// step mutates the container it is handed and returns it (re-threaded
// through the parent on the way back up), which keeps slice growth
// correct without any pointer-aliasing tricks: a grown slice's new
// backing array is always re-stored into its parent by the return
// value, never assumed to alias the old one.
func traverseWrite(root *any, segs []segment, value any) {
	*root = writeAt(*root, segs, value)
}

func writeAt(node any, segs []segment, value any) any {
	seg := segs[0]
	rest := segs[1:]

	switch seg.kind {
	case segMember:
		m, ok := node.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		if len(rest) == 0 {
			m[seg.name] = value
		} else {
			m[seg.name] = writeAt(m[seg.name], rest, value)
		}
		return m
	case segIndex:
		arr, ok := node.([]any)
		if !ok {
			arr = []any{}
		}
		for len(arr) <= seg.idx {
			arr = append(arr, nil)
		}
		if len(rest) == 0 {
			arr[seg.idx] = value
		} else {
			arr[seg.idx] = writeAt(arr[seg.idx], rest, value)
		}
		return arr
	default:
		return node
	}
}

// removeAt deletes the element named by the final segment of segs
// from its parent container.
func removeAt(root *any, segs []segment) {
	if len(segs) == 0 {
		return
	}
	parentSegs := segs[:len(segs)-1]
	last := segs[len(segs)-1]

	var parent any
	var ok bool
	if len(parentSegs) == 0 {
		parent = *root
		ok = true
	} else {
		parent, ok = traverseRead(*root, parentSegs)
	}
	if !ok {
		return
	}

	switch last.kind {
	case segMember:
		if m, isMap := parent.(map[string]any); isMap {
			delete(m, last.name)
		}
	case segIndex:
		if arr, isArr := parent.([]any); isArr && last.idx >= 0 && last.idx < len(arr) {
			arr = append(arr[:last.idx], arr[last.idx+1:]...)
			if len(parentSegs) == 0 {
				*root = arr
			} else {
				traverseWrite(root, parentSegs, arr)
			}
		}
	}
}

// deepCopy clones a tree of map[string]any/[]any/scalars so that two
// Documents never share mutable structure.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}

// normalizeNumbers walks a tree freshly decoded with UseNumber() and
// converts every json.Number leaf to float64. JSON text carries no
// int/uint width distinction, so deserialized numbers are always
// tagged KindFloat64; the narrower Kinds only arise from programmatic
// Set[int32]/Set[uint64]/... calls.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = normalizeNumbers(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = normalizeNumbers(vv)
		}
		return t
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0.0
		}
		return f
	default:
		return v
	}
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
