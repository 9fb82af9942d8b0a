package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// Context is which document a Variable or nested Eval reference binds
// against (spec 3.3).
type Context int

const (
	ContextSelf Context = iota
	ContextOther
	ContextGlobal
	ContextResource
)

func (c Context) String() string {
	switch c {
	case ContextSelf:
		return "Self"
	case ContextOther:
		return "Other"
	case ContextGlobal:
		return "Global"
	case ContextResource:
		return "Resource"
	default:
		return "Unknown"
	}
}

func parseContext(s string) (Context, error) {
	switch s {
	case "Self":
		return ContextSelf, nil
	case "Other":
		return ContextOther, nil
	case "Global":
		return ContextGlobal, nil
	case "Resource":
		return ContextResource, nil
	default:
		return 0, fmt.Errorf("expression: unknown variable context %q", s)
	}
}

// varRef is a parsed `{context.key}` reference. For ContextResource,
// key is "<path>|<subkey>": the Document Cache path, then the
// sub-document key within it.
type varRef struct {
	ctx Context
	key string
}

func parseVarRef(body string) (varRef, error) {
	dot := strings.IndexByte(body, '.')
	if dot < 0 {
		return varRef{}, fmt.Errorf("expression: variable %q missing context", body)
	}
	ctx, err := parseContext(body[:dot])
	if err != nil {
		return varRef{}, err
	}
	return varRef{ctx: ctx, key: body[dot+1:]}, nil
}

// FormatSpec is the `[0][width][.precision][i|f]` format for an Eval
// component (spec 3.3).
type FormatSpec struct {
	ZeroPad      bool
	Width        int
	Precision    int
	HasPrecision bool
	Integer      bool
}

func parseFormatSpec(s string) (FormatSpec, error) {
	var f FormatSpec
	if s == "" {
		return f, nil
	}
	i := 0
	if i < len(s) && s[i] == '0' {
		f.ZeroPad = true
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > start {
		w, err := strconv.Atoi(s[start:i])
		if err != nil {
			return f, fmt.Errorf("expression: bad format width %q", s)
		}
		f.Width = w
	}
	if i < len(s) && s[i] == '.' {
		i++
		start = i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		p, err := strconv.Atoi(s[start:i])
		if err != nil {
			return f, fmt.Errorf("expression: bad format precision %q", s)
		}
		f.Precision = p
		f.HasPrecision = true
	}
	if i < len(s) {
		switch s[i] {
		case 'i':
			f.Integer = true
			i++
		case 'f':
			i++
		default:
			return f, fmt.Errorf("expression: bad format suffix %q", s)
		}
	}
	if i != len(s) {
		return f, fmt.Errorf("expression: trailing characters in format %q", s)
	}
	return f, nil
}

// componentKind tags which of the three shapes from spec 3.3 a
// Component is.
type componentKind int

const (
	kindText componentKind = iota
	kindVariable
	kindEval
)

// Component is one piece of a parsed Expression (spec 3.3).
type Component struct {
	kind componentKind

	// kindText
	text string

	// kindVariable
	ref varRef
	vd  *VirtualDouble

	// kindEval
	format     FormatSpec
	compiled   node
	nestedVars []boundNestedVar
}

// boundNestedVar is one `{context.key}` temporary rewritten inside an
// Eval's arithmetic body into a generated identifier. vd is allocated
// eagerly at parse time (spec 4.3: "each registered variable owns a
// VirtualDouble"); Bind later turns Self/Global entries into remanent
// bindings by setting their external pointer, in place.
type boundNestedVar struct {
	genName string
	ref     varRef
	vd      *VirtualDouble
}

// splitComponents breaks source into Text/Variable/Eval components at
// the top nesting level (spec 4.3: "the source is split on the same
// nesting depth"). Eval bodies are handed to parseEvalBody, which
// performs its own nested-{…} rewrite.
func splitComponents(source string) ([]Component, error) {
	var comps []Component
	var textBuf strings.Builder

	flushText := func() {
		if textBuf.Len() > 0 {
			comps = append(comps, Component{kind: kindText, text: textBuf.String()})
			textBuf.Reset()
		}
	}

	i := 0
	for i < len(source) {
		switch source[i] {
		case '{':
			end, err := findMatching(source, i, '{', '}')
			if err != nil {
				return nil, err
			}
			flushText()
			ref, err := parseVarRef(source[i+1 : end])
			if err != nil {
				return nil, err
			}
			comps = append(comps, Component{kind: kindVariable, ref: ref, vd: NewInternalVirtualDouble()})
			i = end + 1
		case '$':
			flushText()
			comp, next, err := parseEvalAt(source, i)
			if err != nil {
				return nil, err
			}
			comps = append(comps, comp)
			i = next
		default:
			textBuf.WriteByte(source[i])
			i++
		}
	}
	flushText()
	return comps, nil
}

// findMatching returns the index of the close char matching the open
// char at source[start], honoring nested pairs.
func findMatching(source string, start int, open, close byte) (int, error) {
	depth := 0
	for i := start; i < len(source); i++ {
		switch source[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("expression: unmatched %q starting at offset %d", string(open), start)
}

// parseEvalAt parses a `$[format](…)` region starting at source[i]
// (source[i] == '$'), returning the compiled Component and the index
// just past the closing ')'.
func parseEvalAt(source string, i int) (Component, int, error) {
	j := i + 1
	formatStart := j
	for j < len(source) && source[j] != '(' {
		j++
	}
	if j >= len(source) {
		return Component{}, 0, fmt.Errorf("expression: unterminated eval starting at offset %d", i)
	}
	format, err := parseFormatSpec(source[formatStart:j])
	if err != nil {
		return Component{}, 0, err
	}

	closeIdx, err := findMatching(source, j, '(', ')')
	if err != nil {
		return Component{}, 0, err
	}
	body := source[j+1 : closeIdx]

	rewritten, nested, err := rewriteNestedVars(body)
	if err != nil {
		return Component{}, 0, err
	}

	compiled, err := parseArith(rewritten, func(name string) (*VirtualDouble, error) {
		for _, nv := range nested {
			if nv.genName == name {
				return nv.vd, nil
			}
		}
		return nil, fmt.Errorf("expression: unbound identifier %q", name)
	})
	if err != nil {
		return Component{kind: kindEval, format: format, compiled: nanNode{}, nestedVars: nested}, closeIdx + 1, nil
	}

	return Component{kind: kindEval, format: format, compiled: compiled, nestedVars: nested}, closeIdx + 1, nil
}

// rewriteNestedVars replaces every top-level `{context.key}` inside an
// Eval body with a generated identifier (spec 4.3), returning the
// rewritten arithmetic source plus the list of generated bindings.
func rewriteNestedVars(body string) (string, []boundNestedVar, error) {
	var out strings.Builder
	var nested []boundNestedVar
	i := 0
	for i < len(body) {
		if body[i] == '{' {
			end, err := findMatching(body, i, '{', '}')
			if err != nil {
				return "", nil, err
			}
			ref, err := parseVarRef(body[i+1 : end])
			if err != nil {
				return "", nil, err
			}
			gen := fmt.Sprintf("__v%d", len(nested))
			nested = append(nested, boundNestedVar{genName: gen, ref: ref, vd: NewInternalVirtualDouble()})
			out.WriteString(gen)
			i = end + 1
			continue
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String(), nested, nil
}
