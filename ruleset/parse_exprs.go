package ruleset

import (
	"fmt"
	"strings"

	"github.com/lbastigk/nebulite/expression"
)

// compileAssignments parses spec 4.6's `exprs[]` array: each element
// splits on the first of `+=`, `*=`, `|=`, `=`; the left-hand prefix
// (`self.`/`other.`/`global.`) fixes the target type.
func compileAssignments(raw any) ([]*Assignment, error) {
	items, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("exprs must be an array, got %T", raw)
	}
	out := make([]*Assignment, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("exprs[%d] must be a string, got %T", i, item)
		}
		a, err := parseAssignmentString(s)
		if err != nil {
			return nil, fmt.Errorf("exprs[%d] %q: %w", i, s, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// compileCalls parses one of functioncalls.{self,other,global}: a
// plain array of expression-template strings, each dispatched to the
// appropriate domain's function tree (spec 4.6).
func compileCalls(raw any) ([]*expression.Expression, error) {
	items, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("must be an array, got %T", raw)
	}
	out := make([]*expression.Expression, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("[%d] must be a string, got %T", i, item)
		}
		e, err := expression.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("[%d] %q: %w", i, s, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// parseAssignmentString splits s on its first top-level `+=`, `*=`,
// `|=`, or `=` operator and builds the matching Assignment (spec
// 3.4/4.6).
func parseAssignmentString(s string) (*Assignment, error) {
	opStart, opEnd, op, err := findAssignOp(s)
	if err != nil {
		return nil, err
	}
	lhs := strings.TrimSpace(s[:opStart])
	rhs := strings.TrimSpace(s[opEnd:])

	target, key, err := splitTargetPrefix(lhs)
	if err != nil {
		return nil, err
	}
	return newAssignment(target, op, key, rhs)
}

// findAssignOp scans for the first '=' in s and classifies it: if
// immediately preceded by '+', '*', or '|' the operator is two
// characters wide, otherwise it is plain `=` (OpSet).
func findAssignOp(s string) (start, end int, op Op, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '=' {
			continue
		}
		if i > 0 {
			switch s[i-1] {
			case '+':
				return i - 1, i + 1, OpAdd, nil
			case '*':
				return i - 1, i + 1, OpMultiply, nil
			case '|':
				return i - 1, i + 1, OpConcat, nil
			}
		}
		return i, i + 1, OpSet, nil
	}
	return 0, 0, 0, fmt.Errorf("no assignment operator found")
}

func splitTargetPrefix(lhs string) (Target, string, error) {
	switch {
	case strings.HasPrefix(lhs, "self."):
		return TargetSelf, lhs[len("self."):], nil
	case strings.HasPrefix(lhs, "other."):
		return TargetOther, lhs[len("other."):], nil
	case strings.HasPrefix(lhs, "global."):
		return TargetGlobal, lhs[len("global."):], nil
	default:
		return 0, "", fmt.Errorf("missing self./other./global. prefix in %q", lhs)
	}
}
