package document

import (
	"fmt"
	"strconv"
	"strings"
)

// segKind distinguishes an object-member segment from an array-index
// segment within a parsed key.
type segKind int

const (
	segMember segKind = iota
	segIndex
)

type segment struct {
	kind segKind
	name string // valid when kind == segMember
	idx  int    // valid when kind == segIndex
}

// reservedChars may not appear inside an object-member segment name,
// per spec 3.1: "segments may not contain the reserved characters
// []{}.,".
const reservedChars = "[]{}.,"

// parseKey greedily splits a dotted/bracketed key such as
// "a.b[3].c" into an ordered list of segments. Mixed runs like
// "a[0][1].b" are legal.
func parseKey(key string) ([]segment, error) {
	var segs []segment
	i := 0
	n := len(key)

	for i < n {
		switch key[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(key[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("jsonkey: unterminated '[' in key %q", key)
			}
			end += i
			idxStr := key[i+1 : end]
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("jsonkey: invalid array index %q in key %q", idxStr, key)
			}
			segs = append(segs, segment{kind: segIndex, idx: idx})
			i = end + 1
		default:
			start := i
			for i < n && key[i] != '.' && key[i] != '[' {
				i++
			}
			name := key[start:i]
			if name == "" {
				return nil, fmt.Errorf("jsonkey: empty segment in key %q", key)
			}
			if strings.ContainsAny(name, reservedChars) {
				return nil, fmt.Errorf("jsonkey: segment %q contains a reserved character", name)
			}
			segs = append(segs, segment{kind: segMember, name: name})
		}
	}

	if len(segs) == 0 {
		return nil, fmt.Errorf("jsonkey: empty key")
	}
	return segs, nil
}

// validateKey reports whether key is syntactically well-formed
// without building the segment list, useful for callers that only
// need a yes/no answer (e.g. the transformation pipeline's failure
// path).
func validateKey(key string) bool {
	_, err := parseKey(key)
	return err == nil
}
