// Package jsonc strips JSONC-style comments from a byte stream and
// tokenizes shell-like command strings, honoring single- and
// double-quoted runs. Both are pure, allocation-light string
// transforms with no dependency on the document model.
package jsonc

import "strings"

// StripComments removes `//...` and `/*...*/` comments from jsonc,
// leaving string literals (including escaped quotes) untouched.
// Newlines inside a line comment are preserved so that downstream
// parse-error line numbers still line up with the original source.
//
// StripComments is a projection: it is idempotent, and a comment-free
// input is returned unchanged.
func StripComments(jsonc string) string {
	var b strings.Builder
	b.Grow(len(jsonc))

	inString := false
	inLineComment := false
	inBlockComment := false
	escaped := false

	runes := []rune(jsonc)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		if inLineComment {
			if c == '\n' {
				inLineComment = false
				b.WriteRune(c)
			}
			continue
		}

		if inBlockComment {
			if c == '*' && next == '/' {
				inBlockComment = false
				i++
			}
			continue
		}

		if inString {
			b.WriteRune(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteRune(c)
		case c == '/' && next == '/':
			inLineComment = true
			i++
		case c == '/' && next == '*':
			inBlockComment = true
			i++
		default:
			b.WriteRune(c)
		}
	}

	return b.String()
}
