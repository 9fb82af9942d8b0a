package jsonc

import "strings"

// Tokenize splits cmd into space-separated arguments, treating a
// single- or double-quoted run as one token (quotes are stripped from
// the result). It returns the tokens plus a bool reporting whether an
// unclosed quote was detected — callers should surface that as a
// warning rather than fail outright, mirroring the permissive posture
// of the rest of the command surface.
//
// Tokenize is an involution on well-formed input: joining the result
// with single spaces reproduces cmd whenever cmd had no multi-space
// runs and every quote was balanced.
func Tokenize(cmd string) (tokens []string, unclosedQuote bool) {
	var current strings.Builder
	haveToken := false
	var quote rune // 0, '\'', or '"'

	flush := func() {
		if haveToken {
			tokens = append(tokens, current.String())
			current.Reset()
			haveToken = false
		}
	}

	for _, c := range cmd {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				current.WriteRune(c)
			}
		case c == '"' || c == '\'':
			quote = c
			haveToken = true
		case c == ' ' || c == '\t':
			flush()
		default:
			current.WriteRune(c)
			haveToken = true
		}
	}
	flush()

	return tokens, quote != 0
}

// Join reconstructs a command string from tokens, re-quoting any token
// that contains whitespace so that re-tokenizing reproduces it.
func Join(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		if strings.ContainsAny(t, " \t") {
			parts[i] = "\"" + t + "\""
		} else {
			parts[i] = t
		}
	}
	return strings.Join(parts, " ")
}
