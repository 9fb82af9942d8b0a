package expression

import "fmt"

// lexer tokenizes the arithmetic sub-grammar of an Eval component.
type lexer struct {
	src string
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

// next returns the next token, or a tokEOF once the source is
// exhausted.
func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	b := l.src[l.pos]

	if isDigit(b) || (b == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		if l.peekByte() == '.' {
			l.pos++
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		if l.peekByte() == 'e' || l.peekByte() == 'E' {
			save := l.pos
			l.pos++
			if l.peekByte() == '+' || l.peekByte() == '-' {
				l.pos++
			}
			if isDigit(l.peekByte()) {
				for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
					l.pos++
				}
			} else {
				l.pos = save
			}
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
	}

	if isIdentStart(b) {
		l.pos++
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil
	}

	if kind, ok := singleCharTokens[b]; ok {
		l.pos++
		return token{kind: kind, text: string(b), pos: start}, nil
	}

	return token{}, fmt.Errorf("expression: unexpected character %q at offset %d", string(b), start)
}
