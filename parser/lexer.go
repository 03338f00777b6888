package parser

import (
	"fmt"
	"strings"
	"text/scanner"
)

// lexeme kinds beyond the ones text/scanner produces
const (
	tokLifetime rune = -(iota + 100)
	tokArrow
	tokEqEq
	tokPathSep
)

type lexeme struct {
	kind rune
	text string
	// offsets into the source, end exclusive
	off, end int
}

func (t lexeme) String() string {
	switch t.kind {
	case scanner.EOF:
		return "end of input"
	default:
		return fmt.Sprintf("`%s`", t.text)
	}
}

func describe(kind rune) string {
	switch kind {
	case scanner.Ident:
		return "identifier"
	case scanner.Int:
		return "integer"
	case tokLifetime:
		return "lifetime"
	case tokArrow:
		return "`->`"
	case tokEqEq:
		return "`==`"
	case tokPathSep:
		return "`::`"
	case scanner.EOF:
		return "end of input"
	default:
		return fmt.Sprintf("`%c`", kind)
	}
}

type lexError struct {
	off int
	msg string
}

// lex splits src into tokens. Lifetimes such as 'a are single tokens, as
// are ->, == and ::.
func lex(src string) ([]lexeme, []lexError) {
	var errs []lexError
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts
	s.Error = func(s *scanner.Scanner, msg string) {
		errs = append(errs, lexError{off: s.Pos().Offset, msg: msg})
	}

	var raw []lexeme
	for kind := s.Scan(); ; kind = s.Scan() {
		off := s.Position.Offset
		if kind == scanner.EOF {
			raw = append(raw, lexeme{kind: kind, off: len(src), end: len(src)})
			break
		}
		text := s.TokenText()
		raw = append(raw, lexeme{kind: kind, text: text, off: off, end: off + len(text)})
	}

	tokens := make([]lexeme, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		tok := raw[i]
		next := lexeme{kind: scanner.EOF}
		if i+1 < len(raw) {
			next = raw[i+1]
		}
		adjacent := next.off == tok.end
		switch {
		case tok.kind == '\'' && next.kind == scanner.Ident && adjacent:
			tokens = append(tokens, lexeme{kind: tokLifetime, text: "'" + next.text, off: tok.off, end: next.end})
			i++
		case tok.kind == '\'':
			errs = append(errs, lexError{off: tok.off, msg: "expected lifetime name after `'`"})
		case tok.kind == '-' && next.kind == '>' && adjacent:
			tokens = append(tokens, lexeme{kind: tokArrow, text: "->", off: tok.off, end: next.end})
			i++
		case tok.kind == '=' && next.kind == '=' && adjacent:
			tokens = append(tokens, lexeme{kind: tokEqEq, text: "==", off: tok.off, end: next.end})
			i++
		case tok.kind == ':' && next.kind == ':' && adjacent:
			tokens = append(tokens, lexeme{kind: tokPathSep, text: "::", off: tok.off, end: next.end})
			i++
		default:
			tokens = append(tokens, tok)
		}
	}
	return tokens, errs
}
