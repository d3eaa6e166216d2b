// Package config implements the bundled configuration loader described
// in SPEC_FULL.md §4.6: a whitespace-separated token grammar with
// '#'-to-end-of-token comments, single/double-quoted identifiers that
// preserve internal whitespace, and '\' as an escape character that
// suppresses word-breaking on the character it precedes.
//
// The lexer's read-until-predicate structure is ported from the
// original Rust implementation's Lexer (src/lexer.rs in
// _examples/original_source): a single read_until helper drives both
// bare-word scanning (stop at whitespace) and quoted-string scanning
// (stop at the matching quote), with an escape check that prevents the
// stop predicate from firing on an escaped character. As in the
// original, the escape character itself is retained in the token text
// rather than stripped, see DESIGN.md for that choice.
package config

import (
	"rbuild"
	"unicode"
)

const escape = '\\'

// Lexer tokenizes a configuration file's contents.
type Lexer struct {
	input []rune
	pos   int
	line  int
}

// NewLexer returns a Lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{input: []rune(src), line: 1}
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	return l.input[l.pos], true
}

func (l *Lexer) read() (rune, bool) {
	r, ok := l.peek()
	if !ok {
		return 0, false
	}
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r, true
}

func (l *Lexer) skipWhitespace() {
	for {
		r, ok := l.peek()
		if !ok || !unicode.IsSpace(r) {
			return
		}
		l.read()
	}
}

// readUntil consumes runes until stop(r) is true for an r not immediately
// preceded by the escape character, or input is exhausted. The
// terminating rune is consumed but not included in the returned text.
// ok is false if input ran out before stop fired (used to detect
// unterminated quoted strings).
func (l *Lexer) readUntil(stop func(rune) bool) (text string, ok bool) {
	var b []rune
	prev := rune(0)
	for {
		r, present := l.read()
		if !present {
			return string(b), false
		}
		if prev != escape && stop(r) {
			return string(b), true
		}
		b = append(b, r)
		prev = r
	}
}

// Next returns the next token, skipping comments. It returns an error
// only for an unterminated quoted string; physical end of input yields a
// Token{Kind: EOF}.
func (l *Lexer) Next() (Token, error) {
	for {
		l.skipWhitespace()
		r, ok := l.peek()
		if !ok {
			return Token{Kind: EOF, Line: l.line}, nil
		}
		line := l.line

		if r == '\'' || r == '"' {
			l.read() // consume opening quote
			text, terminated := l.readUntil(func(c rune) bool { return c == r })
			if !terminated {
				return Token{}, rbuild.Errorf(rbuild.ConfigSyntax, "line %d: unterminated quoted string", line)
			}
			return Token{Kind: Ident, Ident: text, Line: line}, nil
		}

		if r == '#' {
			l.readUntil(unicode.IsSpace)
			continue // comments are never emitted as tokens
		}

		word, _ := l.readUntil(unicode.IsSpace)
		tok := lookup(word)
		tok.Line = line
		return tok, nil
	}
}
