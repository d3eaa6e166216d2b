package config

import (
	"rbuild"
	"rbuild/internal/command"
	"rbuild/internal/graph"
)

// Parse reads the configuration grammar from src and builds a *graph.Graph
// directly, target by target, exactly as the original Rust parser builds
// its Graph while it scans (src/parser.rs in _examples/original_source):
// "deps" indices are the declaration-order identifiers of targets in the
// same file, and may name a target declared later (SPEC_FULL.md §9's
// "Predecessor resolution ordering"); they are validated by
// Graph.Finalize once the whole file has been read.
func Parse(src string) (*graph.Graph, error) {
	p := &parser{lex: NewLexer(src), g: graph.New()}
	if err := p.parseFile(); err != nil {
		return nil, err
	}
	return p.g, nil
}

type parser struct {
	lex     *Lexer
	g       *graph.Graph
	lookhd  *Token
	hasLook bool
}

func (p *parser) peek() (Token, error) {
	if p.hasLook {
		return *p.lookhd, nil
	}
	t, err := p.lex.Next()
	if err != nil {
		return Token{}, err
	}
	p.lookhd = &t
	p.hasLook = true
	return t, nil
}

func (p *parser) next() (Token, error) {
	t, err := p.peek()
	if err != nil {
		return Token{}, err
	}
	p.hasLook = false
	return t, nil
}

func (p *parser) parseFile() error {
	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		if t.Kind == EOF {
			break
		}
		if err := p.parseTarget(); err != nil {
			return err
		}
	}
	if err := p.g.Finalize(); err != nil {
		return rbuild.Errorf(rbuild.ConfigSyntax, "%v", err)
	}
	return nil
}

func (p *parser) parseTarget() error {
	kw, err := p.next()
	if err != nil {
		return err
	}
	if kw.Kind != KwPath {
		return rbuild.Errorf(rbuild.ConfigSyntax, "line %d: expected 'path', found %v", kw.Line, kw)
	}
	pathTok, err := p.next()
	if err != nil {
		return err
	}
	if pathTok.Kind != Ident && pathTok.Kind != Num {
		return rbuild.Errorf(rbuild.ConfigSyntax, "line %d: 'path' keyword does not specify a value", kw.Line)
	}
	path := tokenText(pathTok)

	var deps []int64
	var cmds, always [][]string

	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		if t.Kind == EOF || t.Kind == KwPath {
			break
		}
		switch t.Kind {
		case KwDeps:
			p.next()
			ds, err := p.parseDeps()
			if err != nil {
				return err
			}
			deps = append(deps, ds...)
		case KwRun:
			p.next()
			words, err := p.parseWords(t.Line)
			if err != nil {
				return err
			}
			cmds = append(cmds, words)
		case KwAlways:
			p.next()
			words, err := p.parseWords(t.Line)
			if err != nil {
				return err
			}
			always = append(always, words)
		default:
			return rbuild.Errorf(rbuild.ConfigSyntax, "line %d: expected 'deps', 'run', or 'always', found %v", t.Line, t)
		}
	}

	target := &graph.Target{Path: path}
	for _, words := range cmds {
		target.Cmds = append(target.Cmds, command.New(words[0], words[1:]...))
	}
	for _, words := range always {
		target.AlwaysCmds = append(target.AlwaysCmds, command.New(words[0], words[1:]...))
	}
	_, err = p.g.Add(target, deps)
	if err != nil {
		return rbuild.Errorf(rbuild.ConfigSyntax, "line %d: %v", kw.Line, err)
	}
	return nil
}

// parseDeps reads a run of numeric dependency indices. The indices are
// declaration-order target identifiers and need not already be declared:
// a target may name a predecessor that appears later in the same file
// (this is what lets two targets declare a cycle on each other). Dangling
// references, an index no target in the file ever claims, are caught
// once the whole file has been read, by Graph.Finalize.
func (p *parser) parseDeps() ([]int64, error) {
	var deps []int64
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind != Num {
			if len(deps) == 0 {
				return nil, rbuild.Errorf(rbuild.ConfigSyntax, "line %d: 'deps' keyword does not specify a value", t.Line)
			}
			return deps, nil
		}
		p.next()
		deps = append(deps, int64(t.Num))
	}
}

func (p *parser) parseWords(keywordLine int) ([]string, error) {
	var words []string
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind != Ident && t.Kind != Num {
			break
		}
		p.next()
		words = append(words, tokenText(t))
	}
	if len(words) == 0 {
		return nil, rbuild.Errorf(rbuild.ConfigSyntax, "line %d: keyword does not specify a value", keywordLine)
	}
	return words, nil
}

func tokenText(t Token) string {
	if t.Kind == Num {
		return uintToString(t.Num)
	}
	return t.Ident
}

func uintToString(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
