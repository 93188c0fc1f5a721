// Package lexer scans raw block-source bytes into a flat token stream.
//
// The lexer recognizes three structural markers — block-open `<name>`,
// block-close `</name>` and directive `@name` / `@name(argument)` — and
// coalesces everything between them into maximal literal runs. A
// backslash escape suppresses marker recognition of the following byte,
// allowing literal marker characters inside text. The lexer is a pure
// function of its input: it retains no state between instances, never
// copies content (token spans index the original buffer), and two passes
// over the same bytes always produce the same stream.
//
// An angle bracket that does not begin a well-formed marker is ordinary
// content; only a dangling escape and a malformed directive are lexical
// errors. Structural questions (balance, nesting) are the parser's job.
package lexer

import (
	"io"

	"github.com/jcomeauictx/blockparser/internal/errs"
	"github.com/jcomeauictx/blockparser/internal/token"
)

// Lexer produces tokens over a single input buffer in left-to-right
// order. The zero value is not usable; construct with New.
type Lexer struct {
	input []byte
	pos   int
}

// New returns a lexer positioned at the start of input.
func New(input []byte) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the whole input and returns its token stream, stopping
// at the first lexical error.
func Tokenize(input []byte) ([]token.Token, error) {
	lx := New(input)
	var toks []token.Token
	for {
		tok, err := lx.Next()
		if err == io.EOF {
			return toks, nil
		}
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

// Next returns the next token, io.EOF at end of input, or a *errs.LexError
// on malformed syntax. Byte offsets in the returned token are absolute
// into the original buffer.
func (lx *Lexer) Next() (token.Token, error) {
	if lx.pos >= len(lx.input) {
		return token.Token{}, io.EOF
	}

	switch lx.input[lx.pos] {
	case '<':
		if tok, ok := lx.matchMarker(); ok {
			return tok, nil
		}
	case '@':
		return lx.scanDirective()
	}
	return lx.scanLiteral()
}

// Offset returns the current scan position, used by tests.
func (lx *Lexer) Offset() int { return lx.pos }

// matchMarker attempts to read `<name>` or `</name>` at the current
// position. A failed match consumes nothing; the `<` falls through to
// the surrounding literal run.
func (lx *Lexer) matchMarker() (token.Token, bool) {
	start := lx.pos
	i := start + 1
	kind := token.BlockOpen
	if i < len(lx.input) && lx.input[i] == '/' {
		kind = token.BlockClose
		i++
	}
	nameStart := i
	if i >= len(lx.input) || !isNameStart(lx.input[i]) {
		return token.Token{}, false
	}
	for i < len(lx.input) && isNameByte(lx.input[i]) {
		i++
	}
	if i >= len(lx.input) || lx.input[i] != '>' {
		return token.Token{}, false
	}
	name := string(lx.input[nameStart:i])
	lx.pos = i + 1
	return token.Token{
		Kind: kind,
		Span: token.Span{Start: start, End: lx.pos},
		Name: name,
	}, true
}

// scanDirective reads `@name` or `@name(argument)` at the current
// position. The argument runs to the first unescaped `)` and is kept
// raw (escape backslashes preserved).
func (lx *Lexer) scanDirective() (token.Token, error) {
	start := lx.pos
	i := start + 1
	if i >= len(lx.input) || !isNameStart(lx.input[i]) {
		return token.Token{}, &errs.LexError{Kind: errs.InvalidDirectiveSyntax, Offset: start}
	}
	nameStart := i
	for i < len(lx.input) && isNameByte(lx.input[i]) {
		i++
	}
	name := string(lx.input[nameStart:i])

	var arg string
	if i < len(lx.input) && lx.input[i] == '(' {
		argStart := i + 1
		j := argStart
		for {
			if j >= len(lx.input) {
				return token.Token{}, &errs.LexError{Kind: errs.InvalidDirectiveSyntax, Offset: start}
			}
			if lx.input[j] == '\\' {
				if j+1 >= len(lx.input) {
					return token.Token{}, &errs.LexError{Kind: errs.UnterminatedEscape, Offset: j}
				}
				j += 2
				continue
			}
			if lx.input[j] == ')' {
				break
			}
			j++
		}
		arg = string(lx.input[argStart:j])
		i = j + 1
	}

	lx.pos = i
	return token.Token{
		Kind: token.Directive,
		Span: token.Span{Start: start, End: i},
		Name: name,
		Arg:  arg,
	}, nil
}

// scanLiteral reads a maximal run of content bytes, stopping before the
// next byte that begins a marker or directive. Escape sequences are
// consumed whole so the escaped byte never terminates the run.
func (lx *Lexer) scanLiteral() (token.Token, error) {
	start := lx.pos
	i := start
	for i < len(lx.input) {
		switch lx.input[i] {
		case '\\':
			if i+1 >= len(lx.input) {
				return token.Token{}, &errs.LexError{Kind: errs.UnterminatedEscape, Offset: i}
			}
			i += 2
		case '@':
			return lx.emitLiteral(start, i)
		case '<':
			if lx.startsMarker(i) {
				return lx.emitLiteral(start, i)
			}
			i++
		default:
			i++
		}
	}
	return lx.emitLiteral(start, i)
}

func (lx *Lexer) emitLiteral(start, end int) (token.Token, error) {
	lx.pos = end
	return token.Token{
		Kind: token.Literal,
		Span: token.Span{Start: start, End: end},
	}, nil
}

// startsMarker reports whether a well-formed open or close marker begins
// at offset i. Pure lookahead; consumes nothing.
func (lx *Lexer) startsMarker(i int) bool {
	j := i + 1
	if j < len(lx.input) && lx.input[j] == '/' {
		j++
	}
	if j >= len(lx.input) || !isNameStart(lx.input[j]) {
		return false
	}
	for j < len(lx.input) && isNameByte(lx.input[j]) {
		j++
	}
	return j < len(lx.input) && lx.input[j] == '>'
}

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameByte(b byte) bool {
	return isNameStart(b) || b == '-' || (b >= '0' && b <= '9')
}
