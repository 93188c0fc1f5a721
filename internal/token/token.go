// Package token defines the lexical tokens of the block source format and
// the byte-span/position types shared by the lexer, parser and diagnostics.
package token

import "fmt"

// Kind identifies the lexical class of a token.
type Kind int

const (
	// Literal is a maximal run of ordinary content bytes, escape
	// sequences included in raw form.
	Literal Kind = iota
	// BlockOpen is an opening marker `<name>`.
	BlockOpen
	// BlockClose is a closing marker `</name>`.
	BlockClose
	// Directive is an annotation `@name` or `@name(argument)`.
	Directive
)

// String returns the string representation of the token kind.
func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case BlockOpen:
		return "block-open"
	case BlockClose:
		return "block-close"
	case Directive:
		return "directive"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) into the original input
// buffer. Offsets are always absolute; tokens never copy content.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether other lies fully within s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Token is one lexical unit of the input. Tokens are immutable once
// produced by the lexer and live only for the duration of a single
// lex→parse pass.
type Token struct {
	Kind Kind
	Span Span
	// Name is the marker or directive name for BlockOpen, BlockClose
	// and Directive tokens; empty for Literal.
	Name string
	// Arg is the directive argument text, raw (escapes preserved);
	// empty when the directive has no parenthesized argument.
	Arg string
}

// String renders the token for debug output.
func (t Token) String() string {
	if t.Name != "" {
		return fmt.Sprintf("%s(%s)@[%d,%d)", t.Kind, t.Name, t.Span.Start, t.Span.End)
	}
	return fmt.Sprintf("%s@[%d,%d)", t.Kind, t.Span.Start, t.Span.End)
}

// Unescape returns raw with escape backslashes removed: `\x` becomes `x`
// for any byte x. The input is assumed to be well-formed (no trailing
// backslash); the lexer rejects unterminated escapes before content
// reaches consumers. Returns a copy only when an escape is present.
func Unescape(raw []byte) []byte {
	i := 0
	for i < len(raw) && raw[i] != '\\' {
		i++
	}
	if i == len(raw) {
		return raw
	}
	out := make([]byte, 0, len(raw)-1)
	out = append(out, raw[:i]...)
	for i < len(raw) {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
		}
		out = append(out, raw[i])
		i++
	}
	return out
}
