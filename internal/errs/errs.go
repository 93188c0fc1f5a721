// Package errs defines the structured error taxonomy for the block
// parsing pipeline: lexical errors, structural parse errors, and cache
// storage errors.
//
// Lex and parse errors are fatal to the document they occur in and carry
// the first offending byte offset plus its derived line/column; cache
// errors are a performance concern only and are absorbed (logged, never
// propagated) by the cache layer.
package errs

import (
	"errors"
	"fmt"

	"github.com/jcomeauictx/blockparser/internal/token"
)

// LexKind classifies low-level lexical errors.
type LexKind int

const (
	// UnterminatedEscape: the input ends on a bare escape backslash.
	UnterminatedEscape LexKind = iota
	// InvalidDirectiveSyntax: a directive marker is not followed by a
	// well-formed name, or its argument is unterminated.
	InvalidDirectiveSyntax
)

// String returns the string representation of the lex error kind.
func (k LexKind) String() string {
	switch k {
	case UnterminatedEscape:
		return "unterminated escape"
	case InvalidDirectiveSyntax:
		return "invalid directive syntax"
	default:
		return "unknown"
	}
}

// LexError reports malformed low-level syntax at a byte offset.
type LexError struct {
	Kind   LexKind
	Offset int
	Pos    token.Position
	File   string
}

// Error implements the error interface.
func (e *LexError) Error() string {
	return diagnostic(e.File, e.Pos, e.Kind.String(), e.Offset)
}

// Is matches lex errors by kind.
func (e *LexError) Is(target error) bool {
	var t *LexError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// ParseKind classifies structural violations of block nesting.
type ParseKind int

const (
	// UnbalancedNesting: a block-close with no matching open frame.
	UnbalancedNesting ParseKind = iota
	// UnterminatedBlock: end of input reached with open frames remaining.
	UnterminatedBlock
	// DuplicateDirective: two directives with the same name attached to
	// one block.
	DuplicateDirective
)

// String returns the string representation of the parse error kind.
func (k ParseKind) String() string {
	switch k {
	case UnbalancedNesting:
		return "unbalanced nesting"
	case UnterminatedBlock:
		return "unterminated block"
	case DuplicateDirective:
		return "duplicate directive"
	default:
		return "unknown"
	}
}

// ParseError reports a structural violation at a byte offset. Parsing
// aborts at the first structural error; no partial tree is exposed.
type ParseError struct {
	Kind   ParseKind
	Offset int
	Pos    token.Position
	File   string
	// Detail names the marker or directive involved, when known.
	Detail string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return diagnostic(e.File, e.Pos, msg, e.Offset)
}

// Is matches parse errors by kind.
func (e *ParseError) Is(target error) bool {
	var t *ParseError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// CacheError wraps a storage-layer failure while persisting or loading
// the on-disk cache. It never surfaces as a document failure; the cache
// layer recovers by falling back to a full re-parse.
type CacheError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *CacheError) Unwrap() error { return e.Err }

// diagnostic renders the single-error report surfaced to callers:
// file:line:col: message (offset n).
func diagnostic(file string, pos token.Position, msg string, offset int) string {
	loc := pos.String()
	if file != "" {
		loc = file + ":" + loc
	}
	return fmt.Sprintf("%s: %s (offset %d)", loc, msg, offset)
}
