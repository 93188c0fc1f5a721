// Package parser builds the block tree from the lexer's token stream,
// consulting the content cache so byte-identical spans are resolved
// once and reused.
//
// Nesting is tracked with an explicit frame stack rather than language
// recursion, so depth is bounded by memory and an adversarially deep
// input cannot exhaust the call stack. Parsing is fail-fast: the first
// structural violation aborts with no partial tree, because a malformed
// subtree can neither be cached nor safely consumed downstream.
package parser

import (
	"context"
	"io"

	"github.com/jcomeauictx/blockparser/internal/block"
	"github.com/jcomeauictx/blockparser/internal/cache"
	"github.com/jcomeauictx/blockparser/internal/digest"
	"github.com/jcomeauictx/blockparser/internal/errs"
	"github.com/jcomeauictx/blockparser/internal/lexer"
	"github.com/jcomeauictx/blockparser/internal/token"
)

// frame is one still-open block during parsing. Its span end, and
// therefore its digest, is unknown until the matching close marker, so
// cache consultation can only happen at BlockClose.
type frame struct {
	kind     string
	start    int
	segments []block.Segment
	// directives tracks names attached so far for duplicate detection.
	directives map[string]bool
}

func (f *frame) attach(seg block.Segment) {
	f.segments = append(f.segments, seg)
}

// Parse consumes input and returns the finalized root block, whose span
// covers the entire buffer. cc may be nil to parse without memoization.
//
// On each BlockClose the raw span [start, end) is digested and the
// cache consulted: a hit discards the freshly built subtree and
// substitutes the cached one (transparent to ordering and structure); a
// miss inserts the new subtree. Cancellation is checked cooperatively
// at every block boundary; an abandoned parse never leaves the cache
// inconsistent because inserts are atomic and write-once.
func Parse(ctx context.Context, input []byte, cc *cache.ContentCache) (*block.Block, error) {
	lx := lexer.New(input)
	stack := []*frame{{kind: block.RootKind}}

	for {
		tok, err := lx.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		switch tok.Kind {
		case token.Literal:
			top.attach(block.Segment{
				Literal: string(input[tok.Span.Start:tok.Span.End]),
				Span:    tok.Span,
			})

		case token.Directive:
			if top.directives[tok.Name] {
				return nil, &errs.ParseError{
					Kind:   errs.DuplicateDirective,
					Offset: tok.Span.Start,
					Detail: "@" + tok.Name,
				}
			}
			if top.directives == nil {
				top.directives = make(map[string]bool)
			}
			top.directives[tok.Name] = true
			top.attach(block.Segment{
				Directive: &block.Directive{
					Name: tok.Name,
					Arg:  tok.Arg,
					// Span length beyond the bare name means the
					// argument parens were present, possibly empty.
					HasArg: tok.Span.Len() > 1+len(tok.Name),
					Span:   tok.Span,
				},
				Span: tok.Span,
			})

		case token.BlockOpen:
			stack = append(stack, &frame{kind: tok.Name, start: tok.Span.Start})

		case token.BlockClose:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if len(stack) == 1 {
				return nil, &errs.ParseError{
					Kind:   errs.UnbalancedNesting,
					Offset: tok.Span.Start,
					Detail: "stray </" + tok.Name + ">",
				}
			}
			if tok.Name != top.kind {
				// A close naming an outer open frame means the innermost
				// block was never closed; a close naming nothing open is
				// a stray close.
				if openFrame(stack, tok.Name) {
					return nil, &errs.ParseError{
						Kind:   errs.UnterminatedBlock,
						Offset: tok.Span.End,
						Detail: "<" + top.kind + "> never closed",
					}
				}
				return nil, &errs.ParseError{
					Kind:   errs.UnbalancedNesting,
					Offset: tok.Span.Start,
					Detail: "stray </" + tok.Name + ">",
				}
			}
			stack = stack[:len(stack)-1]
			child := finalize(top, input, tok.Span.End, cc)
			parent := stack[len(stack)-1]
			parent.attach(block.Segment{Block: child, Span: child.Span})
		}
	}

	if len(stack) > 1 {
		top := stack[len(stack)-1]
		return nil, &errs.ParseError{
			Kind:   errs.UnterminatedBlock,
			Offset: len(input),
			Detail: "<" + top.kind + "> never closed",
		}
	}
	return finalize(stack[0], input, len(input), cc), nil
}

// openFrame reports whether any open frame (the root excluded) has the
// given kind.
func openFrame(stack []*frame, kind string) bool {
	for _, f := range stack[1:] {
		if f.kind == kind {
			return true
		}
	}
	return false
}

// finalize seals an open frame whose close offset is now known: compute
// the digest over the raw span, consult the cache, and either substitute
// the cached subtree or insert the freshly built one. The root frame is
// finalized the same way at end of input, which memoizes whole
// documents.
func finalize(f *frame, input []byte, end int, cc *cache.ContentCache) *block.Block {
	span := token.Span{Start: f.start, End: end}
	sum := digest.Sum(input[span.Start:span.End])

	if cc != nil {
		if cached, ok := cc.Lookup(sum); ok {
			// Identical raw content parses to identical structure; the
			// in-progress subtree is dropped in favor of the shared one.
			return cached
		}
	}
	b := &block.Block{
		Digest:   sum,
		Kind:     f.kind,
		Span:     span,
		Segments: f.segments,
	}
	if cc != nil {
		cc.Insert(sum, b)
	}
	return b
}
