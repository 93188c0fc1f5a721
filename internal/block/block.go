// Package block defines the parsed block tree: the resolved
// representation handed to downstream rendering or execution stages,
// and the unit of content-addressed caching.
package block

import (
	"github.com/jcomeauictx/blockparser/internal/digest"
	"github.com/jcomeauictx/blockparser/internal/token"
)

// RootKind is the kind of the synthetic root block covering the whole
// input.
const RootKind = "root"

// Directive is one `@name` / `@name(argument)` annotation attached to a
// block. HasArg distinguishes `@name()` from `@name` so the raw span can
// be reconstructed byte-exactly.
type Directive struct {
	Name   string     `json:"name"`
	Arg    string     `json:"arg,omitempty"`
	HasArg bool       `json:"has_arg,omitempty"`
	Span   token.Span `json:"span"`
}

// Segment is one interleaved piece of a block's interior, in document
// order: exactly one of Literal, Directive or Block is set. Literal text
// is kept raw (escape backslashes preserved) so that concatenating
// segments reproduces the original bytes.
type Segment struct {
	Literal   string     `json:"literal,omitempty"`
	Directive *Directive `json:"directive,omitempty"`
	Block     *Block     `json:"block,omitempty"`
	Span      token.Span `json:"span"`
}

// Block is one parsed node of the source format. Its identity is the
// digest of its raw byte span, computed over the unparsed content rather
// than the parsed children, so byte-identical spans always share a
// digest regardless of how they were resolved.
//
// Blocks inserted into the content cache are shared between documents
// and are immutable from that point on; a consumer that needs to
// annotate a cached block must copy it first.
type Block struct {
	Digest   digest.Digest `json:"digest"`
	Kind     string        `json:"kind"`
	Span     token.Span    `json:"span"`
	Segments []Segment     `json:"segments,omitempty"`
}

// IsRoot reports whether b is the synthetic root block.
func (b *Block) IsRoot() bool { return b.Kind == RootKind }

// Children returns the child blocks in document order.
func (b *Block) Children() []*Block {
	var kids []*Block
	for i := range b.Segments {
		if b.Segments[i].Block != nil {
			kids = append(kids, b.Segments[i].Block)
		}
	}
	return kids
}

// Directives returns the directives attached to b in document order.
func (b *Block) Directives() []*Directive {
	var dirs []*Directive
	for i := range b.Segments {
		if b.Segments[i].Directive != nil {
			dirs = append(dirs, b.Segments[i].Directive)
		}
	}
	return dirs
}

// Directive returns the directive with the given name, if attached.
func (b *Block) Directive(name string) (*Directive, bool) {
	for i := range b.Segments {
		if d := b.Segments[i].Directive; d != nil && d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Text returns the block's own literal text (children excluded),
// concatenated in document order with escape sequences resolved.
func (b *Block) Text() string {
	var raw []byte
	for i := range b.Segments {
		seg := &b.Segments[i]
		if seg.Directive == nil && seg.Block == nil {
			raw = append(raw, seg.Literal...)
		}
	}
	return string(token.Unescape(raw))
}

// Count returns the number of blocks in the subtree rooted at b,
// including b itself.
func (b *Block) Count() int {
	n := 1
	for i := range b.Segments {
		if b.Segments[i].Block != nil {
			n += b.Segments[i].Block.Count()
		}
	}
	return n
}

// Reconstruct rebuilds the block's raw byte span from its parsed form.
// For every well-formed input, the root block reconstructs to exactly
// the original buffer; the persisted cache relies on this to re-validate
// stored digests (digest.Sum(b.Reconstruct()) == b.Digest).
func (b *Block) Reconstruct() []byte {
	out := make([]byte, 0, b.Span.Len())
	return b.appendRaw(out)
}

func (b *Block) appendRaw(out []byte) []byte {
	if !b.IsRoot() {
		out = append(out, '<')
		out = append(out, b.Kind...)
		out = append(out, '>')
	}
	for i := range b.Segments {
		seg := &b.Segments[i]
		switch {
		case seg.Block != nil:
			out = seg.Block.appendRaw(out)
		case seg.Directive != nil:
			out = append(out, '@')
			out = append(out, seg.Directive.Name...)
			if seg.Directive.HasArg {
				out = append(out, '(')
				out = append(out, seg.Directive.Arg...)
				out = append(out, ')')
			}
		default:
			out = append(out, seg.Literal...)
		}
	}
	if !b.IsRoot() {
		out = append(out, '<', '/')
		out = append(out, b.Kind...)
		out = append(out, '>')
	}
	return out
}

// StructurallyEqual reports whether two blocks have the same kind,
// directives, literal text and recursively equal children. Byte offsets
// and pointer identity are deliberately ignored: a cache-substituted
// block carries the spans of the occurrence that was parsed first, yet
// is structurally equal to what a fresh parse would have built.
func StructurallyEqual(a, b *Block) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || len(a.Segments) != len(b.Segments) {
		return false
	}
	for i := range a.Segments {
		if !segmentsEqual(&a.Segments[i], &b.Segments[i]) {
			return false
		}
	}
	return true
}

func segmentsEqual(a, b *Segment) bool {
	switch {
	case a.Block != nil || b.Block != nil:
		return StructurallyEqual(a.Block, b.Block)
	case a.Directive != nil || b.Directive != nil:
		if a.Directive == nil || b.Directive == nil {
			return false
		}
		return a.Directive.Name == b.Directive.Name &&
			a.Directive.Arg == b.Directive.Arg &&
			a.Directive.HasArg == b.Directive.HasArg
	default:
		return a.Literal == b.Literal
	}
}
