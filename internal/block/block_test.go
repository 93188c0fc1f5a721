package block

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcomeauictx/blockparser/internal/digest"
	"github.com/jcomeauictx/blockparser/internal/token"
)

// buildFixture assembles a small tree by hand:
//
//	<a>@mode(strict)hi<b>x</b></a>
func buildFixture() *Block {
	input := `<a>@mode(strict)hi<b>x</b></a>`
	inner := &Block{
		Digest: digest.Sum([]byte("<b>x</b>")),
		Kind:   "b",
		Span:   token.Span{Start: 18, End: 26},
		Segments: []Segment{
			{Literal: "x", Span: token.Span{Start: 21, End: 22}},
		},
	}
	outer := &Block{
		Digest: digest.Sum([]byte(input)),
		Kind:   "a",
		Span:   token.Span{Start: 0, End: 30},
		Segments: []Segment{
			{Directive: &Directive{Name: "mode", Arg: "strict", HasArg: true,
				Span: token.Span{Start: 3, End: 16}}, Span: token.Span{Start: 3, End: 16}},
			{Literal: "hi", Span: token.Span{Start: 16, End: 18}},
			{Block: inner, Span: inner.Span},
		},
	}
	return outer
}

func TestChildrenAndDirectives(t *testing.T) {
	b := buildFixture()

	children := b.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "b", children[0].Kind)

	dirs := b.Directives()
	require.Len(t, dirs, 1)
	assert.Equal(t, "mode", dirs[0].Name)
	assert.Equal(t, "strict", dirs[0].Arg)

	d, ok := b.Directive("mode")
	require.True(t, ok)
	assert.Equal(t, "strict", d.Arg)

	_, ok = b.Directive("absent")
	assert.False(t, ok)
}

func TestText(t *testing.T) {
	b := &Block{
		Kind: "a",
		Segments: []Segment{
			{Literal: `say \<hi\> `},
			{Block: &Block{Kind: "b"}},
			{Literal: "bye"},
		},
	}
	assert.Equal(t, "say <hi> bye", b.Text())
}

func TestCount(t *testing.T) {
	b := buildFixture()
	assert.Equal(t, 2, b.Count())

	root := &Block{Kind: RootKind, Segments: []Segment{{Block: b}}}
	assert.Equal(t, 3, root.Count())
}

func TestReconstruct(t *testing.T) {
	b := buildFixture()
	assert.Equal(t, `<a>@mode(strict)hi<b>x</b></a>`, string(b.Reconstruct()))
}

func TestReconstructDistinguishesEmptyArg(t *testing.T) {
	bare := &Block{Kind: "a", Segments: []Segment{
		{Directive: &Directive{Name: "d"}},
	}}
	emptyArg := &Block{Kind: "a", Segments: []Segment{
		{Directive: &Directive{Name: "d", HasArg: true}},
	}}

	assert.Equal(t, "<a>@d</a>", string(bare.Reconstruct()))
	assert.Equal(t, "<a>@d()</a>", string(emptyArg.Reconstruct()))
}

func TestStructurallyEqual(t *testing.T) {
	a := buildFixture()
	b := buildFixture()
	assert.True(t, StructurallyEqual(a, b))

	// Offsets differ, structure does not.
	shifted := buildFixture()
	shifted.Span = token.Span{Start: 100, End: 130}
	assert.True(t, StructurallyEqual(a, shifted))

	differentKind := buildFixture()
	differentKind.Kind = "z"
	assert.False(t, StructurallyEqual(a, differentKind))

	differentText := buildFixture()
	differentText.Segments[1].Literal = "ho"
	assert.False(t, StructurallyEqual(a, differentText))

	differentArg := buildFixture()
	differentArg.Segments[0].Directive.Arg = "loose"
	assert.False(t, StructurallyEqual(a, differentArg))

	assert.True(t, StructurallyEqual(nil, nil))
	assert.False(t, StructurallyEqual(a, nil))
}

func TestJSONRoundTrip(t *testing.T) {
	b := buildFixture()

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), b.Digest.String(), "digest should serialize as hex")

	var back Block
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, StructurallyEqual(b, &back))
	assert.Equal(t, b.Digest, back.Digest)
	assert.Equal(t, string(b.Reconstruct()), string(back.Reconstruct()))
}
