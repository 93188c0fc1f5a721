package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcomeauictx/blockparser/internal/block"
	"github.com/jcomeauictx/blockparser/internal/digest"
	"github.com/jcomeauictx/blockparser/internal/token"
)

// mkBlock builds a standalone block whose digest matches its
// reconstructed raw span, the invariant the parser maintains.
func mkBlock(kind, text string) *block.Block {
	raw := "<" + kind + ">" + text + "</" + kind + ">"
	b := &block.Block{
		Digest: digest.Sum([]byte(raw)),
		Kind:   kind,
		Span:   token.Span{Start: 0, End: len(raw)},
	}
	if text != "" {
		b.Segments = []block.Segment{{
			Literal: text,
			Span:    token.Span{Start: len(kind) + 2, End: len(kind) + 2 + len(text)},
		}}
	}
	return b
}

func TestLookupMissAndHit(t *testing.T) {
	cc := New(0, 0)
	b := mkBlock("a", "x")

	_, ok := cc.Lookup(b.Digest)
	assert.False(t, ok)

	assert.True(t, cc.Insert(b.Digest, b))
	got, ok := cc.Lookup(b.Digest)
	require.True(t, ok)
	assert.Same(t, b, got)

	stats := cc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestInsertIdempotent(t *testing.T) {
	cc := New(0, 0)
	first := mkBlock("a", "x")
	second := mkBlock("a", "x") // same content, distinct instance

	assert.True(t, cc.Insert(first.Digest, first))
	assert.False(t, cc.Insert(second.Digest, second), "second insert is a no-op")

	got, ok := cc.Lookup(first.Digest)
	require.True(t, ok)
	assert.Same(t, first, got, "the earlier entry wins")
	assert.Equal(t, 1, cc.Len())
}

func TestInsertNilIsRejected(t *testing.T) {
	cc := New(0, 0)
	assert.False(t, cc.Insert(digest.Sum([]byte("x")), nil))
	assert.Equal(t, 0, cc.Len())
}

func TestLRUEvictionByEntryCount(t *testing.T) {
	cc := New(3, 0)

	blocks := make([]*block.Block, 5)
	for i := range blocks {
		blocks[i] = mkBlock("k", fmt.Sprintf("value%d", i))
		cc.Insert(blocks[i].Digest, blocks[i])
	}

	// Only the three most recent remain.
	assert.Equal(t, 3, cc.Len())
	_, ok := cc.Lookup(blocks[0].Digest)
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = cc.Lookup(blocks[4].Digest)
	assert.True(t, ok)
	assert.Equal(t, int64(2), cc.Stats().Evictions)
}

func TestLRUAccessOrderUpdates(t *testing.T) {
	cc := New(3, 0)

	a := mkBlock("a", "1")
	b := mkBlock("b", "2")
	c := mkBlock("c", "3")
	d := mkBlock("d", "4")
	cc.Insert(a.Digest, a)
	cc.Insert(b.Digest, b)
	cc.Insert(c.Digest, c)

	// Touch a so b becomes least recently used.
	_, ok := cc.Lookup(a.Digest)
	require.True(t, ok)

	cc.Insert(d.Digest, d)

	_, ok = cc.Lookup(a.Digest)
	assert.True(t, ok, "recently used entry survives")
	_, ok = cc.Lookup(b.Digest)
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestEvictionByByteCeiling(t *testing.T) {
	// Each block "<k>vN</k>" spans 9 bytes; ceiling of 20 holds two.
	cc := New(0, 20)

	blocks := make([]*block.Block, 3)
	for i := range blocks {
		blocks[i] = mkBlock("k", fmt.Sprintf("v%d", i))
		cc.Insert(blocks[i].Digest, blocks[i])
	}

	assert.Equal(t, 2, cc.Len())
	assert.LessOrEqual(t, cc.Stats().Bytes, int64(20))
	_, ok := cc.Lookup(blocks[0].Digest)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	cc := New(0, 0)
	b := mkBlock("a", "x")
	cc.Insert(b.Digest, b)
	cc.Lookup(b.Digest)

	cc.Clear()

	assert.Equal(t, 0, cc.Len())
	stats := cc.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Bytes)
	_, ok := cc.Lookup(b.Digest)
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	cc := New(0, 0)
	b := mkBlock("a", "x")

	assert.False(t, cc.Contains(b.Digest))
	cc.Insert(b.Digest, b)
	assert.True(t, cc.Contains(b.Digest))
}

// Concurrent same-digest inserts must leave exactly one complete entry:
// the write-once rule means no reader can ever observe a torn subtree.
func TestConcurrentIdempotentInsert(t *testing.T) {
	cc := New(0, 0)
	key := digest.Sum([]byte("<a>contended</a>"))

	const goroutines = 32
	candidates := make([]*block.Block, goroutines)
	for i := range candidates {
		candidates[i] = mkBlock("a", "contended")
	}

	var created int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if cc.Insert(key, candidates[i]) {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), created, "exactly one insert creates the entry")
	assert.Equal(t, 1, cc.Len())

	got, ok := cc.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "contended", got.Text())
}

func TestConcurrentMixedAccess(t *testing.T) {
	cc := New(128, 0)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b := mkBlock("k", fmt.Sprintf("w%d-%d", w, i%50))
				cc.Insert(b.Digest, b)
				cc.Lookup(b.Digest)
			}
		}(w)
	}
	wg.Wait()

	stats := cc.Stats()
	assert.LessOrEqual(t, stats.Entries, 128)
	assert.Positive(t, stats.Hits)
}
