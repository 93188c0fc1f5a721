package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcomeauictx/blockparser/internal/errs"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blkc")

	cc := New(0, 0)
	a := mkBlock("a", "alpha")
	b := mkBlock("b", "beta")
	cc.Insert(a.Digest, a)
	cc.Insert(b.Digest, b)

	require.NoError(t, cc.SaveFile(path))

	reloaded := New(0, 0)
	res, err := reloaded.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Zero(t, res.Skipped)

	got, ok := reloaded.Lookup(a.Digest)
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Text())
	assert.Equal(t, a.Digest, got.Digest)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cc := New(0, 0)
	res, err := cc.LoadFile(filepath.Join(t.TempDir(), "absent.blkc"))
	require.NoError(t, err)
	assert.Zero(t, res.Loaded)
	assert.Equal(t, 0, cc.Len())
}

func TestLoadRejectsTamperedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blkc")

	cc := New(0, 0)
	a := mkBlock("a", "alpha")
	b := mkBlock("b", "beta")
	cc.Insert(a.Digest, a)
	cc.Insert(b.Digest, b)
	require.NoError(t, cc.SaveFile(path))

	// Flip the literal text of one record on disk; its stored digest no
	// longer matches the reconstituted span.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "alpha", "ALPHA", 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	reloaded := New(0, 0)
	res, err := reloaded.LoadFile(path)
	require.NoError(t, err, "tampering is absorbed, not fatal")
	assert.Equal(t, 1, res.Loaded)
	assert.Equal(t, 1, res.Skipped)

	_, ok := reloaded.Lookup(a.Digest)
	assert.False(t, ok, "tampered record must not be trusted")
	_, ok = reloaded.Lookup(b.Digest)
	assert.True(t, ok)
}

func TestLoadRejectsCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blkc")
	content := header + "\n{not json}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cc := New(0, 0)
	res, err := cc.LoadFile(path)
	require.NoError(t, err)
	assert.Zero(t, res.Loaded)
	assert.Equal(t, 1, res.Skipped)
}

func TestLoadRejectsUnknownHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blkc")
	require.NoError(t, os.WriteFile(path, []byte("something else\n"), 0o644))

	cc := New(0, 0)
	_, err := cc.LoadFile(path)
	require.Error(t, err)

	var cacheErr *errs.CacheError
	assert.ErrorAs(t, err, &cacheErr)
}

func TestSaveFilePreservesRecency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blkc")

	cc := New(0, 0)
	old := mkBlock("a", "old")
	fresh := mkBlock("b", "fresh")
	cc.Insert(old.Digest, old)
	cc.Insert(fresh.Digest, fresh)
	require.NoError(t, cc.SaveFile(path))

	// Reload into a cache that only fits one entry: the load replays
	// records LRU-first, so the most recently used one must survive.
	small := New(1, 0)
	res, err := small.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)

	assert.True(t, small.Contains(fresh.Digest))
	assert.False(t, small.Contains(old.Digest))
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blkc")

	cc := New(0, 0)
	a := mkBlock("a", "alpha")
	cc.Insert(a.Digest, a)
	require.NoError(t, cc.SaveFile(path))

	res, err := VerifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loaded)
	assert.Zero(t, res.Skipped)

	_, err = VerifyFile(filepath.Join(t.TempDir(), "absent.blkc"))
	assert.Error(t, err, "verify on a missing file is an error, unlike load")
}
