package cache

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcomeauictx/blockparser/internal/block"
	"github.com/jcomeauictx/blockparser/internal/digest"
	"github.com/jcomeauictx/blockparser/internal/errs"
)

// header identifies the persisted cache format. Bump the version on any
// record layout change; a mismatched header discards the whole file.
const header = "blockparser-cache v1"

// record is one persisted (digest, subtree) pair, one JSON object per
// line after the header.
type record struct {
	Digest digest.Digest `json:"digest"`
	Block  *block.Block  `json:"block"`
}

// LoadResult reports what a LoadFile call accepted and rejected.
type LoadResult struct {
	Loaded  int
	Skipped int
}

// SaveFile persists the cache to path, least recently used entries
// first so that reloading reproduces the recency order. The write goes
// through a temp file and rename so a crash never leaves a truncated
// cache behind. Failures are returned as *errs.CacheError; callers log
// and move on, since the persisted cache is purely an optimization.
func (c *ContentCache) SaveFile(path string) error {
	c.mutex.RLock()
	records := make([]record, 0, len(c.entries))
	for e := c.tail.prev; e != c.head; e = e.prev {
		records = append(records, record{Digest: e.key, Block: e.block})
	}
	c.mutex.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".blockparser-cache-*")
	if err != nil {
		return &errs.CacheError{Op: "save", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	fmt.Fprintln(w, header)
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			tmp.Close()
			return &errs.CacheError{Op: "save", Path: path, Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return &errs.CacheError{Op: "save", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &errs.CacheError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &errs.CacheError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// LoadFile reads a persisted cache from path and inserts every record
// that passes validation. A record is trusted only if its stored digest
// matches a freshly computed digest of the subtree's reconstituted raw
// span; anything else — corrupt JSON, digest mismatch, tampering — is
// skipped and counted, never fatal. A missing file is an empty load.
func (c *ContentCache) LoadFile(path string) (LoadResult, error) {
	var res LoadResult

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, &errs.CacheError{Op: "load", Path: path, Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
	if !sc.Scan() || sc.Text() != header {
		return res, &errs.CacheError{Op: "load", Path: path,
			Err: fmt.Errorf("unrecognized cache header")}
	}

	for sc.Scan() {
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			res.Skipped++
			continue
		}
		if !c.validate(&rec) {
			res.Skipped++
			continue
		}
		c.Insert(rec.Digest, rec.Block)
		res.Loaded++
	}
	if err := sc.Err(); err != nil {
		return res, &errs.CacheError{Op: "load", Path: path, Err: err}
	}
	return res, nil
}

// validate re-derives the digest of a loaded record from its
// reconstituted raw span and checks it against both the record key and
// the block's own identity.
func (c *ContentCache) validate(rec *record) bool {
	if rec.Block == nil || rec.Digest.IsZero() {
		return false
	}
	sum := digest.Sum(rec.Block.Reconstruct())
	return sum == rec.Digest && sum == rec.Block.Digest
}

// VerifyFile checks every record in a persisted cache without loading
// it, returning how many validated and how many did not.
func VerifyFile(path string) (LoadResult, error) {
	scratch := New(0, 0)
	return scratch.verifyOnly(path)
}

func (c *ContentCache) verifyOnly(path string) (LoadResult, error) {
	var res LoadResult

	f, err := os.Open(path)
	if err != nil {
		return res, &errs.CacheError{Op: "verify", Path: path, Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
	if !sc.Scan() || sc.Text() != header {
		return res, &errs.CacheError{Op: "verify", Path: path,
			Err: fmt.Errorf("unrecognized cache header")}
	}
	for sc.Scan() {
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil || !c.validate(&rec) {
			res.Skipped++
			continue
		}
		res.Loaded++
	}
	if err := sc.Err(); err != nil {
		return res, &errs.CacheError{Op: "verify", Path: path, Err: err}
	}
	return res, nil
}
