// Package cache provides the digest-keyed content cache of parsed block
// subtrees, with LRU eviction under entry-count and byte-size ceilings
// and optional persistence across process runs.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/jcomeauictx/blockparser/internal/block"
	"github.com/jcomeauictx/blockparser/internal/digest"
)

// Default capacity ceilings. Eviction is a performance knob, never a
// correctness one: a miss only costs a re-parse.
const (
	DefaultMaxEntries = 4096
	DefaultMaxBytes   = 64 * 1024 * 1024
)

// ContentCache maps a block's content digest to its previously parsed
// subtree. Entries are write-once: a subtree is never mutated after
// insertion, which is what lets concurrent lookups share entries with
// locking only on the index. One cache instance is shared by all
// documents resolved in a process; it is always passed explicitly, never
// ambient.
type ContentCache struct {
	entries      map[digest.Digest]*entry
	mutex        sync.RWMutex
	maxEntries   int
	maxBytes     int64
	currentBytes int64

	// LRU recency list with sentinel head and tail.
	head *entry
	tail *entry

	// Statistics (atomic so Stats never needs the write lock).
	hits      int64
	misses    int64
	inserts   int64
	evictions int64
}

// entry is one cached subtree plus its recency-list links. The size is
// the raw span length of the cached block, fixed at insert.
type entry struct {
	key   digest.Digest
	block *block.Block
	size  int64
	prev  *entry
	next  *entry
}

// New creates a content cache with the given ceilings. Non-positive
// values select the defaults.
func New(maxEntries int, maxBytes int64) *ContentCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	c := &ContentCache{
		entries:    make(map[digest.Digest]*entry),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		head:       &entry{},
		tail:       &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Lookup returns the cached subtree for key, marking it most recently
// used. The returned block is shared and must not be mutated.
func (c *ContentCache) Lookup(key digest.Digest) (*block.Block, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.block, true
}

// Insert stores b under key and reports whether a new entry was created.
// Insert is idempotent: if the key is already present the earlier entry
// wins and the call is a no-op — by construction the content is
// identical, so concurrent same-key inserts can race harmlessly and
// exactly one complete subtree remains retrievable.
func (c *ContentCache) Insert(key digest.Digest, b *block.Block) bool {
	if b == nil {
		return false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[key]; ok {
		c.moveToFront(e)
		return false
	}

	size := int64(b.Span.Len())
	c.evictIfNeeded(size)

	e := &entry{key: key, block: b, size: size}
	c.entries[key] = e
	c.currentBytes += size
	c.addToFront(e)
	atomic.AddInt64(&c.inserts, 1)
	return true
}

// Contains reports whether key is present without touching recency.
func (c *ContentCache) Contains(key digest.Digest) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Clear drops all entries and resets statistics.
func (c *ContentCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[digest.Digest]*entry)
	c.currentBytes = 0
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.inserts, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// evictIfNeeded removes least recently used entries until an insert of
// incoming bytes fits both ceilings. Caller holds the write lock.
func (c *ContentCache) evictIfNeeded(incoming int64) {
	for (len(c.entries) >= c.maxEntries || c.currentBytes+incoming > c.maxBytes) &&
		c.tail.prev != c.head {
		lru := c.tail.prev
		c.removeFromList(lru)
		delete(c.entries, lru.key)
		c.currentBytes -= lru.size
		atomic.AddInt64(&c.evictions, 1)
	}
}

// Recency list operations; caller holds the write lock.

func (c *ContentCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *ContentCache) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *ContentCache) moveToFront(e *entry) {
	c.removeFromList(e)
	c.addToFront(e)
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Entries   int     `json:"entries" yaml:"entries"`
	Bytes     int64   `json:"bytes" yaml:"bytes"`
	MaxBytes  int64   `json:"max_bytes" yaml:"max_bytes"`
	Hits      int64   `json:"hits" yaml:"hits"`
	Misses    int64   `json:"misses" yaml:"misses"`
	Inserts   int64   `json:"inserts" yaml:"inserts"`
	Evictions int64   `json:"evictions" yaml:"evictions"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
}

// Stats returns current cache statistics.
func (c *ContentCache) Stats() Stats {
	c.mutex.RLock()
	entries := len(c.entries)
	bytes := c.currentBytes
	maxBytes := c.maxBytes
	c.mutex.RUnlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	s := Stats{
		Entries:   entries,
		Bytes:     bytes,
		MaxBytes:  maxBytes,
		Hits:      hits,
		Misses:    misses,
		Inserts:   atomic.LoadInt64(&c.inserts),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
