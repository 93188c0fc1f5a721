// Package registry tracks resolved documents and broadcasts change
// events to watch-mode consumers.
package registry

import (
	"sync"
	"time"

	"github.com/jcomeauictx/blockparser/internal/block"
	"github.com/jcomeauictx/blockparser/internal/digest"
)

// DocumentInfo holds metadata about one resolved document.
type DocumentInfo struct {
	Path       string
	Root       *block.Block
	Digest     digest.Digest
	Blocks     int
	ResolvedAt time.Time
	Duration   time.Duration
}

// EventType represents the type of document event.
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// DocumentEvent represents a change in the document registry.
type DocumentEvent struct {
	Type      EventType
	Document  *DocumentInfo
	Timestamp time.Time
}

// DocumentRegistry manages all resolved documents, keyed by path.
type DocumentRegistry struct {
	documents map[string]*DocumentInfo
	mutex     sync.RWMutex
	watchers  []chan DocumentEvent
}

// NewDocumentRegistry creates an empty registry.
func NewDocumentRegistry() *DocumentRegistry {
	return &DocumentRegistry{
		documents: make(map[string]*DocumentInfo),
	}
}

// Register adds or updates a document and notifies watchers.
func (r *DocumentRegistry) Register(doc *DocumentInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.documents[doc.Path]; exists {
		eventType = EventTypeUpdated
	}
	r.documents[doc.Path] = doc

	r.notify(DocumentEvent{Type: eventType, Document: doc, Timestamp: time.Now()})
}

// Get retrieves a document by path.
func (r *DocumentRegistry) Get(path string) (*DocumentInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	doc, exists := r.documents[path]
	return doc, exists
}

// GetAll returns a copy of the registry's document map.
func (r *DocumentRegistry) GetAll() map[string]*DocumentInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string]*DocumentInfo, len(r.documents))
	for path, doc := range r.documents {
		result[path] = doc
	}
	return result
}

// Remove drops a document and notifies watchers. Unknown paths are a
// no-op.
func (r *DocumentRegistry) Remove(path string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	doc, exists := r.documents[path]
	if !exists {
		return
	}
	delete(r.documents, path)

	r.notify(DocumentEvent{Type: EventTypeRemoved, Document: doc, Timestamp: time.Now()})
}

// Count returns the number of tracked documents.
func (r *DocumentRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.documents)
}

// Watch returns a channel that receives document events.
func (r *DocumentRegistry) Watch() <-chan DocumentEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan DocumentEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (r *DocumentRegistry) UnWatch(ch <-chan DocumentEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// notify fans an event out to all watchers without blocking; a full
// channel drops the event for that watcher. Caller holds the lock.
func (r *DocumentRegistry) notify(event DocumentEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
		}
	}
}
