// Package voices loads the platform voice catalog, which some platforms
// populate only after the first query, and resolves persisted voice
// identifiers against it.
package voices

import (
	"sync"

	"github.com/book-expert/read-aloud/internal/core"
)

// Catalog is an immutable snapshot of the platform voice list.
type Catalog struct {
	voices []core.Voice
	byID   map[string]int
}

// NewCatalog builds a catalog snapshot, preserving the platform order.
// When identifiers repeat, the first entry wins.
func NewCatalog(list []core.Voice) Catalog {
	catalog := Catalog{
		voices: make([]core.Voice, len(list)),
		byID:   make(map[string]int, len(list)),
	}

	copy(catalog.voices, list)

	for i, voice := range catalog.voices {
		if _, exists := catalog.byID[voice.ID]; !exists {
			catalog.byID[voice.ID] = i
		}
	}

	return catalog
}

// List returns the voices in platform order.
func (c Catalog) List() []core.Voice {
	list := make([]core.Voice, len(c.voices))
	copy(list, c.voices)

	return list
}

// Len returns the number of voices.
func (c Catalog) Len() int {
	return len(c.voices)
}

// Lookup resolves a voice identifier. It reports false for an empty id or
// when the catalog has no such voice.
func (c Catalog) Lookup(id string) (core.Voice, bool) {
	if id == "" {
		return core.Voice{}, false
	}

	index, ok := c.byID[id]
	if !ok {
		return core.Voice{}, false
	}

	return c.voices[index], true
}

// Source is the part of the speech capability the loader needs.
type Source interface {
	Voices() []core.Voice
	OnVoicesChanged(fn func()) (unsubscribe func())
}

// Loader keeps a catalog in sync with a Source and calls onLoad after every
// load, including the initial one.
type Loader struct {
	source Source
	onLoad func(Catalog)

	mu          sync.Mutex
	catalog     Catalog
	unsubscribe func()
	stopped     bool
}

// NewLoader creates a loader. onLoad may be nil.
func NewLoader(source Source, onLoad func(Catalog)) *Loader {
	return &Loader{
		source:  source,
		onLoad:  onLoad,
		catalog: NewCatalog(nil),
	}
}

// Start queries the current catalog and subscribes to change notifications.
func (l *Loader) Start() {
	l.Load()

	unsubscribe := l.source.OnVoicesChanged(l.Load)

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		unsubscribe()

		return
	}

	l.unsubscribe = unsubscribe
	l.mu.Unlock()
}

// Load re-queries the source. It is a no-op once the loader is stopped.
func (l *Loader) Load() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()

		return
	}
	l.mu.Unlock()

	catalog := NewCatalog(l.source.Voices())

	l.mu.Lock()
	l.catalog = catalog
	l.mu.Unlock()

	if l.onLoad != nil {
		l.onLoad(catalog)
	}
}

// Catalog returns the most recently loaded snapshot.
func (l *Loader) Catalog() Catalog {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.catalog
}

// Stop detaches the change subscription. It is safe to call more than once.
func (l *Loader) Stop() {
	l.mu.Lock()
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	l.stopped = true
	l.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
