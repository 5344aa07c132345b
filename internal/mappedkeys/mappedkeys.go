// Package mappedkeys implements the process-wide MappedKeys filter
// described in spec.md §3/§9: a fixed-size boolean vector, shared between
// the Input Source (many readers, one per incoming event) and the Event
// Processor (one writer, on live reload), guarded by a mutex and held
// behind an explicit reference-counted handle rather than a package-level
// global — per spec.md §9's design note ("avoid true global state ...
// share via a reference-counted handle").
package mappedkeys

import (
	"sync"

	"github.com/miken90dev/layerkeyd/internal/keys"
)

// Filter is the shared MappedKeys vector. The zero value is not usable;
// construct with New.
type Filter struct {
	mu     sync.RWMutex
	mapped [keys.MaxOsCode]bool
}

// New returns a Filter with every code initially unmapped.
func New() *Filter {
	return &Filter{}
}

// Mapped reports whether code currently has a binding. Called on the IS's
// hot path for every incoming event, so it takes a read lock only.
func (f *Filter) Mapped(code keys.OsCode) bool {
	if !code.Valid() {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mapped[code]
}

// Replace atomically swaps the entire vector, used during live reload.
func (f *Filter) Replace(next [keys.MaxOsCode]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mapped = next
}

// Snapshot copies out the current vector, mostly useful for tests.
func (f *Filter) Snapshot() [keys.MaxOsCode]bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mapped
}
