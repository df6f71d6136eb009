// Package tokenstore persists the opaque token record behind one small
// interface, with swappable backends selected by name.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound     = errors.New("tokenstore: not found")
	ErrUnknownStore = errors.New("tokenstore: unknown store")
)

// Backend names registered by the SDK.
const (
	Memory = "memory"
	Bolt   = "bolt"
	SQLite = "sqlite"
	Cookie = "cookies"
)

// Store keeps byte values by key. Get returns ErrNotFound when the key is
// absent; Remove of an absent key is not an error. Implementations must be
// safe for concurrent use and must not make network calls.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// Registry maps backend names to stores. The zero value is not usable, use
// NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
	def    string
}

// NewRegistry returns a registry with a memory store registered and selected
// as the default.
func NewRegistry() *Registry {
	return &Registry{
		stores: map[string]Store{Memory: NewMemory()},
		def:    Memory,
	}
}

// Register adds or replaces the store under name.
func (r *Registry) Register(name string, s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = s
}

// Store looks up a registered store, failing with ErrUnknownStore.
func (r *Registry) Store(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, name)
	}
	return s, nil
}

// SetDefault selects the store Default returns. The name must already be
// registered.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStore, name)
	}
	r.def = name
	return nil
}

// Default returns the selected store. A new registry selects Memory.
func (r *Registry) Default() Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stores[r.def]
}

// DefaultName returns the name passed to SetDefault.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Names lists registered stores in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for n := range r.stores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
