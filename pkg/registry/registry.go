// Package registry maps class names from config files to constructors.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknown   = errors.New("not registered")
	ErrDuplicate = errors.New("already registered")
)

// Registry holds named entries of one kind (models, processors).
type Registry[T any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]T
}

// New returns an empty registry. kind is used in error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, entries: make(map[string]T)}
}

// Register adds entry under name. Names are case-insensitive.
func (r *Registry[T]) Register(name string, entry T) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("%s name is required", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%s %q: %w", r.kind, key, ErrDuplicate)
	}
	r.entries[key] = entry
	return nil
}

// MustRegister is Register for package init blocks.
func (r *Registry[T]) MustRegister(name string, entry T) {
	if err := r.Register(name, entry); err != nil {
		panic(err)
	}
}

// Get returns the entry registered under name.
func (r *Registry[T]) Get(name string) (T, error) {
	key := normalizeName(name)
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w (known: %s)", r.kind, key, ErrUnknown, strings.Join(r.Names(), ", "))
	}
	return entry, nil
}

// Names lists registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
