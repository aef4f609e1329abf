// Package registry maps request paths to keyword libraries.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lydakis/rfremote/pkg/library"
)

var (
	ErrInvalidPath = errors.New("invalid library path")
	ErrNilLibrary  = errors.New("library is nil")
)

// Registry stores libraries by request path. It is safe for concurrent use:
// dispatching goroutines read while registrations happen at any time.
type Registry struct {
	mu       sync.RWMutex
	libs     map[string]library.Library
	onChange []func(path string)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{libs: make(map[string]library.Library)}
}

// Clean normalizes a path to its registry key. Paths must start with "/";
// a trailing "/" is dropped except for the root.
func Clean(path string) (string, error) {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w %q: must start with /", ErrInvalidPath, path)
	}
	if strings.Contains(path, "//") {
		return "", fmt.Errorf("%w %q: empty segment", ErrInvalidPath, path)
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path, nil
}

// Put registers lib at path, replacing whatever was there.
func (r *Registry) Put(path string, lib library.Library) error {
	if lib == nil {
		return ErrNilLibrary
	}
	key, err := Clean(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.libs[key] = lib
	hooks := append([]func(string){}, r.onChange...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(key)
	}
	return nil
}

// Get returns the library registered at path.
func (r *Registry) Get(path string) (library.Library, bool) {
	key, err := Clean(path)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libs[key]
	return lib, ok
}

// Entries returns a snapshot of all registrations.
func (r *Registry) Entries() map[string]library.Library {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]library.Library, len(r.libs))
	for path, lib := range r.libs {
		out[path] = lib
	}
	return out
}

// Paths returns the registered paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.libs))
	for path := range r.libs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.libs)
}

// OnChange registers fn to run after every Put, outside the registry lock.
func (r *Registry) OnChange(fn func(path string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}
