package cache

import (
	"sort"
	"sync"
)

// Registry records which cached keys depend on which resource kinds.
type Registry struct {
	mu   sync.Mutex
	keys map[Kind]map[string]struct{}
	deps map[string][]Kind
}

func NewRegistry() *Registry {
	return &Registry{
		keys: make(map[Kind]map[string]struct{}),
		deps: make(map[string][]Kind),
	}
}

// Register declares that key depends on deps, replacing earlier deps.
func (r *Registry) Register(key string, deps ...Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(key)
	for _, k := range deps {
		set, ok := r.keys[k]
		if !ok {
			set = make(map[string]struct{})
			r.keys[k] = set
		}
		set[key] = struct{}{}
	}
	r.deps[key] = append([]Kind(nil), deps...)
}

// Affected returns the sorted keys depending on any of kinds.
func (r *Registry) Affected(kinds ...Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	for _, k := range kinds {
		for key := range r.keys[k] {
			seen[key] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Deps returns the kinds key was registered with.
func (r *Registry) Deps(key string) []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Kind(nil), r.deps[key]...)
}

// Remove forgets keys entirely.
func (r *Registry) Remove(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.removeLocked(key)
	}
}

func (r *Registry) removeLocked(key string) {
	for _, k := range r.deps[key] {
		delete(r.keys[k], key)
	}
	delete(r.deps, key)
}
