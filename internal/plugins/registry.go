package plugins

import (
	"sort"
	"strings"
	"sync"
)

// Registry stores plugins by lowercase name.
type Registry struct {
	mu   sync.RWMutex
	repo map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{repo: make(map[string]Plugin)}
}

func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repo[strings.ToLower(p.Name())] = p
}

// All returns a copy of the registered plugins.
func (r *Registry) All() map[string]Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Plugin, len(r.repo))
	for name, p := range r.repo {
		out[name] = p
	}
	return out
}

func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.repo[strings.ToLower(name)]
	return p, ok
}

// Names returns registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.repo))
	for name := range r.repo {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
