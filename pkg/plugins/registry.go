package plugins

import (
	"fmt"
	"sync"
)

// Registry holds loaded plugins in registration order. The order is the
// stable order compilers iterate in.
type Registry struct {
	mu      sync.RWMutex
	plugins []*Plugin
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a plugin to the registry. Duplicate names are accepted and
// surface later through DetectConflicts.
func (r *Registry) Register(plugin *Plugin) error {
	if plugin == nil {
		return fmt.Errorf("cannot register nil plugin")
	}
	if plugin.Manifest == nil {
		return fmt.Errorf("plugin %s has nil manifest", plugin.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = append(r.plugins, plugin)
	return nil
}

// Unregister removes every plugin with the given name
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.plugins[:0]
	removed := false
	for _, p := range r.plugins {
		if p.Name == name {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return fmt.Errorf("plugin not found: %s", name)
	}

	r.plugins = kept
	return nil
}

// Get retrieves the first plugin registered under name
func (r *Registry) Get(name string) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("plugin not found: %s", name)
}

// Has checks if a plugin is registered
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// All returns all registered plugins in registration order
func (r *Registry) All() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins)
}

// Replace swaps the registry contents for plugins in one step
func (r *Registry) Replace(plugins []*Plugin) error {
	for _, p := range plugins {
		if p == nil {
			return fmt.Errorf("cannot register nil plugin")
		}
		if p.Manifest == nil {
			return fmt.Errorf("plugin %s has nil manifest", p.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = append([]*Plugin(nil), plugins...)
	return nil
}

// Clear removes all plugins from the registry
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = nil
}

// DetectConflicts reports plugins registered more than once and bridge
// functions whose logical name is declared by more than one plugin.
// An empty result means the registry is safe to compile.
func (r *Registry) DetectConflicts() []Conflict {
	all := r.All()

	var conflicts []Conflict

	byName := make(map[string][]string)
	var names []string
	for _, p := range all {
		if _, ok := byName[p.Name]; !ok {
			names = append(names, p.Name)
		}
		byName[p.Name] = append(byName[p.Name], p.Name)
	}
	for _, name := range names {
		if len(byName[name]) > 1 {
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictDuplicatePlugin,
				Key:     name,
				Plugins: byName[name],
			})
		}
	}

	owners := make(map[string][]string)
	var functions []string
	for _, p := range all {
		for _, fn := range p.Manifest.BridgeFunctions {
			if _, ok := owners[fn.Name]; !ok {
				functions = append(functions, fn.Name)
			}
			if !contains(owners[fn.Name], p.Name) {
				owners[fn.Name] = append(owners[fn.Name], p.Name)
			}
		}
	}
	for _, fn := range functions {
		if len(owners[fn]) > 1 {
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictDuplicateFunction,
				Key:     fn,
				Plugins: owners[fn],
			})
		}
	}

	return conflicts
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
