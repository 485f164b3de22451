package proxy

import "sync"

// AddonRegistry holds the addons of a proxy. It is safe for concurrent use.
type AddonRegistry struct {
	addons []Addon
	mu     sync.RWMutex
}

// NewAddonRegistry creates an empty AddonRegistry.
func NewAddonRegistry() *AddonRegistry {
	return &AddonRegistry{
		addons: make([]Addon, 0),
	}
}

// Add appends addon; events reach addons in the order they were added.
func (m *AddonRegistry) Add(addon Addon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addons = append(m.addons, addon)
}

// Get returns a snapshot of the registered addons.
func (m *AddonRegistry) Get() []Addon {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Addon, len(m.addons))
	copy(result, m.addons)
	return result
}
