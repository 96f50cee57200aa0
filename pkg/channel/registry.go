package channel

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the adapters for all supported channel types. Registration
// happens at startup; lookups are concurrent-safe.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its channel type. Registering the same
// type twice is a programming error.
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chType := adapter.Type()
	if _, exists := r.adapters[chType]; exists {
		return fmt.Errorf("adapter already registered for channel type %q", chType)
	}
	r.adapters[chType] = adapter
	return nil
}

// Get returns the adapter for a channel type, or ErrUnknownChannel.
func (r *Registry) Get(channelType string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[channelType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channelType)
	}
	return adapter, nil
}

// Types returns the registered channel types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
