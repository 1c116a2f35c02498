package redis

import (
	"context"
	"sync"
)

var (
	gMu       sync.RWMutex
	gRegistry *Registry
)

func SetGlobal(r *Registry) {
	gMu.Lock()
	gRegistry = r
	gMu.Unlock()
}

// Global returns the registry of the running application, or nil.
func Global() *Registry {
	gMu.RLock()
	r := gRegistry
	gMu.RUnlock()
	return r
}

// Get resolves id against the global registry.
func Get(ctx context.Context, id ID) (Client, error) {
	r := Global()
	if r == nil {
		return nil, ErrNoRegistry
	}
	return r.Client(ctx, id)
}
