package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

// NewMemoryRepository builds an in-memory mapping store, used in tests and
// when no database is configured.
func NewMemoryRepository() Repository {
	return &memoryRepository{handles: make(map[string]Handle)}
}

func (r *memoryRepository) Save(_ context.Context, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h.Identity]; !exists {
		r.handles[h.Identity] = h
	}
	return nil
}

func (r *memoryRepository) All(_ context.Context) ([]Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	return handles, nil
}
