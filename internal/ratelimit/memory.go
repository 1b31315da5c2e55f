package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a process-local fixed-window limiter.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

// NewMemoryStore builds an in-memory limiter. Non-positive arguments fall back
// to the defaults.
func NewMemoryStore(limit int, period time.Duration) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period <= 0 {
		period = DefaultWindowSeconds * time.Second
	}
	return &MemoryStore{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow reports whether the key has budget left and consumes one unit.
func (s *MemoryStore) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		s.windows[key] = &window{count: 1, resetAt: now.Add(s.period)}
		return true, nil
	}
	if w.count >= s.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Remaining reports the budget left in the current window.
func (s *MemoryStore) Remaining(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || s.now().After(w.resetAt) {
		return s.limit, nil
	}
	if left := s.limit - w.count; left > 0 {
		return left, nil
	}
	return 0, nil
}
