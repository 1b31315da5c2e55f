// Package ratelimit bounds how many commands an identity may issue inside a
// fixed window. The store is injected so tests run against the in-memory
// window while production uses Redis.
package ratelimit

import "context"

const (
	// DefaultLimit is the number of commands allowed per window.
	DefaultLimit = 10
	// DefaultWindowSeconds is the window length.
	DefaultWindowSeconds = 60
)

// Store decides whether one more command from the keyed identity fits in the
// current window. Implementations fail open: a store error never blocks the
// message path.
type Store interface {
	Allow(ctx context.Context, key string) (bool, error)
	Remaining(ctx context.Context, key string) (int, error)
}
