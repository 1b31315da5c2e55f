package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupePrefix = "dedupe:v1:"
	dedupeTTL    = 24 * time.Hour
)

// Deduper suppresses webhook redeliveries by message id. Chat providers
// retry deliveries on slow acknowledgements, and a retried "send 10 to..."
// must not pay twice.
type Deduper struct {
	cache  *redis.Client
	logger *slog.Logger
}

// NewDeduper builds a deduper. cache may be nil, which disables dedupe
// (acceptable for local development without Redis).
func NewDeduper(cache *redis.Client, logger *slog.Logger) *Deduper {
	return &Deduper{cache: cache, logger: logger}
}

// Seen records the message id and reports whether it was already delivered.
// Fail-open: on a cache error the message is treated as fresh, trading a
// rare duplicate for availability.
func (d *Deduper) Seen(ctx context.Context, messageID string) bool {
	if d.cache == nil || messageID == "" {
		return false
	}
	fresh, err := d.cache.SetNX(ctx, dedupePrefix+messageID, 1, dedupeTTL).Result()
	if err != nil {
		d.logger.Warn("dedupe check failed", slog.String("message_id", messageID), slog.Any("error", err))
		return false
	}
	return !fresh
}
