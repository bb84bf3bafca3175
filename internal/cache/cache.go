package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a key/value store with per-entry TTL. Values are stored JSON
// encoded so every backend behaves the same way for callers.
type Cache interface {
	// Get decodes the entry for key into target. It reports false when the
	// key is missing or expired.
	Get(ctx context.Context, key string, target any) (bool, error)
	// Set stores value under key. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// BuildKey creates semantic cache keys
func BuildKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// ProductIDKey is the key for a card's product id on a marketplace.
func ProductIDKey(marketplace, scryfallID string) string {
	return BuildKey("product", strings.ToLower(marketplace), scryfallID)
}

// MinPriceKey is the key for the last observed minimum offer price of a card.
func MinPriceKey(scryfallID string) string {
	return BuildKey("minprice", scryfallID)
}
