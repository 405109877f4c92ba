package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned by Get and TTL when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key/value contract shared by the memory, redis and layered
// caches.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get copies the cached value into dest, which must be a non-nil pointer.
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes keys matching a glob pattern ("assess:BTC:*").
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Close() error
}

// GenerateKey joins key parts with ':'.
func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// BuildPattern matches every key under prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
