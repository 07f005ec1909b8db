// Package cache stores serialised query results for a short time.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrKeyNotFound = errors.New("cache key not found")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Prefix string
	TTL    time.Duration
}

var DefaultConfig = Config{
	Prefix: "assistant:results:v1",
	TTL:    2 * time.Minute,
}
