// Package cache supplies the byte-value cache behind the learnings client's
// search lookups: a Valkey-backed provider for shared deployments, an
// in-process provider for single-node runs, and a no-op for callers that
// opt out entirely.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals that a key was absent or expired. Callers treat a
// miss as "go to the upstream", never as a failure.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the operation set the repo clients need. TTLs are advisory;
// a provider may evict earlier under pressure.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider satisfies Provider without retaining anything; every Get is
// a miss and every write succeeds silently.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
