package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps entries in process memory with per-key expiry.
// It is the fallback when no Redis URL is configured.
type MemoryBackend struct {
	store *gocache.Cache
}

// NewMemory returns an in-process backend that sweeps expired keys every
// cleanupInterval.
func NewMemory(cleanupInterval time.Duration) *MemoryBackend {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryBackend{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := m.store.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.store.Set(key, value, ttl)
	return nil
}

func (m *MemoryBackend) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.store.Delete(key)
	return nil
}

func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := m.store.Get(key)
	return ok, nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryBackend) Close() error {
	m.store.Flush()
	return nil
}
