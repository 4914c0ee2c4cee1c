package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeStore remembers which (alert, transition) deliveries already went
// out, so a re-handed event is dropped at the dispatcher boundary. Keys are
// marked only after a delivery succeeds; an event that never reached any
// channel stays unmarked and is retried from scratch after a restart.
type DedupeStore interface {
	// Delivered reports whether the key is already marked.
	Delivered(ctx context.Context, key string) (bool, error)
	// MarkDelivered records the key and reports whether it was new.
	MarkDelivered(ctx context.Context, key string) (bool, error)
}

// MemoryDedupe is the in-process default. Entries expire after TTL so the
// map stays bounded.
type MemoryDedupe struct {
	TTL time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDedupe(ttl time.Duration) *MemoryDedupe {
	return &MemoryDedupe{TTL: ttl, seen: make(map[string]time.Time)}
}

func (m *MemoryDedupe) Delivered(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[key]
	if !ok || time.Since(at) > m.TTL {
		return false, nil
	}
	return true, nil
}

func (m *MemoryDedupe) MarkDelivered(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, at := range m.seen {
		if now.Sub(at) > m.TTL {
			delete(m.seen, k)
		}
	}
	if _, dup := m.seen[key]; dup {
		return false, nil
	}
	m.seen[key] = now
	return true, nil
}

// RedisDedupe shares delivery state across restarts (and replicas) using
// SETNX with a TTL.
type RedisDedupe struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisDedupe(client *redis.Client, ttl time.Duration) *RedisDedupe {
	return &RedisDedupe{Client: client, TTL: ttl, Prefix: "vcwatch:dispatched:"}
}

func (r *RedisDedupe) Delivered(ctx context.Context, key string) (bool, error) {
	n, err := r.Client.Exists(ctx, r.Prefix+key).Result()
	return n > 0, err
}

func (r *RedisDedupe) MarkDelivered(ctx context.Context, key string) (bool, error) {
	return r.Client.SetNX(ctx, r.Prefix+key, 1, r.TTL).Result()
}
