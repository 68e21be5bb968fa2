package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers gateway message ids so redelivered webhooks are
// processed once.
type Deduper interface {
	// FirstDelivery records id and reports whether it had not been seen.
	FirstDelivery(ctx context.Context, id string) (bool, error)
	// Forget drops id so a later redelivery is accepted again.
	Forget(ctx context.Context, id string) error
}

// MemoryDeduper is a TTL set held in process memory.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) FirstDelivery(_ context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if len(d.seen) > 1024 {
		for k, exp := range d.seen {
			if now.After(exp) {
				delete(d.seen, k)
			}
		}
	}
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[id] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduper) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
	return nil
}

// RedisDeduper shares the seen-set across replicas with SETNX.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl, prefix: "saathi:event:"}
}

func (d *RedisDeduper) FirstDelivery(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := d.client.Del(ctx, d.prefix+id).Err(); err != nil {
		return fmt.Errorf("dedupe forget: %w", err)
	}
	return nil
}
