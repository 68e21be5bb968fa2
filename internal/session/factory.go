package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type StoreConfig struct {
	// Kind is auto, memory, postgres or redis.
	Kind        string
	DatabaseURL string
	Redis       *redis.Client
	TTL         time.Duration
}

// NewRepository picks a backing store. In auto mode Redis wins over
// Postgres, which wins over memory.
func NewRepository(ctx context.Context, cfg StoreConfig) (Repository, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" || kind == "auto" {
		switch {
		case cfg.Redis != nil:
			kind = "redis"
		case strings.TrimSpace(cfg.DatabaseURL) != "":
			kind = "postgres"
		default:
			kind = "memory"
		}
	}
	switch kind {
	case "memory":
		return NewMemoryRepository(), nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("session store postgres requires DATABASE_URL")
		}
		return NewPostgresRepository(ctx, cfg.DatabaseURL)
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("session store redis requires REDIS_URL")
		}
		return NewRedisRepository(cfg.Redis, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Kind)
	}
}
