package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "saathi:session:"

// RedisRepository stores sessions as JSON values with a sliding TTL. Put
// uses WATCH/MULTI so a concurrent writer turns into ErrConflict.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func (r *RedisRepository) Get(ctx context.Context, userID string) (*Session, error) {
	raw, err := r.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisRepository) Put(ctx context.Context, s *Session) error {
	key := redisKey(s.UserID)
	next := s.Clone()
	next.Version = s.Version + 1
	next.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var stored Session
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			current = stored.Version
		}
		if current != s.Version {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("put session: %w", err)
	}
	s.Version = next.Version
	s.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared and closed by its owner.
func (r *RedisRepository) Close() error { return nil }
