package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps session records in Redis so that multiple controller
// instances observe the same single-viewer state. Records are written with a
// TTL equal to the tolerance window; a crashed session therefore ages out
// server-side without any cleanup pass.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore returns a store backed by the given client. ttl should
// match the Guard's tolerance window; zero disables expiry.
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

// Get implements SessionStore.Get.
func (s *RedisSessionStore) Get(ctx context.Context, id ContentID) (*ContentSession, bool, error) {
	raw, err := s.rdb.Get(ctx, SessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", SessionKey(id), err)
	}
	var cs ContentSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, false, fmt.Errorf("decode session record %s: %w", SessionKey(id), err)
	}
	return &cs, true, nil
}

// Put implements SessionStore.Put.
func (s *RedisSessionStore) Put(ctx context.Context, cs *ContentSession) error {
	raw, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := s.rdb.Set(ctx, SessionKey(cs.ContentID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", SessionKey(cs.ContentID), err)
	}
	return nil
}

// Delete implements SessionStore.Delete.
func (s *RedisSessionStore) Delete(ctx context.Context, id ContentID) error {
	if err := s.rdb.Del(ctx, SessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", SessionKey(id), err)
	}
	return nil
}

// List implements SessionStore.List.
func (s *RedisSessionStore) List(ctx context.Context) ([]*ContentSession, error) {
	keys, err := s.rdb.Keys(ctx, SessionKey("*")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis keys: %w", err)
	}
	out := make([]*ContentSession, 0, len(keys))
	for _, k := range keys {
		raw, err := s.rdb.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", k, err)
		}
		var cs ContentSession
		if err := json.Unmarshal(raw, &cs); err != nil {
			continue
		}
		out = append(out, &cs)
	}
	return out, nil
}
