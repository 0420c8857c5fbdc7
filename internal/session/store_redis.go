package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore keeps each session under session:<id> with a native TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, redisKeyPrefix+id, data, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, redisKeyPrefix+id).Err()
}

func (s *RedisStore) Rotate(ctx context.Context, oldID, newID string, data []byte, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKeyPrefix+newID, data, ttl)
		p.Del(ctx, redisKeyPrefix+oldID)
		return nil
	})
	return err
}
