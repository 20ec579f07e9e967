package frequency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares frequency state between instances. Each visitor key is a
// hash of creativeID -> PolicyState JSON with a TTL refreshed on write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return "freq:" + key
}

func (s *RedisStore) Get(ctx context.Context, key string, creativeID string) (PolicyState, error) {
	raw, err := s.client.HGet(ctx, redisKey(key), creativeID).Result()
	if errors.Is(err, redis.Nil) {
		return PolicyState{}, nil
	}

	if err != nil {
		return PolicyState{}, fmt.Errorf("cannot read frequency state, %w", err)
	}

	var state PolicyState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return PolicyState{}, fmt.Errorf("cannot decode frequency state, %w", err)
	}

	return state, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, creativeID string, state PolicyState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cannot encode frequency state, %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, redisKey(key), creativeID, raw)
	pipe.Expire(ctx, redisKey(key), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot write frequency state, %w", err)
	}

	return nil
}
