package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "audio:admission:"

// RedisWindowStore shares admission state between instances. Each client's
// log is a sorted set scored by microsecond timestamps; a block is a plain
// key with an optional TTL.
type RedisWindowStore struct {
	client *redis.Client
	prefix string
}

func NewRedisWindowStore(client *redis.Client, prefix string) *RedisWindowStore {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisWindowStore{client: client, prefix: prefix}
}

func (s *RedisWindowStore) windowKey(client string) string {
	return s.prefix + "window:" + client
}

func (s *RedisWindowStore) blockKey(client string) string {
	return s.prefix + "blocked:" + client
}

func (s *RedisWindowStore) Record(ctx context.Context, client string, now time.Time, window time.Duration) (int, error) {
	key := s.windowKey(client)
	cutoff := now.Add(-window).UnixMicro()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMicro()),
		Member: strconv.FormatInt(now.UnixMicro(), 10) + "-" + uuid.New().String(),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record request window: %w", err)
	}
	return int(card.Val()), nil
}

func (s *RedisWindowStore) IsBlocked(ctx context.Context, client string, _ time.Time) (bool, error) {
	n, err := s.client.Exists(ctx, s.blockKey(client)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check block list: %w", err)
	}
	return n > 0, nil
}

func (s *RedisWindowStore) Block(ctx context.Context, client string, now time.Time, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	err := s.client.Set(ctx, s.blockKey(client), now.UTC().Format(time.RFC3339), ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to block client: %w", err)
	}
	return nil
}
