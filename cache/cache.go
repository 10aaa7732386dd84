// Package cache keeps the computed leaderboard in Redis between settlements.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mahjong/store"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "mahjong:leaderboard"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Dial connects to Redis and verifies the connection with a ping.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// entry is the stored form of the leaderboard.
type entry struct {
	Version   int64             `json:"version"`
	Standings []*store.Standing `json:"standings"`
}

func (c *RedisCache) GetLeaderboard(ctx context.Context, version int64) ([]*store.Standing, bool, error) {
	data, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("failed to decode leaderboard: %w", err)
	}
	if e.Version != version {
		return nil, false, nil
	}
	return e.Standings, true, nil
}

func (c *RedisCache) SetLeaderboard(ctx context.Context, version int64, standings []*store.Standing) error {
	if standings == nil {
		standings = []*store.Standing{}
	}
	data, err := json.Marshal(entry{Version: version, Standings: standings})
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	if err := c.client.Set(ctx, leaderboardKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store leaderboard: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateLeaderboard(ctx context.Context) error {
	if err := c.client.Del(ctx, leaderboardKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard: %w", err)
	}
	return nil
}

// Nop never holds anything; every read is a miss.
type Nop struct{}

func (Nop) GetLeaderboard(context.Context, int64) ([]*store.Standing, bool, error) {
	return nil, false, nil
}

func (Nop) SetLeaderboard(context.Context, int64, []*store.Standing) error { return nil }

func (Nop) InvalidateLeaderboard(context.Context) error { return nil }
