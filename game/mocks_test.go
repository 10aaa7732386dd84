package game

import (
	"context"
	"sync"

	"mahjong/store"

	"github.com/stretchr/testify/mock"
)

type LeaderboardCacheMock struct {
	mock.Mock
}

func (m *LeaderboardCacheMock) GetLeaderboard(ctx context.Context, version int64) ([]*store.Standing, bool, error) {
	args := m.Called(ctx, version)
	standings, _ := args.Get(0).([]*store.Standing)
	return standings, args.Bool(1), args.Error(2)
}

func (m *LeaderboardCacheMock) SetLeaderboard(ctx context.Context, version int64, standings []*store.Standing) error {
	args := m.Called(ctx, version, standings)
	return args.Error(0)
}

func (m *LeaderboardCacheMock) InvalidateLeaderboard(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// memCache is an in-process LeaderboardCache that versions its single entry
// the same way the Redis cache does.
type memCache struct {
	mu        sync.Mutex
	version   int64
	standings []*store.Standing
	ok        bool
	sets      int
}

func (c *memCache) GetLeaderboard(_ context.Context, version int64) ([]*store.Standing, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok || c.version != version {
		return nil, false, nil
	}
	return c.standings, true, nil
}

func (c *memCache) SetLeaderboard(_ context.Context, version int64, standings []*store.Standing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version, c.standings, c.ok = version, standings, true
	c.sets++
	return nil
}

func (c *memCache) InvalidateLeaderboard(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.standings, c.ok = nil, false
	return nil
}
