package game

import (
	"context"

	"mahjong/store"

	"go.uber.org/zap"
)

// LeaderboardCache holds the last computed standings tagged with the number
// of settled games they were computed from. A miss, including an entry with a
// different version, is reported as ok == false with a nil error.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, version int64) (standings []*store.Standing, ok bool, err error)
	SetLeaderboard(ctx context.Context, version int64, standings []*store.Standing) error
	InvalidateLeaderboard(ctx context.Context) error
}

// Leaderboard ranks players by their settled totals across ended games.
type Leaderboard struct {
	store  store.Store
	cache  LeaderboardCache
	logger *zap.Logger
}

func NewLeaderboard(store store.Store, cache LeaderboardCache, logger *zap.Logger) *Leaderboard {
	return &Leaderboard{store: store, cache: cache, logger: logger}
}

// Standings is ordered by total score descending, then name. Cache failures
// fall through to the store. The version is read before the standings, so an
// entry written by a reader that raced a settlement is never served after it.
func (l *Leaderboard) Standings(ctx context.Context) ([]*store.Standing, error) {
	version, err := l.store.SettledGames(ctx)
	if err != nil {
		return nil, err
	}

	cached, ok, err := l.cache.GetLeaderboard(ctx, version)
	if err != nil {
		l.logger.Warn("leaderboard cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	standings, err := l.store.Standings(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.cache.SetLeaderboard(ctx, version, standings); err != nil {
		l.logger.Warn("leaderboard cache write failed", zap.Error(err))
	}
	return standings, nil
}
