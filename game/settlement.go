package game

import (
	"context"
	"time"

	"mahjong/scoring"
	"mahjong/store"

	"go.uber.org/zap"
)

// Settlement ends games and folds their totals into lifetime player stats.
type Settlement struct {
	store  store.Store
	cache  LeaderboardCache
	logger *zap.Logger
	now    func() time.Time
}

func NewSettlement(store store.Store, cache LeaderboardCache, logger *zap.Logger) *Settlement {
	return &Settlement{store: store, cache: cache, logger: logger, now: time.Now}
}

// EndGame settles a game in a single transaction: per-player results are
// written, player stats updated and the game stamped as ended. Ending a game
// twice is rejected.
func (s *Settlement) EndGame(ctx context.Context, gameID int64) (*Summary, error) {
	now := s.now().UTC()

	var summary *Summary
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		game, seats, err := loadSeating(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Ended() {
			return ErrGameEnded
		}

		results, err := tx.ListRoundResults(ctx, gameID)
		if err != nil {
			return err
		}
		totals := make(map[int64]scoring.Points, len(seats))
		for _, r := range results {
			totals[r.PlayerID] += r.Score
		}
		rounds := maxRound(results)

		settled := make([]*store.PlayerResult, len(seats))
		for i, gp := range seats {
			pr := store.PlayerResult{GameID: gameID, PlayerID: gp.PlayerID, Name: gp.Name, TotalScore: totals[gp.PlayerID]}
			if err := tx.InsertPlayerResult(ctx, pr); err != nil {
				return err
			}
			if err := tx.UpdatePlayerStats(ctx, gp.PlayerID, pr.TotalScore, now); err != nil {
				return err
			}
			settled[i] = &pr
		}

		ok, err := tx.MarkGameEnded(ctx, gameID, now, rounds)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGameEnded
		}

		summary = &Summary{
			GameID:      gameID,
			Results:     settled,
			TotalRounds: rounds,
			StartAt:     game.StartAt,
			EndAt:       now,
			Duration:    now.Sub(game.StartAt).Truncate(time.Second),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", zap.Int64("game_id", gameID), zap.Error(err))
	}
	s.logger.Info("game ended",
		zap.Int64("game_id", gameID),
		zap.Int("rounds", summary.TotalRounds),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}
