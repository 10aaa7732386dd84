package game

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mahjong/scoring"
	"mahjong/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2024, 3, 9, 19, 30, 0, 0, time.UTC)

type fixture struct {
	store       store.Store
	cache       *memCache
	registry    *Registry
	ledger      *Ledger
	settlement  *Settlement
	leaderboard *Leaderboard
	clock       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "mahjong.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := zaptest.NewLogger(t)
	f := &fixture{store: s, cache: &memCache{}, clock: t0}
	now := func() time.Time { return f.clock }

	f.registry = NewRegistry(s, logger)
	f.registry.now = now
	f.ledger = NewLedger(s, logger)
	f.settlement = NewSettlement(s, f.cache, logger)
	f.settlement.now = now
	f.leaderboard = NewLeaderboard(s, f.cache, logger)
	return f
}

// start seats the named players and returns the game id and player ids in
// seat order.
func (f *fixture) start(t *testing.T, names ...string) (int64, []int64) {
	t.Helper()
	g, seats, err := f.registry.StartGame(context.Background(), names)
	require.NoError(t, err)
	return g.ID, seatedIDs(seats)
}

func deltasOf(ids []int64, scores ...int64) map[int64]scoring.Points {
	m := make(map[int64]scoring.Points, len(ids))
	for i, id := range ids {
		m[id] = scoring.FromInt(scores[i])
	}
	return m
}

func editOf(scores ...int64) EditRoundRequest {
	req := EditRoundRequest{Scores: make([]scoring.Points, len(scores))}
	for i, v := range scores {
		req.Scores[i] = scoring.FromInt(v)
	}
	return req
}

func ptr(id int64) *int64 { return &id }
