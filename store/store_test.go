package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mahjong/apperrors"
	"mahjong/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mahjong.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, newSQLiteStore)
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewGormStore(dsn)
		require.NoError(t, err)
		require.NoError(t, s.db.Exec("TRUNCATE player_result, round_result, game_player, game, player RESTART IDENTITY").Error)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

var t0 = time.Date(2024, 3, 9, 19, 30, 0, 0, time.UTC)

// seedGame creates four players named prefix1..prefix4 seated in order.
func seedGame(t *testing.T, s Store, prefix string) (int64, []int64) {
	t.Helper()
	ctx := context.Background()

	gameID, err := s.CreateGame(ctx, t0)
	require.NoError(t, err)

	ids := make([]int64, 4)
	for i := range ids {
		id, err := s.CreatePlayer(ctx, fmt.Sprintf("%s%d", prefix, i+1), t0)
		require.NoError(t, err)
		require.NoError(t, s.AddGamePlayer(ctx, gameID, i+1, id))
		ids[i] = id
	}
	return gameID, ids
}

func roundOf(gameID int64, round int, ids []int64, scores ...int64) []RoundResult {
	out := make([]RoundResult, len(ids))
	for i, id := range ids {
		out[i] = RoundResult{GameID: gameID, Round: round, PlayerID: id, Score: scoring.FromInt(scores[i])}
	}
	return out
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("players", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreatePlayer(ctx, "Ann", t0)
		require.NoError(t, err)

		p, err := s.GetPlayerByName(ctx, "Ann")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, id, p.ID)
		assert.Equal(t, 0, p.PlayedNum)
		assert.True(t, t0.Equal(p.FirstPlayedAt))

		missing, err := s.GetPlayerByName(ctx, "Nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)

		_, err = s.CreatePlayer(ctx, "Ann", t0)
		assert.True(t, apperrors.IsConflict(err), "duplicate name should conflict, got %v", err)

		later := t0.Add(2 * time.Hour)
		require.NoError(t, s.UpdatePlayerStats(ctx, id, scoring.Points(-25), later))
		require.NoError(t, s.UpdatePlayerStats(ctx, id, scoring.FromInt(10), later))
		p, err = s.GetPlayer(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, p.PlayedNum)
		assert.Equal(t, scoring.Points(75), p.TotalScore)
		assert.True(t, later.Equal(p.LastPlayedAt))

		err = s.UpdatePlayerStats(ctx, 9999, 0, later)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("games and seating", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gameID, ids := seedGame(t, s, "p")

		g, err := s.GetGame(ctx, gameID)
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.False(t, g.Ended())
		assert.True(t, t0.Equal(g.StartAt))

		none, err := s.GetGame(ctx, gameID+100)
		require.NoError(t, err)
		assert.Nil(t, none)

		seated, err := s.GetGamePlayers(ctx, gameID)
		require.NoError(t, err)
		require.Len(t, seated, 4)
		for i, gp := range seated {
			assert.Equal(t, i+1, gp.Seat)
			assert.Equal(t, ids[i], gp.PlayerID)
			assert.Equal(t, fmt.Sprintf("p%d", i+1), gp.Name)
		}

		err = s.AddGamePlayer(ctx, gameID, 1, ids[1])
		assert.True(t, apperrors.IsConflict(err))

		open, err := s.ListGames(ctx, false)
		require.NoError(t, err)
		assert.Len(t, open, 1)

		settled, err := s.SettledGames(ctx)
		require.NoError(t, err)
		assert.Zero(t, settled)

		end := t0.Add(90 * time.Minute)
		ok, err := s.MarkGameEnded(ctx, gameID, end, 7)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.MarkGameEnded(ctx, gameID, end.Add(time.Hour), 9)
		require.NoError(t, err)
		assert.False(t, ok)

		settled, err = s.SettledGames(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), settled)

		g, err = s.GetGame(ctx, gameID)
		require.NoError(t, err)
		require.True(t, g.Ended())
		assert.True(t, end.Equal(*g.EndAt))
		assert.Equal(t, 7, g.TotalRounds)

		ended, err := s.ListGames(ctx, true)
		require.NoError(t, err)
		assert.Len(t, ended, 1)
		open, err = s.ListGames(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("round results", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gameID, ids := seedGame(t, s, "r")

		require.NoError(t, s.InsertRoundResults(ctx, roundOf(gameID, 2, ids, 8, -8, 0, 0)))
		require.NoError(t, s.InsertRoundResults(ctx, roundOf(gameID, 1, ids, -4, 4, 0, 0)))

		err := s.InsertRoundResults(ctx, roundOf(gameID, 1, ids, 1, 1, 1, -3))
		assert.True(t, apperrors.IsConflict(err), "duplicate round should conflict, got %v", err)

		all, err := s.ListRoundResults(ctx, gameID)
		require.NoError(t, err)
		require.Len(t, all, 8)
		assert.Equal(t, 1, all[0].Round)
		assert.Equal(t, ids[0], all[0].PlayerID)
		assert.Equal(t, scoring.FromInt(-4), all[0].Score)
		assert.Equal(t, 2, all[7].Round)
		assert.Equal(t, ids[3], all[7].PlayerID)

		require.NoError(t, s.UpdateRoundResult(ctx, RoundResult{GameID: gameID, Round: 2, PlayerID: ids[2], Score: scoring.Points(-5)}))
		round, err := s.GetRoundResults(ctx, gameID, 2)
		require.NoError(t, err)
		require.Len(t, round, 4)
		assert.Equal(t, scoring.Points(-5), round[2].Score)

		err = s.UpdateRoundResult(ctx, RoundResult{GameID: gameID, Round: 5, PlayerID: ids[0]})
		assert.True(t, apperrors.IsNotFound(err))

		n, err := s.DeleteRound(ctx, gameID, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)
		n, err = s.DeleteRound(ctx, gameID, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		round, err = s.GetRoundResults(ctx, gameID, 2)
		require.NoError(t, err)
		assert.Empty(t, round)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gameID, ids := seedGame(t, s, "tx")

		boom := errors.New("boom")
		err := s.RunInTx(ctx, func(tx Store) error {
			if err := tx.InsertRoundResults(ctx, roundOf(gameID, 1, ids, 3, -1, -1, -1)); err != nil {
				return err
			}
			if _, err := tx.MarkGameEnded(ctx, gameID, t0, 1); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		rows, err := s.ListRoundResults(ctx, gameID)
		require.NoError(t, err)
		assert.Empty(t, rows)
		g, err := s.GetGame(ctx, gameID)
		require.NoError(t, err)
		assert.False(t, g.Ended())
	})

	t.Run("standings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		g1, ids := seedGame(t, s, "s")
		g2, err := s.CreateGame(ctx, t0)
		require.NoError(t, err)

		results := []PlayerResult{
			{GameID: g1, PlayerID: ids[0], TotalScore: scoring.FromInt(30)},
			{GameID: g1, PlayerID: ids[1], TotalScore: scoring.FromInt(30)},
			{GameID: g1, PlayerID: ids[2], TotalScore: scoring.FromInt(-50)},
			{GameID: g1, PlayerID: ids[3], TotalScore: scoring.FromInt(-10)},
			{GameID: g2, PlayerID: ids[0], TotalScore: scoring.FromInt(20)},
		}
		for _, r := range results {
			require.NoError(t, s.InsertPlayerResult(ctx, r))
		}
		assert.True(t, apperrors.IsConflict(s.InsertPlayerResult(ctx, results[0])))

		standings, err := s.Standings(ctx)
		require.NoError(t, err)
		require.Len(t, standings, 4)
		assert.Equal(t, "s1", standings[0].Name)
		assert.Equal(t, scoring.FromInt(50), standings[0].TotalScore)
		assert.Equal(t, 2, standings[0].Games)
		assert.Equal(t, "s2", standings[1].Name)
		assert.Equal(t, "s4", standings[2].Name)
		assert.Equal(t, "s3", standings[3].Name)

		settled, err := s.ListPlayerResults(ctx, g1)
		require.NoError(t, err)
		require.Len(t, settled, 4)
		assert.Equal(t, "s1", settled[0].Name)
		assert.Equal(t, scoring.FromInt(-50), settled[2].TotalScore)
	})
}
