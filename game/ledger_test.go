package game

import (
	"context"
	"testing"

	"mahjong/apperrors"
	"mahjong/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRoundSelfDrawn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")

	round, err := f.ledger.SubmitRound(ctx, gameID, RoundRequest{Faan: 3, Winner: ids[1]})
	require.NoError(t, err)
	assert.Equal(t, 1, round)

	rounds, err := f.ledger.ListRounds(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, []scoring.Points{
		scoring.FromInt(-8), scoring.FromInt(24), scoring.FromInt(-8), scoring.FromInt(-8),
	}, rounds[0].Scores)
}

func TestSubmitRoundDiscard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")

	_, err := f.ledger.SubmitRound(ctx, gameID, RoundRequest{Faan: 2, Winner: ids[0], DealtIn: ptr(ids[3])})
	require.NoError(t, err)
	round, err := f.ledger.SubmitRound(ctx, gameID, RoundRequest{Faan: 1, Winner: ids[2], DealtIn: ptr(ids[1])})
	require.NoError(t, err)
	assert.Equal(t, 2, round)

	rounds, err := f.ledger.ListRounds(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, []scoring.Points{
		scoring.FromInt(8), scoring.FromInt(-2), scoring.FromInt(-2), scoring.FromInt(-4),
	}, rounds[0].Scores)
	assert.Equal(t, []scoring.Points{
		scoring.FromInt(-1), scoring.FromInt(-2), scoring.FromInt(4), scoring.FromInt(-1),
	}, rounds[1].Scores)

	for _, r := range rounds {
		var sum scoring.Points
		for _, s := range r.Scores {
			sum += s
		}
		assert.Zero(t, sum, "round %d", r.Round)
	}
}

func TestSubmitRoundRejectsBadHands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")

	_, err := f.ledger.SubmitRound(ctx, gameID, RoundRequest{Faan: 0, Winner: ids[0]})
	assert.ErrorIs(t, err, scoring.ErrInvalidFaan)
	_, err = f.ledger.SubmitRound(ctx, gameID, RoundRequest{Faan: 2, Winner: ids[0], DealtIn: ptr(ids[0])})
	assert.ErrorIs(t, err, scoring.ErrWinnerIsDealtIn)
	_, err = f.ledger.SubmitRound(ctx, gameID, RoundRequest{Faan: 2, Winner: 999})
	assert.ErrorIs(t, err, scoring.ErrWinnerNotSeated)
	_, err = f.ledger.SubmitRound(ctx, gameID+1, RoundRequest{Faan: 2, Winner: ids[0]})
	assert.ErrorIs(t, err, ErrGameNotFound)

	next, err := f.ledger.NextRound(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestRecordRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")

	require.NoError(t, f.ledger.RecordRound(ctx, gameID, 1, deltasOf(ids, 6, -2, -2, -2)))

	err := f.ledger.RecordRound(ctx, gameID, 1, deltasOf(ids, -6, 2, 2, 2))
	assert.ErrorIs(t, err, ErrRoundExists)

	err = f.ledger.RecordRound(ctx, gameID, 2, deltasOf(ids, 6, -2, -2, -1))
	assert.ErrorIs(t, err, ErrNotZeroSum)

	err = f.ledger.RecordRound(ctx, gameID, 2, deltasOf(ids[:3], 4, -2, -2))
	assert.ErrorIs(t, err, ErrScoresMismatch)

	err = f.ledger.RecordRound(ctx, gameID, 0, deltasOf(ids, 6, -2, -2, -2))
	assert.ErrorIs(t, err, ErrInvalidRound)

	rounds, err := f.ledger.ListRounds(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, scoring.FromInt(6), rounds[0].Scores[0])
}

func TestEditRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")
	require.NoError(t, f.ledger.RecordRound(ctx, gameID, 1, deltasOf(ids, 6, -2, -2, -2)))

	edited := EditRoundRequest{Scores: []scoring.Points{-15, scoring.FromInt(3), -15, 0}}
	require.NoError(t, f.ledger.EditRound(ctx, gameID, 1, edited))

	row, seats, err := f.ledger.Round(ctx, gameID, 1)
	require.NoError(t, err)
	require.Len(t, seats, 4)
	assert.Equal(t, []scoring.Points{-15, 30, -15, 0}, row.Scores)
}

func TestEditRoundRejectsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")
	require.NoError(t, f.ledger.RecordRound(ctx, gameID, 1, deltasOf(ids, 6, -2, -2, -2)))

	err := f.ledger.EditRound(ctx, gameID, 1, editOf(10, -2, -2, -2))
	assert.ErrorIs(t, err, ErrNotZeroSum)
	assert.True(t, apperrors.IsValidation(err))

	err = f.ledger.EditRound(ctx, gameID, 1, editOf(2, -2))
	assert.ErrorIs(t, err, ErrScoresMismatch)

	err = f.ledger.EditRound(ctx, gameID, 1, editOf(2, -2, 0, 0, 0))
	assert.ErrorIs(t, err, ErrScoresMismatch)

	err = f.ledger.EditRound(ctx, gameID, 2, editOf(2, -2, 0, 0))
	assert.ErrorIs(t, err, ErrRoundNotFound)

	row, _, err := f.ledger.Round(ctx, gameID, 1)
	require.NoError(t, err)
	assert.Equal(t, []scoring.Points{
		scoring.FromInt(6), scoring.FromInt(-2), scoring.FromInt(-2), scoring.FromInt(-2),
	}, row.Scores)
}

func TestDeleteRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")
	for round := 1; round <= 3; round++ {
		require.NoError(t, f.ledger.RecordRound(ctx, gameID, round, deltasOf(ids, 3, -1, -1, -1)))
	}

	require.NoError(t, f.ledger.DeleteRound(ctx, gameID, 2))
	require.NoError(t, f.ledger.DeleteRound(ctx, gameID, 2))
	require.NoError(t, f.ledger.DeleteRound(ctx, gameID, 7))

	rounds, err := f.ledger.ListRounds(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 1, rounds[0].Round)
	assert.Equal(t, 3, rounds[1].Round)

	next, err := f.ledger.NextRound(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 4, next)

	_, _, err = f.ledger.Round(ctx, gameID, 2)
	assert.ErrorIs(t, err, ErrRoundNotFound)

	assert.ErrorIs(t, f.ledger.DeleteRound(ctx, gameID+1, 1), ErrGameNotFound)
}

func TestRunningTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")

	totals, err := f.ledger.RunningTotals(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, totals, 4)
	for _, tot := range totals {
		assert.Zero(t, tot.Total)
		assert.False(t, tot.Leader, "no leader before the first round")
	}

	require.NoError(t, f.ledger.RecordRound(ctx, gameID, 1, deltasOf(ids, 8, -4, -2, -2)))
	require.NoError(t, f.ledger.RecordRound(ctx, gameID, 2, deltasOf(ids, -4, 8, -2, -2)))

	totals, err = f.ledger.RunningTotals(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, scoring.FromInt(4), totals[0].Total)
	assert.Equal(t, scoring.FromInt(4), totals[1].Total)
	assert.Equal(t, scoring.FromInt(-4), totals[2].Total)
	assert.True(t, totals[0].Leader)
	assert.True(t, totals[1].Leader)
	assert.False(t, totals[2].Leader)
	assert.False(t, totals[3].Leader)
	assert.Equal(t, "Ann", totals[0].Name)
	assert.Equal(t, 4, totals[3].Seat)
}

func TestScoreboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")

	board, err := f.ledger.Scoreboard(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, board.Status)
	assert.Equal(t, 1, board.NextRound)
	assert.Empty(t, board.Rounds)

	require.NoError(t, f.ledger.RecordRound(ctx, gameID, 1, deltasOf(ids, 3, -1, -1, -1)))
	board, err = f.ledger.Scoreboard(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, board.Status)
	assert.Equal(t, 2, board.NextRound)
	assert.Len(t, board.Rounds, 1)
	assert.Nil(t, board.Results)
	assert.Zero(t, board.Duration)

	_, err = f.ledger.Scoreboard(ctx, gameID+1)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestEditRoundRejectsScoresThatWrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID, ids := f.start(t, "Ann", "Bo", "Cy", "Di")
	require.NoError(t, f.ledger.RecordRound(ctx, gameID, 1, deltasOf(ids, 6, -2, -2, -2)))

	// Four copies of 2^61 sum to exactly 2^63, which wraps to zero in int64.
	huge := scoring.Points(1 << 61)
	err := f.ledger.EditRound(ctx, gameID, 1, EditRoundRequest{Scores: []scoring.Points{huge, huge, huge, huge}})
	assert.ErrorIs(t, err, scoring.ErrScoreTooLarge)
	assert.True(t, apperrors.IsValidation(err))

	err = f.ledger.EditRound(ctx, gameID, 1, EditRoundRequest{Scores: []scoring.Points{scoring.MaxScore + 1, -scoring.MaxScore - 1, 0, 0}})
	assert.ErrorIs(t, err, scoring.ErrScoreTooLarge)

	err = f.ledger.RecordRound(ctx, gameID, 2, map[int64]scoring.Points{ids[0]: huge, ids[1]: huge, ids[2]: huge, ids[3]: huge})
	assert.ErrorIs(t, err, scoring.ErrScoreTooLarge)

	err = f.ledger.EditRound(ctx, gameID, 1, EditRoundRequest{Scores: []scoring.Points{scoring.MaxScore, -scoring.MaxScore, 0, 0}})
	require.NoError(t, err)

	totals, err := f.ledger.RunningTotals(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, scoring.MaxScore, totals[0].Total)
	assert.Equal(t, -scoring.MaxScore, totals[1].Total)

	rounds, err := f.ledger.ListRounds(ctx, gameID)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}
