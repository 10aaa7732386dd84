package game

import (
	"context"

	"mahjong/scoring"
	"mahjong/store"

	"go.uber.org/zap"
)

// Ledger records, edits and reads per-round score deltas.
type Ledger struct {
	store  store.Store
	logger *zap.Logger
}

func NewLedger(store store.Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// SubmitRound scores a hand with the faan calculator and records it as the
// next round of the game. It returns the round number used.
func (l *Ledger) SubmitRound(ctx context.Context, gameID int64, req RoundRequest) (int, error) {
	var round int
	err := l.store.RunInTx(ctx, func(tx store.Store) error {
		game, seats, err := loadSeating(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Ended() {
			return ErrGameEnded
		}

		deltas, err := scoring.ComputeRoundDeltas(req.Faan, req.Winner, req.DealtIn, seatedIDs(seats))
		if err != nil {
			return err
		}

		results, err := tx.ListRoundResults(ctx, gameID)
		if err != nil {
			return err
		}
		round = maxRound(results) + 1
		return l.recordRound(ctx, tx, gameID, round, deltas)
	})
	if err != nil {
		return 0, err
	}
	return round, nil
}

// RecordRound stores one delta per seated player for a new round. The deltas
// must cover exactly the seated players and sum to zero.
func (l *Ledger) RecordRound(ctx context.Context, gameID int64, round int, deltas map[int64]scoring.Points) error {
	if round < 1 {
		return ErrInvalidRound
	}
	return l.store.RunInTx(ctx, func(tx store.Store) error {
		game, _, err := loadSeating(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Ended() {
			return ErrGameEnded
		}
		return l.recordRound(ctx, tx, gameID, round, deltas)
	})
}

func (l *Ledger) recordRound(ctx context.Context, tx store.Store, gameID int64, round int, deltas map[int64]scoring.Points) error {
	seats, err := tx.GetGamePlayers(ctx, gameID)
	if err != nil {
		return err
	}
	if err := checkScores(seats, deltas); err != nil {
		return err
	}

	existing, err := tx.GetRoundResults(ctx, gameID, round)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return ErrRoundExists
	}

	rows := make([]store.RoundResult, len(seats))
	for i, gp := range seats {
		rows[i] = store.RoundResult{GameID: gameID, Round: round, PlayerID: gp.PlayerID, Score: deltas[gp.PlayerID]}
	}
	if err := tx.InsertRoundResults(ctx, rows); err != nil {
		return err
	}

	l.logger.Info("round recorded", zap.Int64("game_id", gameID), zap.Int("round", round))
	return nil
}

// EditRound replaces every score of an existing round. Nothing is written
// unless there is one score per seat and they sum to zero.
func (l *Ledger) EditRound(ctx context.Context, gameID int64, round int, req EditRoundRequest) error {
	if round < 1 {
		return ErrInvalidRound
	}
	err := l.store.RunInTx(ctx, func(tx store.Store) error {
		game, seats, err := loadSeating(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Ended() {
			return ErrGameEnded
		}

		existing, err := tx.GetRoundResults(ctx, gameID, round)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return ErrRoundNotFound
		}
		if len(req.Scores) != len(seats) {
			return ErrScoresMismatch
		}
		scores := make(map[int64]scoring.Points, len(seats))
		for i, gp := range seats {
			scores[gp.PlayerID] = req.Scores[i]
		}
		if err := checkScores(seats, scores); err != nil {
			return err
		}

		for _, gp := range seats {
			r := store.RoundResult{GameID: gameID, Round: round, PlayerID: gp.PlayerID, Score: scores[gp.PlayerID]}
			if err := tx.UpdateRoundResult(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("round edited", zap.Int64("game_id", gameID), zap.Int("round", round))
	return nil
}

// DeleteRound removes all rows of a round. Deleting a round that has no rows
// is not an error.
func (l *Ledger) DeleteRound(ctx context.Context, gameID int64, round int) error {
	if round < 1 {
		return ErrInvalidRound
	}
	var removed int64
	err := l.store.RunInTx(ctx, func(tx store.Store) error {
		game, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if game == nil {
			return ErrGameNotFound
		}
		if game.Ended() {
			return ErrGameEnded
		}
		removed, err = tx.DeleteRound(ctx, gameID, round)
		return err
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		l.logger.Info("round deleted", zap.Int64("game_id", gameID), zap.Int("round", round))
	}
	return nil
}

// Round returns the scores of one round in seat order.
func (l *Ledger) Round(ctx context.Context, gameID int64, round int) (*RoundRow, []*store.GamePlayer, error) {
	if round < 1 {
		return nil, nil, ErrInvalidRound
	}
	_, seats, err := loadSeating(ctx, l.store, gameID)
	if err != nil {
		return nil, nil, err
	}
	results, err := l.store.GetRoundResults(ctx, gameID, round)
	if err != nil {
		return nil, nil, err
	}
	if len(results) == 0 {
		return nil, nil, ErrRoundNotFound
	}
	rows := buildRounds(seats, results)
	return &rows[0], seats, nil
}

// ListRounds returns the game's rounds in ascending order, one score per seat.
func (l *Ledger) ListRounds(ctx context.Context, gameID int64) ([]RoundRow, error) {
	_, seats, err := loadSeating(ctx, l.store, gameID)
	if err != nil {
		return nil, err
	}
	results, err := l.store.ListRoundResults(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return buildRounds(seats, results), nil
}

// RunningTotals sums every recorded round per seat and flags the leaders.
func (l *Ledger) RunningTotals(ctx context.Context, gameID int64) ([]RunningTotal, error) {
	_, seats, err := loadSeating(ctx, l.store, gameID)
	if err != nil {
		return nil, err
	}
	results, err := l.store.ListRoundResults(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return runningTotals(seats, results), nil
}

// NextRound is one past the highest recorded round, or 1 for a fresh game.
func (l *Ledger) NextRound(ctx context.Context, gameID int64) (int, error) {
	if _, _, err := loadSeating(ctx, l.store, gameID); err != nil {
		return 0, err
	}
	results, err := l.store.ListRoundResults(ctx, gameID)
	if err != nil {
		return 0, err
	}
	return maxRound(results) + 1, nil
}

// Scoreboard assembles the game page in one pass over the stored rows.
func (l *Ledger) Scoreboard(ctx context.Context, gameID int64) (*Scoreboard, error) {
	game, seats, err := loadSeating(ctx, l.store, gameID)
	if err != nil {
		return nil, err
	}
	results, err := l.store.ListRoundResults(ctx, gameID)
	if err != nil {
		return nil, err
	}

	rounds := buildRounds(seats, results)
	board := &Scoreboard{
		Game:      game,
		Status:    statusOf(game, len(rounds)),
		Seats:     seats,
		Rounds:    rounds,
		Totals:    runningTotals(seats, results),
		NextRound: maxRound(results) + 1,
		Duration:  Elapsed(game),
	}
	if game.Ended() {
		if board.Results, err = l.store.ListPlayerResults(ctx, gameID); err != nil {
			return nil, err
		}
	}
	return board, nil
}

func checkScores(seats []*store.GamePlayer, scores map[int64]scoring.Points) error {
	if len(scores) != len(seats) {
		return ErrScoresMismatch
	}
	for _, gp := range seats {
		p, ok := scores[gp.PlayerID]
		if !ok {
			return ErrScoresMismatch
		}
		if !p.InRange() {
			return scoring.ErrScoreTooLarge
		}
	}
	if scoring.Sum(scores) != 0 {
		return ErrNotZeroSum
	}
	return nil
}

// buildRounds groups results (ordered by round) into rows in seat order.
func buildRounds(seats []*store.GamePlayer, results []*store.RoundResult) []RoundRow {
	seatIndex := make(map[int64]int, len(seats))
	for i, gp := range seats {
		seatIndex[gp.PlayerID] = i
	}

	var rows []RoundRow
	for _, r := range results {
		if len(rows) == 0 || rows[len(rows)-1].Round != r.Round {
			rows = append(rows, RoundRow{Round: r.Round, Scores: make([]scoring.Points, len(seats))})
		}
		if i, ok := seatIndex[r.PlayerID]; ok {
			rows[len(rows)-1].Scores[i] = r.Score
		}
	}
	return rows
}

func runningTotals(seats []*store.GamePlayer, results []*store.RoundResult) []RunningTotal {
	sums := make(map[int64]scoring.Points, len(seats))
	for _, r := range results {
		sums[r.PlayerID] += r.Score
	}

	totals := make([]RunningTotal, len(seats))
	for i, gp := range seats {
		totals[i] = RunningTotal{Seat: gp.Seat, PlayerID: gp.PlayerID, Name: gp.Name, Total: sums[gp.PlayerID]}
	}
	if len(results) == 0 {
		return totals
	}

	best := totals[0].Total
	for _, t := range totals[1:] {
		best = max(best, t.Total)
	}
	for i := range totals {
		totals[i].Leader = totals[i].Total == best
	}
	return totals
}

func maxRound(results []*store.RoundResult) int {
	n := 0
	for _, r := range results {
		n = max(n, r.Round)
	}
	return n
}
