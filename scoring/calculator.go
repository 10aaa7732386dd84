// Package scoring converts the outcome of a single hand into per-player score
// deltas. It has no I/O.
package scoring

import (
	"mahjong/apperrors"
)

const (
	SeatCount = 4

	// MaxFaan keeps 3*2^faan points within MaxScore.
	MaxFaan = 48
)

var (
	ErrInvalidFaan      = apperrors.Validation("faan must be a positive integer")
	ErrFaanTooLarge     = apperrors.Validation("faan is too large")
	ErrWrongSeatCount   = apperrors.Validation("a game needs exactly 4 seated players")
	ErrDuplicateSeat    = apperrors.Validation("a player cannot take two seats")
	ErrWinnerNotSeated  = apperrors.Validation("winner is not seated in this game")
	ErrDealtInNotSeated = apperrors.Validation("dealt-in player is not seated in this game")
	ErrWinnerIsDealtIn  = apperrors.Validation("winner and dealt-in player must be different")
)

// ComputeRoundDeltas returns one delta per seated player. A nil dealtIn means
// the winner self-drew and the three other players pay equally; otherwise the
// dealt-in player pays the base and the remaining two pay half each.
func ComputeRoundDeltas(faan int, winner int64, dealtIn *int64, seated []int64) (map[int64]Points, error) {
	if faan <= 0 {
		return nil, ErrInvalidFaan
	}
	if faan > MaxFaan {
		return nil, ErrFaanTooLarge
	}
	if err := checkSeats(seated); err != nil {
		return nil, err
	}
	if !contains(seated, winner) {
		return nil, ErrWinnerNotSeated
	}
	if dealtIn != nil {
		if *dealtIn == winner {
			return nil, ErrWinnerIsDealtIn
		}
		if !contains(seated, *dealtIn) {
			return nil, ErrDealtInNotSeated
		}
	}

	base := Points(int64(1)<<faan) * pointScale
	deltas := make(map[int64]Points, SeatCount)

	if dealtIn == nil {
		for _, id := range seated {
			deltas[id] = -base
		}
		deltas[winner] = 3 * base
		return deltas, nil
	}

	for _, id := range seated {
		deltas[id] = -base / 2
	}
	deltas[winner] = 2 * base
	deltas[*dealtIn] = -base
	return deltas, nil
}

func checkSeats(seated []int64) error {
	if len(seated) != SeatCount {
		return ErrWrongSeatCount
	}
	seen := make(map[int64]struct{}, SeatCount)
	for _, id := range seated {
		if _, ok := seen[id]; ok {
			return ErrDuplicateSeat
		}
		seen[id] = struct{}{}
	}
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
