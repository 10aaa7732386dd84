package game

import (
	"time"

	"mahjong/scoring"
	"mahjong/store"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusEnded      Status = "ended"
)

// RoundRequest is a submitted hand outcome. DealtIn is nil for a self-drawn win.
type RoundRequest struct {
	Faan    int
	Winner  int64
	DealtIn *int64
}

// EditRoundRequest replaces a round's scores. Scores are in seat order.
type EditRoundRequest struct {
	Scores []scoring.Points
}

// RoundRow is one ledger line with scores in seat order.
type RoundRow struct {
	Round  int              `json:"round"`
	Scores []scoring.Points `json:"scores"`
}

type RunningTotal struct {
	Seat     int            `json:"seat"`
	PlayerID int64          `json:"playerId"`
	Name     string         `json:"name"`
	Total    scoring.Points `json:"total"`
	Leader   bool           `json:"leader"`
}

// Scoreboard is everything the game page shows.
type Scoreboard struct {
	Game      *store.Game           `json:"game"`
	Status    Status                `json:"status"`
	Seats     []*store.GamePlayer   `json:"seats"`
	Rounds    []RoundRow            `json:"rounds"`
	Totals    []RunningTotal        `json:"totals"`
	NextRound int                   `json:"nextRound"`
	Results   []*store.PlayerResult `json:"results,omitempty"`
	Duration  time.Duration         `json:"duration,omitempty"`
}

// Summary reports a settled game.
type Summary struct {
	GameID      int64                 `json:"gameId"`
	Results     []*store.PlayerResult `json:"results"`
	TotalRounds int                   `json:"totalRounds"`
	StartAt     time.Time             `json:"startAt"`
	EndAt       time.Time             `json:"endAt"`
	Duration    time.Duration         `json:"duration"`
}

// Elapsed is the wall-clock length of an ended game in whole seconds, or zero
// while it is still in progress.
func Elapsed(g *store.Game) time.Duration {
	if g == nil || g.EndAt == nil {
		return 0
	}
	return g.EndAt.Sub(g.StartAt).Truncate(time.Second)
}

func statusOf(g *store.Game, rounds int) Status {
	switch {
	case g.Ended():
		return StatusEnded
	case rounds > 0:
		return StatusInProgress
	default:
		return StatusOpen
	}
}
