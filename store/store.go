package store

import (
	"context"
	"time"

	"mahjong/scoring"
)

// Store is the persistence contract of the score keeper. Get* methods return
// nil, nil when the row does not exist.
type Store interface {
	// RunInTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise. Calling
	// RunInTx on a transaction-bound Store reuses the open transaction.
	RunInTx(ctx context.Context, fn func(tx Store) error) error

	CreatePlayer(ctx context.Context, name string, now time.Time) (int64, error)
	GetPlayer(ctx context.Context, playerID int64) (*Player, error)
	GetPlayerByName(ctx context.Context, name string) (*Player, error)
	ListPlayers(ctx context.Context) ([]*Player, error)
	UpdatePlayerStats(ctx context.Context, playerID int64, gameTotal scoring.Points, playedAt time.Time) error

	CreateGame(ctx context.Context, startAt time.Time) (int64, error)
	GetGame(ctx context.Context, gameID int64) (*Game, error)
	ListGames(ctx context.Context, ended bool) ([]*Game, error)
	// MarkGameEnded stamps an in-progress game. It reports false when the game
	// was already ended (or does not exist) and leaves it untouched.
	MarkGameEnded(ctx context.Context, gameID int64, endAt time.Time, totalRounds int) (bool, error)
	// SettledGames counts ended games. Games are never reopened, so the count
	// only grows and versions the standings.
	SettledGames(ctx context.Context) (int64, error)

	AddGamePlayer(ctx context.Context, gameID int64, seat int, playerID int64) error
	GetGamePlayers(ctx context.Context, gameID int64) ([]*GamePlayer, error)

	InsertRoundResults(ctx context.Context, results []RoundResult) error
	GetRoundResults(ctx context.Context, gameID int64, round int) ([]*RoundResult, error)
	UpdateRoundResult(ctx context.Context, result RoundResult) error
	DeleteRound(ctx context.Context, gameID int64, round int) (int64, error)
	ListRoundResults(ctx context.Context, gameID int64) ([]*RoundResult, error)

	InsertPlayerResult(ctx context.Context, result PlayerResult) error
	ListPlayerResults(ctx context.Context, gameID int64) ([]*PlayerResult, error)
	Standings(ctx context.Context) ([]*Standing, error)

	Close() error
}

type Player struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	PlayedNum     int            `json:"playedNum"`
	TotalScore    scoring.Points `json:"totalScore"`
	FirstPlayedAt time.Time      `json:"firstPlayedAt"`
	LastPlayedAt  time.Time      `json:"lastPlayedAt"`
}

type Game struct {
	ID          int64      `json:"id"`
	TotalRounds int        `json:"totalRounds"`
	StartAt     time.Time  `json:"startAt"`
	EndAt       *time.Time `json:"endAt,omitempty"`
}

func (g *Game) Ended() bool {
	return g.EndAt != nil
}

type GamePlayer struct {
	GameID   int64  `json:"gameId"`
	Seat     int    `json:"seat"`
	PlayerID int64  `json:"playerId"`
	Name     string `json:"name"`
}

type RoundResult struct {
	GameID   int64          `json:"gameId"`
	Round    int            `json:"round"`
	PlayerID int64          `json:"playerId"`
	Score    scoring.Points `json:"score"`
}

type PlayerResult struct {
	GameID     int64          `json:"gameId"`
	PlayerID   int64          `json:"playerId"`
	Name       string         `json:"name"`
	TotalScore scoring.Points `json:"totalScore"`
}

// Standing is one leaderboard line: a player's settled totals across games.
type Standing struct {
	PlayerID   int64          `json:"playerId"`
	Name       string         `json:"name"`
	Games      int            `json:"games"`
	TotalScore scoring.Points `json:"totalScore"`
}
