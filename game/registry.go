package game

import (
	"context"
	"time"

	"mahjong/store"

	"go.uber.org/zap"
)

// Registry starts games and answers lookups about games and players.
type Registry struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewRegistry(store store.Store, logger *zap.Logger) *Registry {
	return &Registry{store: store, logger: logger, now: time.Now}
}

// StartGame seats four players in the given order, creating any player whose
// name has not been seen before. Names are sanitized first.
func (r *Registry) StartGame(ctx context.Context, names []string) (*store.Game, []*store.GamePlayer, error) {
	if len(names) != 4 {
		return nil, nil, ErrWrongPlayerCount
	}

	cleaned := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		name = SanitizeName(name)
		if err := validateName(name); err != nil {
			return nil, nil, err
		}
		if seen[name] {
			return nil, nil, ErrDuplicatePlayer
		}
		seen[name] = true
		cleaned[i] = name
	}

	now := r.now().UTC()
	var (
		game  *store.Game
		seats []*store.GamePlayer
	)
	err := r.store.RunInTx(ctx, func(tx store.Store) error {
		playerIDs := make([]int64, len(cleaned))
		for i, name := range cleaned {
			p, err := tx.GetPlayerByName(ctx, name)
			if err != nil {
				return err
			}
			if p != nil {
				playerIDs[i] = p.ID
				continue
			}
			id, err := tx.CreatePlayer(ctx, name, now)
			if err != nil {
				return err
			}
			playerIDs[i] = id
		}

		gameID, err := tx.CreateGame(ctx, now)
		if err != nil {
			return err
		}
		for i, id := range playerIDs {
			if err := tx.AddGamePlayer(ctx, gameID, i+1, id); err != nil {
				return err
			}
		}

		if game, err = tx.GetGame(ctx, gameID); err != nil {
			return err
		}
		seats, err = tx.GetGamePlayers(ctx, gameID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	r.logger.Info("game started", zap.Int64("game_id", game.ID), zap.Strings("players", cleaned))
	return game, seats, nil
}

func (r *Registry) GetGame(ctx context.Context, gameID int64) (*store.Game, error) {
	g, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// ListGames returns in-progress games, or ended games when ended is true.
func (r *Registry) ListGames(ctx context.Context, ended bool) ([]*store.Game, error) {
	return r.store.ListGames(ctx, ended)
}

func (r *Registry) ListPlayers(ctx context.Context) ([]*store.Player, error) {
	return r.store.ListPlayers(ctx)
}

// Seating returns the four seated players of a game in seat order.
func (r *Registry) Seating(ctx context.Context, gameID int64) ([]*store.GamePlayer, error) {
	_, seats, err := loadSeating(ctx, r.store, gameID)
	return seats, err
}

// loadSeating fetches a game and its seats, failing when either is missing.
func loadSeating(ctx context.Context, s store.Store, gameID int64) (*store.Game, []*store.GamePlayer, error) {
	g, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, ErrGameNotFound
	}
	seats, err := s.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if len(seats) != 4 {
		return nil, nil, ErrSeatingIncomplete
	}
	return g, seats, nil
}

func seatedIDs(seats []*store.GamePlayer) []int64 {
	ids := make([]int64, len(seats))
	for i, gp := range seats {
		ids[i] = gp.PlayerID
	}
	return ids
}
