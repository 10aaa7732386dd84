package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mahjong/apperrors"
	"mahjong/scoring"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type playerModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"size:50;uniqueIndex;not null"`
	PlayedNum   int       `gorm:"not null;default:0"`
	TotalScore  int64     `gorm:"not null;default:0"`
	FirstPlayAt time.Time `gorm:"not null"`
	LastPlayAt  time.Time `gorm:"not null"`
}

func (playerModel) TableName() string { return "player" }

type gameModel struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	TotalRounds int        `gorm:"not null;default:0"`
	StartAt     time.Time  `gorm:"not null"`
	EndAt       *time.Time `gorm:"index"`
}

func (gameModel) TableName() string { return "game" }

type gamePlayerModel struct {
	GameID    int64 `gorm:"primaryKey;autoIncrement:false;uniqueIndex:idx_game_player_player"`
	PlayerNum int   `gorm:"primaryKey;autoIncrement:false;check:player_num BETWEEN 1 AND 4"`
	PlayerID  int64 `gorm:"not null;uniqueIndex:idx_game_player_player"`
}

func (gamePlayerModel) TableName() string { return "game_player" }

type roundResultModel struct {
	GameID   int64 `gorm:"primaryKey;autoIncrement:false"`
	RoundNum int   `gorm:"primaryKey;autoIncrement:false;check:round_num >= 1"`
	PlayerID int64 `gorm:"primaryKey;autoIncrement:false"`
	Score    int64 `gorm:"not null;default:0"`
}

func (roundResultModel) TableName() string { return "round_result" }

type playerResultModel struct {
	GameID     int64 `gorm:"primaryKey;autoIncrement:false"`
	PlayerID   int64 `gorm:"primaryKey;autoIncrement:false;index"`
	TotalScore int64 `gorm:"not null;default:0"`
}

func (playerResultModel) TableName() string { return "player_result" }

// GormStore keeps the same tables in PostgreSQL through gorm.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&playerModel{},
		&gameModel{},
		&gamePlayerModel{},
		&roundResultModel{},
		&playerResultModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}

func (s *GormStore) CreatePlayer(ctx context.Context, name string, now time.Time) (int64, error) {
	p := playerModel{Name: name, FirstPlayAt: now.UTC(), LastPlayAt: now.UTC()}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, translateGormError("create player", err)
	}
	return p.ID, nil
}

func (s *GormStore) GetPlayer(ctx context.Context, playerID int64) (*Player, error) {
	return s.firstPlayer(ctx, "id = ?", playerID)
}

func (s *GormStore) GetPlayerByName(ctx context.Context, name string) (*Player, error) {
	return s.firstPlayer(ctx, "name = ?", name)
}

func (s *GormStore) firstPlayer(ctx context.Context, cond string, arg any) (*Player, error) {
	var p playerModel
	err := s.db.WithContext(ctx).Where(cond, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p.toPlayer(), nil
}

func (s *GormStore) ListPlayers(ctx context.Context) ([]*Player, error) {
	var models []playerModel
	if err := s.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	players := make([]*Player, 0, len(models))
	for i := range models {
		players = append(players, models[i].toPlayer())
	}
	return players, nil
}

func (s *GormStore) UpdatePlayerStats(ctx context.Context, playerID int64, gameTotal scoring.Points, playedAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&playerModel{}).
		Where("id = ?", playerID).
		Updates(map[string]any{
			"played_num":   gorm.Expr("played_num + 1"),
			"total_score":  gorm.Expr("total_score + ?", int64(gameTotal)),
			"last_play_at": playedAt.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update player stats: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("player not found")
	}
	return nil
}

func (s *GormStore) CreateGame(ctx context.Context, startAt time.Time) (int64, error) {
	g := gameModel{StartAt: startAt.UTC()}
	if err := s.db.WithContext(ctx).Create(&g).Error; err != nil {
		return 0, fmt.Errorf("failed to create game: %w", err)
	}
	return g.ID, nil
}

func (s *GormStore) GetGame(ctx context.Context, gameID int64) (*Game, error) {
	var g gameModel
	err := s.db.WithContext(ctx).First(&g, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return g.toGame(), nil
}

func (s *GormStore) ListGames(ctx context.Context, ended bool) ([]*Game, error) {
	q := s.db.WithContext(ctx).Where("end_at IS NULL")
	if ended {
		q = s.db.WithContext(ctx).Where("end_at IS NOT NULL")
	}

	var models []gameModel
	if err := q.Order("start_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	games := make([]*Game, 0, len(models))
	for i := range models {
		games = append(games, models[i].toGame())
	}
	return games, nil
}

func (s *GormStore) MarkGameEnded(ctx context.Context, gameID int64, endAt time.Time, totalRounds int) (bool, error) {
	result := s.db.WithContext(ctx).Model(&gameModel{}).
		Where("id = ? AND end_at IS NULL", gameID).
		Updates(map[string]any{"end_at": endAt.UTC(), "total_rounds": totalRounds})
	if result.Error != nil {
		return false, fmt.Errorf("failed to end game: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) SettledGames(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&gameModel{}).Where("end_at IS NOT NULL").Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count settled games: %w", err)
	}
	return n, nil
}

func (s *GormStore) AddGamePlayer(ctx context.Context, gameID int64, seat int, playerID int64) error {
	gp := gamePlayerModel{GameID: gameID, PlayerNum: seat, PlayerID: playerID}
	if err := s.db.WithContext(ctx).Create(&gp).Error; err != nil {
		return translateGormError("seat player", err)
	}
	return nil
}

func (s *GormStore) GetGamePlayers(ctx context.Context, gameID int64) ([]*GamePlayer, error) {
	var players []*GamePlayer
	err := s.db.WithContext(ctx).Table("game_player gp").
		Select("gp.game_id, gp.player_num AS seat, gp.player_id, p.name").
		Joins("JOIN player p ON p.id = gp.player_id").
		Where("gp.game_id = ?", gameID).
		Order("gp.player_num").
		Scan(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get game players: %w", err)
	}
	return players, nil
}

func (s *GormStore) InsertRoundResults(ctx context.Context, results []RoundResult) error {
	if len(results) == 0 {
		return nil
	}
	models := make([]roundResultModel, 0, len(results))
	for _, r := range results {
		models = append(models, roundResultModel{
			GameID:   r.GameID,
			RoundNum: r.Round,
			PlayerID: r.PlayerID,
			Score:    int64(r.Score),
		})
	}
	if err := s.db.WithContext(ctx).Create(&models).Error; err != nil {
		return translateGormError("record round", err)
	}
	return nil
}

func (s *GormStore) roundResultQuery(ctx context.Context, gameID int64) *gorm.DB {
	return s.db.WithContext(ctx).Table("round_result rr").
		Select("rr.game_id, rr.round_num AS round, rr.player_id, rr.score").
		Joins("LEFT JOIN game_player gp ON gp.game_id = rr.game_id AND gp.player_id = rr.player_id").
		Where("rr.game_id = ?", gameID)
}

func (s *GormStore) GetRoundResults(ctx context.Context, gameID int64, round int) ([]*RoundResult, error) {
	var results []*RoundResult
	err := s.roundResultQuery(ctx, gameID).
		Where("rr.round_num = ?", round).
		Order("gp.player_num").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get round results: %w", err)
	}
	return results, nil
}

func (s *GormStore) UpdateRoundResult(ctx context.Context, r RoundResult) error {
	result := s.db.WithContext(ctx).Model(&roundResultModel{}).
		Where("game_id = ? AND round_num = ? AND player_id = ?", r.GameID, r.Round, r.PlayerID).
		Update("score", int64(r.Score))
	if result.Error != nil {
		return fmt.Errorf("failed to update round result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("round result not found")
	}
	return nil
}

func (s *GormStore) DeleteRound(ctx context.Context, gameID int64, round int) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("game_id = ? AND round_num = ?", gameID, round).
		Delete(&roundResultModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete round: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) ListRoundResults(ctx context.Context, gameID int64) ([]*RoundResult, error) {
	var results []*RoundResult
	err := s.roundResultQuery(ctx, gameID).
		Order("rr.round_num, gp.player_num").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list round results: %w", err)
	}
	return results, nil
}

func (s *GormStore) InsertPlayerResult(ctx context.Context, r PlayerResult) error {
	m := playerResultModel{GameID: r.GameID, PlayerID: r.PlayerID, TotalScore: int64(r.TotalScore)}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateGormError("record player result", err)
	}
	return nil
}

func (s *GormStore) ListPlayerResults(ctx context.Context, gameID int64) ([]*PlayerResult, error) {
	var results []*PlayerResult
	err := s.db.WithContext(ctx).Table("player_result pr").
		Select("pr.game_id, pr.player_id, p.name, pr.total_score").
		Joins("JOIN player p ON p.id = pr.player_id").
		Joins("LEFT JOIN game_player gp ON gp.game_id = pr.game_id AND gp.player_id = pr.player_id").
		Where("pr.game_id = ?", gameID).
		Order("gp.player_num").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list player results: %w", err)
	}
	return results, nil
}

func (s *GormStore) Standings(ctx context.Context) ([]*Standing, error) {
	var standings []*Standing
	err := s.db.WithContext(ctx).Table("player_result pr").
		Select("p.id AS player_id, p.name, COUNT(*) AS games, CAST(SUM(pr.total_score) AS BIGINT) AS total_score").
		Joins("JOIN player p ON p.id = pr.player_id").
		Group("p.id, p.name").
		Order("SUM(pr.total_score) DESC, p.name ASC, p.id ASC").
		Scan(&standings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute standings: %w", err)
	}
	return standings, nil
}

func (s *GormStore) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m *playerModel) toPlayer() *Player {
	return &Player{
		ID:            m.ID,
		Name:          m.Name,
		PlayedNum:     m.PlayedNum,
		TotalScore:    scoring.Points(m.TotalScore),
		FirstPlayedAt: m.FirstPlayAt.UTC(),
		LastPlayedAt:  m.LastPlayAt.UTC(),
	}
}

func (m *gameModel) toGame() *Game {
	g := &Game{ID: m.ID, TotalRounds: m.TotalRounds, StartAt: m.StartAt.UTC()}
	if m.EndAt != nil {
		end := m.EndAt.UTC()
		g.EndAt = &end
	}
	return g
}

func translateGormError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperrors.Conflict("could not "+op+": it conflicts with existing data", err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
