package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mahjong/apperrors"
	"mahjong/scoring"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore struct {
	db *sql.DB
	tx *sql.Tx
	q  querier
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

// sqliteDSN turns on foreign keys for every pooled connection and takes the
// write lock when a transaction begins, so read-then-write transactions never
// fail to upgrade.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, tx: tx, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreatePlayer(ctx context.Context, name string, now time.Time) (int64, error) {
	ts := formatTime(now)
	result, err := s.q.ExecContext(ctx,
		"INSERT INTO player (name, first_play_at, last_play_at) VALUES (?, ?, ?)",
		name, ts, ts,
	)
	if err != nil {
		return 0, translateError("create player", err)
	}
	return result.LastInsertId()
}

const playerColumns = "id, name, played_num, total_score, first_play_at, last_play_at"

func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID int64) (*Player, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+playerColumns+" FROM player WHERE id = ?", playerID)
	return scanPlayerRow(row)
}

func (s *SQLiteStore) GetPlayerByName(ctx context.Context, name string) (*Player, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+playerColumns+" FROM player WHERE name = ?", name)
	return scanPlayerRow(row)
}

func (s *SQLiteStore) ListPlayers(ctx context.Context) ([]*Player, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+playerColumns+" FROM player ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []*Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func (s *SQLiteStore) UpdatePlayerStats(ctx context.Context, playerID int64, gameTotal scoring.Points, playedAt time.Time) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE player
		SET played_num = played_num + 1, total_score = total_score + ?, last_play_at = ?
		WHERE id = ?
	`, int64(gameTotal), formatTime(playedAt), playerID)
	if err != nil {
		return fmt.Errorf("failed to update player stats: %w", err)
	}
	return requireAffected(result, "player not found")
}

func (s *SQLiteStore) CreateGame(ctx context.Context, startAt time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		"INSERT INTO game (total_rounds, start_at) VALUES (0, ?)",
		formatTime(startAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create game: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetGame(ctx context.Context, gameID int64) (*Game, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, total_rounds, start_at, end_at FROM game WHERE id = ?",
		gameID,
	)
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return game, err
}

func (s *SQLiteStore) SettledGames(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM game WHERE end_at IS NOT NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count settled games: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListGames(ctx context.Context, ended bool) ([]*Game, error) {
	cond := "end_at IS NULL"
	if ended {
		cond = "end_at IS NOT NULL"
	}
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, total_rounds, start_at, end_at FROM game WHERE "+cond+" ORDER BY start_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (s *SQLiteStore) MarkGameEnded(ctx context.Context, gameID int64, endAt time.Time, totalRounds int) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		"UPDATE game SET end_at = ?, total_rounds = ? WHERE id = ? AND end_at IS NULL",
		formatTime(endAt), totalRounds, gameID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to end game: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to end game: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) AddGamePlayer(ctx context.Context, gameID int64, seat int, playerID int64) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO game_player (game_id, player_num, player_id) VALUES (?, ?, ?)",
		gameID, seat, playerID,
	)
	if err != nil {
		return translateError("seat player", err)
	}
	return nil
}

func (s *SQLiteStore) GetGamePlayers(ctx context.Context, gameID int64) ([]*GamePlayer, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT gp.game_id, gp.player_num, gp.player_id, p.name
		FROM game_player gp
		JOIN player p ON gp.player_id = p.id
		WHERE gp.game_id = ?
		ORDER BY gp.player_num
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game players: %w", err)
	}
	defer rows.Close()

	var players []*GamePlayer
	for rows.Next() {
		gp := &GamePlayer{}
		if err := rows.Scan(&gp.GameID, &gp.Seat, &gp.PlayerID, &gp.Name); err != nil {
			return nil, fmt.Errorf("failed to scan game player: %w", err)
		}
		players = append(players, gp)
	}
	return players, rows.Err()
}

func (s *SQLiteStore) InsertRoundResults(ctx context.Context, results []RoundResult) error {
	return s.RunInTx(ctx, func(tx Store) error {
		q := tx.(*SQLiteStore).q
		for _, r := range results {
			if _, err := q.ExecContext(ctx,
				"INSERT INTO round_result (game_id, round_num, player_id, score) VALUES (?, ?, ?, ?)",
				r.GameID, r.Round, r.PlayerID, int64(r.Score),
			); err != nil {
				return translateError("record round", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetRoundResults(ctx context.Context, gameID int64, round int) ([]*RoundResult, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT rr.game_id, rr.round_num, rr.player_id, rr.score
		FROM round_result rr
		LEFT JOIN game_player gp ON gp.game_id = rr.game_id AND gp.player_id = rr.player_id
		WHERE rr.game_id = ? AND rr.round_num = ?
		ORDER BY gp.player_num
	`, gameID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to get round results: %w", err)
	}
	return scanRoundResults(rows)
}

func (s *SQLiteStore) UpdateRoundResult(ctx context.Context, r RoundResult) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE round_result SET score = ? WHERE game_id = ? AND round_num = ? AND player_id = ?",
		int64(r.Score), r.GameID, r.Round, r.PlayerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update round result: %w", err)
	}
	return requireAffected(result, "round result not found")
}

func (s *SQLiteStore) DeleteRound(ctx context.Context, gameID int64, round int) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		"DELETE FROM round_result WHERE game_id = ? AND round_num = ?",
		gameID, round,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete round: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) ListRoundResults(ctx context.Context, gameID int64) ([]*RoundResult, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT rr.game_id, rr.round_num, rr.player_id, rr.score
		FROM round_result rr
		LEFT JOIN game_player gp ON gp.game_id = rr.game_id AND gp.player_id = rr.player_id
		WHERE rr.game_id = ?
		ORDER BY rr.round_num, gp.player_num
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list round results: %w", err)
	}
	return scanRoundResults(rows)
}

func (s *SQLiteStore) InsertPlayerResult(ctx context.Context, r PlayerResult) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO player_result (game_id, player_id, total_score) VALUES (?, ?, ?)",
		r.GameID, r.PlayerID, int64(r.TotalScore),
	)
	if err != nil {
		return translateError("record player result", err)
	}
	return nil
}

func (s *SQLiteStore) ListPlayerResults(ctx context.Context, gameID int64) ([]*PlayerResult, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT pr.game_id, pr.player_id, p.name, pr.total_score
		FROM player_result pr
		JOIN player p ON p.id = pr.player_id
		LEFT JOIN game_player gp ON gp.game_id = pr.game_id AND gp.player_id = pr.player_id
		WHERE pr.game_id = ?
		ORDER BY gp.player_num
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list player results: %w", err)
	}
	defer rows.Close()

	var results []*PlayerResult
	for rows.Next() {
		r := &PlayerResult{}
		if err := rows.Scan(&r.GameID, &r.PlayerID, &r.Name, &r.TotalScore); err != nil {
			return nil, fmt.Errorf("failed to scan player result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Standings(ctx context.Context) ([]*Standing, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT p.id, p.name, COUNT(*) AS games, SUM(pr.total_score) AS total
		FROM player_result pr
		JOIN player p ON p.id = pr.player_id
		GROUP BY p.id, p.name
		ORDER BY total DESC, p.name ASC, p.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute standings: %w", err)
	}
	defer rows.Close()

	var standings []*Standing
	for rows.Next() {
		st := &Standing{}
		if err := rows.Scan(&st.PlayerID, &st.Name, &st.Games, &st.TotalScore); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayerRow(row *sql.Row) (*Player, error) {
	player, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return player, err
}

func scanPlayer(sc scanner) (*Player, error) {
	p := &Player{}
	var firstAt, lastAt string
	if err := sc.Scan(&p.ID, &p.Name, &p.PlayedNum, &p.TotalScore, &firstAt, &lastAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}

	var err error
	if p.FirstPlayedAt, err = parseTime(firstAt); err != nil {
		return nil, err
	}
	if p.LastPlayedAt, err = parseTime(lastAt); err != nil {
		return nil, err
	}
	return p, nil
}

func scanGame(sc scanner) (*Game, error) {
	g := &Game{}
	var startAt string
	var endAt sql.NullString
	if err := sc.Scan(&g.ID, &g.TotalRounds, &startAt, &endAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}

	var err error
	if g.StartAt, err = parseTime(startAt); err != nil {
		return nil, err
	}
	if endAt.Valid {
		t, err := parseTime(endAt.String)
		if err != nil {
			return nil, err
		}
		g.EndAt = &t
	}
	return g, nil
}

func scanRoundResults(rows *sql.Rows) ([]*RoundResult, error) {
	defer rows.Close()

	var results []*RoundResult
	for rows.Next() {
		r := &RoundResult{}
		if err := rows.Scan(&r.GameID, &r.Round, &r.PlayerID, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan round result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func requireAffected(result sql.Result, notFound string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(notFound)
	}
	return nil
}

// translateError reports uniqueness and foreign-key violations as conflicts.
func translateError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return apperrors.Conflict("could not "+op+": it conflicts with existing data", err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
