package http

import (
	"fmt"
	"net/http"

	"mahjong/apperrors"
	"mahjong/game"
	"mahjong/store"

	"go.uber.org/zap"
)

type Handlers struct {
	registry    *game.Registry
	ledger      *game.Ledger
	settlement  *game.Settlement
	leaderboard *game.Leaderboard
	render      *renderer
	logger      *zap.Logger
}

func NewHandlers(registry *game.Registry, ledger *game.Ledger, settlement *game.Settlement, leaderboard *game.Leaderboard, render *renderer, logger *zap.Logger) *Handlers {
	return &Handlers{
		registry:    registry,
		ledger:      ledger,
		settlement:  settlement,
		leaderboard: leaderboard,
		render:      render,
		logger:      logger,
	}
}

// fail renders the error page. Internal failures are logged and shown with a
// generic message.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
	}
	h.render.render(w, r, status, "error.html", view{Title: http.StatusText(status), Error: apperrors.Message(err)})
}

func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render.render(w, r, http.StatusNotFound, "error.html", view{Title: "Not Found", Error: "page not found"})
}

func gamePath(gameID int64) string {
	return fmt.Sprintf("/games/%d", gameID)
}

// Index lists games still in progress.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	games, err := h.registry.ListGames(r.Context(), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.render(w, r, http.StatusOK, "index.html", view{Title: "Mahjong", Data: games})
}

func (h *Handlers) StartForm(w http.ResponseWriter, r *http.Request) {
	h.render.render(w, r, http.StatusOK, "start.html", view{Title: "Start a game", Data: make([]string, 4)})
}

func (h *Handlers) StartGame(w http.ResponseWriter, r *http.Request) {
	names, err := parseStartForm(r)
	if err == nil {
		var g *store.Game
		if g, _, err = h.registry.StartGame(r.Context(), names); err == nil {
			http.Redirect(w, r, gamePath(g.ID), http.StatusSeeOther)
			return
		}
	}
	if !apperrors.IsValidation(err) {
		h.fail(w, r, err)
		return
	}

	posted := make([]string, 4)
	for i := range posted {
		posted[i] = r.PostForm.Get(fmt.Sprintf("player%d", i+1))
	}
	h.render.render(w, r, http.StatusBadRequest, "start.html", view{Title: "Start a game", Error: apperrors.Message(err), Data: posted})
}

type roundForm struct {
	Faan    string
	WinType string
}

type gamePage struct {
	Board *game.Scoreboard
	Form  roundForm
}

func (h *Handlers) Scoreboard(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderScoreboard(w, r, gameID, http.StatusOK, "", roundForm{WinType: winSelfDrawn})
}

func (h *Handlers) renderScoreboard(w http.ResponseWriter, r *http.Request, gameID int64, status int, message string, form roundForm) {
	board, err := h.ledger.Scoreboard(r.Context(), gameID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.render(w, r, status, "game.html", view{
		Title: fmt.Sprintf("Game #%d", gameID),
		Error: message,
		Data:  gamePage{Board: board, Form: form},
	})
}

// SubmitRound scores a hand and records it as the next round.
func (h *Handlers) SubmitRound(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	req, err := parseRoundForm(r)
	if err == nil {
		_, err = h.ledger.SubmitRound(r.Context(), gameID, req)
	}
	if err != nil {
		if apperrors.IsValidation(err) {
			form := roundForm{Faan: r.PostForm.Get("faan"), WinType: r.PostForm.Get("win_type")}
			h.renderScoreboard(w, r, gameID, http.StatusBadRequest, apperrors.Message(err), form)
			return
		}
		h.fail(w, r, err)
		return
	}

	http.Redirect(w, r, gamePath(gameID), http.StatusSeeOther)
}

type roundPage struct {
	GameID int64
	Round  int
	Seats  []*store.GamePlayer
	Values []string
}

func (h *Handlers) roundTarget(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	gameID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return 0, 0, false
	}
	round, err := pathRound(r)
	if err != nil {
		h.fail(w, r, err)
		return 0, 0, false
	}
	return gameID, round, true
}

func (h *Handlers) loadRoundPage(w http.ResponseWriter, r *http.Request) (*roundPage, bool) {
	gameID, round, ok := h.roundTarget(w, r)
	if !ok {
		return nil, false
	}
	row, seats, err := h.ledger.Round(r.Context(), gameID, round)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	values := make([]string, len(row.Scores))
	for i, p := range row.Scores {
		values[i] = p.String()
	}
	return &roundPage{GameID: gameID, Round: round, Seats: seats, Values: values}, true
}

func (h *Handlers) EditRoundForm(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadRoundPage(w, r)
	if !ok {
		return
	}
	h.render.render(w, r, http.StatusOK, "edit_round.html", view{Title: fmt.Sprintf("Edit round %d", page.Round), Data: page})
}

func (h *Handlers) EditRound(w http.ResponseWriter, r *http.Request) {
	gameID, round, ok := h.roundTarget(w, r)
	if !ok {
		return
	}
	seats, err := h.registry.Seating(r.Context(), gameID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	req, raw, err := parseEditForm(r, seats)
	if err == nil {
		err = h.ledger.EditRound(r.Context(), gameID, round, req)
	}
	if err != nil {
		if apperrors.IsValidation(err) && raw != nil {
			page := &roundPage{GameID: gameID, Round: round, Seats: seats, Values: raw}
			h.render.render(w, r, http.StatusBadRequest, "edit_round.html", view{
				Title: fmt.Sprintf("Edit round %d", round),
				Error: apperrors.Message(err),
				Data:  page,
			})
			return
		}
		h.fail(w, r, err)
		return
	}

	http.Redirect(w, r, gamePath(gameID), http.StatusSeeOther)
}

func (h *Handlers) DeleteRoundForm(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadRoundPage(w, r)
	if !ok {
		return
	}
	h.render.render(w, r, http.StatusOK, "delete_round.html", view{Title: fmt.Sprintf("Delete round %d", page.Round), Data: page})
}

func (h *Handlers) DeleteRound(w http.ResponseWriter, r *http.Request) {
	gameID, round, ok := h.roundTarget(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteRound(r.Context(), gameID, round); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, gamePath(gameID), http.StatusSeeOther)
}

func (h *Handlers) EndGameForm(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	board, err := h.ledger.Scoreboard(r.Context(), gameID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if board.Status == game.StatusEnded {
		http.Redirect(w, r, gamePath(gameID), http.StatusSeeOther)
		return
	}
	h.render.render(w, r, http.StatusOK, "end_game.html", view{Title: fmt.Sprintf("End game #%d", gameID), Data: board})
}

func (h *Handlers) EndGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.settlement.EndGame(r.Context(), gameID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.render(w, r, http.StatusOK, "summary.html", view{Title: fmt.Sprintf("Game #%d settled", gameID), Data: summary})
}

type historyPage struct {
	Games  []*store.Game
	GameID string
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	h.renderHistory(w, r, http.StatusOK, "", "")
}

// LookupGame jumps to a game by id from the history page.
func (h *Handlers) LookupGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := parseLookupForm(r)
	if err == nil {
		_, err = h.registry.GetGame(r.Context(), gameID)
	}
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.fail(w, r, err)
			return
		}
		h.renderHistory(w, r, status, apperrors.Message(err), r.PostForm.Get("game_id"))
		return
	}
	http.Redirect(w, r, gamePath(gameID), http.StatusSeeOther)
}

func (h *Handlers) renderHistory(w http.ResponseWriter, r *http.Request, status int, message, lookup string) {
	games, err := h.registry.ListGames(r.Context(), true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.render(w, r, status, "history.html", view{
		Title: "History",
		Error: message,
		Data:  historyPage{Games: games, GameID: lookup},
	})
}

func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	standings, err := h.leaderboard.Standings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.render(w, r, http.StatusOK, "leaderboard.html", view{Title: "Leaderboard", Data: standings})
}

func (h *Handlers) Players(w http.ResponseWriter, r *http.Request) {
	players, err := h.registry.ListPlayers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.render(w, r, http.StatusOK, "players.html", view{Title: "Players", Data: players})
}
