package http

import (
	"encoding/json"
	"net/http"

	"mahjong/apperrors"
	"mahjong/game"

	"go.uber.org/zap"
)

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handlers) writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("api request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
	}
	h.writeJSON(w, status, map[string]string{"error": apperrors.Message(err)})
}

func (h *Handlers) APIGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "id")
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	board, err := h.ledger.Scoreboard(r.Context(), gameID)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, board)
}

func (h *Handlers) APIRounds(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "id")
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	rounds, err := h.ledger.ListRounds(r.Context(), gameID)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	totals, err := h.ledger.RunningTotals(r.Context(), gameID)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	if rounds == nil {
		rounds = []game.RoundRow{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"rounds": rounds,
		"totals": totals,
	})
}

func (h *Handlers) APILeaderboard(w http.ResponseWriter, r *http.Request) {
	standings, err := h.leaderboard.Standings(r.Context())
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, standings)
}

func (h *Handlers) APIPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.registry.ListPlayers(r.Context())
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, players)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
