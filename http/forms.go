package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mahjong/apperrors"
	"mahjong/game"
	"mahjong/scoring"
	"mahjong/store"

	"github.com/gorilla/mux"
)

const (
	winSelfDrawn = "self_drawn"
	winDiscard   = "discard"
)

var (
	errBadForm     = apperrors.Validation("could not read the submitted form")
	errBadFaan     = apperrors.Validation("faan must be a whole number")
	errBadWinner   = apperrors.Validation("choose the winner")
	errBadWinType  = apperrors.Validation("choose self-drawn or discard")
	errNoDealtIn   = apperrors.Validation("choose who dealt in")
	errBadGameID   = apperrors.Validation("game id must be a positive number")
	errBadRoundNum = apperrors.Validation("round must be a positive number")
)

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	if err != nil || id < 1 {
		return 0, errBadGameID
	}
	return id, nil
}

func pathRound(r *http.Request) (int, error) {
	round, err := strconv.Atoi(mux.Vars(r)["round"])
	if err != nil || round < 1 {
		return 0, errBadRoundNum
	}
	return round, nil
}

// parseStartForm reads the four seat names, player1 through player4.
func parseStartForm(r *http.Request) ([]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errBadForm
	}
	var names []string
	for seat := 1; seat <= 4; seat++ {
		if name := strings.TrimSpace(r.PostForm.Get(fmt.Sprintf("player%d", seat))); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// parseRoundForm reads a hand outcome: faan, winner, win_type and, for a
// discard win, dealt_in.
func parseRoundForm(r *http.Request) (game.RoundRequest, error) {
	var req game.RoundRequest
	if err := r.ParseForm(); err != nil {
		return req, errBadForm
	}

	faan, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("faan")))
	if err != nil {
		return req, errBadFaan
	}
	req.Faan = faan

	winner, err := strconv.ParseInt(r.PostForm.Get("winner"), 10, 64)
	if err != nil {
		return req, errBadWinner
	}
	req.Winner = winner

	switch r.PostForm.Get("win_type") {
	case winSelfDrawn:
	case winDiscard:
		dealtIn, err := strconv.ParseInt(r.PostForm.Get("dealt_in"), 10, 64)
		if err != nil {
			return req, errNoDealtIn
		}
		req.DealtIn = &dealtIn
	default:
		return req, errBadWinType
	}
	return req, nil
}

func scoreField(seat int) string {
	return fmt.Sprintf("score_%d", seat)
}

// parseEditForm reads score_1 through score_4, one per seat. The raw values
// are returned so the form can be redisplayed on error.
func parseEditForm(r *http.Request, seats []*store.GamePlayer) (game.EditRoundRequest, []string, error) {
	var req game.EditRoundRequest
	if err := r.ParseForm(); err != nil {
		return req, nil, errBadForm
	}
	req.Scores = make([]scoring.Points, len(seats))
	raw := make([]string, len(seats))
	var firstErr error
	for i, gp := range seats {
		raw[i] = strings.TrimSpace(r.PostForm.Get(scoreField(gp.Seat)))
		p, err := scoring.ParsePoints(raw[i])
		if err != nil {
			if firstErr == nil {
				firstErr = scoreError(gp.Name, err)
			}
			continue
		}
		req.Scores[i] = p
	}
	return req, raw, firstErr
}

func scoreError(name string, err error) error {
	if errors.Is(err, scoring.ErrScoreTooLarge) {
		return apperrors.Validation(fmt.Sprintf("score for %s is too large", name))
	}
	return apperrors.Validation(fmt.Sprintf("score for %s must be a number with at most one decimal", name))
}

func parseLookupForm(r *http.Request) (int64, error) {
	if err := r.ParseForm(); err != nil {
		return 0, errBadForm
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.PostForm.Get("game_id")), 10, 64)
	if err != nil || id < 1 {
		return 0, errBadGameID
	}
	return id, nil
}
