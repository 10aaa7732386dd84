package game

import "mahjong/apperrors"

var (
	ErrGameNotFound      = apperrors.NotFound("game not found")
	ErrRoundNotFound     = apperrors.NotFound("round not found")
	ErrGameEnded         = apperrors.Validation("game has already ended")
	ErrRoundExists       = apperrors.Validation("round already recorded, edit it instead")
	ErrNotZeroSum        = apperrors.Validation("round must sum to zero")
	ErrInvalidRound      = apperrors.Validation("round number must be at least 1")
	ErrScoresMismatch    = apperrors.Validation("scores must be given for exactly the seated players")
	ErrWrongPlayerCount  = apperrors.Validation("a game needs exactly 4 players")
	ErrDuplicatePlayer   = apperrors.Validation("each player may only take one seat")
	ErrInvalidName       = apperrors.Validation("player names must be 1 to 50 characters")
	ErrSeatingIncomplete = apperrors.Internal("game does not have 4 seated players", nil)
)
