package apperror

import "errors"

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrUnknownVariant    = errors.New("unknown game variant")
	ErrGameFull          = errors.New("game is full")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrIllegalMove       = errors.New("illegal move")
)

// Wire-level kinds for player-scoped error notifications.
const (
	KindNotFound          = "not_found"
	KindUnknownVariant    = "unknown_variant"
	KindGameFull          = "game_full"
	KindNotYourTurn       = "not_your_turn"
	KindGameNotInProgress = "game_not_in_progress"
	KindIllegalMove       = "illegal_move"
	KindInternal          = "internal"
)

// Kind - maps an error chain to its wire-level kind.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnknownVariant):
		return KindUnknownVariant
	case errors.Is(err, ErrGameFull):
		return KindGameFull
	case errors.Is(err, ErrNotYourTurn):
		return KindNotYourTurn
	case errors.Is(err, ErrGameNotInProgress):
		return KindGameNotInProgress
	case errors.Is(err, ErrIllegalMove):
		return KindIllegalMove
	default:
		return KindInternal
	}
}

// IsRejection reports whether err is a move- or join-time rejection that
// leaves the game state untouched, as opposed to an internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrGameNotInProgress) ||
		errors.Is(err, ErrIllegalMove) ||
		errors.Is(err, ErrGameFull)
}
