package subtraction

import (
	"encoding/json"
	"fmt"

	"github.com/pilegames/gamesession-backend/internal/apperror"
	"github.com/pilegames/gamesession-backend/internal/entity"
)

const Name = "subtraction"

const (
	numSeats = 2

	minTake = 1
	maxTake = 3

	// DefaultStartingPile is used when no pile size is configured.
	DefaultStartingPile = 21
)

// State is the variant payload stored on entity.Game.State.
type State struct {
	RemainingObjects int    `json:"remaining_objects"`
	Moves            []Move `json:"moves"`
}

// Move is one committed turn.
type Move struct {
	PlayerID   string `json:"player_id"`
	NumObjects int    `json:"num_objects"`
}

// MovePayload is the move shape clients submit.
type MovePayload struct {
	NumObjects int `json:"num_objects"`
}

// Subtraction is the misère subtraction game: players alternately remove
// 1 to 3 objects from a shared pile, and the player who removes the last
// object loses.
type Subtraction struct {
	startingPile int
}

func New(startingPile int) *Subtraction {
	if startingPile <= 0 {
		startingPile = DefaultStartingPile
	}

	return &Subtraction{startingPile: startingPile}
}

func (that *Subtraction) Name() string {
	return Name
}

func (that *Subtraction) NumSeats() int {
	return numSeats
}

func (that *Subtraction) NewGame(id string) (*entity.Game, error) {
	game := entity.NewGame(id, Name, numSeats)

	state, err := json.Marshal(State{RemainingObjects: that.startingPile, Moves: []Move{}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initial state: %w", err)
	}

	game.State = state

	return game, nil
}

func (that *Subtraction) Apply(game *entity.Game, playerID string, payload json.RawMessage) (*entity.Game, error) {
	if !game.IsInProgress() {
		return nil, fmt.Errorf("%w: status %s", apperror.ErrGameNotInProgress, game.Status)
	}

	var move MovePayload
	if err := json.Unmarshal(payload, &move); err != nil {
		return nil, fmt.Errorf("%w: malformed move payload", apperror.ErrIllegalMove)
	}

	var state State
	if err := json.Unmarshal(game.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}

	// Turn k belongs to the occupant of seat k mod numSeats.
	mover := game.Seats[len(state.Moves)%len(game.Seats)]
	if mover != playerID {
		return nil, fmt.Errorf("%w: it is %s's turn", apperror.ErrNotYourTurn, mover)
	}

	if move.NumObjects < minTake || move.NumObjects > maxTake {
		return nil, fmt.Errorf("%w: must take between %d and %d objects, got %d",
			apperror.ErrIllegalMove, minTake, maxTake, move.NumObjects)
	}

	if move.NumObjects > state.RemainingObjects {
		return nil, fmt.Errorf("%w: cannot take %d objects, only %d remain",
			apperror.ErrIllegalMove, move.NumObjects, state.RemainingObjects)
	}

	next := game.Clone()

	state.RemainingObjects -= move.NumObjects
	state.Moves = append(state.Moves, Move{PlayerID: playerID, NumObjects: move.NumObjects})

	// Misère rule: emptying the pile loses. The opponent of the player who
	// just moved takes the win.
	if state.RemainingObjects == 0 {
		next.Status = entity.StatusOver
		next.Winners = next.Opponents(playerID)
	}

	nextState, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game state: %w", err)
	}

	next.State = nextState

	return next, nil
}

func (that *Subtraction) IsTerminal(game *entity.Game) bool {
	if game.IsOver() {
		return true
	}

	var state State
	if err := json.Unmarshal(game.State, &state); err != nil {
		return false
	}

	return state.RemainingObjects == 0
}
