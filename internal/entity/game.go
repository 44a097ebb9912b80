package entity

import (
	"encoding/json"
	"slices"
)

const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusOver       = "over"
)

// vacant marks an unoccupied seat.
const vacant = ""

// Game is one playthrough of a variant: a fixed ordered set of seats, a
// lifecycle status and an opaque variant-owned state payload. The seats
// slice is ordered; turn order is derived from it and never reshuffled.
type Game struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Status  string          `json:"status"`
	Seats   []string        `json:"seats"`
	Winners []string        `json:"winners,omitempty"`
	State   json.RawMessage `json:"state,omitempty"`
}

func NewGame(id, gameType string, numSeats int) *Game {
	return &Game{
		ID:     id,
		Type:   gameType,
		Status: StatusWaiting,
		Seats:  make([]string, numSeats),
	}
}

// Clone returns a deep copy. Mutating the copy never touches the original,
// which is what lets validators build a successor state without holding the
// only reference to the committed one.
func (that *Game) Clone() *Game {
	if that == nil {
		return nil
	}

	clone := *that
	clone.Seats = slices.Clone(that.Seats)
	clone.Winners = slices.Clone(that.Winners)
	clone.State = slices.Clone(that.State)

	return &clone
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *Game) IsOver() bool {
	return that.Status == StatusOver
}

// SeatOf returns the seat index occupied by playerID, or -1.
func (that *Game) SeatOf(playerID string) int {
	if playerID == vacant {
		return -1
	}

	return slices.Index(that.Seats, playerID)
}

// VacantSeat returns the first free seat index, or -1 when the game is full.
func (that *Game) VacantSeat() int {
	return slices.Index(that.Seats, vacant)
}

func (that *Game) AllSeatsTaken() bool {
	return that.VacantSeat() == -1
}

// SeatedPlayers returns the occupants in seat order, skipping vacant seats.
func (that *Game) SeatedPlayers() []string {
	players := make([]string, 0, len(that.Seats))
	for _, occupant := range that.Seats {
		if occupant != vacant {
			players = append(players, occupant)
		}
	}

	return players
}

// Opponents returns every seated player except playerID, in seat order.
func (that *Game) Opponents(playerID string) []string {
	opponents := make([]string, 0, len(that.Seats))
	for _, occupant := range that.Seats {
		if occupant != vacant && occupant != playerID {
			opponents = append(opponents, occupant)
		}
	}

	return opponents
}

// VacateSeat frees the seat held by playerID. Only meaningful while the
// game is waiting; an in-progress leave forfeits instead.
func (that *Game) VacateSeat(playerID string) {
	if seat := that.SeatOf(playerID); seat >= 0 {
		that.Seats[seat] = vacant
	}
}
