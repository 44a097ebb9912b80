package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame(t *testing.T) {
	// When: create a new game instance
	game := NewGame("000", "subtraction", 2)

	// Then: the game should be waiting with two vacant seats
	require.NotNil(t, game)
	require.Equal(t, "000", game.ID)
	require.Equal(t, "subtraction", game.Type)
	require.Equal(t, StatusWaiting, game.Status)
	require.Equal(t, []string{"", ""}, game.Seats)
	require.Empty(t, game.Winners)
}

func TestGame_Clone(t *testing.T) {
	// Given: a game with seated players and a state payload
	game := NewGame("000", "subtraction", 2)
	game.Seats[0] = "alice"
	game.Seats[1] = "bob"
	game.Status = StatusInProgress
	game.State = json.RawMessage(`{"remaining_objects":7}`)

	// When: the game is cloned and the clone mutated
	clone := game.Clone()
	clone.Seats[0] = "mallory"
	clone.Status = StatusOver
	clone.Winners = append(clone.Winners, "bob")
	clone.State[2] = 'x'

	// Then: the original is untouched
	require.Equal(t, "alice", game.Seats[0])
	require.Equal(t, StatusInProgress, game.Status)
	require.Empty(t, game.Winners)
	require.Equal(t, json.RawMessage(`{"remaining_objects":7}`), game.State)
}

func TestGame_Seats(t *testing.T) {
	t.Run("SeatOf and VacantSeat", func(t *testing.T) {
		// Given: a game with one occupied seat
		game := NewGame("000", "subtraction", 2)
		game.Seats[0] = "alice"

		// Then: seat lookups reflect occupancy
		assert.Equal(t, 0, game.SeatOf("alice"))
		assert.Equal(t, -1, game.SeatOf("bob"))
		assert.Equal(t, 1, game.VacantSeat())
		assert.False(t, game.AllSeatsTaken())
	})

	t.Run("SeatOf never matches a vacant seat", func(t *testing.T) {
		// Given: a game with vacant seats
		game := NewGame("000", "subtraction", 2)

		// Then: the empty player id does not resolve to a seat
		assert.Equal(t, -1, game.SeatOf(""))
	})

	t.Run("AllSeatsTaken", func(t *testing.T) {
		// Given: a full game
		game := NewGame("000", "subtraction", 2)
		game.Seats[0] = "alice"
		game.Seats[1] = "bob"

		// Then: no vacant seat remains
		assert.True(t, game.AllSeatsTaken())
		assert.Equal(t, -1, game.VacantSeat())
	})

	t.Run("Opponents", func(t *testing.T) {
		// Given: a full game
		game := NewGame("000", "subtraction", 2)
		game.Seats[0] = "alice"
		game.Seats[1] = "bob"

		// Then: each player's opponents are everyone else
		assert.Equal(t, []string{"bob"}, game.Opponents("alice"))
		assert.Equal(t, []string{"alice"}, game.Opponents("bob"))
	})

	t.Run("VacateSeat", func(t *testing.T) {
		// Given: a game with one occupied seat
		game := NewGame("000", "subtraction", 2)
		game.Seats[0] = "alice"

		// When: the player vacates
		game.VacateSeat("alice")

		// Then: the seat is free again
		assert.Equal(t, []string{"", ""}, game.Seats)
	})
}

func TestGame_Status(t *testing.T) {
	game := NewGame("000", "subtraction", 2)

	require.True(t, game.IsWaiting())

	game.Status = StatusInProgress
	require.True(t, game.IsInProgress())

	game.Status = StatusOver
	require.True(t, game.IsOver())
}
