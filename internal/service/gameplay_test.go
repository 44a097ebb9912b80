package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilegames/gamesession-backend/internal/apperror"
	"github.com/pilegames/gamesession-backend/internal/arena"
	"github.com/pilegames/gamesession-backend/internal/entity"
	"github.com/pilegames/gamesession-backend/internal/variant"
	"github.com/pilegames/gamesession-backend/internal/variant/subtraction"
	"github.com/pilegames/gamesession-backend/testing/fakes"
)

const testPile = 7

func newTestService(t *testing.T) (GamePlayService, *fakes.GameRepo, *fakes.Broadcaster) {
	t.Helper()

	variants := variant.NewRegistry()
	variants.Register(subtraction.New(testPile))

	gameRepo := fakes.NewGameRepo()
	broadcaster := fakes.NewBroadcaster()

	svc := NewGamePlayService(fakes.Logger(), variants, arena.New(), gameRepo, broadcaster)

	return svc, gameRepo, broadcaster
}

func takePayload(t *testing.T, numObjects int) json.RawMessage {
	t.Helper()

	payload, err := json.Marshal(subtraction.MovePayload{NumObjects: numObjects})
	require.NoError(t, err)

	return payload
}

func remaining(t *testing.T, game *entity.Game) int {
	t.Helper()

	var state subtraction.State
	require.NoError(t, json.Unmarshal(game.State, &state))

	return state.RemainingObjects
}

func TestGamePlayService_CreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a waiting game and broadcasts it", func(t *testing.T) {
		svc, gameRepo, broadcaster := newTestService(t)

		// When: a game is created
		game, err := svc.CreateGame(ctx, subtraction.Name)

		// Then: it is waiting with vacant seats, persisted and broadcast
		require.NoError(t, err)
		assert.NotEmpty(t, game.ID)
		assert.Equal(t, entity.StatusWaiting, game.Status)
		assert.Equal(t, []string{"", ""}, game.Seats)

		persisted, err := gameRepo.GetByID(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, game.ID, persisted.ID)

		require.Len(t, broadcaster.StateUpdates(), 1)
	})

	t.Run("Rejects an unknown variant", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)

		// When: creating a game of a variant nobody registered
		_, err := svc.CreateGame(ctx, "chess")

		// Then: the creation fails and nothing is broadcast
		require.ErrorIs(t, err, apperror.ErrUnknownVariant)
		assert.Empty(t, broadcaster.StateUpdates())
	})
}

func TestGamePlayService_JoinGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Second join starts the game with seat order fixed", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)

		// When: the first player joins
		game, err = svc.JoinGame(ctx, game.ID, "p1")

		// Then: the game still waits for an opponent
		require.NoError(t, err)
		assert.Equal(t, entity.StatusWaiting, game.Status)
		assert.Equal(t, []string{"p1", ""}, game.Seats)

		// When: the second player joins
		game, err = svc.JoinGame(ctx, game.ID, "p2")

		// Then: filling the last seat starts the game
		require.NoError(t, err)
		assert.Equal(t, entity.StatusInProgress, game.Status)
		assert.Equal(t, []string{"p1", "p2"}, game.Seats)

		// Then: create + both joins were each broadcast
		assert.Len(t, broadcaster.StateUpdates(), 3)
	})

	t.Run("Rejoin is idempotent and silent", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)

		_, err = svc.JoinGame(ctx, game.ID, "p1")
		require.NoError(t, err)

		updatesBefore := len(broadcaster.StateUpdates())

		// When: the same player joins again
		rejoined, err := svc.JoinGame(ctx, game.ID, "p1")

		// Then: the instance is unchanged, the seat not duplicated, and
		// nothing new is broadcast
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", ""}, rejoined.Seats)
		assert.Len(t, broadcaster.StateUpdates(), updatesBefore)
	})

	t.Run("Third player is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)

		_, err = svc.JoinGame(ctx, game.ID, "p1")
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p2")
		require.NoError(t, err)

		// When: a third player tries to sit down
		_, err = svc.JoinGame(ctx, game.ID, "p3")

		// Then: the join is rejected
		require.ErrorIs(t, err, apperror.ErrGameFull)
	})

	t.Run("Join unknown game", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.JoinGame(ctx, "ghost", "p1")

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestGamePlayService_LeaveGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Leaving while waiting vacates the seat", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p1")
		require.NoError(t, err)

		// When: the only player leaves
		left, err := svc.LeaveGame(ctx, game.ID, "p1")

		// Then: the seat is free again and the game still waits
		require.NoError(t, err)
		assert.Equal(t, []string{"", ""}, left.Seats)
		assert.Equal(t, entity.StatusWaiting, left.Status)
	})

	t.Run("Leaving mid-game forfeits to the opponent", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p1")
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p2")
		require.NoError(t, err)

		// When: p1 abandons the running game
		left, err := svc.LeaveGame(ctx, game.ID, "p1")

		// Then: the game is over, p2 wins, and the leaver's seat stays in
		// the record
		require.NoError(t, err)
		assert.Equal(t, entity.StatusOver, left.Status)
		assert.Equal(t, []string{"p2"}, left.Winners)
		assert.Equal(t, []string{"p1", "p2"}, left.Seats)

		// Then: the forfeit was broadcast
		updates := broadcaster.StateUpdates()
		require.NotEmpty(t, updates)
		assert.Equal(t, entity.StatusOver, updates[len(updates)-1].Status)
	})

	t.Run("Leaving a finished game is a silent no-op", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p1")
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p2")
		require.NoError(t, err)
		_, err = svc.LeaveGame(ctx, game.ID, "p1")
		require.NoError(t, err)

		updatesBefore := len(broadcaster.StateUpdates())

		// When: the other player leaves the already-over game
		left, err := svc.LeaveGame(ctx, game.ID, "p2")

		// Then: the terminal snapshot comes back unchanged, no broadcast
		require.NoError(t, err)
		assert.Equal(t, entity.StatusOver, left.Status)
		assert.Equal(t, []string{"p2"}, left.Winners)
		assert.Len(t, broadcaster.StateUpdates(), updatesBefore)
	})

	t.Run("Leave unknown game", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.LeaveGame(ctx, "ghost", "p1")

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestGamePlayService_MakeMove(t *testing.T) {
	ctx := context.Background()

	startGame := func(t *testing.T, svc GamePlayService) *entity.Game {
		t.Helper()

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p1")
		require.NoError(t, err)
		game, err = svc.JoinGame(ctx, game.ID, "p2")
		require.NoError(t, err)

		return game
	}

	t.Run("Canonical scenario ends with the misere rule", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		game := startGame(t, svc)

		// When: p1 takes 3, p2 takes 1, p1 takes 3
		game, err := svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 3))
		require.NoError(t, err)
		assert.Equal(t, 4, remaining(t, game))

		game, err = svc.MakeMove(ctx, game.ID, "p2", takePayload(t, 1))
		require.NoError(t, err)
		assert.Equal(t, 3, remaining(t, game))

		game, err = svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 3))
		require.NoError(t, err)

		// Then: p1 emptied the pile and loses, p2 is the sole winner
		assert.Equal(t, 0, remaining(t, game))
		assert.Equal(t, entity.StatusOver, game.Status)
		assert.Equal(t, []string{"p2"}, game.Winners)
	})

	t.Run("Rejection reaches only the acting player and changes nothing", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)
		game := startGame(t, svc)

		_, err := svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 3))
		require.NoError(t, err)

		updatesBefore := len(broadcaster.StateUpdates())

		// When: p2 asks for more objects than remain
		_, err = svc.MakeMove(ctx, game.ID, "p2", takePayload(t, 3))
		require.NoError(t, err)
		_, err = svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 3))
		require.ErrorIs(t, err, apperror.ErrIllegalMove)

		// Then: a player-scoped error was emitted for p1 only
		playerErrors := broadcaster.PlayerErrors()
		require.Len(t, playerErrors, 1)
		assert.Equal(t, "p1", playerErrors[0].PlayerID)
		assert.Equal(t, apperror.KindIllegalMove, playerErrors[0].Kind)

		// Then: the pile is unchanged and no snapshot was broadcast for
		// the rejected move
		current, err := svc.GetGame(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, remaining(t, current))
		assert.Len(t, broadcaster.StateUpdates(), updatesBefore+1)
	})

	t.Run("Moving out of turn is rejected", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)
		game := startGame(t, svc)

		// When: p2 moves first
		_, err := svc.MakeMove(ctx, game.ID, "p2", takePayload(t, 1))

		// Then: the move is rejected and reported to p2
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)

		playerErrors := broadcaster.PlayerErrors()
		require.Len(t, playerErrors, 1)
		assert.Equal(t, "p2", playerErrors[0].PlayerID)
		assert.Equal(t, apperror.KindNotYourTurn, playerErrors[0].Kind)
	})

	t.Run("Moving before the game starts is rejected", func(t *testing.T) {
		svc, _, broadcaster := newTestService(t)

		game, err := svc.CreateGame(ctx, subtraction.Name)
		require.NoError(t, err)
		_, err = svc.JoinGame(ctx, game.ID, "p1")
		require.NoError(t, err)

		// When: the seated player moves while the game waits
		_, err = svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 1))

		// Then: the move is rejected with the right kind
		require.ErrorIs(t, err, apperror.ErrGameNotInProgress)

		playerErrors := broadcaster.PlayerErrors()
		require.Len(t, playerErrors, 1)
		assert.Equal(t, apperror.KindGameNotInProgress, playerErrors[0].Kind)
	})

	t.Run("Persistence failure leaves the move unapplied", func(t *testing.T) {
		svc, gameRepo, broadcaster := newTestService(t)
		game := startGame(t, svc)

		updatesBefore := len(broadcaster.StateUpdates())

		// When: the store refuses the commit
		gameRepo.FailNextWrite(errors.New("redis down"))

		_, err := svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 3))

		// Then: the error surfaces and neither copy advanced
		require.Error(t, err)

		current, getErr := svc.GetGame(ctx, game.ID)
		require.NoError(t, getErr)
		assert.Equal(t, testPile, remaining(t, current))
		assert.Len(t, broadcaster.StateUpdates(), updatesBefore)

		// When: the store recovers
		next, err := svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 3))

		// Then: the same move applies cleanly
		require.NoError(t, err)
		assert.Equal(t, testPile-3, remaining(t, next))
	})

	t.Run("Concurrent moves commit at most one per turn", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		game := startGame(t, svc)

		// When: p1 submits the same turn twice concurrently
		results := make(chan error, 2)

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.MakeMove(ctx, game.ID, "p1", takePayload(t, 1))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		// Then: exactly one commit wins, the other is out of turn
		var successes, rejections int
		for err := range results {
			if err == nil {
				successes++
				continue
			}
			require.ErrorIs(t, err, apperror.ErrNotYourTurn)
			rejections++
		}

		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, rejections)

		current, err := svc.GetGame(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, testPile-1, remaining(t, current))
	})
}

func TestGamePlayService_GetGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Rehydrates from storage after a restart", func(t *testing.T) {
		// Given: a game that exists only in storage
		variants := variant.NewRegistry()
		variants.Register(subtraction.New(testPile))

		gameRepo := fakes.NewGameRepo()
		broadcaster := fakes.NewBroadcaster()

		stored := entity.NewGame("survivor", subtraction.Name, 2)
		stored.Seats[0] = "p1"
		require.NoError(t, gameRepo.CreateOrUpdate(ctx, stored))

		// When: a fresh engine (empty arena) looks it up
		svc := NewGamePlayService(fakes.Logger(), variants, arena.New(), gameRepo, broadcaster)
		game, err := svc.GetGame(ctx, "survivor")

		// Then: the persisted snapshot is served and joinable again
		require.NoError(t, err)
		assert.Equal(t, "p1", game.Seats[0])

		joined, err := svc.JoinGame(ctx, "survivor", "p2")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusInProgress, joined.Status)
	})

	t.Run("Unknown game", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.GetGame(ctx, "ghost")

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}
