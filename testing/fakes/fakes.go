// Package fakes holds hand-written in-memory doubles for the engine's
// collaborators, used by unit tests that should not need Docker.
package fakes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pilegames/gamesession-backend/internal/apperror"
	"github.com/pilegames/gamesession-backend/internal/entity"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// GameRepo is an in-memory stand-in for the Redis game repository.
type GameRepo struct {
	mu        sync.Mutex
	games     map[string]*entity.Game
	nextError error
}

func NewGameRepo() *GameRepo {
	return &GameRepo{games: make(map[string]*entity.Game)}
}

// FailNextWrite makes the next CreateOrUpdate call return err.
func (that *GameRepo) FailNextWrite(err error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.nextError = err
}

func (that *GameRepo) CreateOrUpdate(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.nextError != nil {
		err := that.nextError
		that.nextError = nil

		return err
	}

	that.games[game.ID] = game.Clone()

	return nil
}

func (that *GameRepo) GetByID(_ context.Context, id string) (*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrGameNotFound, id)
	}

	return game.Clone(), nil
}

// PlayerError is one recorded player-scoped error notification.
type PlayerError struct {
	GameID   string
	PlayerID string
	Kind     string
	Message  string
}

// Broadcaster records every publish instead of delivering it.
type Broadcaster struct {
	mu           sync.Mutex
	stateUpdates []*entity.Game
	playerErrors []PlayerError
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (that *Broadcaster) PublishStateUpdate(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stateUpdates = append(that.stateUpdates, game.Clone())

	return nil
}

func (that *Broadcaster) PublishPlayerError(_ context.Context, gameID, playerID, kind, message string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.playerErrors = append(that.playerErrors, PlayerError{
		GameID:   gameID,
		PlayerID: playerID,
		Kind:     kind,
		Message:  message,
	})

	return nil
}

// StateUpdates returns a copy of every broadcast snapshot so far.
func (that *Broadcaster) StateUpdates() []*entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	updates := make([]*entity.Game, len(that.stateUpdates))
	copy(updates, that.stateUpdates)

	return updates
}

// PlayerErrors returns a copy of every player-scoped error so far.
func (that *Broadcaster) PlayerErrors() []PlayerError {
	that.mu.Lock()
	defer that.mu.Unlock()

	playerErrors := make([]PlayerError, len(that.playerErrors))
	copy(playerErrors, that.playerErrors)

	return playerErrors
}
