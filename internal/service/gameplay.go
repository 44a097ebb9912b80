package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pilegames/gamesession-backend/internal/apperror"
	"github.com/pilegames/gamesession-backend/internal/arena"
	"github.com/pilegames/gamesession-backend/internal/entity"
	"github.com/pilegames/gamesession-backend/internal/pkg"
	"github.com/pilegames/gamesession-backend/internal/variant"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
}

type broadcaster interface {
	PublishStateUpdate(ctx context.Context, game *entity.Game) error
	PublishPlayerError(ctx context.Context, gameID, playerID, kind, message string) error
}

type GamePlayService interface {
	CreateGame(ctx context.Context, variantName string) (*entity.Game, error)
	JoinGame(ctx context.Context, gameID, playerID string) (*entity.Game, error)
	LeaveGame(ctx context.Context, gameID, playerID string) (*entity.Game, error)
	MakeMove(ctx context.Context, gameID, playerID string, payload json.RawMessage) (*entity.Game, error)
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
}

// gamePlayService is the session engine. Every mutation of a game instance
// runs inside the arena's per-game critical section: read, validate, persist,
// commit. Persistence happens before the in-memory commit, so a storage
// failure leaves both copies on the pre-move state. Broadcasts go out after
// the commit and are never retried.
type gamePlayService struct {
	logger *slog.Logger

	variants    *variant.Registry
	arena       *arena.Arena
	gameRepo    gameRepo
	broadcaster broadcaster
}

func NewGamePlayService(logger *slog.Logger, variants *variant.Registry, gameArena *arena.Arena, gameRepo gameRepo, broadcaster broadcaster) GamePlayService {
	return &gamePlayService{
		logger:      logger.With("component", "gameplay"),
		variants:    variants,
		arena:       gameArena,
		gameRepo:    gameRepo,
		broadcaster: broadcaster,
	}
}

func (that *gamePlayService) CreateGame(ctx context.Context, variantName string) (*entity.Game, error) {
	v, ok := that.variants.Get(variantName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownVariant, variantName)
	}

	game, err := v.NewGame(pkg.GenerateGameID())
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if err = that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to persist game: %w", err)
	}

	that.arena.Put(game)
	that.broadcastState(ctx, game)

	return game, nil
}

func (that *gamePlayService) JoinGame(ctx context.Context, gameID, playerID string) (*entity.Game, error) {
	if err := that.ensureLoaded(ctx, gameID); err != nil {
		return nil, err
	}

	var changed bool

	game, err := that.arena.WithGame(gameID, func(g *entity.Game) (*entity.Game, error) {
		// Rejoining an occupied seat is idempotent.
		if g.SeatOf(playerID) >= 0 {
			return g, nil
		}

		seat := g.VacantSeat()
		if seat < 0 {
			return nil, fmt.Errorf("%w: game id %s", apperror.ErrGameFull, gameID)
		}

		g.Seats[seat] = playerID

		// Filling the last seat is what starts the game. Turn order is
		// fixed by seat order: seat 0 moves first.
		if g.AllSeatsTaken() {
			g.Status = entity.StatusInProgress
		}

		if err := that.gameRepo.CreateOrUpdate(ctx, g); err != nil {
			return nil, fmt.Errorf("failed to persist game: %w", err)
		}

		changed = true

		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join game: %w", err)
	}

	if changed {
		that.broadcastState(ctx, game)
	}

	return game, nil
}

func (that *gamePlayService) LeaveGame(ctx context.Context, gameID, playerID string) (*entity.Game, error) {
	if err := that.ensureLoaded(ctx, gameID); err != nil {
		return nil, err
	}

	var changed bool

	game, err := that.arena.WithGame(gameID, func(g *entity.Game) (*entity.Game, error) {
		// Leaving a finished game, or one the player never sat in, is a
		// no-op that returns the current snapshot.
		if g.IsOver() || g.SeatOf(playerID) < 0 {
			return g, nil
		}

		switch {
		case g.IsWaiting():
			g.VacateSeat(playerID)
		case g.IsInProgress():
			// Forfeit by abandonment: the remaining player wins. The
			// leaver's seat stays in the record.
			g.Status = entity.StatusOver
			g.Winners = g.Opponents(playerID)
		}

		if err := that.gameRepo.CreateOrUpdate(ctx, g); err != nil {
			return nil, fmt.Errorf("failed to persist game: %w", err)
		}

		changed = true

		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to leave game: %w", err)
	}

	if changed {
		that.broadcastState(ctx, game)
	}

	return game, nil
}

func (that *gamePlayService) MakeMove(ctx context.Context, gameID, playerID string, payload json.RawMessage) (*entity.Game, error) {
	if err := that.ensureLoaded(ctx, gameID); err != nil {
		return nil, err
	}

	game, err := that.arena.WithGame(gameID, func(g *entity.Game) (*entity.Game, error) {
		v, ok := that.variants.Get(g.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownVariant, g.Type)
		}

		next, applyErr := v.Apply(g, playerID, payload)
		if applyErr != nil {
			return nil, applyErr
		}

		if persistErr := that.gameRepo.CreateOrUpdate(ctx, next); persistErr != nil {
			return nil, fmt.Errorf("failed to persist game: %w", persistErr)
		}

		return next, nil
	})
	if err != nil {
		// Rejections are reported to the acting player only; the session
		// state is untouched and no snapshot is broadcast.
		if apperror.IsRejection(err) {
			that.notifyPlayerError(ctx, gameID, playerID, err)
		}

		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	that.broadcastState(ctx, game)

	return game, nil
}

func (that *gamePlayService) GetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	if err := that.ensureLoaded(ctx, gameID); err != nil {
		return nil, err
	}

	game, err := that.arena.Get(gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// ensureLoaded rehydrates the arena from storage after a restart. Concurrent
// rehydrations of the same game are safe: Put keeps the first instance.
func (that *gamePlayService) ensureLoaded(ctx context.Context, gameID string) error {
	if _, err := that.arena.Get(gameID); err == nil {
		return nil
	} else if !errors.Is(err, apperror.ErrGameNotFound) {
		return fmt.Errorf("failed to get game: %w", err)
	}

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to load game: %w", err)
	}

	that.arena.Put(game)

	return nil
}

func (that *gamePlayService) broadcastState(ctx context.Context, game *entity.Game) {
	if err := that.broadcaster.PublishStateUpdate(ctx, game); err != nil {
		that.logger.Error("failed to broadcast state update", "gameID", game.ID, "error", err)
	}
}

func (that *gamePlayService) notifyPlayerError(ctx context.Context, gameID, playerID string, cause error) {
	kind := apperror.Kind(cause)

	if err := that.broadcaster.PublishPlayerError(ctx, gameID, playerID, kind, cause.Error()); err != nil {
		that.logger.Error("failed to publish player error", "gameID", gameID, "playerID", playerID, "error", err)
	}
}
