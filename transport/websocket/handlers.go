package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pilegames/gamesession-backend/internal/apperror"
	"github.com/pilegames/gamesession-backend/internal/entity"
)

var errPlayerRequired = errors.New("player is missing in payload")

func (that *Server) handleConnect(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleConnect")

	var payloadReq Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	var playerID string
	if payloadReq.Player != nil {
		playerID = payloadReq.Player.ID
	}

	player, err := that.players.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		log.Error("failed to create or get player", "error", err)
		return that.sendError(conn, msg.Action, apperror.KindInternal, "failed to create a new player")
	}

	that.registerConnection(conn, player.ID)

	// A reconnecting player picks their game back up.
	if player.GameID != "" {
		game, err := that.games.GetGame(ctx, player.GameID)
		if err != nil {
			log.Error("failed to get game", "gameID", player.GameID, "error", err)
			return that.sendGame(conn, msg.Action, player, nil)
		}

		that.subscribe(game.ID, player.ID)

		return that.sendGame(conn, msg.Action, player, game)
	}

	log.Info("successfully connected player", "playerID", player.ID)

	return that.sendGame(conn, msg.Action, player, nil)
}

func (that *Server) handleNewGame(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleNewGame")

	payloadReq, player, err := that.identify(ctx, conn, msg)
	if err != nil {
		return err
	}

	if payloadReq.Game == nil || payloadReq.Game.Type == "" {
		log.Error("Game variant is missing in payload")
		return that.sendError(conn, msg.Action, apperror.KindUnknownVariant, "game variant is required")
	}

	game, err := that.games.CreateGame(ctx, payloadReq.Game.Type)
	if err != nil {
		log.Error("failed to create game", "variant", payloadReq.Game.Type, "error", err)
		return that.sendError(conn, msg.Action, apperror.Kind(err), "failed to create a new game")
	}

	that.subscribe(game.ID, player.ID)

	log.Info("game created", "gameID", game.ID, "variant", game.Type)

	return that.sendGame(conn, msg.Action, player, game)
}

func (that *Server) handleJoinGame(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleJoinGame")

	payloadReq, player, err := that.identify(ctx, conn, msg)
	if err != nil {
		return err
	}

	if payloadReq.Game == nil || payloadReq.Game.ID == "" {
		log.Error("Game is missing in payload")
		return that.sendError(conn, msg.Action, apperror.KindNotFound, "game id is required")
	}

	game, err := that.games.JoinGame(ctx, payloadReq.Game.ID, player.ID)
	if err != nil {
		log.Error("failed to join game", "gameID", payloadReq.Game.ID, "error", err)
		return that.sendError(conn, msg.Action, apperror.Kind(err), fmt.Sprintf("game %s: %v", payloadReq.Game.ID, err))
	}

	that.subscribe(game.ID, player.ID)

	player.GameID = game.ID
	if err = that.players.UpdatePlayer(ctx, player); err != nil {
		log.Error("failed to update player", "playerID", player.ID, "error", err)
	}

	log.Info("Player joined game", "gameID", game.ID, "playerID", player.ID)

	return that.sendGame(conn, msg.Action, player, game)
}

func (that *Server) handleLeaveGame(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleLeaveGame")

	payloadReq, player, err := that.identify(ctx, conn, msg)
	if err != nil {
		return err
	}

	gameID := player.GameID
	if payloadReq.Game != nil && payloadReq.Game.ID != "" {
		gameID = payloadReq.Game.ID
	}

	if gameID == "" {
		log.Error("Game is missing in payload")
		return that.sendError(conn, msg.Action, apperror.KindNotFound, "game id is required")
	}

	game, err := that.games.LeaveGame(ctx, gameID, player.ID)
	if err != nil {
		log.Error("failed to leave game", "gameID", gameID, "error", err)
		return that.sendError(conn, msg.Action, apperror.Kind(err), fmt.Sprintf("game %s: %v", gameID, err))
	}

	player.GameID = ""
	if err = that.players.UpdatePlayer(ctx, player); err != nil {
		log.Error("failed to update player", "playerID", player.ID, "error", err)
	}

	log.Info("Player left game", "gameID", game.ID, "playerID", player.ID)

	return that.sendGame(conn, msg.Action, player, game)
}

func (that *Server) handleGameTurn(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleGameTurn")

	payloadReq, player, err := that.identify(ctx, conn, msg)
	if err != nil {
		return err
	}

	gameID := player.GameID
	if payloadReq.Game != nil && payloadReq.Game.ID != "" {
		gameID = payloadReq.Game.ID
	}

	if gameID == "" {
		log.Error("Game is missing in payload")
		return that.sendError(conn, msg.Action, apperror.KindNotFound, "game id is required")
	}

	if len(payloadReq.Move) == 0 {
		log.Error("Move is missing in payload")
		return that.sendError(conn, msg.Action, apperror.KindIllegalMove, "move is required")
	}

	game, err := that.games.MakeMove(ctx, gameID, player.ID, payloadReq.Move)
	if err != nil {
		log.Error("failed to make move", "gameID", gameID, "playerID", player.ID, "error", err)
		return that.sendError(conn, msg.Action, apperror.Kind(err), fmt.Sprintf("game %s: %v", gameID, err))
	}

	log.Info("Player made a move", "gameID", game.ID, "playerID", player.ID)

	return that.sendGame(conn, msg.Action, player, game)
}

// handleGameState subscribes the caller as an observer and returns the
// current snapshot.
func (that *Server) handleGameState(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleGameState")

	payloadReq, player, err := that.identify(ctx, conn, msg)
	if err != nil {
		return err
	}

	if payloadReq.Game == nil || payloadReq.Game.ID == "" {
		log.Error("Game is missing in payload")
		return that.sendError(conn, msg.Action, apperror.KindNotFound, "game id is required")
	}

	game, err := that.games.GetGame(ctx, payloadReq.Game.ID)
	if err != nil {
		log.Error("failed to get game", "gameID", payloadReq.Game.ID, "error", err)
		return that.sendError(conn, msg.Action, apperror.Kind(err), fmt.Sprintf("game %s: %v", payloadReq.Game.ID, err))
	}

	that.subscribe(game.ID, player.ID)

	return that.sendGame(conn, msg.Action, player, game)
}

// identify unmarshals the payload and resolves the acting player, binding
// the connection to them.
func (that *Server) identify(ctx context.Context, conn *connection, msg *Message) (*Payload, *entity.Player, error) {
	var payloadReq Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	if payloadReq.Player == nil || payloadReq.Player.ID == "" {
		if err := that.sendError(conn, msg.Action, apperror.KindInternal, "player is required"); err != nil {
			return nil, nil, err
		}

		return nil, nil, errPlayerRequired
	}

	player, err := that.players.GetOrCreatePlayer(ctx, payloadReq.Player.ID)
	if err != nil {
		if sendErr := that.sendError(conn, msg.Action, apperror.KindInternal, "failed to resolve player"); sendErr != nil {
			return nil, nil, sendErr
		}

		return nil, nil, fmt.Errorf("failed to resolve player: %w", err)
	}

	that.registerConnection(conn, player.ID)

	return &payloadReq, player, nil
}
