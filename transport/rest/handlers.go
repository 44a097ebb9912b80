package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pilegames/gamesession-backend/internal/apperror"
	"github.com/pilegames/gamesession-backend/internal/service"
)

type GamesHandler struct {
	logger *slog.Logger
	games  service.GamePlayService
}

func NewGamesHandler(logger *slog.Logger, games service.GamePlayService) *GamesHandler {
	return &GamesHandler{
		logger: logger.With("component", "rest"),
		games:  games,
	}
}

// GetGame returns a read-only snapshot of a game instance.
func (that *GamesHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "GetGame")

	gameID := r.PathValue("id")

	game, err := that.games.GetGame(r.Context(), gameID)
	if errors.Is(err, apperror.ErrGameNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	if err != nil {
		log.Error("failed to get game", "gameID", gameID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(game); err != nil {
		log.Error("failed to encode game", "gameID", gameID, "error", err)
	}
}
