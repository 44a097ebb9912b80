package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pilegames/gamesession-backend/internal/service"
)

func Start(logger *slog.Logger, port string, games service.GamePlayService) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", pingHandler)

	gamesHandler := NewGamesHandler(logger, games)
	mux.HandleFunc("GET /games/{id}", gamesHandler.GetGame)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
