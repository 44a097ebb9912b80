package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/pilegames/gamesession-backend/internal/arena"
	"github.com/pilegames/gamesession-backend/internal/broadcast"
	"github.com/pilegames/gamesession-backend/internal/config"
	"github.com/pilegames/gamesession-backend/internal/repository"
	"github.com/pilegames/gamesession-backend/internal/repository/storage"
	"github.com/pilegames/gamesession-backend/internal/service"
	"github.com/pilegames/gamesession-backend/internal/variant"
	"github.com/pilegames/gamesession-backend/internal/variant/subtraction"
	"github.com/pilegames/gamesession-backend/transport/rest"
	"github.com/pilegames/gamesession-backend/transport/websocket"
)

var (
	ErrAddrNotFound        = errors.New("redis address string is empty")
	ErrUnknownEventBackend = errors.New("unknown broadcast backend")
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	broadcaster, err := newBroadcaster(logger, conf, redisStorage)
	if err != nil {
		return fmt.Errorf("could not create broadcaster: %w", err)
	}

	defer func() {
		if err = broadcaster.Close(); err != nil {
			log.Error("could not close broadcaster", "error", err)
		}
	}()

	variants := variant.NewRegistry()
	variants.Register(subtraction.New(conf.Subtraction.StartingPile))

	gameRepo := repository.NewGameRepository(redisStorage)
	playerRepo := repository.NewPlayerRepository(redisStorage)

	gameArena := arena.New()
	gamePlayService := service.NewGamePlayService(logger, variants, gameArena, gameRepo, broadcaster)
	playerService := service.NewPlayerService(playerRepo)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(logger, conf.HTTPPort, gamePlayService); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gamePlayService, playerService, broadcaster)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func newBroadcaster(logger *slog.Logger, conf *config.Config, redisStorage *redis.Client) (broadcast.Broadcaster, error) {
	switch conf.Broadcast.Backend {
	case "redis":
		return broadcast.NewRedisBroadcaster(logger, redisStorage), nil
	case "nats":
		return broadcast.NewNATSBroadcaster(logger, conf.Broadcast.NATSURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventBackend, conf.Broadcast.Backend)
	}
}
