package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pilegames/gamesession-backend/internal/broadcast"
	"github.com/pilegames/gamesession-backend/internal/entity"
	"github.com/pilegames/gamesession-backend/internal/service"
)

type subscriber interface {
	Subscribe(ctx context.Context) (<-chan *broadcast.Event, error)
}

type handlerFunc func(ctx context.Context, conn *connection, msg *Message) error

type Server struct {
	logger *slog.Logger

	games   service.GamePlayService
	players service.PlayerService
	events  subscriber

	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]*connection         // playerID -> connection
	subscribers map[string]map[string]struct{} // gameID -> playerIDs

	handlers map[string]handlerFunc
}

// connection wraps one websocket client. gorilla allows a single concurrent
// writer per connection, so every write goes through the connection's mutex.
type connection struct {
	conn *websocket.Conn

	mu       sync.Mutex
	playerID string
}

func New(logger *slog.Logger, games service.GamePlayService, players service.PlayerService, events subscriber) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		games:   games,
		players: players,
		events:  events,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},

		connections: make(map[string]*connection),
		subscribers: make(map[string]map[string]struct{}),

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionConnect] = server.handleConnect
	server.handlers[actionGameNew] = server.handleNewGame
	server.handlers[actionGameJoin] = server.handleJoinGame
	server.handlers[actionGameLeave] = server.handleLeaveGame
	server.handlers[actionGameTurn] = server.handleGameTurn
	server.handlers[actionGameState] = server.handleGameState

	return server
}

// Start - starts the WebSocket server and the broadcast event pump.
func (that *Server) Start(ctx context.Context, port string) error {
	events, err := that.events.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to broadcast events: %w", err)
	}

	go that.pumpEvents(events)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	// no read/idle timeouts: websocket connections are long-lived
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	wsConn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := &connection{conn: wsConn}

	defer func() {
		that.dropConnection(conn)

		if err = wsConn.Close(); err != nil {
			log.Debug("failed to close connection", "error", err)
		}
	}()

	log.Info("WebSocket connection established", "remote", wsConn.RemoteAddr().String())

	that.readMessages(ctx, conn)
}

// readMessages - processes messages from the client until the connection drops.
func (that *Server) readMessages(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "readMessages")

	for {
		_, raw, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(raw, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// pumpEvents routes broadcast events to locally connected subscribers.
// Player-scoped events go only to the addressed player's connection.
func (that *Server) pumpEvents(events <-chan *broadcast.Event) {
	log := that.logger.With("method", "pumpEvents")

	for event := range events {
		switch event.Type {
		case broadcast.EventPlayerError:
			payload := Payload{Kind: event.Kind, Error: event.Message}
			that.sendToPlayer(event.PlayerID, actionGameError, payload)
		case broadcast.EventStateUpdate:
			payload := Payload{Game: event.Game}
			for _, playerID := range that.subscribersOf(event.GameID) {
				that.sendToPlayer(playerID, actionGameUpdate, payload)
			}
		default:
			log.Warn("unknown event type", "type", event.Type)
		}
	}
}

func (that *Server) registerConnection(conn *connection, playerID string) {
	conn.mu.Lock()
	conn.playerID = playerID
	conn.mu.Unlock()

	that.mu.Lock()
	that.connections[playerID] = conn
	that.mu.Unlock()
}

func (that *Server) dropConnection(conn *connection) {
	conn.mu.Lock()
	playerID := conn.playerID
	conn.mu.Unlock()

	if playerID == "" {
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.connections[playerID] == conn {
		delete(that.connections, playerID)
	}
}

// subscribe adds the player to a game's delivery set.
func (that *Server) subscribe(gameID, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	set, ok := that.subscribers[gameID]
	if !ok {
		set = make(map[string]struct{})
		that.subscribers[gameID] = set
	}

	set[playerID] = struct{}{}
}

func (that *Server) subscribersOf(gameID string) []string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	players := make([]string, 0, len(that.subscribers[gameID]))
	for playerID := range that.subscribers[gameID] {
		players = append(players, playerID)
	}

	return players
}

func (that *Server) sendToPlayer(playerID, action string, payload Payload) {
	that.mu.RLock()
	conn, ok := that.connections[playerID]
	that.mu.RUnlock()

	if !ok {
		return // player is not connected to this node
	}

	if err := that.send(conn, action, payload); err != nil {
		that.logger.Error("failed to send message", "playerID", playerID, "action", action, "error", err)
	}
}

func (that *Server) send(conn *connection, action string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := Message{Action: action, Payload: body}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if err = conn.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *Server) sendError(conn *connection, action, kind, errorMsg string) error {
	payload := Payload{Kind: kind, Error: errorMsg}
	if err := that.send(conn, action, payload); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

func (that *Server) sendGame(conn *connection, action string, player *entity.Player, game *entity.Game) error {
	payload := Payload{Player: player, Game: game}
	if err := that.send(conn, action, payload); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	return nil
}
