package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/pilegames/gamesession-backend/internal/entity"
)

// subjectPattern matches every per-game event subject.
const subjectPattern = "game.*.events"

// NATSBroadcaster delivers events over NATS, one subject per game.
type NATSBroadcaster struct {
	logger *slog.Logger
	conn   *nats.Conn
}

func NewNATSBroadcaster(logger *slog.Logger, url string) (*NATSBroadcaster, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSBroadcaster{
		logger: logger.With("component", "nats-broadcaster"),
		conn:   conn,
	}, nil
}

func (that *NATSBroadcaster) PublishStateUpdate(_ context.Context, game *entity.Game) error {
	event := &Event{
		Type:   EventStateUpdate,
		GameID: game.ID,
		Game:   game,
	}

	return that.publish(event)
}

func (that *NATSBroadcaster) PublishPlayerError(_ context.Context, gameID, playerID, kind, message string) error {
	event := &Event{
		Type:     EventPlayerError,
		GameID:   gameID,
		PlayerID: playerID,
		Kind:     kind,
		Message:  message,
	}

	return that.publish(event)
}

func (that *NATSBroadcaster) publish(event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = that.conn.Publish(gameSubject(event.GameID), payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (that *NATSBroadcaster) Subscribe(ctx context.Context) (<-chan *Event, error) {
	events := make(chan *Event, eventBufferSize)

	var mu sync.Mutex
	closed := false

	sub, err := that.conn.Subscribe(subjectPattern, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			that.logger.Error("failed to unmarshal event", "subject", msg.Subject, "error", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()

		if closed {
			return
		}

		select {
		case events <- &event:
		default:
			// fire-and-forget: a slow consumer drops events rather than
			// blocking the dispatch goroutine
			that.logger.Warn("dropping event, subscriber is slow", "gameID", event.GameID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()

		if err := sub.Unsubscribe(); err != nil {
			that.logger.Error("failed to unsubscribe", "error", err)
		}

		mu.Lock()
		defer mu.Unlock()

		closed = true
		close(events)
	}()

	return events, nil
}

func (that *NATSBroadcaster) Close() error {
	that.conn.Close()
	return nil
}

func gameSubject(gameID string) string {
	return "game." + gameID + ".events"
}
