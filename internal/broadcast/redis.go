package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pilegames/gamesession-backend/internal/entity"
)

// channelPattern matches every per-game event channel.
const channelPattern = "game:*:events"

const eventBufferSize = 64

// RedisBroadcaster delivers events over Redis pub/sub, one channel per game.
type RedisBroadcaster struct {
	logger *slog.Logger
	client *redis.Client
}

func NewRedisBroadcaster(logger *slog.Logger, client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{
		logger: logger.With("component", "redis-broadcaster"),
		client: client,
	}
}

func (that *RedisBroadcaster) PublishStateUpdate(ctx context.Context, game *entity.Game) error {
	event := &Event{
		Type:   EventStateUpdate,
		GameID: game.ID,
		Game:   game,
	}

	return that.publish(ctx, event)
}

func (that *RedisBroadcaster) PublishPlayerError(ctx context.Context, gameID, playerID, kind, message string) error {
	event := &Event{
		Type:     EventPlayerError,
		GameID:   gameID,
		PlayerID: playerID,
		Kind:     kind,
		Message:  message,
	}

	return that.publish(ctx, event)
}

func (that *RedisBroadcaster) publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, gameChannel(event.GameID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (that *RedisBroadcaster) Subscribe(ctx context.Context) (<-chan *Event, error) {
	sub := that.client.PSubscribe(ctx, channelPattern)

	// Force the subscription to be established before returning, so events
	// published right after Subscribe are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	events := make(chan *Event, eventBufferSize)

	go func() {
		defer close(events)
		defer func() {
			if err := sub.Close(); err != nil {
				that.logger.Error("failed to close subscription", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					that.logger.Error("failed to unmarshal event", "channel", msg.Channel, "error", err)
					continue
				}

				events <- &event
			}
		}
	}()

	return events, nil
}

func (that *RedisBroadcaster) Close() error {
	return nil // the shared redis client is closed by its owner
}

func gameChannel(gameID string) string {
	return "game:" + gameID + ":events"
}
