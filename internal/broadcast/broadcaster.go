package broadcast

import (
	"context"

	"github.com/pilegames/gamesession-backend/internal/entity"
)

const (
	EventStateUpdate = "state"
	EventPlayerError = "error"
)

// Event is the envelope published after every committed transition or
// rejected action. A non-empty PlayerID narrows delivery to that player's
// connection; otherwise the event goes to every subscriber of the game.
type Event struct {
	Type     string       `json:"type"`
	GameID   string       `json:"game_id"`
	PlayerID string       `json:"player_id,omitempty"`
	Game     *entity.Game `json:"game,omitempty"`
	Kind     string       `json:"kind,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// Broadcaster publishes engine events to session subscribers. Publishing is
// fire-and-forget: the engine considers a state change committed before
// delivery and never retries.
type Broadcaster interface {
	PublishStateUpdate(ctx context.Context, game *entity.Game) error
	PublishPlayerError(ctx context.Context, gameID, playerID, kind, message string) error

	// Subscribe returns a channel of events for every game. The channel is
	// closed when ctx is canceled.
	Subscribe(ctx context.Context) (<-chan *Event, error)

	Close() error
}
