package websocket

import (
	"encoding/json"

	"github.com/pilegames/gamesession-backend/internal/entity"
)

// Message is the envelope for everything on the wire, both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload carries the request or response body of a Message.
type Payload struct {
	Player *entity.Player  `json:"player,omitempty"`
	Game   *entity.Game    `json:"game,omitempty"`
	Move   json.RawMessage `json:"move,omitempty"`
	Kind   string          `json:"kind,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client-initiated actions.
const (
	actionConnect   = "connect"
	actionGameNew   = "game:new"
	actionGameJoin  = "game:join"
	actionGameLeave = "game:leave"
	actionGameTurn  = "game:turn"
	actionGameState = "game:state"
)

// Server-pushed actions.
const (
	actionGameUpdate = "game:update"
	actionGameError  = "game:error"
)
