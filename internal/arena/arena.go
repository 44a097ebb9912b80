package arena

import (
	"fmt"
	"sync"

	"github.com/pilegames/gamesession-backend/internal/apperror"
	"github.com/pilegames/gamesession-backend/internal/entity"
)

// Arena owns every live game instance. Each entry carries its own mutex, so
// operations on one game serialize against each other while distinct games
// never contend. Nothing outside the arena holds a mutable reference to a
// committed instance: Get hands out clones and WithGame commits clones.
type Arena struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	game *entity.Game
}

func New() *Arena {
	return &Arena{entries: make(map[string]*entry)}
}

// Put registers a game instance. If the ID is already present the existing
// instance is kept, which makes concurrent rehydration of the same game safe.
func (that *Arena) Put(game *entity.Game) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, exists := that.entries[game.ID]; exists {
		return
	}

	that.entries[game.ID] = &entry{game: game.Clone()}
}

// Get returns a snapshot of the instance with the given ID.
func (that *Arena) Get(id string) (*entity.Game, error) {
	ent, err := that.entry(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	return ent.game.Clone(), nil
}

// WithGame runs fn under the instance's mutex. fn receives a clone of the
// committed instance and returns its successor; on a nil error the successor
// replaces the committed instance. On any error nothing is committed. At
// most one WithGame call per game ID executes at a time.
func (that *Arena) WithGame(id string, fn func(game *entity.Game) (*entity.Game, error)) (*entity.Game, error) {
	ent, err := that.entry(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	next, err := fn(ent.game.Clone())
	if err != nil {
		return nil, err
	}

	ent.game = next

	return next.Clone(), nil
}

func (that *Arena) entry(id string) (*entry, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	ent, ok := that.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrGameNotFound, id)
	}

	return ent, nil
}
