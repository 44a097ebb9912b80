package variant

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pilegames/gamesession-backend/internal/entity"
)

// Variant is a pluggable rule set selected at game-creation time. The
// engine is generic over this interface; it never inspects the state
// payload itself.
type Variant interface {
	// Name is the tag clients use to select the variant.
	Name() string

	// NumSeats is the fixed seat count of every instance of this variant.
	NumSeats() int

	// NewGame returns a fresh waiting instance with vacant seats and the
	// variant's initial state.
	NewGame(id string) (*entity.Game, error)

	// Apply validates a proposed move and returns the successor instance.
	// It must not mutate the given game: implementations clone it and
	// commit nothing themselves. On rejection the returned error wraps one
	// of apperror.ErrNotYourTurn, ErrGameNotInProgress or ErrIllegalMove.
	Apply(game *entity.Game, playerID string, payload json.RawMessage) (*entity.Game, error)

	// IsTerminal reports whether the instance can accept no further moves.
	IsTerminal(game *entity.Game) bool
}

// Registry holds all registered game variants.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Variant
}

func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]Variant)}
}

// Register adds a variant. Panics on duplicate names: variants are wired
// once at startup, a duplicate is a programming error.
func (that *Registry) Register(v Variant) {
	that.mu.Lock()
	defer that.mu.Unlock()

	name := v.Name()
	if _, exists := that.variants[name]; exists {
		panic(fmt.Sprintf("variant %q already registered", name))
	}

	that.variants[name] = v
}

// Get returns a variant by name.
func (that *Registry) Get(name string) (Variant, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	v, ok := that.variants[name]

	return v, ok
}
