package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
)

// Registry manages available actions.
// It provides thread-safe registration and lookup of actions.
type Registry struct {
	actions map[string]Action
	mu      sync.RWMutex
}

// NewRegistry creates a new empty action registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
	}
}

// Register adds an action to the registry.
// Returns an error if an action with the same ID already exists.
func (r *Registry) Register(action Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[action.ID()]; exists {
		return fmt.Errorf("action %s already registered", action.ID())
	}

	r.actions[action.ID()] = action
	return nil
}

// Unregister removes an action from the registry.
func (r *Registry) Unregister(actionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[actionID]; !exists {
		return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
	}

	delete(r.actions, actionID)
	return nil
}

// Get returns an action by ID, or nil.
func (r *Registry) Get(actionID string) Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.actions[actionID]
}

// ForChannel returns the enabled actions serving the channel, ordered by ID.
func (r *Registry) ForChannel(channel canvas.NodeType) []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var actions []Action
	for _, action := range r.actions {
		cfg := action.Config()
		if cfg.Enabled && cfg.Serves(channel) {
			actions = append(actions, action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID() < actions[j].ID() })
	return actions
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.actions)
}
