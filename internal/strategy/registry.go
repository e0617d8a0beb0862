package strategy

import (
	"fmt"
	"sync"

	"github.com/raykavin/marketcascade/internal/core"
)

// Registry maps strategy ids to implementations. It is populated at
// startup and read-only afterwards; the mutex only guards against
// misbehaving init order.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns a registry pre-loaded with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register(NewDefault())
	return r
}

// Register adds or replaces a strategy under its own id.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.ID()] = s
}

// Get resolves a strategy id, wrapping ErrUnknownStrategy when absent so
// callers can decide whether to fall back or abort.
func (r *Registry) Get(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownStrategy, id)
	}
	return s, nil
}

// IDs returns the registered strategy ids, unordered.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		out = append(out, id)
	}
	return out
}
