package memory

import (
	"context"
	"sync"

	"quiz-battle/internal/domain"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	mu     sync.Mutex
	active map[string]string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		active: make(map[string]string),
	}
}

func (r *SessionRegistry) Acquire(_ context.Context, userID, battleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[userID]; ok {
		return domain.ErrSessionActive
	}
	r.active[userID] = battleID
	return nil
}

func (r *SessionRegistry) Release(_ context.Context, userID, battleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[userID] == battleID {
		delete(r.active, userID)
	}
}

// Active returns the battle userID is currently playing.
func (r *SessionRegistry) Active(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	battleID, ok := r.active[userID]
	return battleID, ok
}
