package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
)

// Store is the slice of the persistence layer the registry needs to revive a conversation.
type Store interface {
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	ResearchData(ctx context.Context, conversationID string) (models.ResearchData, error)
}

// Registry hands out the single State instance per conversation, reviving it from the
// store on first access. Handlers go through the registry so the request goroutine and the
// turn goroutine always share one State.
type Registry struct {
	mu     sync.Mutex
	states map[string]*State

	store Store
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		states: make(map[string]*State),
		store:  store,
	}
}

// Get returns the State for conversationID, loading persisted history on first access.
func (r *Registry) Get(ctx context.Context, conversationID string) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.states[conversationID]; ok {
		return state, nil
	}

	history, err := r.store.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	research, err := r.store.ResearchData(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load research data: %w", err)
	}

	state := NewState(conversationID, history, research)
	r.states[conversationID] = state
	return state, nil
}
