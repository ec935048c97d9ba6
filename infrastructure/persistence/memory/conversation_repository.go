package memory

import (
	"context"
	"sync"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// ConversationRepository is a thread-safe in-memory conversation store
type ConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*entities.Conversation
}

// NewConversationRepository creates an empty store
func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		conversations: make(map[string]*entities.Conversation),
	}
}

// Save persists a snapshot of the conversation
func (r *ConversationRepository) Save(ctx context.Context, conv *entities.Conversation) error {
	snapshot, err := snapshotConversation(conv)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conv.ID().String()] = snapshot
	return nil
}

// GetByID retrieves a copy of a conversation
func (r *ConversationRepository) GetByID(ctx context.Context, id valueobjects.ConversationID) (*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("conversation")
	}
	return snapshotConversation(conv)
}

// GetByUserID retrieves copies of all conversations owned by a user
func (r *ConversationRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Conversation
	for _, conv := range r.conversations {
		if conv.IsOwnedBy(userID) {
			snapshot, err := snapshotConversation(conv)
			if err != nil {
				return nil, err
			}
			out = append(out, snapshot)
		}
	}
	return out, nil
}

// Delete removes a conversation
func (r *ConversationRepository) Delete(ctx context.Context, id valueobjects.ConversationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[id.String()]; !ok {
		return pkgerrors.NewNotFoundError("conversation")
	}
	delete(r.conversations, id.String())
	return nil
}

func snapshotConversation(conv *entities.Conversation) (*entities.Conversation, error) {
	return entities.ReconstructConversation(
		conv.ID(),
		conv.UserID(),
		conv.Title(),
		conv.CollectionID(),
		conv.CreatedAt(),
		conv.UpdatedAt(),
	)
}
