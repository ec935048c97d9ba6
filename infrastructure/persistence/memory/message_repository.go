// Package memory holds in-memory repository implementations used by tests
// and local development. Entities are stored as snapshots: handler-side
// mutations become visible only through Save or a committed unit of work.
package memory

import (
	"context"
	"sort"
	"sync"

	"loom-backend/application/ports"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// MessageRepository is a thread-safe in-memory message store
type MessageRepository struct {
	mu       sync.RWMutex
	messages map[string]*entities.Message
}

// NewMessageRepository creates an empty store
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		messages: make(map[string]*entities.Message),
	}
}

// Save persists a snapshot of the message
func (r *MessageRepository) Save(ctx context.Context, msg *entities.Message) error {
	snapshot, err := snapshotMessage(msg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ID().String()] = snapshot
	return nil
}

// GetByID retrieves a copy of a message
func (r *MessageRepository) GetByID(ctx context.Context, id valueobjects.MessageID) (*entities.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("message")
	}
	return snapshotMessage(msg)
}

// GetByConversationID retrieves copies of all messages in a conversation,
// ordered by creation time
func (r *MessageRepository) GetByConversationID(ctx context.Context, conversationID valueobjects.ConversationID) ([]*entities.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Message
	for _, msg := range r.messages {
		if msg.ConversationID().Equals(conversationID) {
			snapshot, err := snapshotMessage(msg)
			if err != nil {
				return nil, err
			}
			out = append(out, snapshot)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID().String() < out[j].ID().String()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})

	return out, nil
}

// Delete removes a message
func (r *MessageRepository) Delete(ctx context.Context, id valueobjects.MessageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.messages[id.String()]; !ok {
		return pkgerrors.NewNotFoundError("message")
	}
	delete(r.messages, id.String())
	return nil
}

// SaveTx registers a save in the unit of work
func (r *MessageRepository) SaveTx(ctx context.Context, uow ports.UnitOfWork, msg *entities.Message) error {
	u, ok := uow.(*UnitOfWork)
	if !ok {
		return pkgerrors.NewInternalError("unit of work is not a memory unit of work")
	}

	snapshot, err := snapshotMessage(msg)
	if err != nil {
		return err
	}

	u.register(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.messages[snapshot.ID().String()] = snapshot
	})
	return nil
}

// DeleteTx registers a delete in the unit of work
func (r *MessageRepository) DeleteTx(ctx context.Context, uow ports.UnitOfWork, id valueobjects.MessageID) error {
	u, ok := uow.(*UnitOfWork)
	if !ok {
		return pkgerrors.NewInternalError("unit of work is not a memory unit of work")
	}

	u.register(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.messages, id.String())
	})
	return nil
}

// Count returns the number of stored messages
func (r *MessageRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

func snapshotMessage(msg *entities.Message) (*entities.Message, error) {
	return entities.ReconstructMessage(
		msg.ID(),
		msg.ConversationID(),
		msg.Role(),
		msg.Content(),
		msg.Model(),
		msg.ParentID(),
		msg.Position(),
		msg.IsRootNode(),
		msg.RootNodeName(),
		msg.IsError(),
		msg.InputTokens(),
		msg.OutputTokens(),
		msg.CreatedAt(),
		msg.UpdatedAt(),
	)
}
