package ports

import (
	"context"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
)

// MessageRepository defines the interface for message persistence.
// This is a port in hexagonal architecture - the domain doesn't know about
// the implementation.
type MessageRepository interface {
	// Save persists a message (create or update)
	Save(ctx context.Context, msg *entities.Message) error

	// GetByID retrieves a message by its ID
	GetByID(ctx context.Context, id valueobjects.MessageID) (*entities.Message, error)

	// GetByConversationID retrieves all messages of a conversation
	GetByConversationID(ctx context.Context, conversationID valueobjects.ConversationID) ([]*entities.Message, error)

	// Delete removes a message
	Delete(ctx context.Context, id valueobjects.MessageID) error

	// SaveTx registers a save within a unit of work
	SaveTx(ctx context.Context, uow UnitOfWork, msg *entities.Message) error

	// DeleteTx registers a delete within a unit of work
	DeleteTx(ctx context.Context, uow UnitOfWork, id valueobjects.MessageID) error
}

// ConversationRepository defines the interface for conversation persistence
type ConversationRepository interface {
	// Save persists a conversation (create or update)
	Save(ctx context.Context, conv *entities.Conversation) error

	// GetByID retrieves a conversation by its ID
	GetByID(ctx context.Context, id valueobjects.ConversationID) (*entities.Conversation, error)

	// GetByUserID retrieves all conversations owned by a user
	GetByUserID(ctx context.Context, userID string) ([]*entities.Conversation, error)

	// Delete removes a conversation (messages are deleted separately)
	Delete(ctx context.Context, id valueobjects.ConversationID) error
}

// UnitOfWork accumulates writes and commits them atomically. Batch mutations
// (reparent-and-delete, thread delete, batch reposition) must go through a
// unit of work so a failure mid-batch leaves no partially-applied state.
type UnitOfWork interface {
	// Commit applies every registered write in one transaction
	Commit(ctx context.Context) error

	// Size returns the number of registered writes
	Size() int
}

// UnitOfWorkFactory creates fresh units of work
type UnitOfWorkFactory interface {
	New() UnitOfWork
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// CompletionChunk is one increment of a streamed model response
type CompletionChunk struct {
	Content      string
	Done         bool
	InputTokens  int
	OutputTokens int
}

// CompletionTurn is one history entry handed to the completion service
type CompletionTurn struct {
	Role    valueobjects.Role
	Content string
}

// CompletionService is the opaque LLM collaborator. Callers send the linear
// history from root to the active message and consume a chunk stream; the
// channel is closed after the final chunk. Errors observed mid-stream arrive
// on the error channel, and whatever content was already accumulated is kept
// by the caller.
type CompletionService interface {
	Stream(ctx context.Context, model string, history []CompletionTurn) (<-chan CompletionChunk, <-chan error, error)
}
