package entities

import (
	"strings"
	"time"

	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// Conversation owns an ordered set of messages and anchors every ownership
// check: a mutation is allowed only if the message's conversation belongs to
// the caller.
type Conversation struct {
	id           valueobjects.ConversationID
	userID       string
	title        string
	collectionID string
	createdAt    time.Time
	updatedAt    time.Time

	events []events.DomainEvent
}

// NewConversation creates a conversation for a user
func NewConversation(userID, title string) (*Conversation, error) {
	return NewConversationWithID(valueobjects.NewConversationID(), userID, title)
}

// NewConversationWithID creates a conversation under a caller-supplied
// identity
func NewConversationWithID(id valueobjects.ConversationID, userID, title string) (*Conversation, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("conversation ID cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "New conversation"
	}

	now := time.Now()
	conv := &Conversation{
		id:        id,
		userID:    userID,
		title:     title,
		createdAt: now,
		updatedAt: now,
		events:    []events.DomainEvent{},
	}

	conv.addEvent(events.NewConversationCreated(conv.id, userID, title, now))

	return conv, nil
}

// ReconstructConversation rebuilds a conversation from repository data
func ReconstructConversation(
	id valueobjects.ConversationID,
	userID, title, collectionID string,
	createdAt, updatedAt time.Time,
) (*Conversation, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("conversation ID cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}

	return &Conversation{
		id:           id,
		userID:       userID,
		title:        title,
		collectionID: collectionID,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		events:       []events.DomainEvent{},
	}, nil
}

// ID returns the conversation's unique identifier
func (c *Conversation) ID() valueobjects.ConversationID { return c.id }

// UserID returns the owner's ID
func (c *Conversation) UserID() string { return c.userID }

// Title returns the conversation title
func (c *Conversation) Title() string { return c.title }

// CollectionID returns the owning collection, if any
func (c *Conversation) CollectionID() string { return c.collectionID }

// CreatedAt returns when the conversation was created
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns when the conversation was last updated
func (c *Conversation) UpdatedAt() time.Time { return c.updatedAt }

// IsOwnedBy checks whether the conversation belongs to the given user
func (c *Conversation) IsOwnedBy(userID string) bool {
	return c.userID == userID
}

// Rename changes the conversation title
func (c *Conversation) Rename(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}

	c.title = title
	c.updatedAt = time.Now()
	return nil
}

// MoveToCollection assigns the conversation to a collection ("" clears it)
func (c *Conversation) MoveToCollection(collectionID string) {
	c.collectionID = collectionID
	c.updatedAt = time.Now()
}

// Touch bumps the updatedAt timestamp after a message mutation
func (c *Conversation) Touch() {
	c.updatedAt = time.Now()
}

// GetUncommittedEvents returns all uncommitted domain events
func (c *Conversation) GetUncommittedEvents() []events.DomainEvent {
	return c.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (c *Conversation) MarkEventsAsCommitted() {
	c.events = []events.DomainEvent{}
}

func (c *Conversation) addEvent(event events.DomainEvent) {
	c.events = append(c.events, event)
}
