package events

import (
	"time"

	"loom-backend/domain/core/valueobjects"
)

// Message events

// MessageCreated is raised when a new message is created
type MessageCreated struct {
	BaseEvent
	MessageID      valueobjects.MessageID      `json:"message_id"`
	ConversationID valueobjects.ConversationID `json:"conversation_id"`
	Role           valueobjects.Role           `json:"role"`
	ParentID       valueobjects.MessageID      `json:"parent_id"`
}

// NewMessageCreated creates a MessageCreated event
func NewMessageCreated(id valueobjects.MessageID, conversationID valueobjects.ConversationID, role valueobjects.Role, parentID valueobjects.MessageID, timestamp time.Time) MessageCreated {
	return MessageCreated{
		BaseEvent: BaseEvent{
			AggregateID: id.String(),
			EventType:   "message.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		MessageID:      id,
		ConversationID: conversationID,
		Role:           role,
		ParentID:       parentID,
	}
}

// MessageMoved is raised when a message is moved to a new canvas position
type MessageMoved struct {
	BaseEvent
	MessageID   valueobjects.MessageID `json:"message_id"`
	OldPosition valueobjects.Position  `json:"-"`
	NewX        float64                `json:"x"`
	NewY        float64                `json:"y"`
}

// NewMessageMoved creates a MessageMoved event
func NewMessageMoved(id valueobjects.MessageID, oldPosition, newPosition valueobjects.Position, timestamp time.Time) MessageMoved {
	return MessageMoved{
		BaseEvent: BaseEvent{
			AggregateID: id.String(),
			EventType:   "message.moved",
			Timestamp:   timestamp,
			Version:     1,
		},
		MessageID:   id,
		OldPosition: oldPosition,
		NewX:        newPosition.X(),
		NewY:        newPosition.Y(),
	}
}

// MessageAttached is raised when a message is reparented (nil parent = detach)
type MessageAttached struct {
	BaseEvent
	MessageID   valueobjects.MessageID `json:"message_id"`
	OldParentID valueobjects.MessageID `json:"old_parent_id"`
	NewParentID valueobjects.MessageID `json:"new_parent_id"`
}

// NewMessageAttached creates a MessageAttached event
func NewMessageAttached(id, oldParentID, newParentID valueobjects.MessageID, timestamp time.Time) MessageAttached {
	return MessageAttached{
		BaseEvent: BaseEvent{
			AggregateID: id.String(),
			EventType:   "message.attached",
			Timestamp:   timestamp,
			Version:     1,
		},
		MessageID:   id,
		OldParentID: oldParentID,
		NewParentID: newParentID,
	}
}

// MessageDuplicated is raised when a message is copied into a new node
type MessageDuplicated struct {
	BaseEvent
	SourceID valueobjects.MessageID `json:"source_id"`
	CopyID   valueobjects.MessageID `json:"copy_id"`
}

// NewMessageDuplicated creates a MessageDuplicated event
func NewMessageDuplicated(sourceID, copyID valueobjects.MessageID, timestamp time.Time) MessageDuplicated {
	return MessageDuplicated{
		BaseEvent: BaseEvent{
			AggregateID: copyID.String(),
			EventType:   "message.duplicated",
			Timestamp:   timestamp,
			Version:     1,
		},
		SourceID: sourceID,
		CopyID:   copyID,
	}
}

// MessageDeleted is raised when a single message is removed and its direct
// children are reattached to its former parent
type MessageDeleted struct {
	BaseEvent
	MessageID       valueobjects.MessageID `json:"message_id"`
	FormerParentID  valueobjects.MessageID `json:"former_parent_id"`
	ReattachedCount int                    `json:"reattached_count"`
}

// NewMessageDeleted creates a MessageDeleted event
func NewMessageDeleted(id, formerParentID valueobjects.MessageID, reattachedCount int, timestamp time.Time) MessageDeleted {
	return MessageDeleted{
		BaseEvent: BaseEvent{
			AggregateID: id.String(),
			EventType:   "message.deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		MessageID:       id,
		FormerParentID:  formerParentID,
		ReattachedCount: reattachedCount,
	}
}

// ThreadDeleted is raised when a message and its whole subtree are removed
type ThreadDeleted struct {
	BaseEvent
	RootID     valueobjects.MessageID `json:"root_id"`
	DeletedIDs []string               `json:"deleted_ids"`
}

// NewThreadDeleted creates a ThreadDeleted event
func NewThreadDeleted(rootID valueobjects.MessageID, deletedIDs []string, timestamp time.Time) ThreadDeleted {
	return ThreadDeleted{
		BaseEvent: BaseEvent{
			AggregateID: rootID.String(),
			EventType:   "message.thread_deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		RootID:     rootID,
		DeletedIDs: deletedIDs,
	}
}

// MessagesMoved is raised for an atomic batch reposition
type MessagesMoved struct {
	BaseEvent
	ConversationID valueobjects.ConversationID `json:"conversation_id"`
	MessageIDs     []string                    `json:"message_ids"`
}

// NewMessagesMoved creates a MessagesMoved event
func NewMessagesMoved(conversationID valueobjects.ConversationID, messageIDs []string, timestamp time.Time) MessagesMoved {
	return MessagesMoved{
		BaseEvent: BaseEvent{
			AggregateID: conversationID.String(),
			EventType:   "message.batch_moved",
			Timestamp:   timestamp,
			Version:     1,
		},
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
	}
}

// Conversation events

// ConversationCreated is raised when a conversation is created
type ConversationCreated struct {
	BaseEvent
	ConversationID valueobjects.ConversationID `json:"conversation_id"`
	UserID         string                      `json:"user_id"`
	Title          string                      `json:"title"`
}

// NewConversationCreated creates a ConversationCreated event
func NewConversationCreated(id valueobjects.ConversationID, userID, title string, timestamp time.Time) ConversationCreated {
	return ConversationCreated{
		BaseEvent: BaseEvent{
			AggregateID: id.String(),
			EventType:   "conversation.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		ConversationID: id,
		UserID:         userID,
		Title:          title,
	}
}

// ConversationDeleted is raised when a conversation and its messages are removed
type ConversationDeleted struct {
	BaseEvent
	ConversationID valueobjects.ConversationID `json:"conversation_id"`
	UserID         string                      `json:"user_id"`
	MessageCount   int                         `json:"message_count"`
}

// NewConversationDeleted creates a ConversationDeleted event
func NewConversationDeleted(id valueobjects.ConversationID, userID string, messageCount int, timestamp time.Time) ConversationDeleted {
	return ConversationDeleted{
		BaseEvent: BaseEvent{
			AggregateID: id.String(),
			EventType:   "conversation.deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		ConversationID: id,
		UserID:         userID,
		MessageCount:   messageCount,
	}
}
