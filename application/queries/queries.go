package queries

import (
	pkgerrors "loom-backend/pkg/errors"
)

// GetGraphQuery fetches the full message graph of a conversation
type GetGraphQuery struct {
	UserID         string `json:"user_id" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

// Validate checks the query invariants
func (q GetGraphQuery) Validate() error {
	if q.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if q.ConversationID == "" {
		return pkgerrors.NewValidationError("conversationID is required")
	}
	return nil
}

// GetMessageQuery fetches a single message
type GetMessageQuery struct {
	UserID    string `json:"user_id" validate:"required"`
	MessageID string `json:"message_id" validate:"required,uuid"`
}

// Validate checks the query invariants
func (q GetMessageQuery) Validate() error {
	if q.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if q.MessageID == "" {
		return pkgerrors.NewValidationError("messageID is required")
	}
	return nil
}

// ListConversationsQuery fetches every conversation owned by a user
type ListConversationsQuery struct {
	UserID string `json:"user_id" validate:"required"`
}

// Validate checks the query invariants
func (q ListConversationsQuery) Validate() error {
	if q.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	return nil
}
