package commands

import (
	pkgerrors "loom-backend/pkg/errors"
)

// CreateConversationCommand starts a new conversation for a user. The
// conversation ID is pre-generated by the caller.
type CreateConversationCommand struct {
	UserID         string `json:"user_id" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Title          string `json:"title" validate:"max=200"`
}

// Validate checks the command invariants
func (c CreateConversationCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.ConversationID == "" {
		return pkgerrors.NewValidationError("conversationID is required")
	}
	return nil
}

// RenameConversationCommand changes a conversation title
type RenameConversationCommand struct {
	UserID         string `json:"user_id" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Title          string `json:"title" validate:"required,min=1,max=200"`
}

// Validate checks the command invariants
func (c RenameConversationCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.ConversationID == "" {
		return pkgerrors.NewValidationError("conversationID is required")
	}
	if c.Title == "" {
		return pkgerrors.NewValidationError("title is required")
	}
	return nil
}

// DeleteConversationCommand removes a conversation and every message in it
type DeleteConversationCommand struct {
	UserID         string `json:"user_id" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

// Validate checks the command invariants
func (c DeleteConversationCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.ConversationID == "" {
		return pkgerrors.NewValidationError("conversationID is required")
	}
	return nil
}
