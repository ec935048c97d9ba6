package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
)

// RenameConversationHandler changes a conversation title
type RenameConversationHandler struct {
	conversationRepo ports.ConversationRepository
	logger           *zap.Logger
}

// NewRenameConversationHandler creates the handler
func NewRenameConversationHandler(
	conversationRepo ports.ConversationRepository,
	logger *zap.Logger,
) *RenameConversationHandler {
	return &RenameConversationHandler{
		conversationRepo: conversationRepo,
		logger:           logger,
	}
}

// Handle executes the rename
func (h *RenameConversationHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.RenameConversationCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	conv, err := loadOwnedConversation(ctx, h.conversationRepo, c.UserID, c.ConversationID)
	if err != nil {
		return err
	}

	if err := conv.Rename(c.Title); err != nil {
		return err
	}

	return h.conversationRepo.Save(ctx, conv)
}
