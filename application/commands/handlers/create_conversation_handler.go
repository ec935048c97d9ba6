package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// CreateConversationHandler starts a new conversation
type CreateConversationHandler struct {
	conversationRepo ports.ConversationRepository
	eventPublisher   ports.EventPublisher
	logger           *zap.Logger
}

// NewCreateConversationHandler creates the handler
func NewCreateConversationHandler(
	conversationRepo ports.ConversationRepository,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *CreateConversationHandler {
	return &CreateConversationHandler{
		conversationRepo: conversationRepo,
		eventPublisher:   eventPublisher,
		logger:           logger,
	}
}

// Handle executes the conversation creation
func (h *CreateConversationHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.CreateConversationCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	id, err := valueobjects.NewConversationIDFromString(c.ConversationID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	conv, err := entities.NewConversationWithID(id, c.UserID, c.Title)
	if err != nil {
		return err
	}

	if err := h.conversationRepo.Save(ctx, conv); err != nil {
		return err
	}

	publishEvents(ctx, h.eventPublisher, h.logger, conv.GetUncommittedEvents())
	conv.MarkEventsAsCommitted()

	h.logger.Debug("conversation created",
		zap.String("conversation_id", c.ConversationID),
		zap.String("user_id", c.UserID))

	return nil
}
