package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	"loom-backend/domain/events"
)

// DeleteConversationHandler removes a conversation and every message in it.
// The messages go through a unit of work; the conversation row is removed
// after they commit, so a failed batch leaves the conversation intact.
type DeleteConversationHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	uowFactory       ports.UnitOfWorkFactory
	eventPublisher   ports.EventPublisher
	logger           *zap.Logger
}

// NewDeleteConversationHandler creates the handler
func NewDeleteConversationHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	uowFactory ports.UnitOfWorkFactory,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *DeleteConversationHandler {
	return &DeleteConversationHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		uowFactory:       uowFactory,
		eventPublisher:   eventPublisher,
		logger:           logger,
	}
}

// Handle executes the conversation delete
func (h *DeleteConversationHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DeleteConversationCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	conv, err := loadOwnedConversation(ctx, h.conversationRepo, c.UserID, c.ConversationID)
	if err != nil {
		return err
	}

	all, err := h.messageRepo.GetByConversationID(ctx, conv.ID())
	if err != nil {
		return err
	}

	uow := h.uowFactory.New()
	for _, msg := range all {
		if err := h.messageRepo.DeleteTx(ctx, uow, msg.ID()); err != nil {
			return err
		}
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}

	if err := h.conversationRepo.Delete(ctx, conv.ID()); err != nil {
		return err
	}

	publishEvents(ctx, h.eventPublisher, h.logger, []events.DomainEvent{
		events.NewConversationDeleted(conv.ID(), c.UserID, len(all), time.Now()),
	})

	h.logger.Debug("conversation deleted",
		zap.String("conversation_id", c.ConversationID),
		zap.Int("messages_removed", len(all)))

	return nil
}
