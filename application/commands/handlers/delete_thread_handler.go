package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	"loom-backend/domain/core/tree"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
)

// DeleteThreadHandler removes a message and every transitive descendant in
// one transaction. Nothing is reattached.
type DeleteThreadHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	uowFactory       ports.UnitOfWorkFactory
	eventPublisher   ports.EventPublisher
	logger           *zap.Logger
}

// NewDeleteThreadHandler creates the handler
func NewDeleteThreadHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	uowFactory ports.UnitOfWorkFactory,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *DeleteThreadHandler {
	return &DeleteThreadHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		uowFactory:       uowFactory,
		eventPublisher:   eventPublisher,
		logger:           logger,
	}
}

// Handle executes the subtree delete
func (h *DeleteThreadHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DeleteThreadCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	msg, _, err := loadOwnedMessage(ctx, h.messageRepo, h.conversationRepo, c.UserID, c.MessageID)
	if err != nil {
		return err
	}

	all, err := h.messageRepo.GetByConversationID(ctx, msg.ConversationID())
	if err != nil {
		return err
	}

	doomed := tree.SubtreeIDs(all, c.MessageID)

	uow := h.uowFactory.New()
	for _, id := range doomed {
		messageID, err := valueobjects.NewMessageIDFromString(id)
		if err != nil {
			return err
		}
		if err := h.messageRepo.DeleteTx(ctx, uow, messageID); err != nil {
			return err
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	if c.Result != nil {
		c.Result.DeletedIDs = doomed
	}

	publishEvents(ctx, h.eventPublisher, h.logger, []events.DomainEvent{
		events.NewThreadDeleted(msg.ID(), doomed, time.Now()),
	})

	h.logger.Debug("thread deleted",
		zap.String("root_id", c.MessageID),
		zap.Int("removed", len(doomed)))

	return nil
}
