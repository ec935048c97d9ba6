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
	"loom-backend/domain/events"
)

// DeleteMessageHandler removes one message and reattaches its direct children
// to the deleted message's former parent. If the deleted message was a root
// its children become roots. Reattachments and the delete commit as one
// transaction.
type DeleteMessageHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	uowFactory       ports.UnitOfWorkFactory
	eventPublisher   ports.EventPublisher
	logger           *zap.Logger
}

// NewDeleteMessageHandler creates the handler
func NewDeleteMessageHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	uowFactory ports.UnitOfWorkFactory,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *DeleteMessageHandler {
	return &DeleteMessageHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		uowFactory:       uowFactory,
		eventPublisher:   eventPublisher,
		logger:           logger,
	}
}

// Handle executes the single-message delete
func (h *DeleteMessageHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DeleteMessageCommand)
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

	formerParentID := msg.ParentID()
	children := tree.Children(all, c.MessageID)

	uow := h.uowFactory.New()
	for _, child := range children {
		// Reattaching to the former parent cannot introduce a cycle: the
		// chain above the former parent is unchanged and the deleted node
		// leaves it
		if err := child.AttachTo(formerParentID); err != nil {
			return err
		}
		if err := h.messageRepo.SaveTx(ctx, uow, child); err != nil {
			return err
		}
	}

	if err := h.messageRepo.DeleteTx(ctx, uow, msg.ID()); err != nil {
		return err
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	for _, child := range children {
		child.MarkEventsAsCommitted()
	}

	if c.Result != nil {
		c.Result.DeletedIDs = []string{c.MessageID}
		c.Result.ReattachedCount = len(children)
	}

	publishEvents(ctx, h.eventPublisher, h.logger, []events.DomainEvent{
		events.NewMessageDeleted(msg.ID(), formerParentID, len(children), time.Now()),
	})

	h.logger.Debug("message deleted",
		zap.String("message_id", c.MessageID),
		zap.Int("reattached_children", len(children)))

	return nil
}
