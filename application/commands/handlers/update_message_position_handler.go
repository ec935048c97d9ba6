package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	"loom-backend/domain/core/valueobjects"
)

// UpdateMessagePositionHandler moves a single message on the canvas
type UpdateMessagePositionHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	eventPublisher   ports.EventPublisher
	logger           *zap.Logger
}

// NewUpdateMessagePositionHandler creates the handler
func NewUpdateMessagePositionHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *UpdateMessagePositionHandler {
	return &UpdateMessagePositionHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		eventPublisher:   eventPublisher,
		logger:           logger,
	}
}

// Handle executes the position update
func (h *UpdateMessagePositionHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.UpdateMessagePositionCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	msg, _, err := loadOwnedMessage(ctx, h.messageRepo, h.conversationRepo, c.UserID, c.MessageID)
	if err != nil {
		return err
	}

	position, err := valueobjects.NewPosition(c.X, c.Y)
	if err != nil {
		return err
	}

	msg.MoveTo(position)

	if err := h.messageRepo.Save(ctx, msg); err != nil {
		return err
	}

	publishEvents(ctx, h.eventPublisher, h.logger, msg.GetUncommittedEvents())
	msg.MarkEventsAsCommitted()

	h.logger.Debug("message repositioned",
		zap.String("message_id", c.MessageID),
		zap.Float64("x", c.X),
		zap.Float64("y", c.Y))

	return nil
}
