package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	"loom-backend/domain/core/tree"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// DropMessageHandler applies a drag release: new parent and new position land
// in a single write so a failure can never leave one without the other
type DropMessageHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	eventPublisher   ports.EventPublisher
	logger           *zap.Logger
}

// NewDropMessageHandler creates the handler
func NewDropMessageHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *DropMessageHandler {
	return &DropMessageHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		eventPublisher:   eventPublisher,
		logger:           logger,
	}
}

// Handle executes the drop
func (h *DropMessageHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DropMessageCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	msg, _, err := loadOwnedMessage(ctx, h.messageRepo, h.conversationRepo, c.UserID, c.MessageID)
	if err != nil {
		return err
	}

	parentID := valueobjects.MessageID{}
	if c.ParentID != "" {
		parentID, err = valueobjects.NewMessageIDFromString(c.ParentID)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}

		all, err := h.messageRepo.GetByConversationID(ctx, msg.ConversationID())
		if err != nil {
			return err
		}

		parentExists := false
		for _, m := range all {
			if m.ID().Equals(parentID) {
				parentExists = true
				break
			}
		}
		if !parentExists {
			return pkgerrors.NewNotFoundError("parent message")
		}

		if tree.IsAncestor(all, c.MessageID, c.ParentID) {
			return pkgerrors.NewCycleError()
		}
	}

	position, err := valueobjects.NewPosition(c.X, c.Y)
	if err != nil {
		return err
	}

	// Mutate both fields before the single save; nothing is persisted if
	// either step rejects
	if err := msg.AttachTo(parentID); err != nil {
		return err
	}
	msg.MoveTo(position)

	if err := h.messageRepo.Save(ctx, msg); err != nil {
		return err
	}

	publishEvents(ctx, h.eventPublisher, h.logger, msg.GetUncommittedEvents())
	msg.MarkEventsAsCommitted()

	h.logger.Debug("message dropped",
		zap.String("message_id", c.MessageID),
		zap.String("parent_id", c.ParentID),
		zap.Float64("x", c.X),
		zap.Float64("y", c.Y))

	return nil
}
