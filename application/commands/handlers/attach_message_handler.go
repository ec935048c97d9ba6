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

// AttachMessageHandler reparents a message, or detaches it when no parent is
// given. The cycle check is authoritative here: the full conversation is
// loaded and the ancestor chain re-derived server-side, never trusted from
// the client.
type AttachMessageHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	eventPublisher   ports.EventPublisher
	logger           *zap.Logger
}

// NewAttachMessageHandler creates the handler
func NewAttachMessageHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *AttachMessageHandler {
	return &AttachMessageHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		eventPublisher:   eventPublisher,
		logger:           logger,
	}
}

// Handle executes the reparent
func (h *AttachMessageHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.AttachMessageCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	msg, _, err := loadOwnedMessage(ctx, h.messageRepo, h.conversationRepo, c.UserID, c.MessageID)
	if err != nil {
		return err
	}

	parentID, err := h.resolveParent(ctx, msg.ConversationID(), c.MessageID, c.ParentID)
	if err != nil {
		return err
	}

	if err := msg.AttachTo(parentID); err != nil {
		return err
	}

	if err := h.messageRepo.Save(ctx, msg); err != nil {
		return err
	}

	publishEvents(ctx, h.eventPublisher, h.logger, msg.GetUncommittedEvents())
	msg.MarkEventsAsCommitted()

	h.logger.Debug("message reparented",
		zap.String("message_id", c.MessageID),
		zap.String("parent_id", c.ParentID))

	return nil
}

// resolveParent validates the target parent against the full conversation.
// An empty raw parent resolves to the zero ID (detach). The parent must live
// in the same conversation, and the move is rejected when the message is on
// the parent's own ancestor chain.
func (h *AttachMessageHandler) resolveParent(
	ctx context.Context,
	conversationID valueobjects.ConversationID,
	messageID, rawParentID string,
) (valueobjects.MessageID, error) {
	if rawParentID == "" {
		return valueobjects.MessageID{}, nil
	}

	parentID, err := valueobjects.NewMessageIDFromString(rawParentID)
	if err != nil {
		return valueobjects.MessageID{}, pkgerrors.NewValidationError(err.Error())
	}

	all, err := h.messageRepo.GetByConversationID(ctx, conversationID)
	if err != nil {
		return valueobjects.MessageID{}, err
	}

	parentExists := false
	for _, m := range all {
		if m.ID().Equals(parentID) {
			parentExists = true
			break
		}
	}
	if !parentExists {
		return valueobjects.MessageID{}, pkgerrors.NewNotFoundError("parent message")
	}

	// The chain includes the parent itself, so self-parenting is caught too
	if tree.IsAncestor(all, messageID, rawParentID) {
		return valueobjects.MessageID{}, pkgerrors.NewCycleError()
	}

	return parentID, nil
}
