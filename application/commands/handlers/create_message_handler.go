package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	domainconfig "loom-backend/domain/config"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/layout"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// CreateMessageHandler adds a new turn to a conversation. The node is placed
// by the layout rules for incremental placement: below the parent for a first
// child, right of the rightmost sibling otherwise, right of the rightmost
// root for a new root.
type CreateMessageHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	eventPublisher   ports.EventPublisher
	config           *domainconfig.DomainConfig
	logger           *zap.Logger
}

// NewCreateMessageHandler creates the handler
func NewCreateMessageHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	eventPublisher ports.EventPublisher,
	config *domainconfig.DomainConfig,
	logger *zap.Logger,
) *CreateMessageHandler {
	return &CreateMessageHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		eventPublisher:   eventPublisher,
		config:           config,
		logger:           logger,
	}
}

// Handle executes the message creation
func (h *CreateMessageHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.CreateMessageCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	conv, err := loadOwnedConversation(ctx, h.conversationRepo, c.UserID, c.ConversationID)
	if err != nil {
		return err
	}

	role, err := valueobjects.NewRole(c.Role)
	if err != nil {
		return err
	}

	if len(c.Content) > h.config.MaxContentLength {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("content exceeds the maximum length of %d", h.config.MaxContentLength))
	}
	if c.Content == "" && !h.config.AllowEmptyContent {
		return pkgerrors.NewValidationError("content cannot be empty")
	}

	all, err := h.messageRepo.GetByConversationID(ctx, conv.ID())
	if err != nil {
		return err
	}
	if len(all) >= h.config.MaxMessagesPerConversation {
		return pkgerrors.NewConflictError(
			fmt.Sprintf("conversation is at the maximum of %d messages", h.config.MaxMessagesPerConversation))
	}

	parentID := valueobjects.MessageID{}
	if c.ParentID != "" {
		parentID, err = valueobjects.NewMessageIDFromString(c.ParentID)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
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
	}

	id, err := valueobjects.NewMessageIDFromString(c.MessageID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	point := layout.NewNodePosition(c.ParentID, all, layoutConfigFrom(h.config))
	position, err := valueobjects.NewPosition(point.X, point.Y)
	if err != nil {
		return err
	}

	msg, err := entities.NewMessageWithID(id, conv.ID(), role, c.Content, parentID, position)
	if err != nil {
		return err
	}
	if c.Model != "" {
		msg.SetModel(c.Model)
	}

	if err := h.messageRepo.Save(ctx, msg); err != nil {
		return err
	}

	conv.Touch()
	if err := h.conversationRepo.Save(ctx, conv); err != nil {
		h.logger.Warn("failed to touch conversation after message create",
			zap.String("conversation_id", c.ConversationID),
			zap.Error(err))
	}

	publishEvents(ctx, h.eventPublisher, h.logger, msg.GetUncommittedEvents())
	msg.MarkEventsAsCommitted()

	h.logger.Debug("message created",
		zap.String("message_id", c.MessageID),
		zap.String("conversation_id", c.ConversationID),
		zap.String("role", c.Role))

	return nil
}
