package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	domainconfig "loom-backend/domain/config"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// DuplicateMessageHandler copies a message into a sibling node offset from
// the original
type DuplicateMessageHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	eventPublisher   ports.EventPublisher
	config           *domainconfig.DomainConfig
	logger           *zap.Logger
}

// NewDuplicateMessageHandler creates the handler
func NewDuplicateMessageHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	eventPublisher ports.EventPublisher,
	config *domainconfig.DomainConfig,
	logger *zap.Logger,
) *DuplicateMessageHandler {
	return &DuplicateMessageHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		eventPublisher:   eventPublisher,
		config:           config,
		logger:           logger,
	}
}

// Handle executes the duplication
func (h *DuplicateMessageHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DuplicateMessageCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	msg, _, err := loadOwnedMessage(ctx, h.messageRepo, h.conversationRepo, c.UserID, c.MessageID)
	if err != nil {
		return err
	}

	newID, err := valueobjects.NewMessageIDFromString(c.NewMessageID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	copy, err := msg.Duplicate(newID, h.config.DuplicateOffsetX, h.config.DuplicateOffsetY)
	if err != nil {
		return err
	}

	if err := h.messageRepo.Save(ctx, copy); err != nil {
		return err
	}

	publishEvents(ctx, h.eventPublisher, h.logger, copy.GetUncommittedEvents())
	copy.MarkEventsAsCommitted()

	h.logger.Debug("message duplicated",
		zap.String("source_id", c.MessageID),
		zap.String("copy_id", c.NewMessageID))

	return nil
}
