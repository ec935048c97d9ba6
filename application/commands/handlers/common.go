package handlers

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	domainconfig "loom-backend/domain/config"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/layout"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// loadOwnedMessage fetches a message and checks that its conversation belongs
// to the caller. A message owned by someone else is reported as not found so
// existence does not leak across users.
func loadOwnedMessage(
	ctx context.Context,
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	userID, messageID string,
) (*entities.Message, *entities.Conversation, error) {
	id, err := valueobjects.NewMessageIDFromString(messageID)
	if err != nil {
		return nil, nil, pkgerrors.NewValidationError(err.Error())
	}

	msg, err := messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	conv, err := conversationRepo.GetByID(ctx, msg.ConversationID())
	if err != nil {
		return nil, nil, err
	}

	if !conv.IsOwnedBy(userID) {
		return nil, nil, pkgerrors.NewNotFoundError("message")
	}

	return msg, conv, nil
}

// loadOwnedConversation fetches a conversation and checks ownership, with the
// same not-found masking as loadOwnedMessage
func loadOwnedConversation(
	ctx context.Context,
	conversationRepo ports.ConversationRepository,
	userID, conversationID string,
) (*entities.Conversation, error) {
	id, err := valueobjects.NewConversationIDFromString(conversationID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	conv, err := conversationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !conv.IsOwnedBy(userID) {
		return nil, pkgerrors.NewNotFoundError("conversation")
	}

	return conv, nil
}

// layoutConfigFrom builds the layout spacing from the domain configuration
func layoutConfigFrom(cfg *domainconfig.DomainConfig) layout.Config {
	return layout.Config{
		HorizontalSpacing: cfg.LayoutHorizontalSpacing,
		VerticalSpacing:   cfg.LayoutVerticalSpacing,
		RootX:             cfg.LayoutRootX,
		RootY:             cfg.LayoutRootY,
	}
}

// publishEvents sends domain events best-effort. Event delivery failures are
// logged and swallowed; the state change already committed.
func publishEvents(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evts []events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.PublishBatch(ctx, evts); err != nil {
		logger.Warn("failed to publish domain events",
			zap.Int("count", len(evts)),
			zap.Error(err))
	}
}
