package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/application/queries"
	"loom-backend/application/queries/bus"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// GetMessageHandler returns a single message by ID with the same ownership
// masking as the graph fetch
type GetMessageHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	logger           *zap.Logger
}

// NewGetMessageHandler creates the handler
func NewGetMessageHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	logger *zap.Logger,
) *GetMessageHandler {
	return &GetMessageHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		logger:           logger,
	}
}

// Handle executes the message fetch
func (h *GetMessageHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetMessageQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	id, err := valueobjects.NewMessageIDFromString(q.MessageID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	msg, err := h.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	conv, err := h.conversationRepo.GetByID(ctx, msg.ConversationID())
	if err != nil {
		return nil, err
	}
	if !conv.IsOwnedBy(q.UserID) {
		return nil, pkgerrors.NewNotFoundError("message")
	}

	return queries.NewMessageView(msg), nil
}
