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

// GetGraphHandler returns the full message graph of a conversation. A
// conversation owned by someone else is reported as not found.
type GetGraphHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	logger           *zap.Logger
}

// NewGetGraphHandler creates the handler
func NewGetGraphHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	logger *zap.Logger,
) *GetGraphHandler {
	return &GetGraphHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		logger:           logger,
	}
}

// Handle executes the graph fetch
func (h *GetGraphHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetGraphQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	id, err := valueobjects.NewConversationIDFromString(q.ConversationID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	conv, err := h.conversationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsOwnedBy(q.UserID) {
		return nil, pkgerrors.NewNotFoundError("conversation")
	}

	messages, err := h.messageRepo.GetByConversationID(ctx, id)
	if err != nil {
		return nil, err
	}

	return queries.NewGraphView(q.ConversationID, messages), nil
}
