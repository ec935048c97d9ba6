package handlers

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/application/queries"
	"loom-backend/application/queries/bus"
)

// ListConversationsHandler returns a user's conversations, most recently
// updated first
type ListConversationsHandler struct {
	conversationRepo ports.ConversationRepository
	logger           *zap.Logger
}

// NewListConversationsHandler creates the handler
func NewListConversationsHandler(
	conversationRepo ports.ConversationRepository,
	logger *zap.Logger,
) *ListConversationsHandler {
	return &ListConversationsHandler{
		conversationRepo: conversationRepo,
		logger:           logger,
	}
}

// Handle executes the listing
func (h *ListConversationsHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ListConversationsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	convs, err := h.conversationRepo.GetByUserID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt().After(convs[j].UpdatedAt())
	})

	views := make([]queries.ConversationView, len(convs))
	for i, conv := range convs {
		views[i] = queries.NewConversationView(conv)
	}

	return views, nil
}
