package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"loom-backend/application/queries"
	querybus "loom-backend/application/queries/bus"
	"loom-backend/pkg/auth"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
)

// GraphHandler serves the message graph read endpoint
type GraphHandler struct {
	queryBus *querybus.QueryBus
	logger   *zap.Logger
}

// NewGraphHandler creates the handler
func NewGraphHandler(queryBus *querybus.QueryBus, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		queryBus: queryBus,
		logger:   logger,
	}
}

// GetGraph handles GET /conversations/{id}/graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	conversationID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(conversationID); err != nil {
		respondError(w, pkgerrors.NewValidationError("conversation ID must be a valid UUID"))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetGraphQuery{
		UserID:         user.UserID,
		ConversationID: conversationID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}
