package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"loom-backend/application/commands"
	cmdbus "loom-backend/application/commands/bus"
	"loom-backend/application/queries"
	querybus "loom-backend/application/queries/bus"
	"loom-backend/pkg/auth"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
	"loom-backend/pkg/utils"
)

// ConversationHandler serves the conversation CRUD endpoints
type ConversationHandler struct {
	commandBus *cmdbus.CommandBus
	queryBus   *querybus.QueryBus
	logger     *zap.Logger
}

// NewConversationHandler creates the handler
func NewConversationHandler(commandBus *cmdbus.CommandBus, queryBus *querybus.QueryBus, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		logger:     logger,
	}
}

type createConversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// Create handles POST /conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authUser(w, r)
	if !ok {
		return
	}

	var req createConversationRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	conversationID := uuid.New().String()

	err := h.commandBus.Send(r.Context(), commands.CreateConversationCommand{
		UserID:         user.UserID,
		ConversationID: conversationID,
		Title:          req.Title,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    conversationID,
		"title": req.Title,
	})
}

// List handles GET /conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authUser(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListConversationsQuery{
		UserID: user.UserID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

type renameConversationRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
}

// Rename handles PATCH /conversations/{id}
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	user, conversationID, ok := h.authAndConversationID(w, r)
	if !ok {
		return
	}

	var req renameConversationRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	err := h.commandBus.Send(r.Context(), commands.RenameConversationCommand{
		UserID:         user.UserID,
		ConversationID: conversationID,
		Title:          req.Title,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"id":    conversationID,
		"title": req.Title,
	})
}

// Delete handles DELETE /conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, conversationID, ok := h.authAndConversationID(w, r)
	if !ok {
		return
	}

	err := h.commandBus.Send(r.Context(), commands.DeleteConversationCommand{
		UserID:         user.UserID,
		ConversationID: conversationID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"id": conversationID,
	})
}

type createMessageRequest struct {
	Role    string  `json:"role" validate:"required,oneof=user assistant system"`
	Text    string  `json:"text"`
	Model   string  `json:"model"`
	ReplyTo *string `json:"replyTo" validate:"omitempty,uuid"`
}

// CreateMessage handles POST /conversations/{id}/messages
func (h *ConversationHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user, conversationID, ok := h.authAndConversationID(w, r)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	parentID := ""
	if req.ReplyTo != nil {
		parentID = *req.ReplyTo
	}

	messageID := uuid.New().String()

	err := h.commandBus.Send(r.Context(), commands.CreateMessageCommand{
		UserID:         user.UserID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Role:           req.Role,
		Content:        req.Text,
		Model:          req.Model,
		ParentID:       parentID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetMessageQuery{
		UserID:    user.UserID,
		MessageID: messageID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, result)
}

func (h *ConversationHandler) authUser(w http.ResponseWriter, r *http.Request) (*auth.UserContext, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, pkgerrors.NewUnauthorizedError(""))
		return nil, false
	}
	return user, true
}

func (h *ConversationHandler) authAndConversationID(w http.ResponseWriter, r *http.Request) (*auth.UserContext, string, bool) {
	user, ok := h.authUser(w, r)
	if !ok {
		return nil, "", false
	}

	conversationID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(conversationID); err != nil {
		respondError(w, pkgerrors.NewValidationError("conversation ID must be a valid UUID"))
		return nil, "", false
	}

	return user, conversationID, true
}
