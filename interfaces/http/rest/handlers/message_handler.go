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

// maxBodyBytes caps mutation request bodies
const maxBodyBytes = 1 << 20

// MessageHandler serves the message mutation endpoints
type MessageHandler struct {
	commandBus *cmdbus.CommandBus
	queryBus   *querybus.QueryBus
	logger     *zap.Logger
}

// NewMessageHandler creates the handler
func NewMessageHandler(commandBus *cmdbus.CommandBus, queryBus *querybus.QueryBus, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		logger:     logger,
	}
}

type updatePositionRequest struct {
	PositionX *float64 `json:"positionX" validate:"required"`
	PositionY *float64 `json:"positionY" validate:"required"`
}

// UpdatePosition handles PATCH /messages/{id}/position
func (h *MessageHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	user, messageID, ok := h.authAndMessageID(w, r)
	if !ok {
		return
	}

	var req updatePositionRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	err := h.commandBus.Send(r.Context(), commands.UpdateMessagePositionCommand{
		UserID:    user.UserID,
		MessageID: messageID,
		X:         *req.PositionX,
		Y:         *req.PositionY,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        messageID,
		"positionX": *req.PositionX,
		"positionY": *req.PositionY,
	})
}

type batchPositionRequest struct {
	Updates []commands.PositionUpdate `json:"updates" validate:"required,min=1,dive"`
}

// BatchUpdatePositions handles PATCH /messages/batch/position
func (h *MessageHandler) BatchUpdatePositions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authUser(w, r)
	if !ok {
		return
	}

	var req batchPositionRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	err := h.commandBus.Send(r.Context(), commands.BatchUpdatePositionsCommand{
		UserID:  user.UserID,
		Updates: req.Updates,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"updated": req.Updates,
	})
}

type attachRequest struct {
	ParentMessageID *string `json:"parentMessageId"`
}

// Attach handles PATCH /messages/{id}/attach. A null or absent
// parentMessageId detaches the message into a new root.
func (h *MessageHandler) Attach(w http.ResponseWriter, r *http.Request) {
	user, messageID, ok := h.authAndMessageID(w, r)
	if !ok {
		return
	}

	var req attachRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}

	parentID := ""
	if req.ParentMessageID != nil {
		parentID = *req.ParentMessageID
	}

	err := h.commandBus.Send(r.Context(), commands.AttachMessageCommand{
		UserID:    user.UserID,
		MessageID: messageID,
		ParentID:  parentID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"id":              messageID,
		"parentMessageId": req.ParentMessageID,
	})
}

type dropRequest struct {
	ParentMessageID *string  `json:"parentMessageId"`
	X               *float64 `json:"positionX" validate:"required"`
	Y               *float64 `json:"positionY" validate:"required"`
}

// Drop handles PATCH /messages/{id}/drop: reparent and reposition atomically
func (h *MessageHandler) Drop(w http.ResponseWriter, r *http.Request) {
	user, messageID, ok := h.authAndMessageID(w, r)
	if !ok {
		return
	}

	var req dropRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	parentID := ""
	if req.ParentMessageID != nil {
		parentID = *req.ParentMessageID
	}

	err := h.commandBus.Send(r.Context(), commands.DropMessageCommand{
		UserID:    user.UserID,
		MessageID: messageID,
		ParentID:  parentID,
		X:         *req.X,
		Y:         *req.Y,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"id":              messageID,
		"parentMessageId": req.ParentMessageID,
		"positionX":       *req.X,
		"positionY":       *req.Y,
	})
}

// Duplicate handles POST /messages/{id}/duplicate and returns the copy
func (h *MessageHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	user, messageID, ok := h.authAndMessageID(w, r)
	if !ok {
		return
	}

	newID := uuid.New().String()

	err := h.commandBus.Send(r.Context(), commands.DuplicateMessageCommand{
		UserID:       user.UserID,
		MessageID:    messageID,
		NewMessageID: newID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetMessageQuery{
		UserID:    user.UserID,
		MessageID: newID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, result)
}

// Delete handles DELETE /messages/{id}. With keepReplies=true (the default)
// direct children are reattached to the deleted message's former parent; with
// keepReplies=false the whole subtree is removed.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, messageID, ok := h.authAndMessageID(w, r)
	if !ok {
		return
	}

	keepReplies := r.URL.Query().Get("keepReplies") != "false"

	result := &commands.DeleteResult{}
	var err error
	if keepReplies {
		err = h.commandBus.Send(r.Context(), commands.DeleteMessageCommand{
			UserID:    user.UserID,
			MessageID: messageID,
			Result:    result,
		})
	} else {
		err = h.commandBus.Send(r.Context(), commands.DeleteThreadCommand{
			UserID:    user.UserID,
			MessageID: messageID,
			Result:    result,
		})
	}
	if err != nil {
		respondError(w, err)
		return
	}

	body := map[string]interface{}{
		"deletedIds": result.DeletedIDs,
	}
	if keepReplies {
		body["reattachedCount"] = result.ReattachedCount
	}
	common.RespondJSON(w, http.StatusOK, body)
}

type generateReplyRequest struct {
	ConversationID string `json:"conversationId" validate:"required,uuid"`
	Model          string `json:"model" validate:"required"`
}

// Reply handles POST /messages/{id}/reply: generate an assistant reply under
// the message
func (h *MessageHandler) Reply(w http.ResponseWriter, r *http.Request) {
	user, parentID, ok := h.authAndMessageID(w, r)
	if !ok {
		return
	}

	var req generateReplyRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, pkgerrors.NewValidationError("invalid JSON body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	newID := uuid.New().String()

	err := h.commandBus.Send(r.Context(), commands.GenerateReplyCommand{
		UserID:         user.UserID,
		ConversationID: req.ConversationID,
		MessageID:      newID,
		ParentID:       parentID,
		Model:          req.Model,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetMessageQuery{
		UserID:    user.UserID,
		MessageID: newID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, result)
}

// authUser extracts the authenticated user or responds 401
func (h *MessageHandler) authUser(w http.ResponseWriter, r *http.Request) (*auth.UserContext, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, pkgerrors.NewUnauthorizedError(""))
		return nil, false
	}
	return user, true
}

// authAndMessageID extracts the user and validates the path message ID
func (h *MessageHandler) authAndMessageID(w http.ResponseWriter, r *http.Request) (*auth.UserContext, string, bool) {
	user, ok := h.authUser(w, r)
	if !ok {
		return nil, "", false
	}

	messageID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(messageID); err != nil {
		respondError(w, pkgerrors.NewValidationError("message ID must be a valid UUID"))
		return nil, "", false
	}

	return user, messageID, true
}
