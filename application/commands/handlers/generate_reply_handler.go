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
	"loom-backend/domain/core/tree"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// GenerateReplyHandler creates an assistant message under a parent and fills
// it from the completion stream. The prompt is the linear chain from the root
// down to the parent; sibling branches never leak into it. A stream failure
// keeps whatever content already arrived and flags the message instead of
// discarding it.
type GenerateReplyHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	completions      ports.CompletionService
	eventPublisher   ports.EventPublisher
	config           *domainconfig.DomainConfig
	logger           *zap.Logger
}

// NewGenerateReplyHandler creates the handler
func NewGenerateReplyHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	completions ports.CompletionService,
	eventPublisher ports.EventPublisher,
	config *domainconfig.DomainConfig,
	logger *zap.Logger,
) *GenerateReplyHandler {
	return &GenerateReplyHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		completions:      completions,
		eventPublisher:   eventPublisher,
		config:           config,
		logger:           logger,
	}
}

// Handle executes the reply generation
func (h *GenerateReplyHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.GenerateReplyCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	conv, err := loadOwnedConversation(ctx, h.conversationRepo, c.UserID, c.ConversationID)
	if err != nil {
		return err
	}

	all, err := h.messageRepo.GetByConversationID(ctx, conv.ID())
	if err != nil {
		return err
	}

	parentID, err := valueobjects.NewMessageIDFromString(c.ParentID)
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

	id, err := valueobjects.NewMessageIDFromString(c.MessageID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	point := layout.NewNodePosition(c.ParentID, all, layoutConfigFrom(h.config))
	position, err := valueobjects.NewPosition(point.X, point.Y)
	if err != nil {
		return err
	}

	msg, err := entities.NewMessageWithID(id, conv.ID(), valueobjects.RoleAssistant, "", parentID, position)
	if err != nil {
		return err
	}
	msg.SetModel(c.Model)

	// Persist the placeholder first so the node is visible while streaming
	if err := h.messageRepo.Save(ctx, msg); err != nil {
		return err
	}

	history := buildHistory(all, c.ParentID)

	chunks, errs, err := h.completions.Stream(ctx, c.Model, history)
	if err != nil {
		msg.MarkError()
		if saveErr := h.messageRepo.Save(ctx, msg); saveErr != nil {
			h.logger.Error("failed to persist errored reply",
				zap.String("message_id", c.MessageID),
				zap.Error(saveErr))
		}
		return pkgerrors.NewExternalError("completion", err)
	}

	for chunk := range chunks {
		msg.AppendContent(chunk.Content)
		if chunk.Done {
			msg.RecordUsage(chunk.InputTokens, chunk.OutputTokens)
		}
	}

	// The producer closes errs after the chunk channel, so this receive
	// cannot hang
	if streamErr := <-errs; streamErr != nil {
		msg.MarkError()
		h.logger.Warn("completion stream failed, keeping partial content",
			zap.String("message_id", c.MessageID),
			zap.Int("content_length", len(msg.Content())),
			zap.Error(streamErr))
	}

	if err := h.messageRepo.Save(ctx, msg); err != nil {
		return err
	}

	conv.Touch()
	if err := h.conversationRepo.Save(ctx, conv); err != nil {
		h.logger.Warn("failed to touch conversation after reply",
			zap.String("conversation_id", c.ConversationID),
			zap.Error(err))
	}

	publishEvents(ctx, h.eventPublisher, h.logger, msg.GetUncommittedEvents())
	msg.MarkEventsAsCommitted()

	h.logger.Debug("reply generated",
		zap.String("message_id", c.MessageID),
		zap.String("model", c.Model),
		zap.Bool("errored", msg.IsError()))

	return nil
}

// buildHistory maps the ancestor chain [root, ..., parent] to completion
// turns
func buildHistory(all []*entities.Message, parentID string) []ports.CompletionTurn {
	chain := tree.Ancestors(all, parentID)
	history := make([]ports.CompletionTurn, 0, len(chain))
	for _, m := range chain {
		history = append(history, ports.CompletionTurn{
			Role:    m.Role(),
			Content: m.Content(),
		})
	}
	return history
}
