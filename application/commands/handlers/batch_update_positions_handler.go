package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	"loom-backend/application/ports"
	domainconfig "loom-backend/domain/config"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// BatchUpdatePositionsHandler repositions several messages in one atomic
// write. Every referenced message must resolve and be owned by the caller; a
// single bad entry fails the whole batch before anything is written.
type BatchUpdatePositionsHandler struct {
	messageRepo      ports.MessageRepository
	conversationRepo ports.ConversationRepository
	uowFactory       ports.UnitOfWorkFactory
	eventPublisher   ports.EventPublisher
	config           *domainconfig.DomainConfig
	logger           *zap.Logger
}

// NewBatchUpdatePositionsHandler creates the handler
func NewBatchUpdatePositionsHandler(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	uowFactory ports.UnitOfWorkFactory,
	eventPublisher ports.EventPublisher,
	config *domainconfig.DomainConfig,
	logger *zap.Logger,
) *BatchUpdatePositionsHandler {
	return &BatchUpdatePositionsHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		uowFactory:       uowFactory,
		eventPublisher:   eventPublisher,
		config:           config,
		logger:           logger,
	}
}

// Handle executes the batch reposition
func (h *BatchUpdatePositionsHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.BatchUpdatePositionsCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	if len(c.Updates) > h.config.MaxBatchPositionUpdates {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("batch exceeds the maximum of %d position updates", h.config.MaxBatchPositionUpdates))
	}

	// Resolve and authorize every message before writing anything. Conversation
	// lookups are cached because batches usually touch a single conversation.
	conversations := make(map[string]*entities.Conversation)
	resolved := make([]*entities.Message, 0, len(c.Updates))
	var conversationID valueobjects.ConversationID

	for _, u := range c.Updates {
		id, err := valueobjects.NewMessageIDFromString(u.MessageID)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}

		msg, err := h.messageRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		conv, cached := conversations[msg.ConversationID().String()]
		if !cached {
			conv, err = h.conversationRepo.GetByID(ctx, msg.ConversationID())
			if err != nil {
				return err
			}
			conversations[msg.ConversationID().String()] = conv
		}

		if !conv.IsOwnedBy(c.UserID) {
			return pkgerrors.NewNotFoundError("message")
		}

		position, err := valueobjects.NewPosition(u.X, u.Y)
		if err != nil {
			return err
		}
		msg.MoveTo(position)

		resolved = append(resolved, msg)
		conversationID = msg.ConversationID()
	}

	uow := h.uowFactory.New()
	for _, msg := range resolved {
		if err := h.messageRepo.SaveTx(ctx, uow, msg); err != nil {
			return err
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	movedIDs := make([]string, len(resolved))
	for i, msg := range resolved {
		movedIDs[i] = msg.ID().String()
		msg.MarkEventsAsCommitted()
	}

	publishEvents(ctx, h.eventPublisher, h.logger, []events.DomainEvent{
		events.NewMessagesMoved(conversationID, movedIDs, time.Now()),
	})

	h.logger.Debug("batch repositioned messages", zap.Int("count", len(resolved)))

	return nil
}
