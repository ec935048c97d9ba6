package commands

import (
	"math"

	pkgerrors "loom-backend/pkg/errors"
)

// UpdateMessagePositionCommand moves one message on the canvas
type UpdateMessagePositionCommand struct {
	UserID    string  `json:"user_id" validate:"required"`
	MessageID string  `json:"message_id" validate:"required,uuid"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Validate checks the command invariants
func (c UpdateMessagePositionCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.MessageID == "" {
		return pkgerrors.NewValidationError("messageID is required")
	}
	return validateCoordinates(c.X, c.Y)
}

// PositionUpdate is one entry of a batch reposition
type PositionUpdate struct {
	MessageID string  `json:"id" validate:"required,uuid"`
	X         float64 `json:"positionX"`
	Y         float64 `json:"positionY"`
}

// BatchUpdatePositionsCommand repositions several messages atomically
type BatchUpdatePositionsCommand struct {
	UserID  string           `json:"user_id" validate:"required"`
	Updates []PositionUpdate `json:"updates" validate:"required,min=1,max=100,dive"`
}

// Validate checks the command invariants
func (c BatchUpdatePositionsCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if len(c.Updates) == 0 {
		return pkgerrors.NewValidationError("updates cannot be empty")
	}
	for _, u := range c.Updates {
		if u.MessageID == "" {
			return pkgerrors.NewValidationError("every update needs a message ID")
		}
		if err := validateCoordinates(u.X, u.Y); err != nil {
			return err
		}
	}
	return nil
}

// AttachMessageCommand reparents a message; an empty ParentID detaches it
type AttachMessageCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	MessageID string `json:"message_id" validate:"required,uuid"`
	ParentID  string `json:"parent_message_id" validate:"omitempty,uuid"`
}

// Validate checks the command invariants
func (c AttachMessageCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.MessageID == "" {
		return pkgerrors.NewValidationError("messageID is required")
	}
	if c.ParentID == c.MessageID && c.ParentID != "" {
		return pkgerrors.NewCycleError()
	}
	return nil
}

// DropMessageCommand applies a drag release: reparent and reposition in one
// atomic write
type DropMessageCommand struct {
	UserID    string  `json:"user_id" validate:"required"`
	MessageID string  `json:"message_id" validate:"required,uuid"`
	ParentID  string  `json:"parent_message_id" validate:"omitempty,uuid"`
	X         float64 `json:"positionX"`
	Y         float64 `json:"positionY"`
}

// Validate checks the command invariants
func (c DropMessageCommand) Validate() error {
	attach := AttachMessageCommand{UserID: c.UserID, MessageID: c.MessageID, ParentID: c.ParentID}
	if err := attach.Validate(); err != nil {
		return err
	}
	return validateCoordinates(c.X, c.Y)
}

// DuplicateMessageCommand copies a message into a new node. The new ID is
// generated by the caller so the HTTP layer can return it without a second
// round trip.
type DuplicateMessageCommand struct {
	UserID       string `json:"user_id" validate:"required"`
	MessageID    string `json:"message_id" validate:"required,uuid"`
	NewMessageID string `json:"new_message_id" validate:"required,uuid"`
}

// Validate checks the command invariants
func (c DuplicateMessageCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.MessageID == "" || c.NewMessageID == "" {
		return pkgerrors.NewValidationError("messageID and newMessageID are required")
	}
	if c.MessageID == c.NewMessageID {
		return pkgerrors.NewValidationError("newMessageID must differ from messageID")
	}
	return nil
}

// DeleteResult reports what a delete removed. Handlers fill it through the
// command's Result pointer so the transport layer can echo the outcome
// without a second read.
type DeleteResult struct {
	DeletedIDs      []string
	ReattachedCount int
}

// DeleteMessageCommand removes a single message, reattaching its direct
// children to the message's former parent
type DeleteMessageCommand struct {
	UserID    string        `json:"user_id" validate:"required"`
	MessageID string        `json:"message_id" validate:"required,uuid"`
	Result    *DeleteResult `json:"-"`
}

// Validate checks the command invariants
func (c DeleteMessageCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.MessageID == "" {
		return pkgerrors.NewValidationError("messageID is required")
	}
	return nil
}

// DeleteThreadCommand removes a message and its whole subtree
type DeleteThreadCommand struct {
	UserID    string        `json:"user_id" validate:"required"`
	MessageID string        `json:"message_id" validate:"required,uuid"`
	Result    *DeleteResult `json:"-"`
}

// Validate checks the command invariants
func (c DeleteThreadCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.MessageID == "" {
		return pkgerrors.NewValidationError("messageID is required")
	}
	return nil
}

// CreateMessageCommand adds a new turn to a conversation. The message ID is
// pre-generated by the caller. An empty ParentID creates a new root; a zero
// position asks the layout engine to place the node.
type CreateMessageCommand struct {
	UserID         string `json:"user_id" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	MessageID      string `json:"message_id" validate:"required,uuid"`
	Role           string `json:"role" validate:"required,oneof=user assistant system"`
	Content        string `json:"content"`
	Model          string `json:"model"`
	ParentID       string `json:"parent_message_id" validate:"omitempty,uuid"`
}

// Validate checks the command invariants
func (c CreateMessageCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.ConversationID == "" {
		return pkgerrors.NewValidationError("conversationID is required")
	}
	if c.MessageID == "" {
		return pkgerrors.NewValidationError("messageID is required")
	}
	return nil
}

// GenerateReplyCommand creates an assistant message under ParentID and fills
// it from the completion service stream. A stream failure keeps the content
// accumulated so far and flags the message as errored.
type GenerateReplyCommand struct {
	UserID         string `json:"user_id" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	MessageID      string `json:"message_id" validate:"required,uuid"`
	ParentID       string `json:"parent_message_id" validate:"required,uuid"`
	Model          string `json:"model" validate:"required"`
}

// Validate checks the command invariants
func (c GenerateReplyCommand) Validate() error {
	if c.UserID == "" {
		return pkgerrors.NewValidationError("userID is required")
	}
	if c.ConversationID == "" {
		return pkgerrors.NewValidationError("conversationID is required")
	}
	if c.MessageID == "" {
		return pkgerrors.NewValidationError("messageID is required")
	}
	if c.ParentID == "" {
		return pkgerrors.NewValidationError("parentID is required")
	}
	if c.Model == "" {
		return pkgerrors.NewValidationError("model is required")
	}
	return nil
}

// validateCoordinates rejects non-finite position values
func validateCoordinates(x, y float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return pkgerrors.NewValidationError("coordinates must be finite numbers")
	}
	return nil
}
