package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// ConversationID is a value object identifying the conversation a message
// belongs to. Parent references are only valid inside one conversation.
type ConversationID struct {
	value string
}

// NewConversationID creates a new random ConversationID
func NewConversationID() ConversationID {
	return ConversationID{value: uuid.New().String()}
}

// NewConversationIDFromString creates a ConversationID from an existing string
func NewConversationIDFromString(id string) (ConversationID, error) {
	if id == "" {
		return ConversationID{}, errors.New("conversation ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return ConversationID{}, errors.New("conversation ID must be a valid UUID")
	}
	return ConversationID{value: id}, nil
}

// String returns the string representation
func (id ConversationID) String() string {
	return id.value
}

// Equals checks if two ConversationIDs are equal
func (id ConversationID) Equals(other ConversationID) bool {
	return id.value == other.value
}

// IsZero checks if the ConversationID is the zero value
func (id ConversationID) IsZero() bool {
	return id.value == ""
}
