package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// MessageID is a value object representing a unique message identifier.
// The zero value doubles as the "no parent" marker for root messages.
type MessageID struct {
	value string
}

// NewMessageID creates a new random MessageID
func NewMessageID() MessageID {
	return MessageID{value: uuid.New().String()}
}

// NewMessageIDFromString creates a MessageID from an existing string
func NewMessageIDFromString(id string) (MessageID, error) {
	if id == "" {
		return MessageID{}, errors.New("message ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return MessageID{}, errors.New("message ID must be a valid UUID")
	}
	return MessageID{value: id}, nil
}

// String returns the string representation of the MessageID
func (id MessageID) String() string {
	return id.value
}

// Equals checks if two MessageIDs are equal
func (id MessageID) Equals(other MessageID) bool {
	return id.value == other.value
}

// IsZero checks if the MessageID is the zero value
func (id MessageID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id MessageID) MarshalJSON() ([]byte, error) {
	if id.value == "" {
		return []byte("null"), nil
	}
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *MessageID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = ""
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("MessageID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
