package entities

import (
	"time"

	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// Message is a single turn in a branching conversation. Structure is carried
// entirely by the parent pointer: a zero parentID marks a root, and any
// message may have multiple children (alternative continuations).
type Message struct {
	id             valueobjects.MessageID
	conversationID valueobjects.ConversationID
	role           valueobjects.Role
	content        string
	model          string
	parentID       valueobjects.MessageID
	position       valueobjects.Position
	isRootNode     bool
	rootNodeName   string
	isError        bool
	inputTokens    int
	outputTokens   int
	createdAt      time.Time
	updatedAt      time.Time

	// Domain events that occurred during this entity's lifetime
	events []events.DomainEvent
}

// NewMessage creates a message with business rule validation
func NewMessage(
	conversationID valueobjects.ConversationID,
	role valueobjects.Role,
	content string,
	parentID valueobjects.MessageID,
	position valueobjects.Position,
) (*Message, error) {
	return NewMessageWithID(valueobjects.NewMessageID(), conversationID, role, content, parentID, position)
}

// NewMessageWithID creates a message under a caller-supplied identity. The
// API layer pre-generates IDs so it can answer with them immediately.
func NewMessageWithID(
	id valueobjects.MessageID,
	conversationID valueobjects.ConversationID,
	role valueobjects.Role,
	content string,
	parentID valueobjects.MessageID,
	position valueobjects.Position,
) (*Message, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("message ID cannot be empty")
	}
	if conversationID.IsZero() {
		return nil, pkgerrors.NewValidationError("conversationID cannot be empty")
	}
	if id.Equals(parentID) {
		return nil, pkgerrors.NewCycleError()
	}

	now := time.Now()
	msg := &Message{
		id:             id,
		conversationID: conversationID,
		role:           role,
		content:        content,
		parentID:       parentID,
		position:       position,
		createdAt:      now,
		updatedAt:      now,
		events:         []events.DomainEvent{},
	}

	msg.addEvent(events.NewMessageCreated(msg.id, conversationID, role, parentID, now))

	return msg, nil
}

// ReconstructMessage rebuilds a message from repository data with preserved
// identity and timestamps. No creation event is raised.
func ReconstructMessage(
	id valueobjects.MessageID,
	conversationID valueobjects.ConversationID,
	role valueobjects.Role,
	content string,
	model string,
	parentID valueobjects.MessageID,
	position valueobjects.Position,
	isRootNode bool,
	rootNodeName string,
	isError bool,
	inputTokens, outputTokens int,
	createdAt, updatedAt time.Time,
) (*Message, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("message ID cannot be empty")
	}
	if conversationID.IsZero() {
		return nil, pkgerrors.NewValidationError("conversationID cannot be empty")
	}

	return &Message{
		id:             id,
		conversationID: conversationID,
		role:           role,
		content:        content,
		model:          model,
		parentID:       parentID,
		position:       position,
		isRootNode:     isRootNode,
		rootNodeName:   rootNodeName,
		isError:        isError,
		inputTokens:    inputTokens,
		outputTokens:   outputTokens,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
		events:         []events.DomainEvent{},
	}, nil
}

// ID returns the message's unique identifier
func (m *Message) ID() valueobjects.MessageID { return m.id }

// ConversationID returns the owning conversation
func (m *Message) ConversationID() valueobjects.ConversationID { return m.conversationID }

// Role returns the message author role
func (m *Message) Role() valueobjects.Role { return m.role }

// Content returns the text payload
func (m *Message) Content() string { return m.content }

// Model returns the model that produced an assistant message, if any
func (m *Message) Model() string { return m.model }

// ParentID returns the parent pointer; zero means root
func (m *Message) ParentID() valueobjects.MessageID { return m.parentID }

// Position returns the canvas position
func (m *Message) Position() valueobjects.Position { return m.position }

// IsRoot reports whether the message has no parent
func (m *Message) IsRoot() bool { return m.parentID.IsZero() }

// IsRootNode reports whether the message is tagged as a named entry point
func (m *Message) IsRootNode() bool { return m.isRootNode }

// RootNodeName returns the entry point name, if tagged
func (m *Message) RootNodeName() string { return m.rootNodeName }

// IsError reports whether generation of this message failed mid-stream
func (m *Message) IsError() bool { return m.isError }

// InputTokens returns the prompt token count
func (m *Message) InputTokens() int { return m.inputTokens }

// OutputTokens returns the completion token count
func (m *Message) OutputTokens() int { return m.outputTokens }

// CreatedAt returns when the message was created
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt returns when the message was last updated
func (m *Message) UpdatedAt() time.Time { return m.updatedAt }

// NodeID implements tree.Node
func (m *Message) NodeID() string { return m.id.String() }

// NodeParentID implements tree.Node; empty string means root
func (m *Message) NodeParentID() string { return m.parentID.String() }

// PositionX implements layout.Node
func (m *Message) PositionX() float64 { return m.position.X() }

// PositionY implements layout.Node
func (m *Message) PositionY() float64 { return m.position.Y() }

// NodeCreatedAt implements layout.Node
func (m *Message) NodeCreatedAt() time.Time { return m.createdAt }

// SetModel records which model is generating this message
func (m *Message) SetModel(model string) {
	m.model = model
	m.updatedAt = time.Now()
}

// SetRootNode tags or untags the message as a named entry point
func (m *Message) SetRootNode(name string) {
	m.isRootNode = name != ""
	m.rootNodeName = name
	m.updatedAt = time.Now()
}

// MoveTo moves the message to a new canvas position
func (m *Message) MoveTo(position valueobjects.Position) {
	if position.Equals(m.position) {
		return
	}

	oldPosition := m.position
	m.position = position
	m.updatedAt = time.Now()

	m.addEvent(events.NewMessageMoved(m.id, oldPosition, position, m.updatedAt))
}

// AttachTo reparents the message. A zero parentID detaches it to a root.
// Self-parenting is rejected here; full cycle detection needs the whole
// conversation and is the caller's responsibility.
func (m *Message) AttachTo(parentID valueobjects.MessageID) error {
	if parentID.Equals(m.id) {
		return pkgerrors.NewCycleError()
	}

	if parentID.Equals(m.parentID) {
		return nil
	}

	oldParentID := m.parentID
	m.parentID = parentID
	m.updatedAt = time.Now()

	m.addEvent(events.NewMessageAttached(m.id, oldParentID, parentID, m.updatedAt))

	return nil
}

// Detach makes the message a root
func (m *Message) Detach() {
	// A detach can never introduce a cycle
	_ = m.AttachTo(valueobjects.MessageID{})
}

// AppendContent appends a streamed completion chunk to the text payload
func (m *Message) AppendContent(chunk string) {
	if chunk == "" {
		return
	}
	m.content += chunk
	m.updatedAt = time.Now()
}

// MarkError flags the message as the product of a failed generation stream.
// Already-accumulated content is kept.
func (m *Message) MarkError() {
	m.isError = true
	m.updatedAt = time.Now()
}

// RecordUsage stores token counts reported by the completion service
func (m *Message) RecordUsage(inputTokens, outputTokens int) {
	m.inputTokens = inputTokens
	m.outputTokens = outputTokens
	m.updatedAt = time.Now()
}

// Duplicate creates a copy of this message under a new identity. The copy
// keeps role, content, model and parent, lands offset from the original, and
// is never itself a named entry point.
func (m *Message) Duplicate(newID valueobjects.MessageID, offsetX, offsetY float64) (*Message, error) {
	if newID.IsZero() {
		return nil, pkgerrors.NewValidationError("duplicate requires a new message ID")
	}
	if newID.Equals(m.id) {
		return nil, pkgerrors.NewValidationError("duplicate must use a distinct message ID")
	}

	position, err := m.position.Translate(offsetX, offsetY)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	copy := &Message{
		id:             newID,
		conversationID: m.conversationID,
		role:           m.role,
		content:        m.content,
		model:          m.model,
		parentID:       m.parentID,
		position:       position,
		isRootNode:     false,
		rootNodeName:   "",
		createdAt:      now,
		updatedAt:      now,
		events:         []events.DomainEvent{},
	}

	copy.addEvent(events.NewMessageDuplicated(m.id, newID, now))

	return copy, nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (m *Message) GetUncommittedEvents() []events.DomainEvent {
	return m.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (m *Message) MarkEventsAsCommitted() {
	m.events = []events.DomainEvent{}
}

func (m *Message) addEvent(event events.DomainEvent) {
	m.events = append(m.events, event)
}
