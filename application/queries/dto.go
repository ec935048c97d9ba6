package queries

import (
	"sort"
	"time"

	"loom-backend/domain/core/entities"
)

// MessageView is the wire shape of one message. The field names are part of
// the client contract: the text payload travels as "text" and the parent
// pointer as "replyTo", null for roots.
type MessageView struct {
	ID           string  `json:"id"`
	Role         string  `json:"role"`
	Text         string  `json:"text"`
	Model        string  `json:"model,omitempty"`
	ReplyTo      *string `json:"replyTo"`
	PositionX    float64 `json:"positionX"`
	PositionY    float64 `json:"positionY"`
	IsRootNode   bool    `json:"isRootNode,omitempty"`
	RootNodeName string  `json:"rootNodeName,omitempty"`
	IsError      bool    `json:"isError,omitempty"`
	InputTokens  int     `json:"inputTokens,omitempty"`
	OutputTokens int     `json:"outputTokens,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// GraphView is the full message graph of one conversation
type GraphView struct {
	ConversationID string        `json:"conversationId"`
	Messages       []MessageView `json:"messages"`
}

// ConversationView is the wire shape of one conversation
type ConversationView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CollectionID string `json:"collectionId,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// NewMessageView maps a message entity to its wire shape
func NewMessageView(msg *entities.Message) MessageView {
	view := MessageView{
		ID:           msg.ID().String(),
		Role:         msg.Role().String(),
		Text:         msg.Content(),
		Model:        msg.Model(),
		PositionX:    msg.Position().X(),
		PositionY:    msg.Position().Y(),
		IsRootNode:   msg.IsRootNode(),
		RootNodeName: msg.RootNodeName(),
		IsError:      msg.IsError(),
		InputTokens:  msg.InputTokens(),
		OutputTokens: msg.OutputTokens(),
		CreatedAt:    msg.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:    msg.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}

	if !msg.ParentID().IsZero() {
		parent := msg.ParentID().String()
		view.ReplyTo = &parent
	}

	return view
}

// NewGraphView maps a conversation's messages to the graph wire shape,
// ordered by creation time with the ID as tiebreak so responses are stable
func NewGraphView(conversationID string, messages []*entities.Message) GraphView {
	sorted := make([]*entities.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt().Equal(sorted[j].CreatedAt()) {
			return sorted[i].ID().String() < sorted[j].ID().String()
		}
		return sorted[i].CreatedAt().Before(sorted[j].CreatedAt())
	})

	views := make([]MessageView, len(sorted))
	for i, msg := range sorted {
		views[i] = NewMessageView(msg)
	}

	return GraphView{
		ConversationID: conversationID,
		Messages:       views,
	}
}

// NewConversationView maps a conversation entity to its wire shape
func NewConversationView(conv *entities.Conversation) ConversationView {
	return ConversationView{
		ID:           conv.ID().String(),
		Title:        conv.Title(),
		CollectionID: conv.CollectionID(),
		CreatedAt:    conv.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:    conv.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
}
