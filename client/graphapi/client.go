// Package graphapi is the typed HTTP client for the graph mutation API.
// Response envelopes and error codes are decoded into the shared application
// error types so callers can branch on classification instead of status codes.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	pkgerrors "loom-backend/pkg/errors"
)

// Node is one message as it travels on the wire. ReplyTo is nil for roots.
type Node struct {
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
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// Graph is one conversation's full node list
type Graph struct {
	ConversationID string `json:"conversationId"`
	Messages       []Node `json:"messages"`
}

// Conversation is one conversation summary
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// PositionUpdate is one entry of a batch reposition request
type PositionUpdate struct {
	ID string  `json:"id"`
	X  float64 `json:"positionX"`
	Y  float64 `json:"positionY"`
}

// AttachAck is the server's acknowledgement of a reparent. ParentMessageID is
// nil when the message became a root.
type AttachAck struct {
	ID              string  `json:"id"`
	ParentMessageID *string `json:"parentMessageId"`
}

// DropAck acknowledges an atomic reparent-and-reposition
type DropAck struct {
	ID              string  `json:"id"`
	ParentMessageID *string `json:"parentMessageId"`
	PositionX       float64 `json:"positionX"`
	PositionY       float64 `json:"positionY"`
}

// DeleteResult lists what a delete removed. ReattachedCount is only set by
// keep-replies deletes.
type DeleteResult struct {
	DeletedIDs      []string `json:"deletedIds"`
	ReattachedCount int      `json:"reattachedCount,omitempty"`
}

// Client calls the mutation API over HTTP
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client rooted at baseURL. The token is sent as a bearer
// credential on every request.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchGraph returns every node of the conversation
func (c *Client) FetchGraph(ctx context.Context, conversationID string) (*Graph, error) {
	var graph Graph
	path := fmt.Sprintf("/api/v1/conversations/%s/graph", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodGet, path, nil, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

// UpdatePosition moves one message
func (c *Client) UpdatePosition(ctx context.Context, messageID string, x, y float64) error {
	path := fmt.Sprintf("/api/v1/messages/%s/position", url.PathEscape(messageID))
	body := map[string]float64{"positionX": x, "positionY": y}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// BatchUpdatePositions moves several messages in one atomic request
func (c *Client) BatchUpdatePositions(ctx context.Context, updates []PositionUpdate) error {
	body := map[string]interface{}{"updates": updates}
	return c.do(ctx, http.MethodPatch, "/api/v1/messages/batch/position", body, nil)
}

// Attach reparents a message. A nil parentMessageID detaches it into a new
// root.
func (c *Client) Attach(ctx context.Context, messageID string, parentMessageID *string) (*AttachAck, error) {
	var ack AttachAck
	path := fmt.Sprintf("/api/v1/messages/%s/attach", url.PathEscape(messageID))
	body := map[string]*string{"parentMessageId": parentMessageID}
	if err := c.do(ctx, http.MethodPatch, path, body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Drop reparents and repositions a message in one atomic write
func (c *Client) Drop(ctx context.Context, messageID string, parentMessageID *string, x, y float64) (*DropAck, error) {
	var ack DropAck
	path := fmt.Sprintf("/api/v1/messages/%s/drop", url.PathEscape(messageID))
	body := map[string]interface{}{
		"parentMessageId": parentMessageID,
		"positionX":       x,
		"positionY":       y,
	}
	if err := c.do(ctx, http.MethodPatch, path, body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Duplicate copies a message and returns the server-created copy
func (c *Client) Duplicate(ctx context.Context, messageID string) (*Node, error) {
	var node Node
	path := fmt.Sprintf("/api/v1/messages/%s/duplicate", url.PathEscape(messageID))
	if err := c.do(ctx, http.MethodPost, path, nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// Delete removes a message. With keepReplies the direct children survive and
// are reattached server-side; without it the whole subtree is removed. The
// result lists every removed ID.
func (c *Client) Delete(ctx context.Context, messageID string, keepReplies bool) (*DeleteResult, error) {
	var result DeleteResult
	path := fmt.Sprintf("/api/v1/messages/%s?keepReplies=%t", url.PathEscape(messageID), keepReplies)
	if err := c.do(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateConversation creates a conversation and returns it
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	var conv Conversation
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns the caller's conversations
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// RenameConversation changes a conversation's title
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) error {
	path := fmt.Sprintf("/api/v1/conversations/%s", url.PathEscape(conversationID))
	body := map[string]string{"title": title}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// DeleteConversation removes a conversation and all its messages
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/v1/conversations/%s", url.PathEscape(conversationID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateMessage appends a new turn to a conversation
func (c *Client) CreateMessage(ctx context.Context, conversationID, role, text, model string, replyTo *string) (*Node, error) {
	var node Node
	path := fmt.Sprintf("/api/v1/conversations/%s/messages", url.PathEscape(conversationID))
	body := map[string]interface{}{
		"role":    role,
		"text":    text,
		"model":   model,
		"replyTo": replyTo,
	}
	if err := c.do(ctx, http.MethodPost, path, body, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// GenerateReply asks the server for an assistant reply under parentID
func (c *Client) GenerateReply(ctx context.Context, conversationID, parentID, model string) (*Node, error) {
	var node Node
	path := fmt.Sprintf("/api/v1/messages/%s/reply", url.PathEscape(parentID))
	body := map[string]string{
		"conversationId": conversationID,
		"model":          model,
	}
	if err := c.do(ctx, http.MethodPost, path, body, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// envelope is the server's standard response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.NewInternalError("failed to encode request body").WithCause(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.NewInternalError("failed to build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.NewExternalError("graph api", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return pkgerrors.NewExternalError("graph api", fmt.Errorf("malformed response: %w", err))
	}

	if resp.StatusCode >= 400 || !env.Success {
		return c.classify(resp.StatusCode, env)
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return pkgerrors.NewExternalError("graph api", fmt.Errorf("malformed response data: %w", err))
		}
	}
	return nil
}

// classify maps a failed response onto the shared error taxonomy. The error
// code in the envelope wins; the HTTP status is the fallback.
func (c *Client) classify(status int, env envelope) error {
	message := "request failed"
	code := ""
	if env.Error != nil {
		message = env.Error.Message
		code = env.Error.Code
	}

	switch pkgerrors.ErrorType(code) {
	case pkgerrors.ErrorTypeCycle:
		return pkgerrors.NewCycleError()
	case pkgerrors.ErrorTypeNotFound:
		return &pkgerrors.AppError{
			Type:       pkgerrors.ErrorTypeNotFound,
			Message:    message,
			HTTPStatus: http.StatusNotFound,
		}
	case pkgerrors.ErrorTypeValidation:
		return pkgerrors.NewValidationError(message)
	case pkgerrors.ErrorTypeUnauthorized:
		return pkgerrors.NewUnauthorizedError(message)
	}

	switch {
	case status == http.StatusNotFound:
		return &pkgerrors.AppError{
			Type:       pkgerrors.ErrorTypeNotFound,
			Message:    message,
			HTTPStatus: http.StatusNotFound,
		}
	case status == http.StatusBadRequest:
		return pkgerrors.NewValidationError(message)
	case status == http.StatusUnauthorized:
		return pkgerrors.NewUnauthorizedError(message)
	case status == http.StatusTooManyRequests:
		return &pkgerrors.AppError{
			Type:       pkgerrors.ErrorTypeRateLimit,
			Message:    message,
			HTTPStatus: http.StatusTooManyRequests,
		}
	case status >= 500:
		return pkgerrors.NewExternalError("graph api", fmt.Errorf("status %d: %s", status, message))
	default:
		c.logger.Debug("unclassified api error",
			zap.Int("status", status),
			zap.String("code", code))
		return pkgerrors.NewInternalError(message)
	}
}
