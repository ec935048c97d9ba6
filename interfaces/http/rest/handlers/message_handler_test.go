package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loom-backend/application/commands"
	cmdbus "loom-backend/application/commands/bus"
	commandhandlers "loom-backend/application/commands/handlers"
	querybus "loom-backend/application/queries/bus"
	domainconfig "loom-backend/domain/config"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/infrastructure/persistence/memory"
	"loom-backend/pkg/auth"
)

// wireEnv runs the message endpoints against in-memory persistence so tests
// can assert the exact JSON shapes on the wire
type wireEnv struct {
	handler       *MessageHandler
	messages      *memory.MessageRepository
	conversations *memory.ConversationRepository
}

func newWireEnv(t *testing.T) *wireEnv {
	t.Helper()

	logger := zap.NewNop()
	messages := memory.NewMessageRepository()
	conversations := memory.NewConversationRepository()
	uowFactory := memory.NewUnitOfWorkFactory()
	domainCfg := domainconfig.DefaultDomainConfig()

	commandBus := cmdbus.NewCommandBus()
	require.NoError(t, commandBus.Register(commands.UpdateMessagePositionCommand{},
		commandhandlers.NewUpdateMessagePositionHandler(messages, conversations, nil, logger)))
	require.NoError(t, commandBus.Register(commands.BatchUpdatePositionsCommand{},
		commandhandlers.NewBatchUpdatePositionsHandler(messages, conversations, uowFactory, nil, domainCfg, logger)))
	require.NoError(t, commandBus.Register(commands.AttachMessageCommand{},
		commandhandlers.NewAttachMessageHandler(messages, conversations, nil, logger)))
	require.NoError(t, commandBus.Register(commands.DeleteMessageCommand{},
		commandhandlers.NewDeleteMessageHandler(messages, conversations, uowFactory, nil, logger)))
	require.NoError(t, commandBus.Register(commands.DeleteThreadCommand{},
		commandhandlers.NewDeleteThreadHandler(messages, conversations, uowFactory, nil, logger)))

	return &wireEnv{
		handler:       NewMessageHandler(commandBus, querybus.NewQueryBus(), logger),
		messages:      messages,
		conversations: conversations,
	}
}

func (e *wireEnv) seedConversation(t *testing.T) *entities.Conversation {
	t.Helper()

	conv, err := entities.NewConversation("user-1", "wire test")
	require.NoError(t, err)
	require.NoError(t, e.conversations.Save(context.Background(), conv))
	return conv
}

func (e *wireEnv) seedMessage(t *testing.T, conv *entities.Conversation, parentID string, x, y float64) *entities.Message {
	t.Helper()

	parent := valueobjects.MessageID{}
	if parentID != "" {
		var err error
		parent, err = valueobjects.NewMessageIDFromString(parentID)
		require.NoError(t, err)
	}

	position, err := valueobjects.NewPosition(x, y)
	require.NoError(t, err)

	msg, err := entities.NewMessageWithID(
		valueobjects.NewMessageID(), conv.ID(), valueobjects.RoleUser, "hello", parent, position)
	require.NoError(t, err)
	require.NoError(t, e.messages.Save(context.Background(), msg))
	return msg
}

// invoke calls one handler method with an authenticated request and the {id}
// route parameter set
func (e *wireEnv) invoke(t *testing.T, fn http.HandlerFunc, method, target, body, messageID string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	if messageID != "" {
		rctx.URLParams.Add("id", messageID)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = auth.SetUserInContext(ctx, &auth.UserContext{UserID: "user-1", Email: "user-1@example.com"})
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

type wireEnvelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) wireEnvelope {
	t.Helper()

	var env wireEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func stringList(t *testing.T, value interface{}) []string {
	t.Helper()

	raw, ok := value.([]interface{})
	require.True(t, ok, "expected a JSON array, got %T", value)

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		require.True(t, ok)
		out = append(out, s)
	}
	return out
}

func TestUpdatePosition_WireFieldNames(t *testing.T) {
	env := newWireEnv(t)
	conv := env.seedConversation(t)
	msg := env.seedMessage(t, conv, "", 400, 100)

	body := `{"positionX": 510, "positionY": 620}`
	rec := env.invoke(t, env.handler.UpdatePosition, http.MethodPatch,
		"/api/v1/messages/"+msg.ID().String()+"/position", body, msg.ID().String())

	require.Equal(t, http.StatusOK, rec.Code)
	envlp := decodeEnvelope(t, rec)
	assert.True(t, envlp.Success)
	assert.Equal(t, msg.ID().String(), envlp.Data["id"])
	assert.Equal(t, 510.0, envlp.Data["positionX"])
	assert.Equal(t, 620.0, envlp.Data["positionY"])

	stored, err := env.messages.GetByID(context.Background(), msg.ID())
	require.NoError(t, err)
	assert.Equal(t, 510.0, stored.Position().X())
	assert.Equal(t, 620.0, stored.Position().Y())
}

func TestUpdatePosition_RejectsMissingCoordinateFields(t *testing.T) {
	env := newWireEnv(t)
	conv := env.seedConversation(t)
	msg := env.seedMessage(t, conv, "", 400, 100)

	rec := env.invoke(t, env.handler.UpdatePosition, http.MethodPatch,
		"/api/v1/messages/"+msg.ID().String()+"/position", `{"x": 510, "y": 620}`, msg.ID().String())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUpdatePositions_ResponseEchoesUpdatedEntries(t *testing.T) {
	env := newWireEnv(t)
	conv := env.seedConversation(t)
	first := env.seedMessage(t, conv, "", 400, 100)
	second := env.seedMessage(t, conv, "", 760, 100)

	body := fmt.Sprintf(
		`{"updates": [{"id": %q, "positionX": 10, "positionY": 20}, {"id": %q, "positionX": 30, "positionY": 40}]}`,
		first.ID().String(), second.ID().String())
	rec := env.invoke(t, env.handler.BatchUpdatePositions, http.MethodPatch,
		"/api/v1/messages/batch/position", body, "")

	require.Equal(t, http.StatusOK, rec.Code)
	envlp := decodeEnvelope(t, rec)

	updated, ok := envlp.Data["updated"].([]interface{})
	require.True(t, ok, "updated must be a list, got %T", envlp.Data["updated"])
	require.Len(t, updated, 2)

	entry, ok := updated[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, first.ID().String(), entry["id"])
	assert.Equal(t, 10.0, entry["positionX"])
	assert.Equal(t, 20.0, entry["positionY"])
}

func TestAttach_WireFieldNames(t *testing.T) {
	env := newWireEnv(t)
	conv := env.seedConversation(t)
	parent := env.seedMessage(t, conv, "", 400, 100)
	child := env.seedMessage(t, conv, "", 760, 100)

	body := fmt.Sprintf(`{"parentMessageId": %q}`, parent.ID().String())
	rec := env.invoke(t, env.handler.Attach, http.MethodPatch,
		"/api/v1/messages/"+child.ID().String()+"/attach", body, child.ID().String())

	require.Equal(t, http.StatusOK, rec.Code)
	envlp := decodeEnvelope(t, rec)
	assert.Equal(t, child.ID().String(), envlp.Data["id"])
	assert.Equal(t, parent.ID().String(), envlp.Data["parentMessageId"])

	stored, err := env.messages.GetByID(context.Background(), child.ID())
	require.NoError(t, err)
	assert.Equal(t, parent.ID().String(), stored.ParentID().String())
}

func TestAttach_NullParentDetaches(t *testing.T) {
	env := newWireEnv(t)
	conv := env.seedConversation(t)
	parent := env.seedMessage(t, conv, "", 400, 100)
	child := env.seedMessage(t, conv, parent.ID().String(), 400, 180)

	rec := env.invoke(t, env.handler.Attach, http.MethodPatch,
		"/api/v1/messages/"+child.ID().String()+"/attach", `{"parentMessageId": null}`, child.ID().String())

	require.Equal(t, http.StatusOK, rec.Code)
	envlp := decodeEnvelope(t, rec)
	assert.Nil(t, envlp.Data["parentMessageId"])

	stored, err := env.messages.GetByID(context.Background(), child.ID())
	require.NoError(t, err)
	assert.True(t, stored.ParentID().IsZero())
}

func TestDelete_ResponseListsDeletedIDAndReattachedCount(t *testing.T) {
	env := newWireEnv(t)
	conv := env.seedConversation(t)
	root := env.seedMessage(t, conv, "", 400, 100)
	middle := env.seedMessage(t, conv, root.ID().String(), 400, 180)
	env.seedMessage(t, conv, middle.ID().String(), 400, 260)

	rec := env.invoke(t, env.handler.Delete, http.MethodDelete,
		"/api/v1/messages/"+middle.ID().String(), "", middle.ID().String())

	require.Equal(t, http.StatusOK, rec.Code)
	envlp := decodeEnvelope(t, rec)
	assert.True(t, envlp.Success)
	assert.Equal(t, []string{middle.ID().String()}, stringList(t, envlp.Data["deletedIds"]))
	assert.Equal(t, 1.0, envlp.Data["reattachedCount"])
}

func TestDelete_ThreadResponseListsWholeSubtree(t *testing.T) {
	env := newWireEnv(t)
	conv := env.seedConversation(t)
	root := env.seedMessage(t, conv, "", 400, 100)
	branch := env.seedMessage(t, conv, root.ID().String(), 400, 180)
	leaf := env.seedMessage(t, conv, branch.ID().String(), 400, 260)

	rec := env.invoke(t, env.handler.Delete, http.MethodDelete,
		"/api/v1/messages/"+branch.ID().String()+"?keepReplies=false", "", branch.ID().String())

	require.Equal(t, http.StatusOK, rec.Code)
	envlp := decodeEnvelope(t, rec)
	assert.ElementsMatch(t,
		[]string{branch.ID().String(), leaf.ID().String()},
		stringList(t, envlp.Data["deletedIds"]))

	_, hasReattached := envlp.Data["reattachedCount"]
	assert.False(t, hasReattached, "thread delete reattaches nothing")
}
