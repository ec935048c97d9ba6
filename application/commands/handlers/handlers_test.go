package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/ports"
	domainconfig "loom-backend/domain/config"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/infrastructure/persistence/memory"
	pkgerrors "loom-backend/pkg/errors"
)

// testEnv bundles the in-memory infrastructure every handler test needs
type testEnv struct {
	messages      *memory.MessageRepository
	conversations *memory.ConversationRepository
	uowFactory    *memory.UnitOfWorkFactory
	config        *domainconfig.DomainConfig
	logger        *zap.Logger
}

func newTestEnv() *testEnv {
	return &testEnv{
		messages:      memory.NewMessageRepository(),
		conversations: memory.NewConversationRepository(),
		uowFactory:    memory.NewUnitOfWorkFactory(),
		config:        domainconfig.DefaultDomainConfig(),
		logger:        zap.NewNop(),
	}
}

func (e *testEnv) seedConversation(t *testing.T, userID string) *entities.Conversation {
	t.Helper()

	conv, err := entities.NewConversation(userID, "test conversation")
	require.NoError(t, err)
	require.NoError(t, e.conversations.Save(context.Background(), conv))
	return conv
}

// seedMessage stores a message under the conversation. An empty parentID
// makes it a root.
func (e *testEnv) seedMessage(t *testing.T, conv *entities.Conversation, parentID string, x, y float64) *entities.Message {
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

// seedChain stores a root and a chain of descendants, returning them in order
func (e *testEnv) seedChain(t *testing.T, conv *entities.Conversation, depth int) []*entities.Message {
	t.Helper()

	msgs := make([]*entities.Message, depth)
	parentID := ""
	for i := 0; i < depth; i++ {
		msgs[i] = e.seedMessage(t, conv, parentID, 400, float64(100+80*i))
		parentID = msgs[i].ID().String()
	}
	return msgs
}

func (e *testEnv) getMessage(t *testing.T, id valueobjects.MessageID) *entities.Message {
	t.Helper()

	msg, err := e.messages.GetByID(context.Background(), id)
	require.NoError(t, err)
	return msg
}

func TestAttachMessageHandler_RejectsCycle(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	chain := env.seedChain(t, conv, 3)
	handler := NewAttachMessageHandler(env.messages, env.conversations, nil, env.logger)

	// Attaching the root under its own descendant would close a cycle
	err := handler.Handle(context.Background(), commands.AttachMessageCommand{
		UserID:    "user-1",
		MessageID: chain[0].ID().String(),
		ParentID:  chain[2].ID().String(),
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCycle(err))
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Cannot create cycle in message tree", appErr.Message)

	// The stored tree is untouched after the rejection
	stored := env.getMessage(t, chain[0].ID())
	assert.True(t, stored.ParentID().IsZero())
}

func TestAttachMessageHandler_SelfParentRejected(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	msg := env.seedMessage(t, conv, "", 400, 100)
	handler := NewAttachMessageHandler(env.messages, env.conversations, nil, env.logger)

	err := handler.Handle(context.Background(), commands.AttachMessageCommand{
		UserID:    "user-1",
		MessageID: msg.ID().String(),
		ParentID:  msg.ID().String(),
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCycle(err))
}

func TestAttachMessageHandler_DetachMakesRoot(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	chain := env.seedChain(t, conv, 2)
	handler := NewAttachMessageHandler(env.messages, env.conversations, nil, env.logger)

	err := handler.Handle(context.Background(), commands.AttachMessageCommand{
		UserID:    "user-1",
		MessageID: chain[1].ID().String(),
		ParentID:  "",
	})

	require.NoError(t, err)
	stored := env.getMessage(t, chain[1].ID())
	assert.True(t, stored.ParentID().IsZero())
}

func TestAttachMessageHandler_ParentFromOtherConversationNotFound(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	other := env.seedConversation(t, "user-1")
	msg := env.seedMessage(t, conv, "", 400, 100)
	foreign := env.seedMessage(t, other, "", 400, 100)
	handler := NewAttachMessageHandler(env.messages, env.conversations, nil, env.logger)

	err := handler.Handle(context.Background(), commands.AttachMessageCommand{
		UserID:    "user-1",
		MessageID: msg.ID().String(),
		ParentID:  foreign.ID().String(),
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAttachMessageHandler_OwnershipMaskedAsNotFound(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	chain := env.seedChain(t, conv, 2)
	handler := NewAttachMessageHandler(env.messages, env.conversations, nil, env.logger)

	// Another caller sees the message as missing, not forbidden
	err := handler.Handle(context.Background(), commands.AttachMessageCommand{
		UserID:    "intruder",
		MessageID: chain[1].ID().String(),
		ParentID:  "",
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDropMessageHandler_CycleLeavesBothFieldsUnchanged(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	chain := env.seedChain(t, conv, 3)
	handler := NewDropMessageHandler(env.messages, env.conversations, nil, env.logger)

	err := handler.Handle(context.Background(), commands.DropMessageCommand{
		UserID:    "user-1",
		MessageID: chain[0].ID().String(),
		ParentID:  chain[2].ID().String(),
		X:         999,
		Y:         888,
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCycle(err))

	// Neither the parent nor the position moved
	stored := env.getMessage(t, chain[0].ID())
	assert.True(t, stored.ParentID().IsZero())
	assert.Equal(t, 400.0, stored.Position().X())
	assert.Equal(t, 100.0, stored.Position().Y())
}

func TestDropMessageHandler_AppliesParentAndPositionTogether(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	root := env.seedMessage(t, conv, "", 400, 100)
	loose := env.seedMessage(t, conv, "", 800, 100)
	handler := NewDropMessageHandler(env.messages, env.conversations, nil, env.logger)

	err := handler.Handle(context.Background(), commands.DropMessageCommand{
		UserID:    "user-1",
		MessageID: loose.ID().String(),
		ParentID:  root.ID().String(),
		X:         400,
		Y:         180,
	})

	require.NoError(t, err)
	stored := env.getMessage(t, loose.ID())
	assert.Equal(t, root.ID().String(), stored.ParentID().String())
	assert.Equal(t, 400.0, stored.Position().X())
	assert.Equal(t, 180.0, stored.Position().Y())
}

func TestDeleteMessageHandler_ReattachesChildrenToFormerParent(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	root := env.seedMessage(t, conv, "", 400, 100)
	middle := env.seedMessage(t, conv, root.ID().String(), 400, 180)
	childA := env.seedMessage(t, conv, middle.ID().String(), 300, 260)
	childB := env.seedMessage(t, conv, middle.ID().String(), 500, 260)
	handler := NewDeleteMessageHandler(env.messages, env.conversations, env.uowFactory, nil, env.logger)

	result := &commands.DeleteResult{}
	err := handler.Handle(context.Background(), commands.DeleteMessageCommand{
		UserID:    "user-1",
		MessageID: middle.ID().String(),
		Result:    result,
	})

	require.NoError(t, err)
	_, getErr := env.messages.GetByID(context.Background(), middle.ID())
	assert.True(t, pkgerrors.IsNotFound(getErr))
	assert.Equal(t, root.ID().String(), env.getMessage(t, childA.ID()).ParentID().String())
	assert.Equal(t, root.ID().String(), env.getMessage(t, childB.ID()).ParentID().String())

	assert.Equal(t, []string{middle.ID().String()}, result.DeletedIDs)
	assert.Equal(t, 2, result.ReattachedCount)
}

func TestDeleteMessageHandler_RootDeleteMakesChildrenRoots(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	root := env.seedMessage(t, conv, "", 400, 100)
	child := env.seedMessage(t, conv, root.ID().String(), 400, 180)
	handler := NewDeleteMessageHandler(env.messages, env.conversations, env.uowFactory, nil, env.logger)

	err := handler.Handle(context.Background(), commands.DeleteMessageCommand{
		UserID:    "user-1",
		MessageID: root.ID().String(),
	})

	require.NoError(t, err)
	assert.True(t, env.getMessage(t, child.ID()).ParentID().IsZero())
}

func TestDeleteThreadHandler_RemovesWholeSubtreeOnly(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	root := env.seedMessage(t, conv, "", 400, 100)
	branch := env.seedMessage(t, conv, root.ID().String(), 400, 180)
	leaf := env.seedMessage(t, conv, branch.ID().String(), 400, 260)
	survivor := env.seedMessage(t, conv, root.ID().String(), 760, 180)
	handler := NewDeleteThreadHandler(env.messages, env.conversations, env.uowFactory, nil, env.logger)

	result := &commands.DeleteResult{}
	err := handler.Handle(context.Background(), commands.DeleteThreadCommand{
		UserID:    "user-1",
		MessageID: branch.ID().String(),
		Result:    result,
	})

	require.NoError(t, err)
	_, branchErr := env.messages.GetByID(context.Background(), branch.ID())
	_, leafErr := env.messages.GetByID(context.Background(), leaf.ID())
	assert.True(t, pkgerrors.IsNotFound(branchErr))
	assert.True(t, pkgerrors.IsNotFound(leafErr))

	// The root and the sibling branch survive untouched
	assert.Equal(t, 2, env.messages.Count())
	assert.Equal(t, root.ID().String(), env.getMessage(t, survivor.ID()).ParentID().String())

	assert.ElementsMatch(t, []string{branch.ID().String(), leaf.ID().String()}, result.DeletedIDs)
	assert.Zero(t, result.ReattachedCount)
}

func TestUpdateMessagePositionHandler_MovesMessage(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	msg := env.seedMessage(t, conv, "", 400, 100)
	handler := NewUpdateMessagePositionHandler(env.messages, env.conversations, nil, env.logger)

	err := handler.Handle(context.Background(), commands.UpdateMessagePositionCommand{
		UserID:    "user-1",
		MessageID: msg.ID().String(),
		X:         620,
		Y:         340,
	})

	require.NoError(t, err)
	stored := env.getMessage(t, msg.ID())
	assert.Equal(t, 620.0, stored.Position().X())
	assert.Equal(t, 340.0, stored.Position().Y())
}

func TestBatchUpdatePositionsHandler_AppliesAll(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	a := env.seedMessage(t, conv, "", 400, 100)
	b := env.seedMessage(t, conv, a.ID().String(), 400, 180)
	handler := NewBatchUpdatePositionsHandler(env.messages, env.conversations, env.uowFactory, nil, env.config, env.logger)

	err := handler.Handle(context.Background(), commands.BatchUpdatePositionsCommand{
		UserID: "user-1",
		Updates: []commands.PositionUpdate{
			{MessageID: a.ID().String(), X: 10, Y: 20},
			{MessageID: b.ID().String(), X: 30, Y: 40},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 10.0, env.getMessage(t, a.ID()).Position().X())
	assert.Equal(t, 30.0, env.getMessage(t, b.ID()).Position().X())
}

func TestBatchUpdatePositionsHandler_BadEntryLeavesEverythingUnchanged(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	mine := env.seedMessage(t, conv, "", 400, 100)
	foreignConv := env.seedConversation(t, "user-2")
	foreign := env.seedMessage(t, foreignConv, "", 400, 100)
	handler := NewBatchUpdatePositionsHandler(env.messages, env.conversations, env.uowFactory, nil, env.config, env.logger)

	err := handler.Handle(context.Background(), commands.BatchUpdatePositionsCommand{
		UserID: "user-1",
		Updates: []commands.PositionUpdate{
			{MessageID: mine.ID().String(), X: 10, Y: 20},
			{MessageID: foreign.ID().String(), X: 30, Y: 40},
		},
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	// No partial application: the caller's own message stayed put too
	assert.Equal(t, 400.0, env.getMessage(t, mine.ID()).Position().X())
	assert.Equal(t, 400.0, env.getMessage(t, foreign.ID()).Position().X())
}

func TestBatchUpdatePositionsHandler_RejectsOversizedBatch(t *testing.T) {
	env := newTestEnv()
	handler := NewBatchUpdatePositionsHandler(env.messages, env.conversations, env.uowFactory, nil, env.config, env.logger)

	updates := make([]commands.PositionUpdate, env.config.MaxBatchPositionUpdates+1)
	for i := range updates {
		updates[i] = commands.PositionUpdate{MessageID: uuid.New().String(), X: 1, Y: 1}
	}

	err := handler.Handle(context.Background(), commands.BatchUpdatePositionsCommand{
		UserID:  "user-1",
		Updates: updates,
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDuplicateMessageHandler_CopiesWithOffset(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	root := env.seedMessage(t, conv, "", 400, 100)
	original := env.seedMessage(t, conv, root.ID().String(), 400, 180)
	newID := uuid.New().String()
	handler := NewDuplicateMessageHandler(env.messages, env.conversations, nil, env.config, env.logger)

	err := handler.Handle(context.Background(), commands.DuplicateMessageCommand{
		UserID:       "user-1",
		MessageID:    original.ID().String(),
		NewMessageID: newID,
	})

	require.NoError(t, err)
	id, parseErr := valueobjects.NewMessageIDFromString(newID)
	require.NoError(t, parseErr)
	copy := env.getMessage(t, id)
	assert.Equal(t, original.Content(), copy.Content())
	assert.Equal(t, original.ParentID().String(), copy.ParentID().String())
	assert.Equal(t, 430.0, copy.Position().X())
	assert.Equal(t, 210.0, copy.Position().Y())
	assert.False(t, copy.IsRootNode())
}

// fakeCompletion streams canned chunks, optionally ending in a failure
type fakeCompletion struct {
	chunks    []ports.CompletionChunk
	streamErr error
	initErr   error
	history   []ports.CompletionTurn
}

func (f *fakeCompletion) Stream(ctx context.Context, model string, history []ports.CompletionTurn) (<-chan ports.CompletionChunk, <-chan error, error) {
	if f.initErr != nil {
		return nil, nil, f.initErr
	}
	f.history = history

	chunks := make(chan ports.CompletionChunk, len(f.chunks))
	errs := make(chan error, 1)
	for _, c := range f.chunks {
		chunks <- c
	}
	close(chunks)
	if f.streamErr != nil {
		errs <- f.streamErr
	}
	close(errs)
	return chunks, errs, nil
}

func TestGenerateReplyHandler_StreamsContentAndUsage(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	chain := env.seedChain(t, conv, 2)
	completions := &fakeCompletion{
		chunks: []ports.CompletionChunk{
			{Content: "Hel"},
			{Content: "lo", Done: true, InputTokens: 12, OutputTokens: 3},
		},
	}
	handler := NewGenerateReplyHandler(env.messages, env.conversations, completions, nil, env.config, env.logger)
	newID := uuid.New().String()

	err := handler.Handle(context.Background(), commands.GenerateReplyCommand{
		UserID:         "user-1",
		ConversationID: conv.ID().String(),
		MessageID:      newID,
		ParentID:       chain[1].ID().String(),
		Model:          "test-model",
	})

	require.NoError(t, err)
	id, parseErr := valueobjects.NewMessageIDFromString(newID)
	require.NoError(t, parseErr)
	reply := env.getMessage(t, id)
	assert.Equal(t, "Hello", reply.Content())
	assert.Equal(t, valueobjects.RoleAssistant, reply.Role())
	assert.Equal(t, 12, reply.InputTokens())
	assert.Equal(t, 3, reply.OutputTokens())
	assert.False(t, reply.IsError())

	// The prompt is the linear chain down to the parent
	require.Len(t, completions.history, 2)
	assert.Equal(t, valueobjects.RoleUser, completions.history[0].Role)
}

func TestGenerateReplyHandler_KeepsPartialContentOnStreamFailure(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	chain := env.seedChain(t, conv, 1)
	completions := &fakeCompletion{
		chunks:    []ports.CompletionChunk{{Content: "partial answer"}},
		streamErr: errors.New("stream cut"),
	}
	handler := NewGenerateReplyHandler(env.messages, env.conversations, completions, nil, env.config, env.logger)
	newID := uuid.New().String()

	err := handler.Handle(context.Background(), commands.GenerateReplyCommand{
		UserID:         "user-1",
		ConversationID: conv.ID().String(),
		MessageID:      newID,
		ParentID:       chain[0].ID().String(),
		Model:          "test-model",
	})

	// A mid-stream failure is not a handler failure: the errored message persists
	require.NoError(t, err)
	id, parseErr := valueobjects.NewMessageIDFromString(newID)
	require.NoError(t, parseErr)
	reply := env.getMessage(t, id)
	assert.Equal(t, "partial answer", reply.Content())
	assert.True(t, reply.IsError())
}

func TestGenerateReplyHandler_UpstreamFailureBeforeStream(t *testing.T) {
	env := newTestEnv()
	conv := env.seedConversation(t, "user-1")
	chain := env.seedChain(t, conv, 1)
	completions := &fakeCompletion{initErr: errors.New("connection refused")}
	handler := NewGenerateReplyHandler(env.messages, env.conversations, completions, nil, env.config, env.logger)
	newID := uuid.New().String()

	err := handler.Handle(context.Background(), commands.GenerateReplyCommand{
		UserID:         "user-1",
		ConversationID: conv.ID().String(),
		MessageID:      newID,
		ParentID:       chain[0].ID().String(),
		Model:          "test-model",
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsExternal(err))

	// The placeholder persists, flagged as errored
	id, parseErr := valueobjects.NewMessageIDFromString(newID)
	require.NoError(t, parseErr)
	reply := env.getMessage(t, id)
	assert.True(t, reply.IsError())
}
