package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom-backend/domain/core/valueobjects"
)

func newTestMessage(t *testing.T) *Message {
	t.Helper()
	convID := valueobjects.NewConversationID()
	pos, err := valueobjects.NewPosition(100, 100)
	require.NoError(t, err)

	msg, err := NewMessage(convID, valueobjects.RoleUser, "hello", valueobjects.MessageID{}, pos)
	require.NoError(t, err)
	return msg
}

func TestNewMessage_RootWhenParentZero(t *testing.T) {
	msg := newTestMessage(t)

	assert.True(t, msg.IsRoot())
	assert.Empty(t, msg.NodeParentID())
	assert.Len(t, msg.GetUncommittedEvents(), 1)
}

func TestAttachTo_RejectsSelfParent(t *testing.T) {
	msg := newTestMessage(t)

	err := msg.AttachTo(msg.ID())

	require.Error(t, err)
	assert.True(t, msg.IsRoot(), "rejected attach must not mutate the parent")
}

func TestAttachTo_SetsParentAndRaisesEvent(t *testing.T) {
	msg := newTestMessage(t)
	msg.MarkEventsAsCommitted()
	parentID := valueobjects.NewMessageID()

	err := msg.AttachTo(parentID)

	require.NoError(t, err)
	assert.Equal(t, parentID.String(), msg.NodeParentID())
	assert.Len(t, msg.GetUncommittedEvents(), 1)
}

func TestAttachTo_NoopWhenUnchanged(t *testing.T) {
	msg := newTestMessage(t)
	parentID := valueobjects.NewMessageID()
	require.NoError(t, msg.AttachTo(parentID))
	msg.MarkEventsAsCommitted()

	require.NoError(t, msg.AttachTo(parentID))

	assert.Empty(t, msg.GetUncommittedEvents())
}

func TestDetach(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.AttachTo(valueobjects.NewMessageID()))

	msg.Detach()

	assert.True(t, msg.IsRoot())
}

func TestDuplicate_OffsetAndIdentity(t *testing.T) {
	msg := newTestMessage(t)
	parentID := valueobjects.NewMessageID()
	require.NoError(t, msg.AttachTo(parentID))
	msg.SetModel("sonnet")
	msg.SetRootNode("entry")

	newID := valueobjects.NewMessageID()
	copy, err := msg.Duplicate(newID, 30, 30)

	require.NoError(t, err)
	assert.Equal(t, newID, copy.ID())
	assert.NotEqual(t, msg.ID(), copy.ID())
	assert.Equal(t, msg.Role(), copy.Role())
	assert.Equal(t, msg.Content(), copy.Content())
	assert.Equal(t, msg.Model(), copy.Model())
	assert.Equal(t, parentID, copy.ParentID())
	assert.Equal(t, 130.0, copy.Position().X())
	assert.Equal(t, 130.0, copy.Position().Y())

	// Duplicates are never entry-point markers
	assert.False(t, copy.IsRootNode())
	assert.Empty(t, copy.RootNodeName())
}

func TestDuplicate_RequiresDistinctID(t *testing.T) {
	msg := newTestMessage(t)

	_, err := msg.Duplicate(msg.ID(), 30, 30)
	assert.Error(t, err)

	_, err = msg.Duplicate(valueobjects.MessageID{}, 30, 30)
	assert.Error(t, err)
}

func TestAppendContent_StreamingAccumulation(t *testing.T) {
	msg := newTestMessage(t)

	msg.AppendContent(" wor")
	msg.AppendContent("ld")
	msg.AppendContent("")

	assert.Equal(t, "hello world", msg.Content())
}

func TestMarkError_KeepsAccumulatedContent(t *testing.T) {
	msg := newTestMessage(t)
	msg.AppendContent(" partial")

	msg.MarkError()

	assert.True(t, msg.IsError())
	assert.Equal(t, "hello partial", msg.Content())
}

func TestRecordUsage(t *testing.T) {
	msg := newTestMessage(t)

	msg.RecordUsage(12, 34)

	assert.Equal(t, 12, msg.InputTokens())
	assert.Equal(t, 34, msg.OutputTokens())
}
