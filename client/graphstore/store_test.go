package graphstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loom-backend/client/graphapi"
	pkgerrors "loom-backend/pkg/errors"
)

// fakeAPI records calls and fails on demand. FetchGraph serves whatever the
// test installed as server truth.
type fakeAPI struct {
	graph *graphapi.Graph

	failUpdate    error
	failBatch     error
	failAttach    error
	failDrop      error
	failDuplicate error
	failDelete    error

	duplicateResult *graphapi.Node

	calls []string
}

func (f *fakeAPI) FetchGraph(ctx context.Context, conversationID string) (*graphapi.Graph, error) {
	f.calls = append(f.calls, "fetch")
	if f.graph == nil {
		return &graphapi.Graph{ConversationID: conversationID}, nil
	}
	return f.graph, nil
}

func (f *fakeAPI) UpdatePosition(ctx context.Context, messageID string, x, y float64) error {
	f.calls = append(f.calls, "position")
	return f.failUpdate
}

func (f *fakeAPI) BatchUpdatePositions(ctx context.Context, updates []graphapi.PositionUpdate) error {
	f.calls = append(f.calls, "batch")
	return f.failBatch
}

func (f *fakeAPI) Attach(ctx context.Context, messageID string, parentMessageID *string) (*graphapi.AttachAck, error) {
	f.calls = append(f.calls, "attach")
	if f.failAttach != nil {
		return nil, f.failAttach
	}
	return &graphapi.AttachAck{ID: messageID, ParentMessageID: parentMessageID}, nil
}

func (f *fakeAPI) Drop(ctx context.Context, messageID string, parentMessageID *string, x, y float64) (*graphapi.DropAck, error) {
	f.calls = append(f.calls, "drop")
	if f.failDrop != nil {
		return nil, f.failDrop
	}
	return &graphapi.DropAck{ID: messageID, ParentMessageID: parentMessageID, PositionX: x, PositionY: y}, nil
}

func (f *fakeAPI) Duplicate(ctx context.Context, messageID string) (*graphapi.Node, error) {
	f.calls = append(f.calls, "duplicate")
	if f.failDuplicate != nil {
		return nil, f.failDuplicate
	}
	return f.duplicateResult, nil
}

func (f *fakeAPI) Delete(ctx context.Context, messageID string, keepReplies bool) (*graphapi.DeleteResult, error) {
	f.calls = append(f.calls, "delete")
	if f.failDelete != nil {
		return nil, f.failDelete
	}
	return &graphapi.DeleteResult{DeletedIDs: []string{messageID}}, nil
}

func wireNode(id, parent string, x, y float64) graphapi.Node {
	node := graphapi.Node{
		ID:        id,
		Role:      "user",
		Text:      "msg " + id,
		PositionX: x,
		PositionY: y,
		CreatedAt: id, // lexicographic creation order is enough for tests
	}
	if parent != "" {
		node.ReplyTo = &parent
	}
	return node
}

// loadedStore builds a store with a chain a -> b -> c already cached
func loadedStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()

	api.graph = &graphapi.Graph{
		ConversationID: "conv-1",
		Messages: []graphapi.Node{
			wireNode("a", "", 400, 100),
			wireNode("b", "a", 400, 180),
			wireNode("c", "b", 400, 260),
		},
	}

	store := NewStore(api, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), "conv-1"))
	api.calls = nil
	return store
}

func TestUpdatePosition_OptimisticThenCommitted(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	err := store.UpdatePosition(context.Background(), "conv-1", "b", 999, 888)

	require.NoError(t, err)
	node, ok := store.GetNode("conv-1", "b")
	require.True(t, ok)
	assert.Equal(t, 999.0, node.X)
	assert.Equal(t, 888.0, node.Y)
}

func TestUpdatePosition_RollbackOnFailure(t *testing.T) {
	api := &fakeAPI{failUpdate: errors.New("boom")}
	store := loadedStore(t, api)

	err := store.UpdatePosition(context.Background(), "conv-1", "b", 999, 888)

	require.Error(t, err)
	node, _ := store.GetNode("conv-1", "b")
	assert.Equal(t, 400.0, node.X)
	assert.Equal(t, 180.0, node.Y)
}

func TestBatchUpdatePositions_RollbackRevertsAll(t *testing.T) {
	api := &fakeAPI{failBatch: errors.New("boom")}
	store := loadedStore(t, api)

	err := store.BatchUpdatePositions(context.Background(), "conv-1", []graphapi.PositionUpdate{
		{ID: "a", X: 1, Y: 1},
		{ID: "b", X: 2, Y: 2},
	})

	require.Error(t, err)
	a, _ := store.GetNode("conv-1", "a")
	b, _ := store.GetNode("conv-1", "b")
	assert.Equal(t, 400.0, a.X)
	assert.Equal(t, 400.0, b.X)
}

func TestBatchUpdatePositions_UnknownNodeRejectedBeforeApply(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	err := store.BatchUpdatePositions(context.Background(), "conv-1", []graphapi.PositionUpdate{
		{ID: "a", X: 1, Y: 1},
		{ID: "ghost", X: 2, Y: 2},
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	a, _ := store.GetNode("conv-1", "a")
	assert.Equal(t, 400.0, a.X)
	assert.Empty(t, api.calls)
}

func TestAttach_LocalCycleCheckRejectsWithoutRequest(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	// Attaching a under its own descendant would make a its own ancestor
	err := store.Attach(context.Background(), "conv-1", "a", "c")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCycle(err))
	assert.Empty(t, api.calls)
	a, _ := store.GetNode("conv-1", "a")
	assert.Equal(t, "", a.ParentID)
}

func TestAttach_SelfParentRejected(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	err := store.Attach(context.Background(), "conv-1", "b", "b")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCycle(err))
	assert.Empty(t, api.calls)
}

func TestAttach_RollbackAndRefetchOnServerRejection(t *testing.T) {
	api := &fakeAPI{failAttach: pkgerrors.NewCycleError()}
	store := loadedStore(t, api)

	err := store.Attach(context.Background(), "conv-1", "c", "a")

	require.Error(t, err)
	// The server graph wins after the refetch
	c, _ := store.GetNode("conv-1", "c")
	assert.Equal(t, "b", c.ParentID)
	assert.Contains(t, api.calls, "attach")
	assert.Contains(t, api.calls, "fetch")
}

func TestDetach_PersistsNullParent(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	// Keep the fake's server truth in sync with the detach
	api.graph.Messages[2] = wireNode("c", "", 400, 260)

	err := store.Detach(context.Background(), "conv-1", "c")

	require.NoError(t, err)
	c, _ := store.GetNode("conv-1", "c")
	assert.Equal(t, "", c.ParentID)
}

func TestDrop_RollbackRestoresParentAndPositionTogether(t *testing.T) {
	api := &fakeAPI{failDrop: errors.New("boom")}
	store := loadedStore(t, api)

	err := store.Drop(context.Background(), "conv-1", "c", "a", 777, 666)

	require.Error(t, err)
	c, _ := store.GetNode("conv-1", "c")
	assert.Equal(t, "b", c.ParentID)
	assert.Equal(t, 400.0, c.X)
	assert.Equal(t, 260.0, c.Y)
}

func TestDrop_LocalCycleCheckAppliesBeforeRequest(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	err := store.Drop(context.Background(), "conv-1", "a", "c", 1, 2)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCycle(err))
	assert.Empty(t, api.calls)
}

func TestDuplicate_MergesServerNode(t *testing.T) {
	api := &fakeAPI{
		duplicateResult: &graphapi.Node{
			ID:        "server-copy",
			Role:      "user",
			Text:      "msg b",
			PositionX: 430,
			PositionY: 210,
			CreatedAt: "z",
		},
	}
	store := loadedStore(t, api)

	created, err := store.Duplicate(context.Background(), "conv-1", "b")

	require.NoError(t, err)
	assert.Equal(t, "server-copy", created.ID)
	_, ok := store.GetNode("conv-1", "server-copy")
	assert.True(t, ok)
	// Exactly one node was added: the speculative copy is gone
	assert.Len(t, store.Graph("conv-1"), 4)
}

func TestDuplicate_FailureRemovesSpeculativeCopy(t *testing.T) {
	api := &fakeAPI{failDuplicate: errors.New("boom")}
	store := loadedStore(t, api)

	_, err := store.Duplicate(context.Background(), "conv-1", "b")

	require.Error(t, err)
	assert.Len(t, store.Graph("conv-1"), 3)
}

func TestDeleteMessage_ReattachesChildren(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	err := store.DeleteMessage(context.Background(), "conv-1", "b")

	require.NoError(t, err)
	_, ok := store.GetNode("conv-1", "b")
	assert.False(t, ok)
	c, _ := store.GetNode("conv-1", "c")
	assert.Equal(t, "a", c.ParentID)
}

func TestDeleteMessage_RollbackRestoresNodeAndChildren(t *testing.T) {
	api := &fakeAPI{failDelete: errors.New("boom")}
	store := loadedStore(t, api)

	err := store.DeleteMessage(context.Background(), "conv-1", "b")

	require.Error(t, err)
	b, ok := store.GetNode("conv-1", "b")
	require.True(t, ok)
	assert.Equal(t, "a", b.ParentID)
	c, _ := store.GetNode("conv-1", "c")
	assert.Equal(t, "b", c.ParentID)
}

func TestDeleteMessage_PrunesSelection(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)
	store.Select("conv-1", "b")
	store.Select("conv-1", "c")

	err := store.DeleteMessage(context.Background(), "conv-1", "b")

	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, store.Selected("conv-1"))
}

func TestDeleteThread_RemovesWholeSubtree(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)
	store.Select("conv-1", "c")

	err := store.DeleteThread(context.Background(), "conv-1", "b")

	require.NoError(t, err)
	assert.Len(t, store.Graph("conv-1"), 1)
	assert.Empty(t, store.Selected("conv-1"))
}

func TestDeleteThread_RollbackRestoresSubtree(t *testing.T) {
	api := &fakeAPI{failDelete: errors.New("boom")}
	store := loadedStore(t, api)

	err := store.DeleteThread(context.Background(), "conv-1", "b")

	require.Error(t, err)
	assert.Len(t, store.Graph("conv-1"), 3)
}

func TestLinearFallbackChain(t *testing.T) {
	t.Run("all null parents become an implied chain", func(t *testing.T) {
		nodes := []Node{
			{ID: "c", CreatedAt: "3"},
			{ID: "a", CreatedAt: "1"},
			{ID: "b", CreatedAt: "2"},
		}

		chain := LinearFallbackChain(nodes)

		require.Len(t, chain, 3)
		assert.Equal(t, "a", chain[0].ID)
		assert.Equal(t, "b", chain[1].ID)
		assert.Equal(t, "c", chain[2].ID)
	})

	t.Run("any real parent disables the fallback", func(t *testing.T) {
		nodes := []Node{
			{ID: "a", CreatedAt: "1"},
			{ID: "b", ParentID: "a", CreatedAt: "2"},
		}

		assert.Nil(t, LinearFallbackChain(nodes))
	})

	t.Run("single node needs no fallback", func(t *testing.T) {
		assert.Nil(t, LinearFallbackChain([]Node{{ID: "a"}}))
	})
}

func TestSelect_UnknownNodeIgnored(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	store.Select("conv-1", "ghost")

	assert.Empty(t, store.Selected("conv-1"))
}

// storeWithUnplacedNode caches a -> b -> c at real positions plus d, a second
// child of a still at the origin
func storeWithUnplacedNode(t *testing.T, api *fakeAPI) *Store {
	t.Helper()

	api.graph = &graphapi.Graph{
		ConversationID: "conv-1",
		Messages: []graphapi.Node{
			wireNode("a", "", 400, 100),
			wireNode("b", "a", 400, 180),
			wireNode("c", "b", 400, 260),
			wireNode("d", "a", 0, 0),
		},
	}

	store := NewStore(api, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), "conv-1"))
	api.calls = nil
	return store
}

func TestAutoLayout_PlacesOnlyOriginNodes(t *testing.T) {
	api := &fakeAPI{}
	store := storeWithUnplacedNode(t, api)

	err := store.AutoLayout(context.Background(), "conv-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"batch"}, api.calls)

	// d is the second child slot under a: one slot right of b's subtree
	placed, ok := store.GetNode("conv-1", "d")
	require.True(t, ok)
	assert.Equal(t, 940.0, placed.X)
	assert.Equal(t, 180.0, placed.Y)

	// Manually placed nodes keep their positions
	for _, id := range []string{"a", "b", "c"} {
		node, ok := store.GetNode("conv-1", id)
		require.True(t, ok)
		assert.Equal(t, 400.0, node.X, "node %s moved", id)
	}
}

func TestAutoLayout_RollbackOnBatchFailure(t *testing.T) {
	api := &fakeAPI{failBatch: errors.New("boom")}
	store := storeWithUnplacedNode(t, api)

	err := store.AutoLayout(context.Background(), "conv-1")

	require.Error(t, err)
	node, ok := store.GetNode("conv-1", "d")
	require.True(t, ok)
	assert.Equal(t, 0.0, node.X)
	assert.Equal(t, 0.0, node.Y)
}

func TestAutoLayout_NoOriginNodesIssuesNoRequest(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api)

	err := store.AutoLayout(context.Background(), "conv-1")

	require.NoError(t, err)
	assert.Empty(t, api.calls)
}
