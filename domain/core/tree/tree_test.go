package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNode is the minimal structural node used by the tests
type testNode struct {
	id       string
	parentID string
}

func (n testNode) NodeID() string       { return n.id }
func (n testNode) NodeParentID() string { return n.parentID }

func chain(ids ...string) []testNode {
	// Each node's parent is the previous one
	nodes := make([]testNode, len(ids))
	for i, id := range ids {
		parent := ""
		if i > 0 {
			parent = ids[i-1]
		}
		nodes[i] = testNode{id: id, parentID: parent}
	}
	return nodes
}

func TestBuildChildMap(t *testing.T) {
	nodes := []testNode{
		{id: "a"},
		{id: "b", parentID: "a"},
		{id: "c", parentID: "a"},
		{id: "d", parentID: "b"},
	}

	children := BuildChildMap(nodes)

	assert.Equal(t, []string{"a"}, children[""])
	assert.Equal(t, []string{"b", "c"}, children["a"])
	assert.Equal(t, []string{"d"}, children["b"])
	assert.Empty(t, children["c"])
}

func TestAncestors_OrderedRootToSelf(t *testing.T) {
	nodes := chain("a", "b", "c")

	got := Ancestors(nodes, "c")

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].NodeID())
	assert.Equal(t, "b", got[1].NodeID())
	assert.Equal(t, "c", got[2].NodeID())
}

func TestAncestors_MissingNode(t *testing.T) {
	nodes := chain("a", "b")

	assert.Empty(t, Ancestors(nodes, "zzz"))
}

func TestAncestors_OrphanParentActsAsRoot(t *testing.T) {
	nodes := []testNode{
		{id: "a", parentID: "ghost"},
		{id: "b", parentID: "a"},
	}

	got := Ancestors(nodes, "b")

	// The walk stops at the orphan instead of failing
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].NodeID())
	assert.Equal(t, "b", got[1].NodeID())
}

func TestAncestors_CorruptCycleTerminates(t *testing.T) {
	nodes := []testNode{
		{id: "a", parentID: "b"},
		{id: "b", parentID: "a"},
	}

	got := Ancestors(nodes, "a")

	// Bounded walk: a partial chain comes back, no hang and no panic
	assert.LessOrEqual(t, len(got), len(nodes)+1)
}

func TestAncestors_BoundedSteps(t *testing.T) {
	// Property: for a valid tree the walk visits each id at most once
	ids := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
	nodes := chain(ids...)

	got := Ancestors(nodes, "n6")

	seen := map[string]bool{}
	for _, n := range got {
		assert.False(t, seen[n.NodeID()], "id %s revisited", n.NodeID())
		seen[n.NodeID()] = true
	}
	assert.Len(t, got, len(ids))
}

func TestIsAncestor_CycleGuard(t *testing.T) {
	// A -> B -> C: attaching A under C must be rejected
	nodes := chain("a", "b", "c")

	assert.True(t, IsAncestor(nodes, "a", "c"))
	assert.True(t, IsAncestor(nodes, "b", "c"))
	assert.False(t, IsAncestor(nodes, "c", "a"))
	assert.False(t, IsAncestor(nodes, "c", "b"))
}

func TestIsAncestor_SelfIsOwnAncestor(t *testing.T) {
	nodes := chain("a", "b")

	// The ancestor chain includes the node itself, so attaching a node
	// under itself is also caught by the same guard.
	assert.True(t, IsAncestor(nodes, "b", "b"))
}

func TestSubtreeIDs_Completeness(t *testing.T) {
	nodes := []testNode{
		{id: "root"},
		{id: "l", parentID: "root"},
		{id: "r", parentID: "root"},
		{id: "ll", parentID: "l"},
		{id: "lr", parentID: "l"},
		{id: "other"},
		{id: "otherChild", parentID: "other"},
	}

	got := SubtreeIDs(nodes, "l")

	assert.ElementsMatch(t, []string{"l", "ll", "lr"}, got)
}

func TestSubtreeIDs_InputOrderIndependent(t *testing.T) {
	forward := []testNode{
		{id: "a"},
		{id: "b", parentID: "a"},
		{id: "c", parentID: "b"},
	}
	reversed := []testNode{forward[2], forward[1], forward[0]}

	assert.ElementsMatch(t, SubtreeIDs(forward, "a"), SubtreeIDs(reversed, "a"))
}

func TestSubtreeIDs_DuplicateEntriesVisitedOnce(t *testing.T) {
	nodes := []testNode{
		{id: "a"},
		{id: "b", parentID: "a"},
		{id: "b", parentID: "a"}, // corrupted duplicate
	}

	got := SubtreeIDs(nodes, "a")

	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestChildrenAndSiblings(t *testing.T) {
	nodes := []testNode{
		{id: "a"},
		{id: "b", parentID: "a"},
		{id: "c", parentID: "a"},
		{id: "d", parentID: "b"},
	}

	kids := Children(nodes, "a")
	require.Len(t, kids, 2)
	assert.Equal(t, "b", kids[0].NodeID())
	assert.Equal(t, "c", kids[1].NodeID())

	sibs := Siblings(nodes, "b")
	require.Len(t, sibs, 1)
	assert.Equal(t, "c", sibs[0].NodeID())

	assert.Empty(t, Siblings(nodes, "d"))
}

func TestRoots_FlatLegacyData(t *testing.T) {
	// Old conversations stored every message with a null parent; they must
	// still index as a valid, cycle-free structure.
	nodes := []testNode{{id: "a"}, {id: "b"}, {id: "c"}}

	roots := Roots(nodes)

	assert.Len(t, roots, 3)
	for _, n := range nodes {
		assert.Empty(t, Children(nodes, n.NodeID()))
		assert.Equal(t, 0, Depth(nodes, n.NodeID()))
	}
}

func TestRoots_OrphanCountsAsRoot(t *testing.T) {
	nodes := []testNode{
		{id: "a"},
		{id: "b", parentID: "ghost"},
	}

	roots := Roots(nodes)

	require.Len(t, roots, 2)
}

func TestDepth(t *testing.T) {
	nodes := chain("a", "b", "c")

	assert.Equal(t, 0, Depth(nodes, "a"))
	assert.Equal(t, 1, Depth(nodes, "b"))
	assert.Equal(t, 2, Depth(nodes, "c"))
	assert.Equal(t, -1, Depth(nodes, "missing"))
}
