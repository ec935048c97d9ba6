package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	id        string
	parentID  string
	createdAt time.Time
	x, y      float64
}

func (n testNode) NodeID() string            { return n.id }
func (n testNode) NodeParentID() string      { return n.parentID }
func (n testNode) NodeCreatedAt() time.Time  { return n.createdAt }
func (n testNode) PositionX() float64        { return n.x }
func (n testNode) PositionY() float64        { return n.y }

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func testConfig() Config {
	return Config{HorizontalSpacing: 360, VerticalSpacing: 80, RootX: 400, RootY: 100}
}

func TestCalculateTreeLayout_ParentCenteredOverTwoLeaves(t *testing.T) {
	// Arrange: A at t1 with children B (t2) and C (t3)
	nodes := []testNode{
		{id: "a", createdAt: at(1)},
		{id: "b", parentID: "a", createdAt: at(2)},
		{id: "c", parentID: "a", createdAt: at(3)},
	}

	// Act
	got := CalculateTreeLayout(nodes, testConfig())

	// Assert: width(A)=2 so A is centered over [400, 1120]; B and C split
	// the range into halves
	require.Len(t, got, 3)
	assert.Equal(t, Point{X: 760, Y: 100}, got["a"])
	assert.Equal(t, Point{X: 580, Y: 180}, got["b"])
	assert.Equal(t, Point{X: 940, Y: 180}, got["c"])

	// The parent sits exactly midway between its two leaf children, and the
	// children are one horizontal spacing apart
	assert.Equal(t, got["a"].X, (got["b"].X+got["c"].X)/2)
	assert.Equal(t, 360.0, got["c"].X-got["b"].X)
}

func TestCalculateTreeLayout_Deterministic(t *testing.T) {
	nodes := []testNode{
		{id: "a", createdAt: at(1)},
		{id: "b", parentID: "a", createdAt: at(2)},
		{id: "c", parentID: "a", createdAt: at(3)},
		{id: "d", parentID: "b", createdAt: at(4)},
		{id: "e", createdAt: at(5)},
	}

	first := CalculateTreeLayout(nodes, testConfig())

	// Same input shuffled must give identical output
	shuffled := []testNode{nodes[3], nodes[1], nodes[4], nodes[0], nodes[2]}
	second := CalculateTreeLayout(shuffled, testConfig())

	assert.Equal(t, first, second)
}

func TestCalculateTreeLayout_SiblingOrderByCreation(t *testing.T) {
	// The later-created sibling must land to the right regardless of input
	// order
	nodes := []testNode{
		{id: "late", parentID: "root", createdAt: at(9)},
		{id: "root", createdAt: at(1)},
		{id: "early", parentID: "root", createdAt: at(2)},
	}

	got := CalculateTreeLayout(nodes, testConfig())

	assert.Less(t, got["early"].X, got["late"].X)
}

func TestCalculateTreeLayout_MultipleRootTrees(t *testing.T) {
	cfg := testConfig()
	nodes := []testNode{
		{id: "r1", createdAt: at(1)},
		{id: "r2", createdAt: at(2)},
	}

	got := CalculateTreeLayout(nodes, cfg)

	// Both single-node trees have width 1; the second starts one footprint
	// plus 2x spacing after the first
	assert.Equal(t, Point{X: 400 + 180, Y: 100}, got["r1"])
	assert.Equal(t, Point{X: 400 + 360 + 720 + 180, Y: 100}, got["r2"])
}

func TestCalculateTreeLayout_SubtreeFootprint(t *testing.T) {
	// width(root)=3: three leaves under an intermediate split
	nodes := []testNode{
		{id: "root", createdAt: at(1)},
		{id: "mid", parentID: "root", createdAt: at(2)},
		{id: "leaf1", parentID: "mid", createdAt: at(3)},
		{id: "leaf2", parentID: "mid", createdAt: at(4)},
		{id: "solo", parentID: "root", createdAt: at(5)},
	}
	cfg := testConfig()

	got := CalculateTreeLayout(nodes, cfg)

	// root centered over 3 leaf slots starting at RootX
	assert.Equal(t, Point{X: 400 + 3*360/2, Y: 100}, got["root"])
	// mid owns the first two slots, solo the third
	assert.Equal(t, Point{X: 400 + 360, Y: 180}, got["mid"])
	assert.Equal(t, Point{X: 400 + 2*360 + 180, Y: 180}, got["solo"])
	assert.Equal(t, Point{X: 400 + 180, Y: 260}, got["leaf1"])
	assert.Equal(t, Point{X: 400 + 360 + 180, Y: 260}, got["leaf2"])
}

func TestApplyAutoLayout_PreservesManualPositions(t *testing.T) {
	nodes := []testNode{
		{id: "manual", createdAt: at(1), x: 50, y: 50},
		{id: "fresh", parentID: "manual", createdAt: at(2)},
	}

	assigned := ApplyAutoLayout(nodes, testConfig())

	// The manually placed node is untouched; the origin-sentinel node gets a
	// computed position
	_, touched := assigned["manual"]
	assert.False(t, touched)
	assert.Contains(t, assigned, "fresh")
}

func TestApplyAutoLayout_AssignsOnlyOriginNodes(t *testing.T) {
	nodes := []testNode{
		{id: "a", createdAt: at(1)},
		{id: "b", parentID: "a", createdAt: at(2), x: 123, y: 456},
		{id: "c", parentID: "a", createdAt: at(3)},
	}

	assigned := ApplyAutoLayout(nodes, testConfig())

	assert.Contains(t, assigned, "a")
	assert.Contains(t, assigned, "c")
	assert.NotContains(t, assigned, "b")
}

func TestNewNodePosition_FirstRoot(t *testing.T) {
	got := NewNodePosition("", []testNode{}, testConfig())

	assert.Equal(t, Point{X: 400, Y: 100}, got)
}

func TestNewNodePosition_NextRootRightOfRightmost(t *testing.T) {
	nodes := []testNode{
		{id: "r1", createdAt: at(1), x: 400, y: 100},
		{id: "r2", createdAt: at(2), x: 1000, y: 100},
		{id: "child", parentID: "r2", createdAt: at(3), x: 5000, y: 180},
	}

	got := NewNodePosition("", nodes, testConfig())

	// Only roots count toward the rightmost scan
	assert.Equal(t, Point{X: 1000 + 720, Y: 100}, got)
}

func TestNewNodePosition_FirstChildBelowParent(t *testing.T) {
	nodes := []testNode{
		{id: "p", createdAt: at(1), x: 640, y: 100},
	}

	got := NewNodePosition("p", nodes, testConfig())

	assert.Equal(t, Point{X: 640, Y: 180}, got)
}

func TestNewNodePosition_NextSiblingRightOfRightmost(t *testing.T) {
	nodes := []testNode{
		{id: "p", createdAt: at(1), x: 640, y: 100},
		{id: "c1", parentID: "p", createdAt: at(2), x: 500, y: 180},
		{id: "c2", parentID: "p", createdAt: at(3), x: 860, y: 180},
	}

	got := NewNodePosition("p", nodes, testConfig())

	assert.Equal(t, Point{X: 860 + 360, Y: 180}, got)
}

func TestCalculateTreeLayout_EmptyInput(t *testing.T) {
	got := CalculateTreeLayout([]testNode{}, testConfig())

	assert.Empty(t, got)
}
