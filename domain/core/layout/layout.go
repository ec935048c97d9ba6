// Package layout computes deterministic canvas positions for a parent-pointer
// message tree. The placement is width-aware: a subtree's horizontal footprint
// is its leaf count times the horizontal spacing, and every parent sits
// centered over the combined footprint of its children.
package layout

import (
	"sort"
	"time"

	"loom-backend/domain/core/tree"
)

// Node is the structural view the layout needs on top of tree.Node: creation
// time orders siblings and root trees, current coordinates tell auto-layout
// which nodes were already placed.
type Node interface {
	tree.Node
	NodeCreatedAt() time.Time
	PositionX() float64
	PositionY() float64
}

// Config holds the spacing parameters
type Config struct {
	HorizontalSpacing float64
	VerticalSpacing   float64
	RootX             float64
	RootY             float64
}

// DefaultConfig returns the canvas spacing used by the app
func DefaultConfig() Config {
	return Config{
		HorizontalSpacing: 360,
		VerticalSpacing:   80,
		RootX:             400,
		RootY:             100,
	}
}

// Point is a computed canvas coordinate
type Point struct {
	X float64
	Y float64
}

// CalculateTreeLayout computes a position for every node. Siblings are
// ordered by creation time (ID as tiebreak), multiple root trees run left to
// right with 2x horizontal spacing between them. The result is identical for
// identical input.
func CalculateTreeLayout[N Node](nodes []N, cfg Config) map[string]Point {
	positions := make(map[string]Point, len(nodes))
	if len(nodes) == 0 {
		return positions
	}

	children := sortedChildMap(nodes)
	widths := make(map[string]int, len(nodes))

	roots := rootIDs(nodes)

	x := cfg.RootX
	for i, rootID := range roots {
		if i > 0 {
			x += 2 * cfg.HorizontalSpacing
		}
		w := subtreeWidth(rootID, children, widths)
		placeSubtree(rootID, x, float64(w)*cfg.HorizontalSpacing, cfg.RootY, cfg, children, widths, positions)
		x += float64(w) * cfg.HorizontalSpacing
	}

	return positions
}

// ApplyAutoLayout computes positions but assigns them only to nodes still at
// the origin sentinel. Manually placed nodes are never touched, so re-running
// after a user drag only fills in gaps for new nodes.
func ApplyAutoLayout[N Node](nodes []N, cfg Config) map[string]Point {
	computed := CalculateTreeLayout(nodes, cfg)

	assigned := make(map[string]Point, len(nodes))
	for _, n := range nodes {
		if n.PositionX() != 0 || n.PositionY() != 0 {
			continue
		}
		if p, ok := computed[n.NodeID()]; ok {
			assigned[n.NodeID()] = p
		}
	}
	return assigned
}

// NewNodePosition picks a spot for a node about to be created. New roots go
// to the right of the rightmost existing root; a first child lands directly
// below its parent; later children go to the right of their rightmost
// sibling.
func NewNodePosition[N Node](parentID string, nodes []N, cfg Config) Point {
	index := make(map[string]N, len(nodes))
	for _, n := range nodes {
		index[n.NodeID()] = n
	}

	if parentID == "" {
		maxX := cfg.RootX - 2*cfg.HorizontalSpacing
		found := false
		for _, n := range nodes {
			if n.NodeParentID() != "" {
				continue
			}
			if !found || n.PositionX() > maxX {
				maxX = n.PositionX()
				found = true
			}
		}
		if !found {
			return Point{X: cfg.RootX, Y: cfg.RootY}
		}
		return Point{X: maxX + 2*cfg.HorizontalSpacing, Y: cfg.RootY}
	}

	parent, ok := index[parentID]
	if !ok {
		return Point{X: cfg.RootX, Y: cfg.RootY}
	}

	siblings := tree.Children(nodes, parentID)
	if len(siblings) == 0 {
		return Point{X: parent.PositionX(), Y: parent.PositionY() + cfg.VerticalSpacing}
	}

	maxX := siblings[0].PositionX()
	y := siblings[0].PositionY()
	for _, s := range siblings[1:] {
		if s.PositionX() > maxX {
			maxX = s.PositionX()
			y = s.PositionY()
		}
	}
	return Point{X: maxX + cfg.HorizontalSpacing, Y: y}
}

// subtreeWidth computes the leaf-slot count of a subtree, memoized by ID
func subtreeWidth(id string, children map[string][]string, widths map[string]int) int {
	if w, ok := widths[id]; ok {
		return w
	}

	// Mark before recursing so corrupt data with a cycle terminates.
	widths[id] = 1

	kids := children[id]
	if len(kids) == 0 {
		return 1
	}

	total := 0
	for _, childID := range kids {
		total += subtreeWidth(childID, children, widths)
	}
	widths[id] = total
	return total
}

// placeSubtree centers id over [rangeStart, rangeStart+rangeWidth] and
// partitions the range among children proportionally to their widths.
func placeSubtree(
	id string,
	rangeStart, rangeWidth, y float64,
	cfg Config,
	children map[string][]string,
	widths map[string]int,
	positions map[string]Point,
) {
	if _, done := positions[id]; done {
		return
	}
	positions[id] = Point{X: rangeStart + rangeWidth/2, Y: y}

	childStart := rangeStart
	for _, childID := range children[id] {
		childWidth := float64(subtreeWidth(childID, children, widths)) * cfg.HorizontalSpacing
		placeSubtree(childID, childStart, childWidth, y+cfg.VerticalSpacing, cfg, children, widths, positions)
		childStart += childWidth
	}
}

// sortedChildMap buckets children by parent, each bucket ordered by creation
// time with ID as the deterministic tiebreak
func sortedChildMap[N Node](nodes []N) map[string][]string {
	byParent := make(map[string][]N, len(nodes))
	for _, n := range nodes {
		byParent[n.NodeParentID()] = append(byParent[n.NodeParentID()], n)
	}

	out := make(map[string][]string, len(byParent))
	for parentID, bucket := range byParent {
		sortByCreation(bucket)
		ids := make([]string, len(bucket))
		for i, n := range bucket {
			ids[i] = n.NodeID()
		}
		out[parentID] = ids
	}
	return out
}

// rootIDs returns root node IDs ordered by creation time. Nodes whose parent
// is missing from the input count as roots.
func rootIDs[N Node](nodes []N) []string {
	roots := tree.Roots(nodes)
	sortByCreation(roots)

	ids := make([]string, len(roots))
	for i, n := range roots {
		ids[i] = n.NodeID()
	}
	return ids
}

func sortByCreation[N Node](nodes []N) {
	sort.SliceStable(nodes, func(i, j int) bool {
		ti, tj := nodes[i].NodeCreatedAt(), nodes[j].NodeCreatedAt()
		if ti.Equal(tj) {
			return nodes[i].NodeID() < nodes[j].NodeID()
		}
		return ti.Before(tj)
	})
}
