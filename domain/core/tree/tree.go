// Package tree holds the pure algorithms over parent-pointer trees. Nothing
// here mutates its input or keeps state between calls; derived structures are
// cheap to recompute, so callers rebuild them on demand instead of caching.
package tree

// Node is the minimal structural view the algorithms need. An empty parent ID
// marks a root. Entities with richer fields satisfy this interface so the
// algorithms never depend on them.
type Node interface {
	NodeID() string
	NodeParentID() string
}

// BuildChildMap groups node IDs by their literal parent ID in a single pass.
// The empty string is a valid key and collects the roots. Order within each
// bucket is the input's order; callers needing creation-time order sort the
// input first.
func BuildChildMap[N Node](nodes []N) map[string][]string {
	children := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		parentID := n.NodeParentID()
		children[parentID] = append(children[parentID], n.NodeID())
	}
	return children
}

// Ancestors walks parent pointers upward from id and returns the chain
// ordered [root, ..., id]. The walk is defensive: a parent pointing at a
// missing node ends the chain there (the orphan acts as a root), and the walk
// is bounded by len(nodes) steps so corrupt data with a cycle returns the
// partial chain instead of looping forever.
func Ancestors[N Node](nodes []N, id string) []N {
	index := indexByID(nodes)

	var chain []N
	current, ok := index[id]
	steps := 0
	for ok {
		chain = append([]N{current}, chain...)

		steps++
		if steps > len(nodes) {
			// Cycle in stored data; return what we accumulated.
			return chain
		}

		parentID := current.NodeParentID()
		if parentID == "" {
			return chain
		}
		current, ok = index[parentID]
	}
	return chain
}

// IsAncestor reports whether ancestorID appears on descendantID's ancestor
// chain. This is the cycle guard: attaching A under B must be rejected when
// IsAncestor(nodes, A, B) is true, since that would make A its own ancestor.
func IsAncestor[N Node](nodes []N, ancestorID, descendantID string) bool {
	for _, n := range Ancestors(nodes, descendantID) {
		if n.NodeID() == ancestorID {
			return true
		}
	}
	return false
}

// SubtreeIDs collects rootID plus every transitive descendant, breadth-first.
// A visited set keeps each ID unique even if the input holds duplicate
// entries.
func SubtreeIDs[N Node](nodes []N, rootID string) []string {
	children := BuildChildMap(nodes)

	visited := map[string]bool{rootID: true}
	ids := []string{rootID}
	queue := []string{rootID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, childID := range children[current] {
			if visited[childID] {
				continue
			}
			visited[childID] = true
			ids = append(ids, childID)
			queue = append(queue, childID)
		}
	}

	return ids
}

// Children returns the direct children of id in input order
func Children[N Node](nodes []N, id string) []N {
	var out []N
	for _, n := range nodes {
		if n.NodeParentID() == id && n.NodeID() != id {
			out = append(out, n)
		}
	}
	return out
}

// Siblings returns the other nodes sharing id's parent, in input order
func Siblings[N Node](nodes []N, id string) []N {
	index := indexByID(nodes)
	node, ok := index[id]
	if !ok {
		return nil
	}

	parentID := node.NodeParentID()
	var out []N
	for _, n := range nodes {
		if n.NodeID() != id && n.NodeParentID() == parentID {
			out = append(out, n)
		}
	}
	return out
}

// Roots returns the nodes whose parent is empty or missing from the input.
// Orphans count as roots so traversal degrades gracefully on corrupt data.
func Roots[N Node](nodes []N) []N {
	index := indexByID(nodes)

	var out []N
	for _, n := range nodes {
		parentID := n.NodeParentID()
		if parentID == "" {
			out = append(out, n)
			continue
		}
		if _, ok := index[parentID]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Depth returns the number of edges between id and its root, or -1 if id is
// not in the input
func Depth[N Node](nodes []N, id string) int {
	return len(Ancestors(nodes, id)) - 1
}

func indexByID[N Node](nodes []N) map[string]N {
	index := make(map[string]N, len(nodes))
	for _, n := range nodes {
		if _, ok := index[n.NodeID()]; !ok {
			index[n.NodeID()] = n
		}
	}
	return index
}
