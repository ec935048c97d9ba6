// Package graphstore keeps a client-side mirror of conversation graphs and
// orchestrates mutations against the remote API. Every mutation applies
// optimistically to the cache first, then settles: a confirmed mutation keeps
// the optimistic state (or merges server fields), a failed one restores the
// pre-mutation snapshot. The cache is keyed by conversation ID; callers pass
// the conversation explicitly on every operation.
package graphstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loom-backend/client/graphapi"
	"loom-backend/domain/core/layout"
	"loom-backend/domain/core/tree"
	pkgerrors "loom-backend/pkg/errors"
)

// Duplicate copies are offset from their original so they never land exactly
// on top of it. Must match the server-side offset.
const (
	duplicateOffsetX = 30.0
	duplicateOffsetY = 30.0
)

// API is the remote collaborator the store mutates through
type API interface {
	FetchGraph(ctx context.Context, conversationID string) (*graphapi.Graph, error)
	UpdatePosition(ctx context.Context, messageID string, x, y float64) error
	BatchUpdatePositions(ctx context.Context, updates []graphapi.PositionUpdate) error
	Attach(ctx context.Context, messageID string, parentMessageID *string) (*graphapi.AttachAck, error)
	Drop(ctx context.Context, messageID string, parentMessageID *string, x, y float64) (*graphapi.DropAck, error)
	Duplicate(ctx context.Context, messageID string) (*graphapi.Node, error)
	Delete(ctx context.Context, messageID string, keepReplies bool) (*graphapi.DeleteResult, error)
}

// Node is one cached message. An empty ParentID marks a root.
type Node struct {
	ID           string
	Role         string
	Text         string
	Model        string
	ParentID     string
	X            float64
	Y            float64
	IsRootNode   bool
	RootNodeName string
	IsError      bool
	CreatedAt    string
}

// NodeID implements tree.Node
func (n Node) NodeID() string { return n.ID }

// NodeParentID implements tree.Node
func (n Node) NodeParentID() string { return n.ParentID }

// NodeCreatedAt orders siblings for the layout engine. Timestamps arrive as
// RFC 3339 strings; anything unparseable sorts as the zero time and falls
// back to the ID tiebreak.
func (n Node) NodeCreatedAt() time.Time {
	t, _ := time.Parse(time.RFC3339, n.CreatedAt)
	return t
}

// PositionX implements layout.Node
func (n Node) PositionX() float64 { return n.X }

// PositionY implements layout.Node
func (n Node) PositionY() float64 { return n.Y }

// conversation is one cached graph plus its selection set
type conversation struct {
	nodes     map[string]Node
	selection map[string]bool
}

// mutationState tracks one mutation through its lifecycle
type mutationState int

const (
	statePending mutationState = iota
	stateCommitted
	stateRolledBack
)

// mutation is the snapshot taken before an optimistic apply. Commit discards
// it; rollback restores it. Either settles the mutation exactly once.
type mutation struct {
	state     mutationState
	nodes     map[string]Node
	selection map[string]bool
}

// Store mirrors conversation graphs and runs the optimistic mutation protocol
type Store struct {
	api    API
	logger *zap.Logger

	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewStore creates an empty store backed by the given API
func NewStore(api API, logger *zap.Logger) *Store {
	return &Store{
		api:           api,
		logger:        logger,
		conversations: make(map[string]*conversation),
	}
}

// Load fetches a conversation's graph into the cache, replacing any cached
// copy. Selection survives a reload but is pruned to surviving nodes.
func (s *Store) Load(ctx context.Context, conversationID string) error {
	graph, err := s.api.FetchGraph(ctx, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(conversationID, graph)
	return nil
}

// Graph returns the cached nodes ordered by creation time with the ID as
// tiebreak. The slice is a copy; mutating it does not touch the cache.
func (s *Store) Graph(conversationID string) []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	return sortedNodes(conv.nodes)
}

// GetNode returns one cached node
func (s *Store) GetNode(conversationID, id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return Node{}, false
	}
	node, ok := conv.nodes[id]
	return node, ok
}

// UpdatePosition moves one node, optimistically
func (s *Store) UpdatePosition(ctx context.Context, conversationID, id string, x, y float64) error {
	s.mu.Lock()
	conv, node, err := s.nodeLocked(conversationID, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	m := snapshot(conv)
	node.X = x
	node.Y = y
	conv.nodes[id] = node
	s.mu.Unlock()

	if err := s.api.UpdatePosition(ctx, id, x, y); err != nil {
		s.rollback(conversationID, m)
		return err
	}
	s.commit(m)
	return nil
}

// BatchUpdatePositions moves several nodes through the atomic batch endpoint.
// A failure reverts every node in the batch together.
func (s *Store) BatchUpdatePositions(ctx context.Context, conversationID string, updates []graphapi.PositionUpdate) error {
	if len(updates) == 0 {
		return pkgerrors.NewValidationError("batch update requires at least one entry")
	}

	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("conversation")
	}
	for _, u := range updates {
		if _, ok := conv.nodes[u.ID]; !ok {
			s.mu.Unlock()
			return pkgerrors.NewNotFoundError("message")
		}
	}

	m := snapshot(conv)
	for _, u := range updates {
		node := conv.nodes[u.ID]
		node.X = u.X
		node.Y = u.Y
		conv.nodes[u.ID] = node
	}
	s.mu.Unlock()

	if err := s.api.BatchUpdatePositions(ctx, updates); err != nil {
		s.rollback(conversationID, m)
		return err
	}
	s.commit(m)
	return nil
}

// AutoLayout computes canvas positions for nodes still at the origin and
// persists them through the atomic batch endpoint. Manually placed nodes are
// never touched. A no-op when every node already has a position.
func (s *Store) AutoLayout(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("conversation")
	}
	assigned := layout.ApplyAutoLayout(sortedNodes(conv.nodes), layout.DefaultConfig())
	s.mu.Unlock()

	if len(assigned) == 0 {
		return nil
	}

	updates := make([]graphapi.PositionUpdate, 0, len(assigned))
	for id, p := range assigned {
		updates = append(updates, graphapi.PositionUpdate{ID: id, X: p.X, Y: p.Y})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })

	return s.BatchUpdatePositions(ctx, conversationID, updates)
}

// Attach reparents a node. An empty parentID detaches it into a new root.
// The local cycle check is an advisory fast-path; the server re-derives the
// ancestor chain and stays authoritative, so the cache is refetched after the
// call settles either way.
func (s *Store) Attach(ctx context.Context, conversationID, id, parentID string) error {
	s.mu.Lock()
	conv, node, err := s.nodeLocked(conversationID, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if parentID != "" {
		if err := cycleCheck(conv, id, parentID); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	m := snapshot(conv)
	node.ParentID = parentID
	conv.nodes[id] = node
	s.mu.Unlock()

	_, apiErr := s.api.Attach(ctx, id, optionalID(parentID))
	if apiErr != nil {
		s.rollback(conversationID, m)
	} else {
		s.commit(m)
	}

	s.refetch(ctx, conversationID)
	return apiErr
}

// Detach makes a node a root. It persists through the attach path with a
// null parent.
func (s *Store) Detach(ctx context.Context, conversationID, id string) error {
	return s.Attach(ctx, conversationID, id, "")
}

// Drop reparents and repositions in one atomic call. Rollback restores both
// fields together; the cache never holds a moved node with a stale parent.
func (s *Store) Drop(ctx context.Context, conversationID, id, parentID string, x, y float64) error {
	s.mu.Lock()
	conv, node, err := s.nodeLocked(conversationID, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if parentID != "" {
		if err := cycleCheck(conv, id, parentID); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	m := snapshot(conv)
	node.ParentID = parentID
	node.X = x
	node.Y = y
	conv.nodes[id] = node
	s.mu.Unlock()

	_, apiErr := s.api.Drop(ctx, id, optionalID(parentID), x, y)
	if apiErr != nil {
		s.rollback(conversationID, m)
	} else {
		s.commit(m)
	}

	s.refetch(ctx, conversationID)
	return apiErr
}

// Duplicate copies a node. A speculative copy appears immediately; on success
// it is replaced by the server's authoritative node, on failure it vanishes.
func (s *Store) Duplicate(ctx context.Context, conversationID, id string) (Node, error) {
	s.mu.Lock()
	conv, original, err := s.nodeLocked(conversationID, id)
	if err != nil {
		s.mu.Unlock()
		return Node{}, err
	}

	m := snapshot(conv)
	speculativeID := uuid.New().String()
	speculative := original
	speculative.ID = speculativeID
	speculative.X += duplicateOffsetX
	speculative.Y += duplicateOffsetY
	speculative.IsRootNode = false
	speculative.RootNodeName = ""
	conv.nodes[speculativeID] = speculative
	s.mu.Unlock()

	created, apiErr := s.api.Duplicate(ctx, id)
	if apiErr != nil {
		s.rollback(conversationID, m)
		return Node{}, apiErr
	}

	s.mu.Lock()
	node := nodeFromAPI(*created)
	if conv, ok := s.conversations[conversationID]; ok {
		delete(conv.nodes, speculativeID)
		conv.nodes[node.ID] = node
	}
	s.mu.Unlock()
	s.commit(m)
	return node, nil
}

// DeleteMessage removes one node and reattaches its direct children to the
// node's former parent. The node leaves the selection set in the same update.
func (s *Store) DeleteMessage(ctx context.Context, conversationID, id string) error {
	s.mu.Lock()
	conv, node, err := s.nodeLocked(conversationID, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	m := snapshot(conv)
	for childID, child := range conv.nodes {
		if child.ParentID == id && childID != id {
			child.ParentID = node.ParentID
			conv.nodes[childID] = child
		}
	}
	delete(conv.nodes, id)
	delete(conv.selection, id)
	s.mu.Unlock()

	if _, err := s.api.Delete(ctx, id, true); err != nil {
		s.rollback(conversationID, m)
		return err
	}
	s.commit(m)
	return nil
}

// DeleteThread removes a node and its whole subtree
func (s *Store) DeleteThread(ctx context.Context, conversationID, id string) error {
	s.mu.Lock()
	conv, _, err := s.nodeLocked(conversationID, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	m := snapshot(conv)
	for _, doomed := range tree.SubtreeIDs(nodeSlice(conv), id) {
		delete(conv.nodes, doomed)
		delete(conv.selection, doomed)
	}
	s.mu.Unlock()

	if _, err := s.api.Delete(ctx, id, false); err != nil {
		s.rollback(conversationID, m)
		return err
	}
	s.commit(m)
	return nil
}

// Select adds a node to the conversation's selection set
func (s *Store) Select(conversationID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	if _, ok := conv.nodes[id]; ok {
		conv.selection[id] = true
	}
}

// Deselect removes a node from the selection set
func (s *Store) Deselect(conversationID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[conversationID]; ok {
		delete(conv.selection, id)
	}
}

// ClearSelection empties the selection set
func (s *Store) ClearSelection(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[conversationID]; ok {
		conv.selection = make(map[string]bool)
	}
}

// Selected returns the selected node IDs in sorted order
func (s *Store) Selected(conversationID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(conv.selection))
	for id := range conv.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LinearFallbackChain handles legacy data where no message carries a parent
// pointer: the creation order is treated as an implied linear chain for
// display. It returns the ordered chain, or nil when any node has a real
// parent, in which case the stored tree stands as-is.
func LinearFallbackChain(nodes []Node) []Node {
	if len(nodes) < 2 {
		return nil
	}
	for _, n := range nodes {
		if n.ParentID != "" {
			return nil
		}
	}

	chain := make([]Node, len(nodes))
	copy(chain, nodes)
	sort.SliceStable(chain, func(i, j int) bool {
		if chain[i].CreatedAt == chain[j].CreatedAt {
			return chain[i].ID < chain[j].ID
		}
		return chain[i].CreatedAt < chain[j].CreatedAt
	})
	return chain
}

// nodeLocked resolves a cached conversation and node. Caller holds the lock.
func (s *Store) nodeLocked(conversationID, id string) (*conversation, Node, error) {
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, Node{}, pkgerrors.NewNotFoundError("conversation")
	}
	node, ok := conv.nodes[id]
	if !ok {
		return nil, Node{}, pkgerrors.NewNotFoundError("message")
	}
	return conv, node, nil
}

// snapshot captures the conversation's state before an optimistic apply
func snapshot(conv *conversation) *mutation {
	nodes := make(map[string]Node, len(conv.nodes))
	for id, n := range conv.nodes {
		nodes[id] = n
	}
	selection := make(map[string]bool, len(conv.selection))
	for id := range conv.selection {
		selection[id] = true
	}
	return &mutation{
		state:     statePending,
		nodes:     nodes,
		selection: selection,
	}
}

// commit settles a mutation, keeping the optimistic state
func (s *Store) commit(m *mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.state == statePending {
		m.state = stateCommitted
	}
}

// rollback settles a mutation by restoring its snapshot
func (s *Store) rollback(conversationID string, m *mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.state != statePending {
		return
	}
	m.state = stateRolledBack

	if conv, ok := s.conversations[conversationID]; ok {
		conv.nodes = m.nodes
		conv.selection = m.selection
	}
}

// refetch replaces the cached graph with the server's. Attach and drop call
// this after settling so the cache converges even when the local cycle check
// and the server's authoritative one disagree. Failures keep the settled
// local state; the next explicit Load recovers.
func (s *Store) refetch(ctx context.Context, conversationID string) {
	graph, err := s.api.FetchGraph(ctx, conversationID)
	if err != nil {
		s.logger.Warn("graph refetch failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(conversationID, graph)
}

// replaceLocked installs a fetched graph, pruning selection to survivors.
// Caller holds the lock.
func (s *Store) replaceLocked(conversationID string, graph *graphapi.Graph) {
	nodes := make(map[string]Node, len(graph.Messages))
	for _, msg := range graph.Messages {
		node := nodeFromAPI(msg)
		nodes[node.ID] = node
	}

	selection := make(map[string]bool)
	if existing, ok := s.conversations[conversationID]; ok {
		for id := range existing.selection {
			if _, alive := nodes[id]; alive {
				selection[id] = true
			}
		}
	}

	s.conversations[conversationID] = &conversation{
		nodes:     nodes,
		selection: selection,
	}
}

// cycleCheck is the advisory local guard before attach and drop
func cycleCheck(conv *conversation, id, parentID string) error {
	if parentID == id {
		return pkgerrors.NewCycleError()
	}
	if tree.IsAncestor(nodeSlice(conv), id, parentID) {
		return pkgerrors.NewCycleError()
	}
	return nil
}

func nodeSlice(conv *conversation) []Node {
	nodes := make([]Node, 0, len(conv.nodes))
	for _, n := range conv.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

func sortedNodes(nodes map[string]Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

func nodeFromAPI(msg graphapi.Node) Node {
	node := Node{
		ID:           msg.ID,
		Role:         msg.Role,
		Text:         msg.Text,
		Model:        msg.Model,
		X:            msg.PositionX,
		Y:            msg.PositionY,
		IsRootNode:   msg.IsRootNode,
		RootNodeName: msg.RootNodeName,
		IsError:      msg.IsError,
		CreatedAt:    msg.CreatedAt,
	}
	if msg.ReplyTo != nil {
		node.ParentID = *msg.ReplyTo
	}
	return node
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
