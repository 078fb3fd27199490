// Package graph implements the node-graph state machine that interprets a
// strategy definition tick by tick.
package graph

import (
	"sort"

	"github.com/moznion/go-optional"

	"github.com/tradelayout/tickgraph/internal/types"
)

// Status is the lifecycle state of one node within a strategy instance.
type Status string

const (
	// StatusPending means the node is waiting for a parent to activate it.
	StatusPending Status = "pending"
	// StatusActive means the node's logic runs when execution reaches it.
	StatusActive Status = "active"
	// StatusInactive means the node completed; its logic is skipped until a
	// re-entry signal re-arms it.
	StatusInactive Status = "inactive"
)

// NodeState is the mutable per-instance state of one node. Nodes reference
// each other by id only; all state lives here, keyed in the StateTable.
type NodeState struct {
	Status Status
	// Visited is cleared at the start of every tick and set once the node has
	// executed during that tick. It guards against duplicate execution when a
	// node is reachable through multiple parents.
	Visited bool
	// ReEntryNum counts re-entries taken through this node's lineage.
	ReEntryNum int
	// OrderRef holds the transaction id of the last order this node placed.
	OrderRef optional.Option[string]
	// RetryCount counts transient failures this node shrugged off.
	RetryCount int
	// Vars are named values produced by this node, readable by descendant
	// nodes' conditions.
	Vars map[string]float64
}

// StateTable owns the NodeState of every node in one strategy instance.
type StateTable struct {
	states map[string]*NodeState
	order  []string
}

// NewStateTable builds the initial table for a validated definition: the
// root starts Active, every other node Pending.
func NewStateTable(def *types.StrategyDefinition) *StateTable {
	t := &StateTable{
		states: make(map[string]*NodeState, len(def.Nodes)),
		order:  make([]string, 0, len(def.Nodes)),
	}

	for _, node := range def.Nodes {
		status := StatusPending
		if node.ID == def.RootNodeID {
			status = StatusActive
		}

		t.states[node.ID] = &NodeState{
			Status: status,
			Vars:   make(map[string]float64),
		}
		t.order = append(t.order, node.ID)
	}

	return t
}

// Get returns the state for a node id. The id must exist in the definition
// the table was built from.
func (t *StateTable) Get(id string) *NodeState {
	return t.states[id]
}

// ResetVisited clears every node's visited flag. The scheduler calls it at
// the start of each tick.
func (t *StateTable) ResetVisited() {
	for _, st := range t.states {
		st.Visited = false
	}
}

// Var resolves a node variable, for condition operands like
// "entry-1.entry_price".
func (t *StateTable) Var(nodeID, name string) (float64, bool) {
	st, ok := t.states[nodeID]
	if !ok {
		return 0, false
	}

	v, ok := st.Vars[name]

	return v, ok
}

// RetryCounts aggregates transient-failure counts per node id, sorted for
// stable reporting.
func (t *StateTable) RetryCounts() map[string]int {
	out := make(map[string]int)

	ids := make([]string, 0, len(t.states))
	for id := range t.states {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		if t.states[id].RetryCount > 0 {
			out[id] = t.states[id].RetryCount
		}
	}

	return out
}
