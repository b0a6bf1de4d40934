package neuron

import (
	"sync"

	"synapsis/internal/sim"
)

// State is a cell's life-state. Dead cells are skipped by the
// connectivity export.
type State int

const (
	StateAlive State = iota
	StateDead
)

// Synapse is a directed edge record owned by its source cell. Records are
// append-only for the lifetime of a run; the only supported mutation is
// strengthening an existing record.
type Synapse struct {
	Source   sim.UID
	Target   sim.UID
	Distance float64
	Strength int
	Step     int64
}

// Cell is the aggregate root of one neurite tree and the unit of synapse
// identity.
type Cell struct {
	uid      sim.UID
	pos      sim.Vec3
	cellType int

	mu       sync.Mutex
	state    State
	synapses []Synapse
}

func NewCell(uid sim.UID, pos sim.Vec3, cellType int) *Cell {
	return &Cell{uid: uid, pos: pos, cellType: cellType}
}

func (c *Cell) UID() sim.UID       { return c.uid }
func (c *Cell) Position() sim.Vec3 { return c.pos }
func (c *Cell) Type() int          { return c.cellType }

func (c *Cell) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Cell) SetState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// Synapses returns a copy of the cell's outgoing edge list.
func (c *Cell) Synapses() []Synapse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Synapse(nil), c.synapses...)
}

// Degree is the number of outgoing edges.
func (c *Cell) Degree() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.synapses)
}

// appendSynapseLocked requires c.mu to be held by the caller.
func (c *Cell) appendSynapseLocked(s Synapse) {
	c.synapses = append(c.synapses, s)
}

// hasEdgeToLocked requires c.mu to be held by the caller.
func (c *Cell) hasEdgeToLocked(target sim.UID) bool {
	for i := range c.synapses {
		if c.synapses[i].Target == target {
			return true
		}
	}
	return false
}
