package neuron

import (
	"sync"

	"synapsis/internal/sim"
)

// Neurite is one segment of a growing dendritic or axonal tree. Its parent
// link points either at another Neurite or, at the tree root, at the
// owning Cell. A nil parent marks a detached subtree.
type Neurite struct {
	uid    sim.UID
	parent sim.Agent

	mu    sync.RWMutex
	pos   sim.Vec3
	owner *Cell
}

func NewNeurite(uid sim.UID, pos sim.Vec3, parent sim.Agent) *Neurite {
	return &Neurite{uid: uid, pos: pos, parent: parent}
}

func (n *Neurite) UID() sim.UID { return n.uid }

func (n *Neurite) Position() sim.Vec3 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pos
}

// SetPosition is reserved for growth logic between steps; positions are
// immutable while a step is being evaluated.
func (n *Neurite) SetPosition(pos sim.Vec3) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pos = pos
}

func (n *Neurite) Parent() sim.Agent { return n.parent }

// OwnerCell climbs the parent-ownership chain until it reaches a Cell.
// The chain mixes Neurite and Cell nodes under one polymorphic link, so
// each hop discriminates on the concrete type. The resolved owner is
// cached; ownership never changes after a segment attaches to its tree.
//
// A false result is not an error: it means the segment hangs off a
// detached root and no synapse is possible for this branch right now.
func (n *Neurite) OwnerCell() (*Cell, bool) {
	n.mu.RLock()
	cached := n.owner
	n.mu.RUnlock()
	if cached != nil {
		return cached, true
	}

	cur := n.parent
	for cur != nil {
		switch node := cur.(type) {
		case *Cell:
			n.mu.Lock()
			n.owner = node
			n.mu.Unlock()
			return node, true
		case *Neurite:
			cur = node.parent
		default:
			// Some other agent kind in the chain; treat as detached.
			return nil, false
		}
	}
	return nil, false
}
