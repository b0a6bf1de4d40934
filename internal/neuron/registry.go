package neuron

import (
	"github.com/rs/zerolog"
)

// SynapseRegistry records directed synapse edges between cells. Edges are
// deduplicated symmetrically: once A→B exists, neither A→B nor B→A is
// recorded again.
//
// Multiple segments owned by the same cell may attempt concurrent
// recording within one step, so every mutation takes both cell locks in
// UID order.
type SynapseRegistry struct {
	log zerolog.Logger
}

func NewSynapseRegistry(logger *zerolog.Logger) *SynapseRegistry {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &SynapseRegistry{log: l}
}

// Connect appends a src→dst edge unless one already exists in either
// direction. Reports whether a new edge was recorded. Self-edges are
// never recorded.
func (r *SynapseRegistry) Connect(src, dst *Cell, distance float64, strength int, step int64) bool {
	if src == nil || dst == nil {
		return false
	}
	if src.uid == dst.uid {
		return false
	}

	first, second := lockOrder(src, dst)
	first.mu.Lock()
	second.mu.Lock()
	defer second.mu.Unlock()
	defer first.mu.Unlock()

	if src.hasEdgeToLocked(dst.uid) || dst.hasEdgeToLocked(src.uid) {
		return false
	}

	src.appendSynapseLocked(Synapse{
		Source:   src.uid,
		Target:   dst.uid,
		Distance: distance,
		Strength: strength,
		Step:     step,
	})
	r.log.Debug().
		Int64("source", int64(src.uid)).
		Int64("target", int64(dst.uid)).
		Float64("distance", distance).
		Int64("step", step).
		Msg("synapse recorded")
	return true
}

// HasEdge reports whether an edge exists between a and b in either
// direction.
func (r *SynapseRegistry) HasEdge(a, b *Cell) bool {
	if a == nil || b == nil {
		return false
	}
	if a.uid == b.uid {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.hasEdgeToLocked(a.uid)
	}

	first, second := lockOrder(a, b)
	first.mu.Lock()
	second.mu.Lock()
	defer second.mu.Unlock()
	defer first.mu.Unlock()

	return a.hasEdgeToLocked(b.uid) || b.hasEdgeToLocked(a.uid)
}

// Strengthen increments the strength of an existing src→dst record.
// Present as a capability; the detection path only ever appends new
// edges.
func (r *SynapseRegistry) Strengthen(src, dst *Cell, amount int) bool {
	if src == nil || dst == nil {
		return false
	}
	src.mu.Lock()
	defer src.mu.Unlock()

	for i := range src.synapses {
		if src.synapses[i].Target == dst.uid {
			src.synapses[i].Strength += amount
			return true
		}
	}
	return false
}

func lockOrder(a, b *Cell) (*Cell, *Cell) {
	if a.uid < b.uid {
		return a, b
	}
	return b, a
}
