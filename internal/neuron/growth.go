package neuron

import (
	"context"

	"synapsis/internal/sim"
)

// GrowthConeName identifies the demo growth behavior.
const GrowthConeName = "growth-cone"

// GrowthCone is a minimal stand-in for the external growth machinery: it
// extends a segment chain by one new segment per step along a fixed
// direction. It exists so runs and tests have trees to detect against;
// growth mechanics proper are out of scope.
type GrowthCone struct {
	direction sim.Vec3
	speed     float64

	tip *Neurite
}

func NewGrowthCone(direction sim.Vec3, speed float64) *GrowthCone {
	if speed <= 0 {
		speed = 0.5
	}
	norm := direction.Norm()
	if norm > 0 {
		direction = direction.Scale(1 / norm)
	} else {
		direction = sim.Vec3{1, 0, 0}
	}
	return &GrowthCone{direction: direction, speed: speed}
}

func (g *GrowthCone) Name() string { return GrowthConeName }

// Run appends a fresh segment ahead of the current tip. New segments are
// parented to the previous tip, so ownership chains lengthen by one per
// step and never mutate existing links.
func (g *GrowthCone) Run(ctx context.Context, w *sim.World, a sim.Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.tip == nil {
		seg, ok := a.(*Neurite)
		if !ok {
			return nil
		}
		g.tip = seg
	}

	next := NewNeurite(w.NewUID(), g.tip.Position().Add(g.direction.Scale(g.speed)), g.tip)
	if err := w.AddAgent(next); err != nil {
		return err
	}
	g.tip = next
	return nil
}
