package neuron

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"synapsis/internal/sim"
)

const (
	// SearchSquaredRadius is the neighbor-query radius (squared). It is
	// deliberately looser than the acceptance cutoff so the grid query
	// returns a superset of viable candidates.
	SearchSquaredRadius = 25.0

	// AcceptDistance is the hard cutoff below which a cross-cell segment
	// pair is close enough to synapse.
	AcceptDistance = 1.0

	// SynapseFormationName identifies the detector behavior on an agent.
	SynapseFormationName = "synapse-formation"
)

// Candidate is the outcome of one nearest-eligible-neighbor search.
type Candidate struct {
	Segment  *Neurite
	Owner    *Cell
	Distance float64
}

// SynapseFormation finds, per step, the closest segment that belongs to a
// different cell and records a synapse between the two owning cells.
//
// By default detection repeats every step until the run ends. Setting
// oneShot at construction disables the detector after its first recorded
// synapse.
type SynapseFormation struct {
	registry *SynapseRegistry
	oneShot  bool
	log      zerolog.Logger

	synapsed bool
}

func NewSynapseFormation(registry *SynapseRegistry, oneShot bool, logger *zerolog.Logger) *SynapseFormation {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &SynapseFormation{registry: registry, oneShot: oneShot, log: l}
}

func (s *SynapseFormation) Name() string { return SynapseFormationName }

func (s *SynapseFormation) Run(ctx context.Context, w *sim.World, a sim.Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.synapsed {
		return nil
	}
	seg, ok := a.(*Neurite)
	if !ok {
		return nil
	}
	owner, ok := seg.OwnerCell()
	if !ok {
		s.log.Debug().Int64("segment", int64(seg.UID())).Msg("segment has no owning cell, skipping detection")
		return nil
	}

	best, _ := ClosestEligible(w, seg, owner, s.log)
	if best.Segment == nil {
		return nil
	}

	if s.registry.Connect(owner, best.Owner, best.Distance, 1, w.CurrentStep()) {
		s.log.Debug().
			Int64("segment", int64(seg.UID())).
			Int64("neighbor", int64(best.Segment.UID())).
			Float64("distance", best.Distance).
			Msg("synapse formed")
	}
	if s.oneShot {
		s.synapsed = true
	}
	return nil
}

// ClosestEligible scans agents within SearchSquaredRadius of seg and
// returns the nearest segment whose owning cell differs from owner and
// whose distance is below AcceptDistance. Equidistant candidates are
// broken by ascending UID so the result does not depend on grid iteration
// order. The returned vector accumulates offsets toward every cross-cell
// neighbor seen, cutoff or not; it is diagnostic only.
func ClosestEligible(w *sim.World, seg *Neurite, owner *Cell, log zerolog.Logger) (Candidate, sim.Vec3) {
	var (
		best      Candidate
		direction sim.Vec3
	)
	best.Distance = math.MaxFloat64
	origin := seg.Position()

	w.ForEachNeighbor(seg, SearchSquaredRadius, func(a sim.Agent, sqDist float64) {
		cand, ok := a.(*Neurite)
		if !ok {
			return
		}
		candOwner, ok := cand.OwnerCell()
		if !ok {
			log.Debug().Int64("segment", int64(cand.UID())).Msg("neighbor has no owning cell, rejected")
			return
		}
		if candOwner.UID() == owner.UID() {
			return
		}

		direction = direction.Add(cand.Position().Sub(origin))

		d := math.Sqrt(sqDist)
		if d >= AcceptDistance {
			return
		}
		if d < best.Distance || (d == best.Distance && (best.Segment == nil || cand.UID() < best.Segment.UID())) {
			best = Candidate{Segment: cand, Owner: candOwner, Distance: d}
		}
	})

	if best.Segment == nil {
		return Candidate{}, direction
	}
	return best, direction
}
