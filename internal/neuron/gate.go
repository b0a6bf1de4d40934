package neuron

import (
	"context"

	"github.com/rs/zerolog"

	"synapsis/internal/sim"
)

// SynapsificationName identifies the timing-gate operation.
const SynapsificationName = "synapsification"

// activationLead is how many trailing steps of a run the gate is active
// for: detection starts once step > totalSteps - activationLead.
const activationLead = 3

// Synapsification is the step-count gate that switches synapse detection
// on near the end of a run. While active it attaches a SynapseFormation
// behavior to every live tree segment. Attachment is idempotent: a
// segment that already carries the detector is left alone.
type Synapsification struct {
	registry *SynapseRegistry
	oneShot  bool
	log      zerolog.Logger
}

func NewSynapsification(registry *SynapseRegistry, oneShot bool, logger *zerolog.Logger) *Synapsification {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Synapsification{registry: registry, oneShot: oneShot, log: l}
}

func (op *Synapsification) Name() string { return SynapsificationName }

// Active reports whether the gate is inside its activation window.
func (op *Synapsification) Active(step, totalSteps int64) bool {
	return step > totalSteps-activationLead
}

func (op *Synapsification) Run(ctx context.Context, w *sim.World) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !op.Active(w.CurrentStep(), w.TotalSteps()) {
		return nil
	}

	attached := 0
	w.ForEachAgent(func(a sim.Agent) {
		seg, ok := a.(*Neurite)
		if !ok {
			return
		}
		if w.HasBehavior(seg.UID(), SynapseFormationName) {
			return
		}
		if err := w.AttachBehavior(seg.UID(), NewSynapseFormation(op.registry, op.oneShot, &op.log)); err != nil {
			// The segment was removed between enumeration and attach.
			op.log.Debug().Err(err).Int64("segment", int64(seg.UID())).Msg("detector attach skipped")
			return
		}
		attached++
	})
	if attached > 0 {
		op.log.Debug().Int("attached", attached).Int64("step", w.CurrentStep()).Msg("synapse detectors attached")
	}
	return nil
}
