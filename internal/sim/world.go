package sim

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// UID identifies one agent within a World for the lifetime of a run.
type UID int64

// UIDNone marks the absence of an agent reference.
const UIDNone UID = -1

// DefaultBinEdge matches the detection search radius so a neighbor query
// touches at most the 27 bins around the origin.
const DefaultBinEdge = 5.0

// Agent is anything the world schedules: a cell body, a tree segment, or
// any other positioned entity.
type Agent interface {
	UID() UID
	Position() Vec3
}

// Behavior is per-agent logic invoked once per simulation step. A Behavior
// must treat other agents' positions and ownership links as immutable for
// the duration of the step.
type Behavior interface {
	Name() string
	Run(ctx context.Context, w *World, a Agent) error
}

// Operation is standalone per-step logic, invoked before agent behaviors.
type Operation interface {
	Name() string
	Run(ctx context.Context, w *World) error
}

// Config carries world construction parameters.
type Config struct {
	// TotalSteps is the configured length of the run.
	TotalSteps int64
	// Workers bounds behavior-evaluation parallelism; 0 means GOMAXPROCS.
	Workers int
	// BinEdge sets the neighbor-grid bin size; 0 means DefaultBinEdge.
	BinEdge float64
	Logger  *zerolog.Logger
}

// World is the explicit simulation context threaded through every
// component call. It owns the agent registry, the step counter, the
// neighbor grid, and the per-step scheduling loop.
type World struct {
	log        zerolog.Logger
	totalSteps int64
	workers    int
	binEdge    float64

	mu        sync.RWMutex
	nextUID   UID
	agents    map[UID]Agent
	order     []UID
	behaviors map[UID][]Behavior
	ops       []Operation

	step int64
	grid *spatialGrid
}

func NewWorld(cfg Config) *World {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	binEdge := cfg.BinEdge
	if binEdge <= 0 {
		binEdge = DefaultBinEdge
	}
	return &World{
		log:        logger,
		totalSteps: cfg.TotalSteps,
		workers:    workers,
		binEdge:    binEdge,
		agents:     make(map[UID]Agent),
		behaviors:  make(map[UID][]Behavior),
		grid:       newSpatialGrid(binEdge),
	}
}

// NewUID hands out monotonically increasing agent identifiers.
func (w *World) NewUID() UID {
	w.mu.Lock()
	defer w.mu.Unlock()

	uid := w.nextUID
	w.nextUID++
	return uid
}

func (w *World) AddAgent(a Agent) error {
	if a == nil {
		return fmt.Errorf("agent is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	uid := a.UID()
	if _, exists := w.agents[uid]; exists {
		return fmt.Errorf("agent %d already registered", uid)
	}
	w.agents[uid] = a
	w.order = append(w.order, uid)
	if uid >= w.nextUID {
		w.nextUID = uid + 1
	}
	return nil
}

func (w *World) RemoveAgent(uid UID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.agents, uid)
	delete(w.behaviors, uid)
}

func (w *World) GetAgent(uid UID) (Agent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	a, ok := w.agents[uid]
	return a, ok
}

// ForEachAgent visits live agents in ascending-UID registration order.
// Already-removed entries are skipped.
func (w *World) ForEachAgent(fn func(Agent)) {
	w.mu.RLock()
	order := append([]UID(nil), w.order...)
	agents := make([]Agent, 0, len(order))
	for _, uid := range order {
		if a, ok := w.agents[uid]; ok {
			agents = append(agents, a)
		}
	}
	w.mu.RUnlock()

	for _, a := range agents {
		fn(a)
	}
}

// AttachBehavior appends b to the agent's behavior list. Attaching to an
// unknown agent is an error; attach-after-remove is a caller bug.
func (w *World) AttachBehavior(uid UID, b Behavior) error {
	if b == nil {
		return fmt.Errorf("behavior is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.agents[uid]; !ok {
		return fmt.Errorf("agent %d not registered", uid)
	}
	w.behaviors[uid] = append(w.behaviors[uid], b)
	return nil
}

// HasBehavior reports whether the agent already carries a behavior with
// the given name.
func (w *World) HasBehavior(uid UID, name string) bool {
	return w.BehaviorCount(uid, name) > 0
}

// BehaviorCount returns how many behaviors with the given name are
// attached to the agent.
func (w *World) BehaviorCount(uid UID, name string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	count := 0
	for _, b := range w.behaviors[uid] {
		if b.Name() == name {
			count++
		}
	}
	return count
}

func (w *World) AddOperation(op Operation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ops = append(w.ops, op)
}

// CurrentStep returns the number of completed or in-progress steps.
func (w *World) CurrentStep() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.step
}

func (w *World) TotalSteps() int64 {
	return w.totalSteps
}

// ForEachNeighbor enumerates agents within sqRadius of the querying
// agent's position, excluding the agent itself. Valid only inside a step,
// after the grid rebuild.
func (w *World) ForEachNeighbor(of Agent, sqRadius float64, fn func(Agent, float64)) {
	w.grid.forEachNeighbor(of.Position(), sqRadius, of.UID(), fn)
}

// Step advances the simulation by one step: rebuild the neighbor grid,
// run standalone operations in registration order, then evaluate agent
// behaviors across the worker pool. Behavior errors are logged and
// skipped; only context cancellation aborts the step.
func (w *World) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	w.step++
	step := w.step
	w.mu.Unlock()

	w.rebuildGrid()

	w.mu.RLock()
	ops := append([]Operation(nil), w.ops...)
	w.mu.RUnlock()

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op.Run(ctx, w); err != nil {
			w.log.Warn().Err(err).Str("operation", op.Name()).Int64("step", step).Msg("operation failed")
		}
	}

	jobs := w.collectBehaviorJobs()
	if len(jobs) == 0 {
		return nil
	}

	workers := w.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan behaviorJob)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if ctx.Err() != nil {
					continue
				}
				if err := job.behavior.Run(ctx, w, job.agent); err != nil {
					w.log.Warn().Err(err).
						Str("behavior", job.behavior.Name()).
						Int64("agent", int64(job.agent.UID())).
						Int64("step", step).
						Msg("behavior failed")
				}
			}
		}()
	}
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	return ctx.Err()
}

// Run advances the world until the configured number of steps completes.
func (w *World) Run(ctx context.Context) error {
	for w.CurrentStep() < w.totalSteps {
		if err := w.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

type behaviorJob struct {
	agent    Agent
	behavior Behavior
}

func (w *World) rebuildGrid() {
	grid := newSpatialGrid(w.binEdge)

	w.mu.RLock()
	for _, uid := range w.order {
		if a, ok := w.agents[uid]; ok {
			grid.insert(a)
		}
	}
	w.mu.RUnlock()

	grid.seal()
	w.grid = grid
}

// collectBehaviorJobs snapshots (agent, behavior) pairs in a deterministic
// order so a run with one worker is reproducible.
func (w *World) collectBehaviorJobs() []behaviorJob {
	w.mu.RLock()
	defer w.mu.RUnlock()

	uids := make([]UID, 0, len(w.behaviors))
	for uid := range w.behaviors {
		if _, ok := w.agents[uid]; ok {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	var jobs []behaviorJob
	for _, uid := range uids {
		agent := w.agents[uid]
		for _, b := range w.behaviors[uid] {
			jobs = append(jobs, behaviorJob{agent: agent, behavior: b})
		}
	}
	return jobs
}
