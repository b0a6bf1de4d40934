// Package synapsis is the public entry point: it wires a world, runs the
// growth-plus-detection loop, exports connectivity, and persists run
// artifacts through the configured store.
package synapsis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"synapsis/internal/export"
	"synapsis/internal/model"
	"synapsis/internal/neuron"
	"synapsis/internal/sim"
	"synapsis/internal/storage"
)

const (
	defaultDBPath      = "synapsis.db"
	defaultCells       = 20
	defaultSteps       = int64(500)
	defaultSpread      = 40.0
	defaultGrowthSpeed = 0.5
	cellTypeCount      = 3
)

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *zerolog.Logger
}

type Client struct {
	store storage.Store
	log   zerolog.Logger
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return &Client{store: store, log: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

type RunRequest struct {
	// Cells is the number of cell bodies seeded into the arena.
	Cells int
	// Steps is the configured run length; detection activates over the
	// final few steps.
	Steps   int64
	Seed    int64
	Workers int
	// Spread is the half-extent of the cube cells are placed in.
	Spread float64
	// GrowthSpeed is the per-step elongation of each growth cone.
	GrowthSpeed float64
	// OneShot converts detectors to true one-shot semantics instead of
	// the observed repeat-until-end behavior.
	OneShot bool
	// IsolatedTarget optionally replaces the target column for
	// isolated-cell CSV rows (e.g. "none").
	IsolatedTarget string
	// OutPath is the CSV output; defaults to connection_list.csv.
	OutPath string
}

type RunSummary struct {
	RunID    string
	Steps    int64
	Cells    int
	Segments int
	Edges    int
	Isolated int
	CSVPath  string
}

// Run seeds a world, grows neurite chains from every cell, lets the
// timing gate switch detection on for the trailing steps, then exports
// and persists the resulting connectivity graph.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Cells < 0 {
		return RunSummary{}, fmt.Errorf("cells must be >= 0, got %d", req.Cells)
	}
	if req.Cells == 0 {
		req.Cells = defaultCells
	}
	if req.Steps <= 0 {
		req.Steps = defaultSteps
	}
	if req.Spread <= 0 {
		req.Spread = defaultSpread
	}
	if req.GrowthSpeed <= 0 {
		req.GrowthSpeed = defaultGrowthSpeed
	}
	if req.OutPath == "" {
		req.OutPath = export.ConnectionListFile
	}

	rng := rand.New(rand.NewSource(req.Seed))
	w := sim.NewWorld(sim.Config{
		TotalSteps: req.Steps,
		Workers:    req.Workers,
		Logger:     &c.log,
	})
	registry := neuron.NewSynapseRegistry(&c.log)

	for i := 0; i < req.Cells; i++ {
		pos := sim.Vec3{
			(rng.Float64()*2 - 1) * req.Spread,
			(rng.Float64()*2 - 1) * req.Spread,
			(rng.Float64()*2 - 1) * req.Spread,
		}
		cell := neuron.NewCell(w.NewUID(), pos, rng.Intn(cellTypeCount))
		if err := w.AddAgent(cell); err != nil {
			return RunSummary{}, err
		}

		root := neuron.NewNeurite(w.NewUID(), pos, cell)
		if err := w.AddAgent(root); err != nil {
			return RunSummary{}, err
		}
		direction := sim.Vec3{
			rng.Float64()*2 - 1,
			rng.Float64()*2 - 1,
			rng.Float64()*2 - 1,
		}
		if err := w.AttachBehavior(root.UID(), neuron.NewGrowthCone(direction, req.GrowthSpeed)); err != nil {
			return RunSummary{}, err
		}
	}

	w.AddOperation(neuron.NewSynapsification(registry, req.OneShot, &c.log))

	if err := w.Run(ctx); err != nil {
		return RunSummary{}, err
	}

	exporter := export.Exporter{
		Path:           req.OutPath,
		IsolatedTarget: req.IsolatedTarget,
		Logger:         &c.log,
	}
	snap, exportErr := exporter.Export(w)

	segments := 0
	w.ForEachAgent(func(a sim.Agent) {
		if _, ok := a.(*neuron.Neurite); ok {
			segments++
		}
	})

	runID := uuid.NewString()
	snap.RunID = runID
	snap.VersionedRecord = storage.Stamp()

	run := model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Seed:            req.Seed,
		Steps:           req.Steps,
		Workers:         req.Workers,
		CellCount:       req.Cells,
		SegmentCount:    segments,
		EdgeCount:       len(snap.Edges),
		CSVPath:         req.OutPath,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:    runID,
		Steps:    req.Steps,
		Cells:    req.Cells,
		Segments: segments,
		Edges:    len(snap.Edges),
		Isolated: len(snap.Isolated),
		CSVPath:  req.OutPath,
	}
	// The run itself succeeded; a failed CSV write is reported but does
	// not discard the persisted snapshot.
	return summary, exportErr
}

func (c *Client) Runs(ctx context.Context) ([]model.RunRecord, error) {
	return c.store.ListRuns(ctx)
}

// Reset drops all persisted runs and snapshots.
func (c *Client) Reset(ctx context.Context) error {
	resetter, ok := c.store.(storage.Resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	c.log.Info().Msg("store reset")
	return nil
}

// Connectivity returns the stored connectivity snapshot of a past run.
func (c *Client) Connectivity(ctx context.Context, runID string) (model.ConnectivitySnapshot, error) {
	if runID == "" {
		return model.ConnectivitySnapshot{}, fmt.Errorf("run id is required")
	}
	snap, ok, err := c.store.GetSnapshot(ctx, runID)
	if err != nil {
		return model.ConnectivitySnapshot{}, err
	}
	if !ok {
		return model.ConnectivitySnapshot{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return snap, nil
}

type ExportRequest struct {
	RunID          string
	OutPath        string
	IsolatedTarget string
}

var ErrRunNotFound = errors.New("run not found")

// Export re-emits the stored connectivity snapshot of a past run as CSV
// without re-simulating.
func (c *Client) Export(ctx context.Context, req ExportRequest) error {
	if req.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	snap, ok, err := c.store.GetSnapshot(ctx, req.RunID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, req.RunID)
	}

	outPath := req.OutPath
	if outPath == "" {
		outPath = export.ConnectionListFile
	}
	exporter := export.Exporter{
		Path:           outPath,
		IsolatedTarget: req.IsolatedTarget,
		Logger:         &c.log,
	}
	return exporter.WriteSnapshot(snap)
}
